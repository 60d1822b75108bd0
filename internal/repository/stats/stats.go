package stats

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/jgivc/mediarelay/internal/entity"
	"github.com/redis/go-redis/v9"
)

const (
	KeyTransferStats = "ts" // HASH. Outcome counters and total bytes. HINCRBY ts completed 1

	FieldCompleted = "completed"
	FieldFailed    = "failed"
	FieldAborted   = "aborted"
	FieldBytes     = "bytes"
)

func outcomeField(state entity.State) (string, error) {
	switch state {
	case entity.StateCompleted:
		return FieldCompleted, nil
	case entity.StateFailed:
		return FieldFailed, nil
	case entity.StateAborted:
		return FieldAborted, nil
	}

	return "", fmt.Errorf("state %s is not terminal", state)
}

type statsRepository struct {
	cl  *redis.Client
	log *slog.Logger
}

func NewStatsRepository(cl *redis.Client, log *slog.Logger) *statsRepository {
	return &statsRepository{
		cl:  cl,
		log: log.With(slog.String("item", "StatsRepository")),
	}
}

func (r *statsRepository) Record(ctx context.Context, state entity.State, bytes int64) error {
	field, err := outcomeField(state)
	if err != nil {
		return err
	}

	pipe := r.cl.Pipeline()
	pipe.HIncrBy(ctx, KeyTransferStats, field, 1)
	if bytes > 0 {
		pipe.HIncrBy(ctx, KeyTransferStats, FieldBytes, bytes)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cannot record %s transfer: %w", field, err)
	}

	return nil
}

func (r *statsRepository) Stats(ctx context.Context) (*entity.TransferStats, error) {
	values, err := r.cl.HGetAll(ctx, KeyTransferStats).Result()
	if err != nil {
		return nil, fmt.Errorf("cannot get transfer stats: %w", err)
	}

	stats := &entity.TransferStats{}
	for field, dst := range map[string]*int64{
		FieldCompleted: &stats.Completed,
		FieldFailed:    &stats.Failed,
		FieldAborted:   &stats.Aborted,
		FieldBytes:     &stats.Bytes,
	} {
		val, ok := values[field]
		if !ok {
			continue
		}

		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			r.log.Error("Cannot convert counter value", slog.String("field", field), slog.Any("error", err))

			continue
		}

		*dst = n
	}

	return stats, nil
}

// memoryRepository keeps counters in process when no redis is configured.
type memoryRepository struct {
	completed atomic.Int64
	failed    atomic.Int64
	aborted   atomic.Int64
	bytes     atomic.Int64
}

func NewMemoryRepository() *memoryRepository {
	return &memoryRepository{}
}

func (r *memoryRepository) Record(_ context.Context, state entity.State, bytes int64) error {
	switch state {
	case entity.StateCompleted:
		r.completed.Add(1)
	case entity.StateFailed:
		r.failed.Add(1)
	case entity.StateAborted:
		r.aborted.Add(1)
	default:
		return fmt.Errorf("state %s is not terminal", state)
	}

	if bytes > 0 {
		r.bytes.Add(bytes)
	}

	return nil
}

func (r *memoryRepository) Stats(_ context.Context) (*entity.TransferStats, error) {
	return &entity.TransferStats{
		Completed: r.completed.Load(),
		Failed:    r.failed.Load(),
		Aborted:   r.aborted.Load(),
		Bytes:     r.bytes.Load(),
	}, nil
}
