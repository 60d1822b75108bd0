package counter

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jgivc/mediarelay/internal/entity"
	"github.com/jgivc/mediarelay/internal/repository/stats"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestCounterService(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	repo := stats.NewStatsRepository(rdb, discardLogger())
	srv := NewCounterService(repo, discardLogger())

	ctx := context.Background()
	require.NoError(t, repo.Record(ctx, entity.StateCompleted, 100))
	require.NoError(t, repo.Record(ctx, entity.StateAborted, 20))

	got, err := srv.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, &entity.TransferStats{Completed: 1, Aborted: 1, Bytes: 120}, got)

	mr.Close()

	_, err = srv.Stats(ctx)
	require.Error(t, err)
}
