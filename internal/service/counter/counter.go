package counter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jgivc/mediarelay/internal/entity"
)

const (
	serviceName = "counter"
)

type StatsRepository interface {
	Stats(ctx context.Context) (*entity.TransferStats, error)
}

type counterService struct {
	repo StatsRepository
	log  *slog.Logger
}

func NewCounterService(repo StatsRepository, log *slog.Logger) *counterService {
	return &counterService{
		repo: repo,
		log:  log.With(slog.String("service", serviceName)),
	}
}

func (c *counterService) Stats(ctx context.Context) (*entity.TransferStats, error) {
	stats, err := c.repo.Stats(ctx)
	if err != nil {
		c.log.Error("Cannot get transfer stats", slog.Any("error", err))

		return nil, fmt.Errorf("cannot get transfer stats: %w", err)
	}

	return stats, nil
}
