package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/autoparts-backend/pkg/logger"
)

const staleCartDays = 14

type StaleCartJobParams struct {
	Logger    *logger.Logger
	Carts     staleCartPurger
	Retention int
}

type staleCartPurger interface {
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

// NewStaleCartJob removes carts nobody has touched within the retention window.
func NewStaleCartJob(params StaleCartJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = staleCartDays
	}
	return &staleCartJob{
		logg:      params.Logger,
		carts:     params.Carts,
		retention: retention,
		now:       time.Now,
	}, nil
}

type staleCartJob struct {
	logg      *logger.Logger
	carts     staleCartPurger
	retention int
	now       func() time.Time
}

func (j *staleCartJob) Name() string { return "stale-carts" }

func (j *staleCartJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	deleted, err := j.carts.DeleteStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete stale carts: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"carts_deleted": deleted,
	}), "stale cart cleanup complete")
	return nil
}
