package store

import (
	"context"
	"errors"

	"github.com/MS-092/DS-RM-FP/internal/models"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("history store closed")

// HistoryStore persists completed experiment runs in insertion order.
type HistoryStore interface {
	// Append records a terminal run.
	Append(ctx context.Context, run models.ExperimentRun) error
	// List returns up to limit most recent runs, oldest first. limit <= 0 returns all.
	List(ctx context.Context, limit int) ([]models.ExperimentRun, error)
	Close() error
}

func tail(runs []models.ExperimentRun, limit int) []models.ExperimentRun {
	if limit > 0 && len(runs) > limit {
		runs = runs[len(runs)-limit:]
	}
	out := make([]models.ExperimentRun, len(runs))
	copy(out, runs)
	return out
}
