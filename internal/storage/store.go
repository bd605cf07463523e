package storage

import (
	"context"
	"errors"

	"neuralwarfare/internal/model"
)

var (
	ErrNotInitialized = errors.New("store is not initialized")
	ErrRunNotFound    = errors.New("run not found")
)

// Store persists training history: runs and the generations evolved in them.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id string) (model.Run, bool, error)
	// ListRuns returns runs ordered by start time.
	ListRuns(ctx context.Context) ([]model.Run, error)
	// AppendGeneration records a generation of an existing run. Recording the
	// same (run, trainer, generation) twice replaces the earlier record.
	AppendGeneration(ctx context.Context, generation model.Generation) error
	// ListGenerations returns a run's generations ordered by generation, then
	// trainer.
	ListGenerations(ctx context.Context, runID string) ([]model.Generation, error)
	Close() error
}
