package storage

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"neuralwarfare/internal/model"
)

type generationKey struct {
	trainer    int
	generation int
}

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.Run
	generations map[string]map[generationKey]model.Generation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.Run)
	s.generations = make(map[string]map[generationKey]model.Generation)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	run.Trainers = slices.Clone(run.Trainers)
	run.Hyperparameters = slices.Clone(run.Hyperparameters)
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return model.Run{}, false, ErrNotInitialized
	}
	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	runs := make([]model.Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.Before(runs[j].StartedAt)
		}
		return runs[i].ID < runs[j].ID
	})
	return runs, nil
}

func (s *MemoryStore) AppendGeneration(_ context.Context, generation model.Generation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	if _, ok := s.runs[generation.RunID]; !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, generation.RunID)
	}
	byKey := s.generations[generation.RunID]
	if byKey == nil {
		byKey = make(map[generationKey]model.Generation)
		s.generations[generation.RunID] = byKey
	}
	generation.ChampionLayers = slices.Clone(generation.ChampionLayers)
	generation.Champion = slices.Clone(generation.Champion)
	byKey[generationKey{trainer: generation.Trainer, generation: generation.Generation}] = generation
	return nil
}

func (s *MemoryStore) ListGenerations(_ context.Context, runID string) ([]model.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	byKey := s.generations[runID]
	out := make([]model.Generation, 0, len(byKey))
	for _, g := range byKey {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Generation != out[j].Generation {
			return out[i].Generation < out[j].Generation
		}
		return out[i].Trainer < out[j].Trainer
	})
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
