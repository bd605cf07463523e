package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"neuralwarfare/internal/evo"
	"neuralwarfare/internal/model"
	"neuralwarfare/internal/storage"
)

type SessionConfig struct {
	Store storage.Store
	Loop  *Loop
	// Trainers are the evolving trainers whose generations get recorded.
	// They must also be registered with Loop.
	Trainers []*evo.GeneticTrainer
	// Run describes the session. ID and StartedAt are filled in when empty.
	Run    model.Run
	Logger *slog.Logger
	Now    func() time.Time
}

// Session runs a Loop and persists every generation report between ticks.
type Session struct {
	store    storage.Store
	loop     *Loop
	trainers []*evo.GeneticTrainer
	run      model.Run
	logger   *slog.Logger
	now      func() time.Time

	recorded int
}

// NewSession validates cfg and saves the run record.
func NewSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Loop == nil {
		return nil, errors.New("loop is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	run := cfg.Run
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = now().UTC()
	}
	run.VersionedRecord = storage.CurrentVersion()
	if len(run.Trainers) == 0 {
		for _, t := range cfg.Trainers {
			run.Trainers = append(run.Trainers, t.Name())
		}
	}
	if err := cfg.Store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("save run %s: %w", run.ID, err)
	}

	return &Session{
		store:    cfg.Store,
		loop:     cfg.Loop,
		trainers: cfg.Trainers,
		run:      run,
		logger:   logger.With("run", run.ID),
		now:      now,
	}, nil
}

func (s *Session) RunID() string { return s.run.ID }

func (s *Session) Run() model.Run { return s.run }

// Recorded is the number of generation records written so far.
func (s *Session) Recorded() int { return s.recorded }

// Execute runs ticks ticks (forever when ticks <= 0) and marks the run
// finished. The finish time is written even when the loop stops early.
func (s *Session) Execute(ctx context.Context, ticks int) error {
	s.logger.Info("session started", "ticks", ticks, "trainers", len(s.trainers))
	loopErr := s.loop.Run(ctx, ticks, func(int) error {
		return s.flush(ctx)
	})

	// The run record is finalised on a fresh context so a cancelled session
	// still closes out its history.
	finalCtx := context.WithoutCancel(ctx)
	if err := s.flush(finalCtx); err != nil && loopErr == nil {
		loopErr = err
	}
	s.run.FinishedAt = s.now().UTC()
	if err := s.store.SaveRun(finalCtx, s.run); err != nil && loopErr == nil {
		loopErr = fmt.Errorf("finish run %s: %w", s.run.ID, err)
	}
	s.logger.Info("session finished", "ticks", s.loop.Ticks(), "generations", s.recorded)
	return loopErr
}

func (s *Session) flush(ctx context.Context) error {
	for index, t := range s.trainers {
		reports := t.DrainReports()
		if len(reports) == 0 {
			continue
		}
		champion, err := t.Master().MarshalBinary()
		if err != nil {
			return fmt.Errorf("encode champion of %s: %w", t.Name(), err)
		}
		for _, report := range reports {
			record := model.Generation{
				VersionedRecord:  storage.CurrentVersion(),
				RunID:            s.run.ID,
				Trainer:          index,
				TrainerName:      t.Name(),
				Generation:       report.Generation,
				Population:       report.Population,
				BestFitness:      report.BestFitness,
				MeanFitness:      report.MeanFitness,
				MinFitness:       report.MinFitness,
				StdDevFitness:    report.StdDevFitness,
				ChampionLayers:   report.ChampionLayers,
				ChampionSynapses: report.ChampionSynapses,
				RecordedAt:       s.now().UTC(),
				Champion:         champion,
			}
			if err := s.store.AppendGeneration(ctx, record); err != nil {
				return fmt.Errorf("record generation %d of %s: %w", report.Generation, t.Name(), err)
			}
			s.recorded++
		}
	}
	return nil
}
