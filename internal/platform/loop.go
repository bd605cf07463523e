package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/sourcegraph/conc/pool"
)

// Trainer is the per-tick contract the loop drives. Observe and Act run on
// the loop's goroutine; Update runs on the update task concurrently with the
// engine step.
type Trainer interface {
	Observe()
	Update() error
	Act() error
}

// Stepper advances the simulation by one tick.
type Stepper interface {
	Step()
}

// Loop is the bulk-synchronous tick harness.
type Loop struct {
	engine   Stepper
	trainers []Trainer
	ticks    int
}

func NewLoop(engine Stepper, trainers ...Trainer) (*Loop, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	for i, t := range trainers {
		if t == nil {
			return nil, fmt.Errorf("trainer %d is nil", i)
		}
	}
	return &Loop{engine: engine, trainers: trainers}, nil
}

// Ticks reports how many ticks completed.
func (l *Loop) Ticks() int { return l.ticks }

// Tick runs one tick. The context is only consulted before the tick starts;
// once started a tick always joins its update task before returning.
func (l *Loop) Tick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, t := range l.trainers {
		t.Observe()
	}

	p := pool.New().WithErrors()
	p.Go(func() error {
		for i, t := range l.trainers {
			if err := t.Update(); err != nil {
				return fmt.Errorf("update trainer %d: %w", i, err)
			}
		}
		return nil
	})
	l.engine.Step()
	if err := p.Wait(); err != nil {
		return err
	}

	for i, t := range l.trainers {
		if err := t.Act(); err != nil {
			return fmt.Errorf("act trainer %d: %w", i, err)
		}
	}
	l.ticks++
	return nil
}

// Run ticks n times, or forever when n <= 0, stopping early on error or
// cancellation.
func (l *Loop) Run(ctx context.Context, n int, afterTick func(tick int) error) error {
	for i := 0; n <= 0 || i < n; i++ {
		if err := l.Tick(ctx); err != nil {
			return err
		}
		if afterTick != nil {
			if err := afterTick(l.ticks); err != nil {
				return err
			}
		}
	}
	return nil
}
