package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"neuralwarfare/internal/storage"
)

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	app := registerAppFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}
	cfg, err := app.load(fs)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	runs, err := store.ListRuns(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}
	// Most recent first.
	if len(runs) > *limit {
		runs = runs[len(runs)-*limit:]
	}
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}

	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	for _, r := range runs {
		finished := "running"
		if !r.FinishedAt.IsZero() {
			finished = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(stdout, "run_id=%s started=%s (%s) seed=%d ticks=%d team_size=%d trainers=%s duration=%s\n",
			r.ID,
			r.StartedAt.Format(time.RFC3339),
			humanize.Time(r.StartedAt),
			r.Seed,
			r.Ticks,
			r.TeamSize,
			strings.Join(r.Trainers, ","),
			finished,
		)
	}
	return nil
}

func runGenerations(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generations", flag.ContinueOnError)
	app := registerAppFlags(fs)
	runID := fs.String("run", "", "run id")
	trainer := fs.Int("trainer", -1, "only list this trainer index")
	jsonOut := fs.Bool("json", false, "emit generations as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("run is required")
	}
	cfg, err := app.load(fs)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	if _, ok, err := store.GetRun(ctx, *runID); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: %s", storage.ErrRunNotFound, *runID)
	}
	generations, err := store.ListGenerations(ctx, *runID)
	if err != nil {
		return err
	}
	if *trainer >= 0 {
		filtered := generations[:0]
		for _, g := range generations {
			if g.Trainer == *trainer {
				filtered = append(filtered, g)
			}
		}
		generations = filtered
	}

	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(generations)
	}
	if len(generations) == 0 {
		fmt.Fprintln(stdout, "no generations found")
		return nil
	}
	for _, g := range generations {
		fmt.Fprintf(stdout, "trainer=%s generation=%d population=%d best=%.3f mean=%.3f min=%.3f stddev=%.3f layers=%v synapses=%d champion=%s\n",
			g.TrainerName,
			g.Generation,
			g.Population,
			g.BestFitness,
			g.MeanFitness,
			g.MinFitness,
			g.StdDevFitness,
			g.ChampionLayers,
			g.ChampionSynapses,
			humanize.Bytes(uint64(len(g.Champion))),
		)
	}
	return nil
}
