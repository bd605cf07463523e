package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"neuralwarfare/internal/arena"
	"neuralwarfare/internal/evo"
	"neuralwarfare/internal/nn"
	"neuralwarfare/internal/platform"
)

// scriptedOpponent in the -models list adds a team steered by
// arena.SeekNearestHostile instead of a saved network.
const scriptedOpponent = "scripted"

type contender interface {
	Name() string
	TotalReward() float64
}

// runTest pits saved models against each other, one team per model, with no
// evolution.
func runTest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	app := registerAppFlags(fs)
	rawModels := fs.String("models", "", "comma-separated model files, one team each; \"scripted\" adds a nearest-hostile seeker")
	ticks := fs.Int("ticks", 0, "ticks to run (overrides [App] ticks)")
	teamSize := fs.Int("team-size", 0, "agents per team (overrides [Engine] team_size)")
	seed := fs.Int64("seed", 0, "random seed (overrides [App] seed)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	paths := splitList(*rawModels)
	if len(paths) == 0 {
		return errors.New("models are required")
	}
	cfg, err := app.load(fs)
	if err != nil {
		return err
	}
	if isFlagSet(fs, "ticks") {
		cfg.App.Ticks = *ticks
	}
	if isFlagSet(fs, "team-size") {
		cfg.Engine.TeamSize = *teamSize
	}
	if isFlagSet(fs, "seed") {
		cfg.App.Seed = *seed
	}
	cfg.Engine.Teams = len(paths)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.App.Ticks <= 0 {
		return errors.New("ticks must be > 0")
	}
	logger, err := newLogger(cfg.App.LogLevel)
	if err != nil {
		return err
	}

	engine, err := arena.NewEngine(cfg.Arena(), rand.New(rand.NewSource(cfg.App.Seed)))
	if err != nil {
		return err
	}
	catalog := nn.FullCatalog()
	var (
		teams   []contender
		loopers []platform.Trainer
	)
	for _, path := range paths {
		team, err := engine.AddTeam(cfg.Engine.TeamSize)
		if err != nil {
			return err
		}
		environment, err := arena.NewEnv(engine, team)
		if err != nil {
			return err
		}
		if path == scriptedOpponent {
			trainer, err := evo.NewScriptedTrainer(environment, arena.SeekNearestHostile, fmt.Sprintf("%s-%d", scriptedOpponent, team))
			if err != nil {
				return err
			}
			teams = append(teams, trainer)
			loopers = append(loopers, trainer)
			continue
		}

		net, err := nn.LoadFile(catalog, path)
		if err != nil {
			return err
		}
		if got := len(net.Inputs()); got != environment.InputSize() {
			logger.Warn("model input count differs from observation size", "model", path, "inputs", got, "observation", environment.InputSize())
		}
		trainer, err := evo.NewStaticTrainer(environment, net, filepath.Base(nn.ModelFilename(path)))
		if err != nil {
			return err
		}
		teams = append(teams, trainer)
		loopers = append(loopers, trainer)
	}

	loop, err := platform.NewLoop(engine, loopers...)
	if err != nil {
		return err
	}
	logger.Info("match started", "models", len(paths), "ticks", cfg.App.Ticks, "team_size", cfg.Engine.TeamSize)
	runErr := loop.Run(ctx, cfg.App.Ticks, nil)

	for team, trainer := range teams {
		stats := engine.Stats(team)
		fmt.Fprintf(stdout, "model=%s kills_total=%s kills_best_agent=%d episode_kills=%d reward=%.1f\n",
			trainer.Name(),
			humanize.Comma(int64(stats.TotalAllEpisodes)),
			stats.HighestAllEpisodes,
			stats.TotalThisEpisode,
			trainer.TotalReward(),
		)
	}
	fmt.Fprintf(stdout, "ticks=%d episodes=%d\n", loop.Ticks(), engine.Episode())
	return runErr
}
