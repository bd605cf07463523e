package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"neuralwarfare/internal/arena"
	"neuralwarfare/internal/evo"
	"neuralwarfare/internal/model"
	"neuralwarfare/internal/nn"
	"neuralwarfare/internal/platform"
)

func runTrain(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	app := registerAppFlags(fs)
	seed := fs.Int64("seed", 0, "random seed (overrides [App] seed)")
	ticks := fs.Int("ticks", 0, "ticks to run (overrides [App] ticks)")
	teams := fs.Int("teams", 0, "number of teams (overrides [Engine] teams)")
	teamSize := fs.Int("team-size", 0, "agents per team (overrides [Engine] team_size)")
	hpPath := fs.String("hyperparameters", "", "hyperparameters file (.xml or .ini)")
	modelDir := fs.String("model-dir", "", "folder receiving champion models")
	name := fs.String("name", "champion", "champion model name prefix")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := app.load(fs)
	if err != nil {
		return err
	}
	if isFlagSet(fs, "seed") {
		cfg.App.Seed = *seed
	}
	if isFlagSet(fs, "ticks") {
		cfg.App.Ticks = *ticks
	}
	if isFlagSet(fs, "teams") {
		cfg.Engine.Teams = *teams
	}
	if isFlagSet(fs, "team-size") {
		cfg.Engine.TeamSize = *teamSize
	}
	if isFlagSet(fs, "hyperparameters") {
		cfg.FilePaths.Hyperparameters = *hpPath
	}
	if isFlagSet(fs, "model-dir") {
		cfg.FilePaths.ModelFolder = *modelDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.App.LogLevel)
	if err != nil {
		return err
	}
	hp := evo.DefaultHyperparameters()
	if cfg.FilePaths.Hyperparameters != "" {
		hp, err = evo.LoadHyperparameters(cfg.FilePaths.Hyperparameters)
		if err != nil {
			return err
		}
	}
	hpJSON, err := json.Marshal(hp)
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

	// Every consumer of randomness draws its own source from the seed so the
	// engine step and trainer updates never share one.
	seeds := rand.New(rand.NewSource(cfg.App.Seed))
	engine, err := arena.NewEngine(cfg.Arena(), rand.New(rand.NewSource(seeds.Int63())))
	if err != nil {
		return err
	}

	catalog := nn.DefaultCatalog()
	var (
		trainers []*evo.GeneticTrainer
		loopers  []platform.Trainer
		names    []string
	)
	for i := 0; i < cfg.Engine.Teams; i++ {
		team, err := engine.AddTeam(cfg.Engine.TeamSize)
		if err != nil {
			return err
		}
		environment, err := arena.NewEnv(engine, team)
		if err != nil {
			return err
		}
		master, err := evo.NewSeedNetwork(catalog, environment.InputSize(), environment.OutputSize())
		if err != nil {
			return err
		}
		trainerName := fmt.Sprintf("%s-%d", *name, team)
		trainer, err := evo.NewGeneticTrainer(evo.GeneticConfig{
			Env:             environment,
			Rand:            rand.New(rand.NewSource(seeds.Int63())),
			Hyperparameters: hp,
			Master:          master,
			Logger:          logger,
			Name:            trainerName,
		})
		if err != nil {
			return err
		}
		trainers = append(trainers, trainer)
		loopers = append(loopers, trainer)
		names = append(names, trainerName)
	}

	loop, err := platform.NewLoop(engine, loopers...)
	if err != nil {
		return err
	}
	session, err := platform.NewSession(ctx, platform.SessionConfig{
		Store:    store,
		Loop:     loop,
		Trainers: trainers,
		Run: model.Run{
			Seed:            cfg.App.Seed,
			Ticks:           cfg.App.Ticks,
			Trainers:        names,
			TeamSize:        cfg.Engine.TeamSize,
			Hyperparameters: hpJSON,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}
	runErr := session.Execute(ctx, cfg.App.Ticks)

	// Champions are written even after an interrupt so progress survives.
	for i, trainer := range trainers {
		path, err := nn.SaveFile(trainer.Master(), filepath.Join(cfg.FilePaths.ModelFolder, trainer.Name()))
		if err != nil {
			return err
		}
		size := int64(0)
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}
		stats := engine.Stats(i)
		fmt.Fprintf(stdout, "trainer=%s generations=%d best_fitness=%.3f kills_total=%s model=%s size=%s\n",
			trainer.Name(),
			trainer.Generation(),
			bestFitness(trainer.Agents()),
			humanize.Comma(int64(stats.TotalAllEpisodes)),
			path,
			humanize.Bytes(uint64(size)),
		)
	}
	fmt.Fprintf(stdout, "run_id=%s ticks=%d generations_recorded=%d\n", session.RunID(), loop.Ticks(), session.Recorded())
	return runErr
}


// bestFitness scans the population; agents are only ranked once Evolve ran.
func bestFitness(agents []*evo.Agent) float64 {
	best := math.Inf(-1)
	for _, a := range agents {
		best = max(best, a.Fitness)
	}
	return best
}
