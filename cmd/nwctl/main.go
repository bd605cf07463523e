package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"neuralwarfare/internal/config"
	"neuralwarfare/internal/storage"
)

const defaultConfigPath = "neuralwarfare.ini"

// stdout receives command output; tests swap it for a buffer.
var stdout io.Writer = os.Stdout

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "train":
		return runTrain(ctx, args[1:])
	case "test":
		return runTest(ctx, args[1:])
	case "inspect":
		return runInspect(ctx, args[1:])
	case "eval":
		return runEval(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "generations":
		return runGenerations(ctx, args[1:])
	case "models":
		return runModels(ctx, args[1:])
	case "defaults":
		return runDefaults(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: nwctl <train|test|inspect|eval|runs|generations|models|defaults> [flags]", msg)
}

// appFlags are the flags every command backed by the app config accepts.
// Flags left unset keep the config file's values.
type appFlags struct {
	configPath *string
	logLevel   *string
	storeKind  *string
	dbPath     *string
}

func registerAppFlags(fs *flag.FlagSet) appFlags {
	return appFlags{
		configPath: fs.String("config", defaultConfigPath, "INI config file; defaults apply when missing"),
		logLevel:   fs.String("log-level", "", "log level: debug|info|warn|error"),
		storeKind:  fs.String("store", "", "store backend: memory|sqlite"),
		dbPath:     fs.String("db-path", "", "sqlite database path"),
	}
}

func (f appFlags) load(fs *flag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(*f.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if isFlagSet(fs, "log-level") {
		cfg.App.LogLevel = strings.ToLower(*f.logLevel)
	}
	if isFlagSet(fs, "store") {
		cfg.Store.Kind = strings.ToLower(*f.storeKind)
	}
	if isFlagSet(fs, "db-path") {
		cfg.Store.Path = *f.dbPath
	}
	return cfg, nil
}

func isFlagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func newLogger(level string) (*slog.Logger, error) {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	store, err := storage.NewStore(cfg.Store.Kind, cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func parseFloats(raw string) ([]float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("inputs are required")
	}
	parts := strings.Split(raw, ",")
	values := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("parse input %q: %w", part, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func formatFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'f', 6, 64)
	}
	return strings.Join(parts, ",")
}
