// Package config loads the application configuration from an INI file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/ini.v1"

	"neuralwarfare/internal/arena"
)

// Config is the whole application configuration.
type Config struct {
	App       AppConfig
	Engine    EngineConfig
	FilePaths FilePathsConfig
	Store     StoreConfig
}

type AppConfig struct {
	Seed     int64  `ini:"seed"`
	Ticks    int    `ini:"ticks"`
	LogLevel string `ini:"log_level"`
}

// EngineConfig mirrors arena.Config plus the team layout.
type EngineConfig struct {
	SizeX        float64 `ini:"size_x"`
	SizeY        float64 `ini:"size_y"`
	Teams        int     `ini:"teams"`
	TeamSize     int     `ini:"team_size"`
	EpisodeTicks int     `ini:"episode_ticks"`
	AgentRadius  float64 `ini:"agent_radius"`
	Speed        float64 `ini:"speed"`
	TurnRate     float64 `ini:"turn_rate"`
	SpawnRadius  float64 `ini:"spawn_radius"`
}

type FilePathsConfig struct {
	ModelFolder     string `ini:"model_folder"`
	Hyperparameters string `ini:"hyperparameters"`
}

type StoreConfig struct {
	Kind string `ini:"kind"`
	Path string `ini:"path"`
}

func Default() Config {
	a := arena.DefaultConfig()
	return Config{
		App: AppConfig{
			Seed:     1,
			Ticks:    3000,
			LogLevel: "info",
		},
		Engine: EngineConfig{
			SizeX:        a.Width,
			SizeY:        a.Height,
			Teams:        2,
			TeamSize:     50,
			EpisodeTicks: a.EpisodeTicks,
			AgentRadius:  a.AgentRadius,
			Speed:        a.Speed,
			TurnRate:     a.TurnRate,
			SpawnRadius:  a.SpawnRadius,
		},
		FilePaths: FilePathsConfig{
			ModelFolder: "models",
		},
		Store: StoreConfig{
			Kind: "memory",
			Path: "neuralwarfare.db",
		},
	}
}

// Load reads path on top of the defaults. A missing file yields the
// defaults; an empty path does too.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	file, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true,
		UnescapeValueCommentSymbols: true,
	}, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("failed to load config file '%s': %w", path, err)
	}

	sections := []struct {
		name   string
		target any
	}{
		{"App", &cfg.App},
		{"Engine", &cfg.Engine},
		{"FilePaths", &cfg.FilePaths},
		{"Store", &cfg.Store},
	}
	for _, s := range sections {
		if err := file.Section(s.name).MapTo(s.target); err != nil {
			return Config{}, fmt.Errorf("failed to map [%s] section: %w", s.name, err)
		}
	}
	cfg.App.LogLevel = strings.ToLower(strings.TrimSpace(cfg.App.LogLevel))
	cfg.Store.Kind = strings.ToLower(strings.TrimSpace(cfg.Store.Kind))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.App.Ticks < 0 {
		return fmt.Errorf("[App] ticks must be >= 0")
	}
	if _, err := ParseLevel(c.App.LogLevel); err != nil {
		return err
	}
	if c.Engine.Teams < 1 || c.Engine.TeamSize < 1 {
		return fmt.Errorf("[Engine] teams and team_size must be >= 1")
	}
	if err := c.Arena().Validate(); err != nil {
		return fmt.Errorf("[Engine] %w", err)
	}
	switch c.Store.Kind {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("[Store] unsupported kind %q", c.Store.Kind)
	}
	return nil
}

// Arena converts the engine section for arena.NewEngine.
func (c Config) Arena() arena.Config {
	return arena.Config{
		Width:        c.Engine.SizeX,
		Height:       c.Engine.SizeY,
		AgentRadius:  c.Engine.AgentRadius,
		Speed:        c.Engine.Speed,
		TurnRate:     c.Engine.TurnRate,
		EpisodeTicks: c.Engine.EpisodeTicks,
		SpawnRadius:  c.Engine.SpawnRadius,
	}
}

// Save writes c as INI.
func (c Config) Save(path string) error {
	file := ini.Empty()
	sections := []struct {
		name   string
		source any
	}{
		{"App", &c.App},
		{"Engine", &c.Engine},
		{"FilePaths", &c.FilePaths},
		{"Store", &c.Store},
	}
	for _, s := range sections {
		if err := file.Section(s.name).ReflectFrom(s.source); err != nil {
			return fmt.Errorf("failed to encode [%s] section: %w", s.name, err)
		}
	}
	return file.SaveTo(path)
}

func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}
