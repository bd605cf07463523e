package evo

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"

	"neuralwarfare/internal/nn"
)

// HyperparametersSection is the INI section holding trainer settings.
const HyperparametersSection = "Hyperparameters"

var ErrInvalidHyperparameters = errors.New("invalid hyperparameters")

// Hyperparameters configures a GeneticTrainer. The XML form stores every
// field as an attribute of a <Hyperparameters> root element; the INI form
// stores the same keys in a [Hyperparameters] section.
type Hyperparameters struct {
	XMLName xml.Name `xml:"Hyperparameters" ini:"-" json:"-"`

	TopAgentCount int `xml:"topAgentCount,attr" ini:"topAgentCount"`
	MutationCount int `xml:"mutationCount,attr" ini:"mutationCount"`

	BiasMutationRate        float64 `xml:"biasMutationRate,attr" ini:"biasMutationRate"`
	BiasMutationMagnitude   float64 `xml:"biasMutationMagnitude,attr" ini:"biasMutationMagnitude"`
	WeightMutationRate      float64 `xml:"weightMutationRate,attr" ini:"weightMutationRate"`
	WeightMutationMagnitude float64 `xml:"weightMutationMagnitude,attr" ini:"weightMutationMagnitude"`
	SynapseMutationRate     float64 `xml:"synapseMutationRate,attr" ini:"synapseMutationRate"`
	NewSynapseMagnitude     float64 `xml:"newSynapseMagnitude,attr" ini:"newSynapseMagnitude"`
	NodeMutationRate        float64 `xml:"nodeMutationRate,attr" ini:"nodeMutationRate"`
	LayerMutationRate       float64 `xml:"layerMutationRate,attr" ini:"layerMutationRate"`

	NewLayerSizeAverage int    `xml:"newLayerSizeAverage,attr" ini:"newLayerSizeAverage"`
	NewLayerSizeRange   int    `xml:"newLayerSizeRange,attr" ini:"newLayerSizeRange"`
	NewLayerFunction    string `xml:"newLayerFunction,attr" ini:"newLayerFunction"`

	// ResetFitness zeroes every agent's fitness after each generation. Off,
	// fitness accumulates over the agent's lifetime.
	ResetFitness bool `xml:"resetFitness,attr,omitempty" ini:"resetFitness"`
}

// DefaultHyperparameters returns the settings used when no file is given.
func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		TopAgentCount:           10,
		MutationCount:           3,
		BiasMutationRate:        0.1,
		BiasMutationMagnitude:   0.5,
		WeightMutationRate:      0.1,
		WeightMutationMagnitude: 0.5,
		SynapseMutationRate:     0.05,
		NewSynapseMagnitude:     1,
		NodeMutationRate:        0.02,
		LayerMutationRate:       0.01,
		NewLayerSizeAverage:     4,
		NewLayerSizeRange:       2,
		NewLayerFunction:        nn.Tanh.String(),
	}
}

// MutationRates is the subset of Hyperparameters consumed by one
// SimpleMutate pass.
type MutationRates struct {
	BiasRate            float64
	BiasMagnitude       float64
	WeightRate          float64
	WeightMagnitude     float64
	SynapseRate         float64
	NewSynapseMagnitude float64
	NodeRate            float64
	LayerRate           float64
	NewLayerSizeAverage int
	NewLayerSizeRange   int
}

func (h Hyperparameters) Rates() MutationRates {
	return MutationRates{
		BiasRate:            h.BiasMutationRate,
		BiasMagnitude:       h.BiasMutationMagnitude,
		WeightRate:          h.WeightMutationRate,
		WeightMagnitude:     h.WeightMutationMagnitude,
		SynapseRate:         h.SynapseMutationRate,
		NewSynapseMagnitude: h.NewSynapseMagnitude,
		NodeRate:            h.NodeMutationRate,
		LayerRate:           h.LayerMutationRate,
		NewLayerSizeAverage: h.NewLayerSizeAverage,
		NewLayerSizeRange:   h.NewLayerSizeRange,
	}
}

// Validate checks ranges. The new layer function is only checked for being
// a known activation; catalog membership is resolved by the trainer.
func (h Hyperparameters) Validate() error {
	if h.TopAgentCount < 1 {
		return fmt.Errorf("%w: topAgentCount must be >= 1", ErrInvalidHyperparameters)
	}
	if h.MutationCount < 0 {
		return fmt.Errorf("%w: mutationCount must be >= 0", ErrInvalidHyperparameters)
	}
	rates := []struct {
		name  string
		value float64
	}{
		{"biasMutationRate", h.BiasMutationRate},
		{"weightMutationRate", h.WeightMutationRate},
		{"synapseMutationRate", h.SynapseMutationRate},
		{"nodeMutationRate", h.NodeMutationRate},
		{"layerMutationRate", h.LayerMutationRate},
	}
	for _, r := range rates {
		if r.value < 0 || r.value > 1 {
			return fmt.Errorf("%w: %s must be in [0, 1], got %g", ErrInvalidHyperparameters, r.name, r.value)
		}
	}
	magnitudes := []struct {
		name  string
		value float64
	}{
		{"biasMutationMagnitude", h.BiasMutationMagnitude},
		{"weightMutationMagnitude", h.WeightMutationMagnitude},
		{"newSynapseMagnitude", h.NewSynapseMagnitude},
	}
	for _, m := range magnitudes {
		if m.value < 0 {
			return fmt.Errorf("%w: %s must be >= 0, got %g", ErrInvalidHyperparameters, m.name, m.value)
		}
	}
	if h.NewLayerSizeAverage < 0 || h.NewLayerSizeRange < 0 {
		return fmt.Errorf("%w: new layer size average and range must be >= 0", ErrInvalidHyperparameters)
	}
	if _, err := nn.ParseActivation(h.NewLayerFunction); err != nil {
		return fmt.Errorf("%w: newLayerFunction: %w", ErrInvalidHyperparameters, err)
	}
	return nil
}

func isINI(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".ini")
}

// LoadHyperparameters reads an XML or, for a .ini extension, INI file.
// Keys missing from the file keep their default values.
func LoadHyperparameters(path string) (Hyperparameters, error) {
	hp := DefaultHyperparameters()
	if isINI(path) {
		cfg, err := ini.LoadSources(ini.LoadOptions{
			IgnoreInlineComment:         true,
			UnescapeValueCommentSymbols: true,
		}, path)
		if err != nil {
			return Hyperparameters{}, fmt.Errorf("load hyperparameters %s: %w", path, err)
		}
		if err := cfg.Section(HyperparametersSection).MapTo(&hp); err != nil {
			return Hyperparameters{}, fmt.Errorf("map [%s] section: %w", HyperparametersSection, err)
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return Hyperparameters{}, fmt.Errorf("load hyperparameters %s: %w", path, err)
		}
		if err := xml.Unmarshal(data, &hp); err != nil {
			return Hyperparameters{}, fmt.Errorf("decode hyperparameters %s: %w", path, err)
		}
	}
	hp.NewLayerFunction = strings.TrimSpace(hp.NewLayerFunction)
	if err := hp.Validate(); err != nil {
		return Hyperparameters{}, fmt.Errorf("load hyperparameters %s: %w", path, err)
	}
	return hp, nil
}

// SaveHyperparameters writes hp in the format selected by the extension.
func SaveHyperparameters(hp Hyperparameters, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if isINI(path) {
		cfg := ini.Empty()
		if err := cfg.Section(HyperparametersSection).ReflectFrom(&hp); err != nil {
			return fmt.Errorf("encode hyperparameters: %w", err)
		}
		return cfg.SaveTo(path)
	}
	data, err := xml.MarshalIndent(hp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode hyperparameters: %w", err)
	}
	data = append([]byte(xml.Header), data...)
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
