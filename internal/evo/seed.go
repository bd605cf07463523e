package evo

import (
	"fmt"

	"neuralwarfare/internal/nn"
)

// NewSeedNetwork builds the starting topology for a population: identity
// inputs, one tanh hidden layer of (inputs+outputs)/2 nodes, sigmoid
// outputs, fully connected with unit weights. The catalog must hold all
// three functions; nil means nn.DefaultCatalog.
func NewSeedNetwork(catalog *nn.Catalog, inputs, outputs int) (*nn.Network, error) {
	if inputs < 1 || outputs < 1 {
		return nil, fmt.Errorf("seed network needs inputs and outputs, got %d and %d", inputs, outputs)
	}
	if catalog == nil {
		catalog = nn.DefaultCatalog()
	}
	for _, act := range []nn.Activation{nn.Add, nn.Sigmoid, nn.Tanh} {
		if !catalog.Contains(act) {
			return nil, fmt.Errorf("%w: %s", nn.ErrNotInCatalog, act)
		}
	}

	net := nn.New(catalog)
	for range inputs {
		net.AddInput(nn.Add)
	}
	for range outputs {
		net.AddOutput(nn.Sigmoid)
	}
	if _, err := net.InsertLayer(1, max(1, (inputs+outputs)/2), nn.Tanh); err != nil {
		return nil, err
	}
	net.MakeFullyConnected()
	return net, nil
}
