package evo

import (
	"fmt"
	"math/rand"

	"neuralwarfare/internal/nn"
)

// SimpleMutate applies one stochastic pass to net, in order:
//
//  1. layer mutation: insert a hidden layer or delete a random hidden one
//  2. node mutation, once per hidden layer: delete or add one node
//  3. per node: bias mutation, then (outside the output layer) deletion of
//     a random outgoing synapse or a new synapse to a strictly later layer
//  4. per synapse: weight mutation
//
// New layers and nodes use newLayerFunction, which must be in the network's
// catalog. net is left untouched when it is not.
func SimpleMutate(net *nn.Network, rng *rand.Rand, rates MutationRates, newLayerFunction nn.Activation) error {
	if rng == nil {
		return fmt.Errorf("random source is required")
	}
	if !net.Catalog().Contains(newLayerFunction) {
		return fmt.Errorf("%w: %s", nn.ErrNotInCatalog, newLayerFunction)
	}

	if rng.Float64() < rates.LayerRate {
		if err := mutateLayers(net, rng, rates, newLayerFunction); err != nil {
			return err
		}
	}

	for layer := 1; layer < net.Len()-1; layer++ {
		if rng.Float64() >= rates.NodeRate {
			continue
		}
		if rng.Intn(2) == 1 {
			ids := net.Layer(layer)
			if len(ids) > 1 {
				if err := net.DeleteNode(ids[rng.Intn(len(ids))]); err != nil {
					return err
				}
			}
			continue
		}
		if _, err := net.AddNode(layer, newLayerFunction); err != nil {
			return err
		}
	}

	last := net.Len() - 1
	for layer := 0; layer <= last; layer++ {
		for _, id := range net.Layer(layer) {
			if rng.Float64() < rates.BiasRate {
				if err := net.AdjustBias(id, uniform(rng, rates.BiasMagnitude)); err != nil {
					return err
				}
			}
			if layer == last || rng.Float64() >= rates.SynapseRate {
				continue
			}
			if err := mutateSynapse(net, rng, rates, id, layer); err != nil {
				return err
			}
		}
	}

	for _, sid := range net.Synapses() {
		if rng.Float64() < rates.WeightRate {
			if err := net.AdjustWeight(sid, uniform(rng, rates.WeightMagnitude)); err != nil {
				return err
			}
		}
	}
	return nil
}

func mutateLayers(net *nn.Network, rng *rand.Rand, rates MutationRates, fn nn.Activation) error {
	if rng.Intn(2) == 1 {
		size := rates.NewLayerSizeAverage
		if rates.NewLayerSizeRange > 0 {
			size += rng.Intn(2*rates.NewLayerSizeRange+1) - rates.NewLayerSizeRange
		}
		size = max(size, 1)
		pos := 1 + rng.Intn(net.Len()-1)
		_, err := net.InsertLayer(pos, size, fn)
		return err
	}
	if net.Len() <= 2 {
		return nil
	}
	return net.DeleteLayer(1 + rng.Intn(net.Len()-2))
}

func mutateSynapse(net *nn.Network, rng *rand.Rand, rates MutationRates, id nn.NodeID, layer int) error {
	if rng.Intn(2) == 1 {
		outs := net.Outgoing(id)
		if len(outs) == 0 {
			return nil
		}
		return net.DeleteSynapse(outs[rng.Intn(len(outs))])
	}
	target := layer + 1 + rng.Intn(net.Len()-layer-1)
	candidates := net.Layer(target)
	if len(candidates) == 0 {
		return nil
	}
	dst := candidates[rng.Intn(len(candidates))]
	_, err := net.Connect(id, dst, uniform(rng, rates.NewSynapseMagnitude))
	return err
}

// uniform draws from [-magnitude, magnitude).
func uniform(rng *rand.Rand, magnitude float64) float64 {
	return (rng.Float64()*2 - 1) * magnitude
}

// Mutate applies hp.MutationCount SimpleMutate passes to net and cleans it
// once afterwards.
func Mutate(net *nn.Network, rng *rand.Rand, hp Hyperparameters, newLayerFunction nn.Activation) error {
	rates := hp.Rates()
	for i := 0; i < hp.MutationCount; i++ {
		if err := SimpleMutate(net, rng, rates, newLayerFunction); err != nil {
			return fmt.Errorf("mutation pass %d: %w", i, err)
		}
	}
	net.Clean()
	return nil
}
