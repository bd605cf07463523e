package nn

import (
	"errors"
	"fmt"
)

var ErrInvariant = errors.New("network invariant violated")

// Stats summarises a network topology.
type Stats struct {
	LayerSizes []int `json:"layer_sizes"`
	Nodes      int   `json:"nodes"`
	Synapses   int   `json:"synapses"`
	Inputs     int   `json:"inputs"`
	Outputs    int   `json:"outputs"`
}

func (n *Network) Stats() Stats {
	sizes := make([]int, len(n.layers))
	for i, layer := range n.layers {
		sizes[i] = len(layer)
	}
	return Stats{
		LayerSizes: sizes,
		Nodes:      n.liveNodes,
		Synapses:   n.liveSynapses,
		Inputs:     len(n.inputs),
		Outputs:    len(n.outputs),
	}
}

// Validate reports the first structural invariant the network violates.
func (n *Network) Validate() error {
	if len(n.layers) < 2 {
		return fmt.Errorf("%w: %w", ErrInvariant, ErrMinimumLayers)
	}
	for layer := 1; layer < n.lastLayer(); layer++ {
		if len(n.layers[layer]) == 0 {
			return fmt.Errorf("%w: hidden layer %d is empty", ErrInvariant, layer)
		}
	}
	for _, id := range n.inputs {
		if n.NodeLayer(id) != 0 {
			return fmt.Errorf("%w: input node %d outside the first layer", ErrInvariant, id)
		}
	}
	for _, id := range n.outputs {
		if n.NodeLayer(id) != n.lastLayer() {
			return fmt.Errorf("%w: output node %d outside the last layer", ErrInvariant, id)
		}
	}

	nodes, synapses := 0, 0
	for layer, ids := range n.layers {
		for _, id := range ids {
			if !n.validNode(id) {
				return fmt.Errorf("%w: layer %d holds dead node %d", ErrInvariant, layer, id)
			}
			nd := n.nodes[id]
			if nd.layer != layer {
				return fmt.Errorf("%w: node %d indexed at layer %d, stored in %d", ErrInvariant, id, nd.layer, layer)
			}
			if !n.catalog.Contains(nd.act) {
				return fmt.Errorf("%w: node %d: %w: %s", ErrInvariant, id, ErrNotInCatalog, nd.act)
			}
			nodes++
			for _, sid := range nd.outs {
				if !n.validSynapse(sid) {
					return fmt.Errorf("%w: node %d references dead synapse %d", ErrInvariant, id, sid)
				}
				s := n.synapses[sid]
				if s.src != id {
					return fmt.Errorf("%w: synapse %d listed on node %d but sourced at %d", ErrInvariant, sid, id, s.src)
				}
				if n.NodeLayer(s.dst) <= layer {
					return fmt.Errorf("%w: synapse %d: %w", ErrInvariant, sid, ErrNotFeedForward)
				}
				synapses++
			}
		}
	}
	if nodes != n.liveNodes {
		return fmt.Errorf("%w: %d nodes reachable, %d live", ErrInvariant, nodes, n.liveNodes)
	}
	if synapses != n.liveSynapses {
		return fmt.Errorf("%w: %d synapses reachable, %d live", ErrInvariant, synapses, n.liveSynapses)
	}
	return nil
}
