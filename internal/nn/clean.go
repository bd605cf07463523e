package nn

import "slices"

// Clean merges duplicate synapses, prunes dead hidden nodes and compacts the
// arenas. Node and synapse IDs are invalidated.
func (n *Network) Clean() {
	n.CleanSynapses()
	n.CleanNodes()
	n.Compact()
}

// CleanSynapses folds outgoing synapses that share a destination into the
// first one, summing their weights.
func (n *Network) CleanSynapses() {
	for _, layer := range n.layers {
		for _, id := range layer {
			first := make(map[NodeID]SynapseID, len(n.nodes[id].outs))
			for _, sid := range slices.Clone(n.nodes[id].outs) {
				s := n.synapses[sid]
				keep, seen := first[s.dst]
				if !seen {
					first[s.dst] = sid
					continue
				}
				n.synapses[keep].weight += s.weight
				n.removeSynapse(sid)
			}
		}
	}
}

// CleanNodes deletes hidden nodes with neither incoming nor outgoing
// synapses, along with any hidden layer that becomes empty.
func (n *Network) CleanNodes() {
	var dead []NodeID
	for layer := 1; layer < n.lastLayer(); layer++ {
		for _, id := range n.layers[layer] {
			nd := n.nodes[id]
			if len(nd.in) == 0 && len(nd.outs) == 0 {
				dead = append(dead, id)
			}
		}
	}
	for _, id := range dead {
		_ = n.DeleteNode(id)
	}
}

// Compact drops dead arena slots and relabels nodes in layer-major order.
// Node state is kept.
func (n *Network) Compact() {
	*n = *n.rebuild(true)
}

// Copy returns a deep clone that shares only the catalog. Accumulators start
// at the node biases.
func (n *Network) Copy() *Network {
	return n.rebuild(false)
}

// Copy is the free-function form of Network.Copy.
func Copy(src *Network) *Network {
	return src.Copy()
}

func (n *Network) rebuild(keepState bool) *Network {
	out := &Network{
		catalog:  n.catalog,
		nodes:    make([]node, 0, n.liveNodes),
		synapses: make([]synapse, 0, n.liveSynapses),
		layers:   make([][]NodeID, len(n.layers)),
	}

	remap := make(map[NodeID]NodeID, n.liveNodes)
	for layer, ids := range n.layers {
		out.layers[layer] = make([]NodeID, 0, len(ids))
		for _, id := range ids {
			src := n.nodes[id]
			nid := out.newNode(layer, src.act)
			dst := &out.nodes[nid]
			dst.bias = src.bias
			dst.acc = src.bias
			if keepState {
				dst.acc = src.acc
				dst.out = src.out
			}
			remap[id] = nid
		}
	}

	for _, ids := range n.layers {
		for _, id := range ids {
			for _, sid := range n.nodes[id].outs {
				s := n.synapses[sid]
				out.link(remap[s.src], remap[s.dst], s.weight)
			}
		}
	}

	out.inputs = make([]NodeID, 0, len(n.inputs))
	for _, id := range n.inputs {
		out.inputs = append(out.inputs, remap[id])
	}
	out.outputs = make([]NodeID, 0, len(n.outputs))
	for _, id := range n.outputs {
		out.outputs = append(out.outputs, remap[id])
	}
	return out
}
