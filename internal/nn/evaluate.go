package nn

// Evaluate adds inputs into the designated input nodes, runs one Update and
// returns the designated output values. Only the prefix shared by inputs and
// the input nodes is used.
func (n *Network) Evaluate(inputs []float64) []float64 {
	for i := 0; i < len(inputs) && i < len(n.inputs); i++ {
		n.nodes[n.inputs[i]].acc += inputs[i]
	}

	n.Update()

	outputs := make([]float64, len(n.outputs))
	for i, id := range n.outputs {
		outputs[i] = n.nodes[id].out
	}
	return outputs
}

// Update fires every node once in layer order. Each node pushes its
// activation along its outgoing synapses and resets its accumulator to its
// bias, so a single pass is exact only while every synapse points forward.
func (n *Network) Update() {
	for _, layer := range n.layers {
		for _, id := range layer {
			nd := &n.nodes[id]
			nd.out = nd.act.Apply(nd.acc)
			for _, sid := range nd.outs {
				s := n.synapses[sid]
				n.nodes[s.dst].acc += nd.out * s.weight
			}
			nd.acc = nd.bias
		}
	}
}

// MakeFullyConnected links every node to every node of the next layer with
// weight 1.
func (n *Network) MakeFullyConnected() {
	for layer := 0; layer < n.lastLayer(); layer++ {
		for _, src := range n.layers[layer] {
			for _, dst := range n.layers[layer+1] {
				n.link(src, dst, 1)
			}
		}
	}
}
