package nn

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrNodeNotFound    = errors.New("node not found")
	ErrSynapseNotFound = errors.New("synapse not found")
	ErrLayerOutOfRange = errors.New("layer out of range")
	ErrTerminalLayer   = errors.New("input and output layers cannot be removed")
	ErrTerminalNode    = errors.New("designated input and output nodes cannot be removed")
	ErrMinimumLayers   = errors.New("network requires at least an input and an output layer")
	ErrNotFeedForward  = errors.New("synapse must connect an earlier layer to a strictly later one")
	ErrEmptyLayer      = errors.New("layer size must be > 0")
)

// NodeID addresses a node inside its network. IDs are invalidated by
// Compact, Clean and Copy.
type NodeID int

// SynapseID addresses a synapse inside its network. Same lifetime as NodeID.
type SynapseID int

type node struct {
	act   Activation
	bias  float64
	acc   float64
	out   float64
	layer int
	in    []SynapseID
	outs  []SynapseID
	alive bool
}

type synapse struct {
	src    NodeID
	dst    NodeID
	weight float64
	alive  bool
}

// Synapse is a read-only view of a directed weighted edge.
type Synapse struct {
	Source      NodeID
	Destination NodeID
	Weight      float64
}

// Network is a layered feed-forward graph with a mutable topology. Nodes and
// synapses are stored in per-network arenas; layers hold ordered node IDs.
// A Network is not safe for concurrent use.
type Network struct {
	catalog  *Catalog
	nodes    []node
	synapses []synapse
	layers   [][]NodeID
	inputs   []NodeID
	outputs  []NodeID

	liveNodes    int
	liveSynapses int
}

// New returns a network with an empty input and output layer. A nil catalog
// selects DefaultCatalog.
func New(catalog *Catalog) *Network {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Network{
		catalog: catalog,
		layers:  make([][]NodeID, 2),
	}
}

func (n *Network) Catalog() *Catalog {
	return n.catalog
}

// Len returns the number of layers.
func (n *Network) Len() int {
	return len(n.layers)
}

func (n *Network) LayerSize(layer int) int {
	if layer < 0 || layer >= len(n.layers) {
		return 0
	}
	return len(n.layers[layer])
}

// Layer returns the node IDs of layer in evaluation order.
func (n *Network) Layer(layer int) []NodeID {
	if layer < 0 || layer >= len(n.layers) {
		return nil
	}
	return slices.Clone(n.layers[layer])
}

func (n *Network) Inputs() []NodeID {
	return slices.Clone(n.inputs)
}

func (n *Network) Outputs() []NodeID {
	return slices.Clone(n.outputs)
}

func (n *Network) NodeCount() int {
	return n.liveNodes
}

func (n *Network) SynapseCount() int {
	return n.liveSynapses
}

func (n *Network) lastLayer() int {
	return len(n.layers) - 1
}

func (n *Network) isHidden(layer int) bool {
	return layer > 0 && layer < n.lastLayer()
}

func (n *Network) newNode(layer int, act Activation) NodeID {
	id := NodeID(len(n.nodes))
	n.nodes = append(n.nodes, node{act: act, layer: layer, alive: true})
	n.layers[layer] = append(n.layers[layer], id)
	n.liveNodes++
	return id
}

// AddInput appends a designated input node to the first layer.
func (n *Network) AddInput(act Activation) NodeID {
	id := n.newNode(0, act)
	n.inputs = append(n.inputs, id)
	return id
}

// AddOutput appends a designated output node to the last layer.
func (n *Network) AddOutput(act Activation) NodeID {
	id := n.newNode(n.lastLayer(), act)
	n.outputs = append(n.outputs, id)
	return id
}

// AddNode appends an undesignated node to a hidden layer. The first and
// last layers only hold designated nodes; use AddInput and AddOutput there.
func (n *Network) AddNode(layer int, act Activation) (NodeID, error) {
	if layer < 0 || layer >= len(n.layers) {
		return 0, fmt.Errorf("%w: %d", ErrLayerOutOfRange, layer)
	}
	if !n.isHidden(layer) {
		return 0, fmt.Errorf("%w: add node to layer %d", ErrTerminalLayer, layer)
	}
	return n.newNode(layer, act), nil
}

// InsertLayer inserts a hidden layer of size nodes at position pos, shifting
// later layers back. pos must lie in [1, Len()-1].
func (n *Network) InsertLayer(pos, size int, act Activation) ([]NodeID, error) {
	if pos < 1 || pos > n.lastLayer() {
		return nil, fmt.Errorf("%w: insert at %d", ErrLayerOutOfRange, pos)
	}
	if size <= 0 {
		return nil, ErrEmptyLayer
	}
	n.layers = slices.Insert(n.layers, pos, nil)
	n.reindexLayers(pos + 1)
	ids := make([]NodeID, size)
	for i := range ids {
		ids[i] = n.newNode(pos, act)
	}
	return ids, nil
}

// DeleteLayer removes a hidden layer with every node and synapse in it.
func (n *Network) DeleteLayer(pos int) error {
	if len(n.layers) <= 2 {
		return ErrMinimumLayers
	}
	if pos < 0 || pos > n.lastLayer() {
		return fmt.Errorf("%w: %d", ErrLayerOutOfRange, pos)
	}
	if !n.isHidden(pos) {
		return ErrTerminalLayer
	}
	for _, id := range n.layers[pos] {
		n.detachNode(id)
	}
	n.removeLayer(pos)
	return nil
}

func (n *Network) removeLayer(pos int) {
	n.layers = slices.Delete(n.layers, pos, pos+1)
	n.reindexLayers(pos)
}

func (n *Network) reindexLayers(from int) {
	for layer := from; layer < len(n.layers); layer++ {
		for _, id := range n.layers[layer] {
			n.nodes[id].layer = layer
		}
	}
}

// DeleteNode removes a node and every incident synapse. An emptied hidden
// layer is removed with it.
func (n *Network) DeleteNode(id NodeID) error {
	if !n.validNode(id) {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	if slices.Contains(n.inputs, id) || slices.Contains(n.outputs, id) {
		return fmt.Errorf("%w: %d", ErrTerminalNode, id)
	}
	layer := n.nodes[id].layer
	n.detachNode(id)
	n.layers[layer] = removeValue(n.layers[layer], id)
	if len(n.layers[layer]) == 0 && n.isHidden(layer) {
		n.removeLayer(layer)
	}
	return nil
}

// detachNode drops the synapses of id and marks it dead without touching
// its layer slice.
func (n *Network) detachNode(id NodeID) {
	nd := &n.nodes[id]
	for _, sid := range slices.Clone(nd.in) {
		n.removeSynapse(sid)
	}
	for _, sid := range slices.Clone(nd.outs) {
		n.removeSynapse(sid)
	}
	nd.alive = false
	nd.in, nd.outs = nil, nil
	n.liveNodes--
}

func (n *Network) validNode(id NodeID) bool {
	return id >= 0 && int(id) < len(n.nodes) && n.nodes[id].alive
}

func (n *Network) validSynapse(id SynapseID) bool {
	return id >= 0 && int(id) < len(n.synapses) && n.synapses[id].alive
}

// Connect adds a synapse from src to dst. The destination must sit in a
// strictly later layer than the source.
func (n *Network) Connect(src, dst NodeID, weight float64) (SynapseID, error) {
	if !n.validNode(src) {
		return 0, fmt.Errorf("%w: source %d", ErrNodeNotFound, src)
	}
	if !n.validNode(dst) {
		return 0, fmt.Errorf("%w: destination %d", ErrNodeNotFound, dst)
	}
	if n.nodes[dst].layer <= n.nodes[src].layer {
		return 0, fmt.Errorf("%w: layer %d -> %d", ErrNotFeedForward, n.nodes[src].layer, n.nodes[dst].layer)
	}
	return n.link(src, dst, weight), nil
}

func (n *Network) link(src, dst NodeID, weight float64) SynapseID {
	id := SynapseID(len(n.synapses))
	n.synapses = append(n.synapses, synapse{src: src, dst: dst, weight: weight, alive: true})
	n.nodes[src].outs = append(n.nodes[src].outs, id)
	n.nodes[dst].in = append(n.nodes[dst].in, id)
	n.liveSynapses++
	return id
}

func (n *Network) DeleteSynapse(id SynapseID) error {
	if !n.validSynapse(id) {
		return fmt.Errorf("%w: %d", ErrSynapseNotFound, id)
	}
	n.removeSynapse(id)
	return nil
}

func (n *Network) removeSynapse(id SynapseID) {
	s := &n.synapses[id]
	n.nodes[s.src].outs = removeValue(n.nodes[s.src].outs, id)
	n.nodes[s.dst].in = removeValue(n.nodes[s.dst].in, id)
	s.alive = false
	n.liveSynapses--
}

func (n *Network) Synapse(id SynapseID) (Synapse, bool) {
	if !n.validSynapse(id) {
		return Synapse{}, false
	}
	s := n.synapses[id]
	return Synapse{Source: s.src, Destination: s.dst, Weight: s.weight}, true
}

func (n *Network) SetWeight(id SynapseID, weight float64) error {
	if !n.validSynapse(id) {
		return fmt.Errorf("%w: %d", ErrSynapseNotFound, id)
	}
	n.synapses[id].weight = weight
	return nil
}

func (n *Network) AdjustWeight(id SynapseID, delta float64) error {
	if !n.validSynapse(id) {
		return fmt.Errorf("%w: %d", ErrSynapseNotFound, id)
	}
	n.synapses[id].weight += delta
	return nil
}

// Synapses lists live synapses in evaluation order: layer-major, node-minor,
// then each node's outgoing order.
func (n *Network) Synapses() []SynapseID {
	ids := make([]SynapseID, 0, n.liveSynapses)
	for _, layer := range n.layers {
		for _, id := range layer {
			ids = append(ids, n.nodes[id].outs...)
		}
	}
	return ids
}

func (n *Network) Outgoing(id NodeID) []SynapseID {
	if !n.validNode(id) {
		return nil
	}
	return slices.Clone(n.nodes[id].outs)
}

func (n *Network) Incoming(id NodeID) []SynapseID {
	if !n.validNode(id) {
		return nil
	}
	return slices.Clone(n.nodes[id].in)
}

// NodeLayer returns the layer index of id, or -1.
func (n *Network) NodeLayer(id NodeID) int {
	if !n.validNode(id) {
		return -1
	}
	return n.nodes[id].layer
}

func (n *Network) Bias(id NodeID) float64 {
	if !n.validNode(id) {
		return 0
	}
	return n.nodes[id].bias
}

// SetBias updates the bias and resets the pending accumulator to it.
func (n *Network) SetBias(id NodeID, bias float64) error {
	if !n.validNode(id) {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	n.nodes[id].bias = bias
	n.nodes[id].acc = bias
	return nil
}

// AdjustBias adds delta to the bias of id.
func (n *Network) AdjustBias(id NodeID, delta float64) error {
	if !n.validNode(id) {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	return n.SetBias(id, n.nodes[id].bias+delta)
}

func (n *Network) ActivationOf(id NodeID) Activation {
	if !n.validNode(id) {
		return 0
	}
	return n.nodes[id].act
}

// OutputValue returns the activation computed for id by the last Update.
func (n *Network) OutputValue(id NodeID) float64 {
	if !n.validNode(id) {
		return 0
	}
	return n.nodes[id].out
}

// Delete releases every layer, node and synapse. The network is unusable
// afterwards.
func (n *Network) Delete() {
	n.nodes = nil
	n.synapses = nil
	n.layers = nil
	n.inputs = nil
	n.outputs = nil
	n.liveNodes = 0
	n.liveSynapses = 0
}

func removeValue[T comparable](s []T, v T) []T {
	i := slices.Index(s, v)
	if i < 0 {
		return s
	}
	return slices.Delete(s, i, i+1)
}
