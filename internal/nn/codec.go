package nn

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrCorrupt reports a model stream that does not describe a valid network.
var ErrCorrupt = errors.New("corrupt network data")

var byteOrder = binary.LittleEndian

const (
	maxNameLength = 1 << 12
	maxCount      = 1 << 24
)

// MarshalBinary encodes the network in the model file layout.
func (n *Network) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes the catalog names, the layer sizes and then every node with
// its outgoing synapses in layer-major order. Synapse destinations are
// written as global node indices in that same order.
func (n *Network) Encode(w io.Writer) error {
	for _, layer := range n.layers {
		for _, id := range layer {
			if act := n.nodes[id].act; !n.catalog.Contains(act) {
				return fmt.Errorf("encode node %d: %w: %s", id, ErrNotInCatalog, act)
			}
		}
	}

	bw := bufio.NewWriter(w)
	enc := encoder{w: bw}

	enc.uint(uint64(n.catalog.Len()))
	for _, name := range n.catalog.Names() {
		enc.uint(uint64(len(name)))
		enc.bytes([]byte(name))
	}

	global := make(map[NodeID]uint64, n.liveNodes)
	enc.uint(uint64(len(n.layers)))
	for _, layer := range n.layers {
		enc.uint(uint64(len(layer)))
		for _, id := range layer {
			global[id] = uint64(len(global))
		}
	}

	for _, layer := range n.layers {
		for _, id := range layer {
			nd := n.nodes[id]
			fn, _ := n.catalog.Index(nd.act)
			enc.uint(uint64(fn))
			enc.float(nd.bias)
			enc.uint(uint64(len(nd.outs)))
			for _, sid := range nd.outs {
				s := n.synapses[sid]
				enc.uint(global[s.dst])
				enc.float(s.weight)
			}
		}
	}
	if enc.err != nil {
		return enc.err
	}
	return bw.Flush()
}

// Unmarshal decodes data with names resolved against catalog.
func Unmarshal(data []byte, catalog *Catalog) (*Network, error) {
	return Decode(bytes.NewReader(data), catalog)
}

// Decode reads a network written by Encode. Every activation name in the
// stream must resolve in catalog, which becomes the network's catalog. All
// first-layer nodes become inputs and all last-layer nodes become outputs.
func Decode(r io.Reader, catalog *Catalog) (*Network, error) {
	if catalog == nil {
		return nil, errors.New("activation catalog is required")
	}
	dec := decoder{r: bufio.NewReader(r)}

	functionCount := dec.count()
	functions := make([]Activation, 0, min(functionCount, 64))
	for i := uint64(0); i < functionCount && dec.err == nil; i++ {
		nameLen := dec.uint()
		if dec.err == nil && nameLen > maxNameLength {
			return nil, fmt.Errorf("%w: function name length %d", ErrCorrupt, nameLen)
		}
		name := string(dec.bytes(int(nameLen)))
		if dec.err != nil {
			break
		}
		act, err := catalog.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("decode function %d: %w", i, err)
		}
		functions = append(functions, act)
	}

	layerCount := dec.count()
	if dec.err == nil && layerCount < 2 {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, ErrMinimumLayers)
	}
	sizes := make([]uint64, 0, min(layerCount, 64))
	var total uint64
	for i := uint64(0); i < layerCount && dec.err == nil; i++ {
		size := dec.count()
		total += size
		sizes = append(sizes, size)
	}
	if dec.err != nil {
		return nil, dec.failure()
	}
	for i := 1; i < len(sizes)-1; i++ {
		if sizes[i] == 0 {
			return nil, fmt.Errorf("%w: hidden layer %d is empty", ErrCorrupt, i)
		}
	}
	if total > maxCount {
		return nil, fmt.Errorf("%w: %d nodes", ErrCorrupt, total)
	}

	net := New(catalog)
	net.layers = make([][]NodeID, len(sizes))
	type pending struct {
		dst    uint64
		weight float64
	}
	links := make([][]pending, 0, min(total, 64))
	for layer, size := range sizes {
		for j := uint64(0); j < size; j++ {
			fn := dec.uint()
			bias := dec.float()
			synapseCount := dec.count()
			if dec.err != nil {
				return nil, dec.failure()
			}
			if fn >= uint64(len(functions)) {
				return nil, fmt.Errorf("%w: function index %d of %d", ErrCorrupt, fn, len(functions))
			}
			id := net.newNode(layer, functions[fn])
			net.nodes[id].bias = bias
			net.nodes[id].acc = bias

			out := make([]pending, 0, min(synapseCount, 64))
			for k := uint64(0); k < synapseCount; k++ {
				out = append(out, pending{dst: dec.uint(), weight: dec.float()})
			}
			if dec.err != nil {
				return nil, dec.failure()
			}
			links = append(links, out)
		}
	}

	for src, out := range links {
		for _, p := range out {
			if p.dst >= total {
				return nil, fmt.Errorf("%w: synapse destination %d of %d", ErrCorrupt, p.dst, total)
			}
			srcID, dstID := NodeID(src), NodeID(p.dst)
			if net.nodes[dstID].layer <= net.nodes[srcID].layer {
				return nil, fmt.Errorf("%w: %w", ErrCorrupt, ErrNotFeedForward)
			}
			net.link(srcID, dstID, p.weight)
		}
	}

	net.inputs = append(net.inputs, net.layers[0]...)
	net.outputs = append(net.outputs, net.layers[net.lastLayer()]...)
	return net, nil
}

type encoder struct {
	w   io.Writer
	buf [8]byte
	err error
}

func (e *encoder) uint(v uint64) {
	byteOrder.PutUint64(e.buf[:], v)
	e.bytes(e.buf[:])
}

func (e *encoder) float(v float64) {
	e.uint(math.Float64bits(v))
}

func (e *encoder) bytes(b []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(b)
}

type decoder struct {
	r   io.Reader
	buf [8]byte
	err error
}

func (d *decoder) uint() uint64 {
	if d.err != nil {
		return 0
	}
	if _, err := io.ReadFull(d.r, d.buf[:]); err != nil {
		d.err = err
		return 0
	}
	return byteOrder.Uint64(d.buf[:])
}

// count reads a length prefix and rejects values no valid model reaches.
func (d *decoder) count() uint64 {
	v := d.uint()
	if d.err == nil && v > maxCount {
		d.err = fmt.Errorf("%w: count %d", ErrCorrupt, v)
		return 0
	}
	return v
}

func (d *decoder) float() float64 {
	return math.Float64frombits(d.uint())
}

func (d *decoder) bytes(n int) []byte {
	if d.err != nil {
		return nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(d.r, b); err != nil {
		d.err = err
		return nil
	}
	return b
}

func (d *decoder) failure() error {
	if errors.Is(d.err, io.EOF) || errors.Is(d.err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated: %w", ErrCorrupt, d.err)
	}
	return d.err
}
