package nn

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrUnknownActivation = errors.New("unknown activation")
	ErrNotInCatalog      = errors.New("activation not in catalog")
)

// Activation is the closed set of node transfer functions.
type Activation uint8

const (
	Add Activation = iota
	Step
	Sigmoid
	Tanh
	ReLU
	LeakyReLU
)

const (
	stepThreshold  = 0.0
	leakyReLUAlpha = 0.01
)

var activationNames = [...]string{
	Add:       "basicAdd",
	Step:      "step",
	Sigmoid:   "sigmoid",
	Tanh:      "tanh",
	ReLU:      "relu",
	LeakyReLU: "leaky_relu",
}

var activationByName = func() map[string]Activation {
	m := make(map[string]Activation, len(activationNames))
	for i, name := range activationNames {
		m[name] = Activation(i)
	}
	return m
}()

// ParseActivation resolves a serialized activation name.
func ParseActivation(name string) (Activation, error) {
	act, ok := activationByName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownActivation, name)
	}
	return act, nil
}

// Activations lists every known activation name in sorted order.
func Activations() []string {
	names := make([]string, 0, len(activationNames))
	names = append(names, activationNames[:]...)
	sort.Strings(names)
	return names
}

func (a Activation) Valid() bool {
	return int(a) < len(activationNames)
}

func (a Activation) String() string {
	if !a.Valid() {
		return fmt.Sprintf("activation(%d)", uint8(a))
	}
	return activationNames[a]
}

// Apply evaluates the activation at x.
func (a Activation) Apply(x float64) float64 {
	switch a {
	case Add:
		return x
	case Step:
		if x > stepThreshold {
			return 1
		}
		return 0
	case Sigmoid:
		return 1.0 / (1.0 + math.Exp(-x))
	case Tanh:
		return math.Tanh(x)
	case ReLU:
		return math.Max(0, x)
	case LeakyReLU:
		if x > 0 {
			return x
		}
		return leakyReLUAlpha * x
	default:
		return x
	}
}

// Catalog is the ordered set of activations a network may reference.
// Registration order is significant: it defines the function indices written
// by the binary codec. A catalog is shared by every network built from it and
// must not be modified while those networks are in use.
type Catalog struct {
	entries []Activation
	index   map[Activation]int
	byName  map[string]Activation
}

func NewCatalog(activations ...Activation) *Catalog {
	c := &Catalog{
		index:  make(map[Activation]int, len(activations)),
		byName: make(map[string]Activation, len(activations)),
	}
	for _, act := range activations {
		_ = c.Register(act)
	}
	return c
}

// DefaultCatalog holds the activations registered by the training screen.
func DefaultCatalog() *Catalog {
	return NewCatalog(Add, Sigmoid, Tanh)
}

// FullCatalog holds every activation in declaration order.
func FullCatalog() *Catalog {
	return NewCatalog(Add, Step, Sigmoid, Tanh, ReLU, LeakyReLU)
}

// Register appends act. Registering twice is a no-op.
func (c *Catalog) Register(act Activation) error {
	if !act.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownActivation, act)
	}
	if _, exists := c.index[act]; exists {
		return nil
	}
	c.index[act] = len(c.entries)
	c.entries = append(c.entries, act)
	c.byName[act.String()] = act
	return nil
}

// Lookup resolves name against the catalog.
func (c *Catalog) Lookup(name string) (Activation, error) {
	act, ok := c.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownActivation, name)
	}
	return act, nil
}

// Index returns the registration index of act.
func (c *Catalog) Index(act Activation) (int, bool) {
	i, ok := c.index[act]
	return i, ok
}

func (c *Catalog) At(i int) Activation {
	return c.entries[i]
}

func (c *Catalog) Len() int {
	return len(c.entries)
}

func (c *Catalog) Contains(act Activation) bool {
	_, ok := c.index[act]
	return ok
}

// Names returns activation names in registration order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.entries))
	for i, act := range c.entries {
		names[i] = act.String()
	}
	return names
}
