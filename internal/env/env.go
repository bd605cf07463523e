// Package env defines the contract between trainers and a simulation.
package env

// Observation is what one agent perceives on a tick.
type Observation interface {
	// ForNN flattens the observation into a network input vector.
	ForNN() []float64
}

// Vector is an Observation that is already flat.
type Vector []float64

func (v Vector) ForNN() []float64 { return v }

// StepResult reports one live agent after a tick.
type StepResult struct {
	Observation Observation
	Reward      float32
	// Terminated agents are dead for the rest of the episode.
	Terminated bool
	// Truncated is set on every agent when the episode ends.
	Truncated bool
	ID        int
}

// Action is an environment-specific command for the agent with AgentID.
type Action interface {
	AgentID() int
}

// Environment is the view of a simulation one trainer drives.
//
// Results and TakeActions touch simulation state and are called outside the
// update window. Decide and Idle must be pure functions of their arguments
// because trainers call them while the simulation advances.
type Environment interface {
	Results() []StepResult
	Decide(id int, outputs []float64) Action
	Idle(id int) Action
	TakeActions(actions []Action) error
	InputSize() int
	OutputSize() int
}
