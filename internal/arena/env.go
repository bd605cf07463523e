package arena

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"neuralwarfare/internal/env"
)

// NeighborCount is how many hostiles and friendlies an observation holds.
const NeighborCount = 5

// Turn is the steering decision of one tick.
type Turn int

const (
	Straight Turn = iota
	Left
	Right
)

// OutputSize is the number of network outputs Decide reads.
const OutputSize = 3

// InputSize is the length of Observation.ForNN.
const InputSize = 1 + 4*NeighborCount

// Move steers the agent with the given team-local ID.
type Move struct {
	ID   int
	Turn Turn
}

func (m Move) AgentID() int { return m.ID }

// Polar is a neighbour position relative to the observer: Distance is
// scaled by the plane diagonal and Bearing is relative to the observer's
// heading.
type Polar struct {
	Distance float64
	Bearing  float64
}

// Observation is a snapshot; it does not reference engine state.
type Observation struct {
	Health     float64
	Hostiles   []Polar
	Friendlies []Polar
}

// ForNN lays out health followed by the hostile then friendly slots. Empty
// slots read as distance 1, bearing 0.
func (o Observation) ForNN() []float64 {
	out := make([]float64, 0, InputSize)
	out = append(out, o.Health)
	for _, group := range [][]Polar{o.Hostiles, o.Friendlies} {
		for i := 0; i < NeighborCount; i++ {
			if i < len(group) {
				out = append(out, group[i].Distance, group[i].Bearing)
			} else {
				out = append(out, 1, 0)
			}
		}
	}
	return out
}

// NearestHostileBearing reports the bearing of the closest visible hostile.
func (o Observation) NearestHostileBearing() (float64, bool) {
	if len(o.Hostiles) == 0 {
		return 0, false
	}
	return o.Hostiles[0].Bearing, true
}

// SeekNearestHostile is a scripted policy that steers towards the closest
// hostile. It returns one-hot outputs in Decide's layout: Straight when the
// hostile is dead ahead or none is visible, Left when it lies at a positive
// bearing and Right when it lies at a negative one.
func SeekNearestHostile(obs env.Observation) []float64 {
	outputs := make([]float64, OutputSize)
	turn := Straight
	if o, ok := obs.(Observation); ok {
		if bearing, ok := o.NearestHostileBearing(); ok {
			switch {
			case bearing > 0:
				turn = Left
			case bearing < 0:
				turn = Right
			}
		}
	}
	outputs[turn] = 1
	return outputs
}

// Env exposes one team of an Engine as an env.Environment.
type Env struct {
	engine *Engine
	team   int
}

func NewEnv(engine *Engine, teamID int) (*Env, error) {
	if teamID < 0 || teamID >= engine.Teams() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTeam, teamID)
	}
	return &Env{engine: engine, team: teamID}, nil
}

func (e *Env) Team() int { return e.team }

func (e *Env) Stats() KillStats { return e.engine.Stats(e.team) }

func (e *Env) InputSize() int { return InputSize }

func (e *Env) OutputSize() int { return OutputSize }

// Results reports every member of the team and consumes the rewards earned
// since the previous call.
func (e *Env) Results() []env.StepResult {
	members := e.engine.teams[e.team].members
	truncated := e.engine.Truncated()
	results := make([]env.StepResult, len(members))
	for id, idx := range members {
		a := &e.engine.agents[idx]
		results[id] = env.StepResult{
			Observation: e.engine.observe(idx),
			Reward:      a.reward,
			Terminated:  !a.Alive(),
			Truncated:   truncated,
			ID:          id,
		}
		a.reward = 0
	}
	return results
}

// Decide picks the turn with the largest output; ties go to the earlier one.
func (e *Env) Decide(id int, outputs []float64) env.Action {
	best := Straight
	for i := 1; i < OutputSize && i < len(outputs); i++ {
		if outputs[i] > outputs[best] {
			best = Turn(i)
		}
	}
	return Move{ID: id, Turn: best}
}

func (e *Env) Idle(id int) env.Action {
	return Move{ID: id, Turn: Straight}
}

func (e *Env) TakeActions(actions []env.Action) error {
	for _, action := range actions {
		move, ok := action.(Move)
		if !ok {
			return fmt.Errorf("unsupported action %T", action)
		}
		a, err := e.engine.member(e.team, move.ID)
		if err != nil {
			return err
		}
		if !a.Alive() {
			continue
		}
		switch move.Turn {
		case Left:
			a.Dir += e.engine.cfg.TurnRate
		case Right:
			a.Dir -= e.engine.cfg.TurnRate
		}
		a.Dir = normalizeAngle(a.Dir)
	}
	return nil
}

type neighbor struct {
	dist  float64
	polar Polar
}

func (e *Engine) observe(idx int) Observation {
	self := e.agents[idx]
	obs := Observation{Health: self.Health}
	if !self.Alive() {
		return obs
	}
	diagonal := math.Hypot(e.cfg.Width, e.cfg.Height)
	var hostiles, friendlies []neighbor
	for j := range e.agents {
		other := &e.agents[j]
		if j == idx || !other.Alive() {
			continue
		}
		dx, dy := e.offset(&self, other)
		dist := math.Hypot(dx, dy)
		n := neighbor{
			dist: dist,
			polar: Polar{
				Distance: dist / diagonal,
				Bearing:  normalizeAngle(math.Atan2(dy, dx) - self.Dir),
			},
		}
		if other.Team == self.Team {
			friendlies = append(friendlies, n)
		} else {
			hostiles = append(hostiles, n)
		}
	}
	obs.Hostiles = nearest(hostiles)
	obs.Friendlies = nearest(friendlies)
	return obs
}

func nearest(candidates []neighbor) []Polar {
	slices.SortStableFunc(candidates, func(a, b neighbor) int {
		return cmp.Compare(a.dist, b.dist)
	})
	out := make([]Polar, 0, NeighborCount)
	for i := 0; i < len(candidates) && i < NeighborCount; i++ {
		out = append(out, candidates[i].polar)
	}
	return out
}
