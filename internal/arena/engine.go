// Package arena is a small headless combat simulation. Teams of agents move
// on a wrapping plane; an agent that rams a hostile inside the contact radius
// kills it. The engine makes no claim to physical fidelity.
package arena

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

var (
	ErrInvalidConfig = errors.New("invalid arena config")
	ErrUnknownTeam   = errors.New("unknown team")
	ErrUnknownAgent  = errors.New("unknown agent")
)

// Config describes the plane and the agents. Width and Height are half
// extents: positions lie in [-Width, Width] x [-Height, Height].
type Config struct {
	Width        float64
	Height       float64
	AgentRadius  float64
	Speed        float64
	TurnRate     float64
	EpisodeTicks int
	SpawnRadius  float64
}

func DefaultConfig() Config {
	return Config{
		Width:        400,
		Height:       300,
		AgentRadius:  6,
		Speed:        4,
		TurnRate:     0.1,
		EpisodeTicks: 300,
		SpawnRadius:  60,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: size must be > 0", ErrInvalidConfig)
	case c.AgentRadius <= 0:
		return fmt.Errorf("%w: agent radius must be > 0", ErrInvalidConfig)
	case c.Speed < 0 || c.TurnRate < 0 || c.SpawnRadius < 0:
		return fmt.Errorf("%w: speed, turn rate and spawn radius must be >= 0", ErrInvalidConfig)
	case c.EpisodeTicks < 1:
		return fmt.Errorf("%w: episode ticks must be >= 1", ErrInvalidConfig)
	}
	return nil
}

// Agent is one combatant.
type Agent struct {
	Team   int
	X, Y   float64
	Dir    float64
	Health float64
	kills  int
	reward float32
}

func (a *Agent) Alive() bool { return a.Health > 0 }

// KillStats tracks kills for one team.
type KillStats struct {
	TotalThisEpisode   int `json:"total_this_episode"`
	HighestThisEpisode int `json:"highest_this_episode"`
	TotalAllEpisodes   int `json:"total_all_episodes"`
	HighestAllEpisodes int `json:"highest_all_episodes"`
}

type team struct {
	members []int
	stats   KillStats
}

// Engine owns every agent of every team. It is not safe for concurrent use;
// Step may run alongside trainer updates only because those never touch it.
type Engine struct {
	cfg     Config
	rng     *rand.Rand
	agents  []Agent
	teams   []team
	tick    int
	episode int
}

func NewEngine(cfg Config, rng *rand.Rand) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	return &Engine{cfg: cfg, rng: rng}, nil
}

func (e *Engine) Config() Config { return e.cfg }

// AddTeam creates size agents and returns the team ID. Every team is
// respawned so spawn points stay evenly spread around the centre.
func (e *Engine) AddTeam(size int) (int, error) {
	if size < 1 {
		return 0, fmt.Errorf("%w: team size must be >= 1", ErrInvalidConfig)
	}
	id := len(e.teams)
	t := team{members: make([]int, size)}
	for i := range t.members {
		t.members[i] = len(e.agents)
		e.agents = append(e.agents, Agent{Team: id})
	}
	e.teams = append(e.teams, t)
	e.spawn()
	return id, nil
}

func (e *Engine) Teams() int { return len(e.teams) }

func (e *Engine) TeamSize(teamID int) int {
	if teamID < 0 || teamID >= len(e.teams) {
		return 0
	}
	return len(e.teams[teamID].members)
}

// Agent returns a copy of member index of teamID.
func (e *Engine) Agent(teamID, index int) (Agent, error) {
	a, err := e.member(teamID, index)
	if err != nil {
		return Agent{}, err
	}
	return *a, nil
}

func (e *Engine) member(teamID, index int) (*Agent, error) {
	if teamID < 0 || teamID >= len(e.teams) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTeam, teamID)
	}
	members := e.teams[teamID].members
	if index < 0 || index >= len(members) {
		return nil, fmt.Errorf("%w: team %d index %d", ErrUnknownAgent, teamID, index)
	}
	return &e.agents[members[index]], nil
}

func (e *Engine) Stats(teamID int) KillStats {
	if teamID < 0 || teamID >= len(e.teams) {
		return KillStats{}
	}
	return e.teams[teamID].stats
}

func (e *Engine) Tick() int    { return e.tick }
func (e *Engine) Episode() int { return e.episode }

// Truncated reports whether the current episode has run its course.
func (e *Engine) Truncated() bool { return e.tick >= e.cfg.EpisodeTicks }

// Step advances the simulation by one tick. A truncated episode is reset
// instead of advanced.
func (e *Engine) Step() {
	if e.Truncated() {
		e.Reset()
		return
	}
	for i := range e.agents {
		a := &e.agents[i]
		if !a.Alive() {
			continue
		}
		a.X = wrap(a.X+math.Cos(a.Dir)*e.cfg.Speed, e.cfg.Width)
		a.Y = wrap(a.Y+math.Sin(a.Dir)*e.cfg.Speed, e.cfg.Height)
	}
	e.resolveContacts()
	e.tick++
}

// resolveContacts lets the agent facing more squarely towards a touching
// hostile kill it. Head-on ties kill nobody.
func (e *Engine) resolveContacts() {
	for i := range e.agents {
		for j := i + 1; j < len(e.agents); j++ {
			a, b := &e.agents[i], &e.agents[j]
			if a.Team == b.Team || !a.Alive() || !b.Alive() {
				continue
			}
			dx, dy := e.offset(a, b)
			dist := math.Hypot(dx, dy)
			if dist >= e.cfg.AgentRadius {
				continue
			}
			facingA, facingB := 1.0, 1.0
			if dist > 0 {
				facingA = (math.Cos(a.Dir)*dx + math.Sin(a.Dir)*dy) / dist
				facingB = -(math.Cos(b.Dir)*dx + math.Sin(b.Dir)*dy) / dist
			}
			switch {
			case facingA > facingB:
				e.kill(a, b)
			case facingB > facingA:
				e.kill(b, a)
			}
		}
	}
}

func (e *Engine) kill(attacker, victim *Agent) {
	victim.Health = 0
	victim.reward--
	attacker.reward++
	attacker.kills++

	stats := &e.teams[attacker.Team].stats
	stats.TotalThisEpisode++
	stats.TotalAllEpisodes++
	stats.HighestThisEpisode = max(stats.HighestThisEpisode, attacker.kills)
	stats.HighestAllEpisodes = max(stats.HighestAllEpisodes, attacker.kills)
}

// Reset starts a new episode. All-episode kill statistics survive.
func (e *Engine) Reset() {
	e.tick = 0
	e.episode++
	for i := range e.teams {
		e.teams[i].stats.TotalThisEpisode = 0
		e.teams[i].stats.HighestThisEpisode = 0
	}
	e.spawn()
}

func (e *Engine) spawn() {
	n := len(e.teams)
	for id, t := range e.teams {
		angle := 2 * math.Pi * float64(id) / float64(n)
		cx, cy := 0.0, 0.0
		if n > 1 {
			cx = -0.5 * e.cfg.Width * math.Cos(angle)
			cy = -0.5 * e.cfg.Height * math.Sin(angle)
		}
		for _, idx := range t.members {
			r := e.cfg.SpawnRadius * math.Sqrt(e.rng.Float64())
			theta := 2 * math.Pi * e.rng.Float64()
			e.agents[idx] = Agent{
				Team:   id,
				X:      wrap(cx+r*math.Cos(theta), e.cfg.Width),
				Y:      wrap(cy+r*math.Sin(theta), e.cfg.Height),
				Dir:    2 * math.Pi * e.rng.Float64(),
				Health: 1,
			}
		}
	}
}

// offset is the shortest displacement from a to b across the wrapping seams.
func (e *Engine) offset(a, b *Agent) (dx, dy float64) {
	return wrap(b.X-a.X, e.cfg.Width), wrap(b.Y-a.Y, e.cfg.Height)
}

// wrap maps v into [-limit, limit] on a torus.
func wrap(v, limit float64) float64 {
	span := 2 * limit
	for v > limit {
		v -= span
	}
	for v < -limit {
		v += span
	}
	return v
}

// normalizeAngle maps a into [-pi, pi).
func normalizeAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}
