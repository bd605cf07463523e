package arena

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"neuralwarfare/internal/env"
)

func newEngine(t *testing.T, teams ...int) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.EpisodeTicks = 10
	e, err := NewEngine(cfg, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	for _, size := range teams {
		_, err := e.AddTeam(size)
		require.NoError(t, err)
	}
	return e
}

// place puts team member index at (x, y) facing dir.
func place(t *testing.T, e *Engine, teamID, index int, x, y, dir float64) {
	t.Helper()
	a, err := e.member(teamID, index)
	require.NoError(t, err)
	a.X, a.Y, a.Dir = x, y, dir
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.EpisodeTicks = 0
	require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.AgentRadius = 0
	require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestAddTeamSpawnsInsidePlane(t *testing.T) {
	e := newEngine(t, 4, 3)
	require.Equal(t, 2, e.Teams())
	require.Equal(t, 3, e.TeamSize(1))

	for teamID := 0; teamID < e.Teams(); teamID++ {
		for i := 0; i < e.TeamSize(teamID); i++ {
			a, err := e.Agent(teamID, i)
			require.NoError(t, err)
			require.Equal(t, teamID, a.Team)
			require.True(t, a.Alive())
			require.LessOrEqual(t, math.Abs(a.X), e.Config().Width)
			require.LessOrEqual(t, math.Abs(a.Y), e.Config().Height)
		}
	}

	_, err := e.AddTeam(0)
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = e.Agent(5, 0)
	require.ErrorIs(t, err, ErrUnknownTeam)
}

func TestRammingKillsHostileAndAssignsRewards(t *testing.T) {
	e := newEngine(t, 1, 1)
	cfg := e.Config()
	// Attacker at the origin heading +x, victim just ahead heading +y.
	place(t, e, 0, 0, 0, 0, 0)
	place(t, e, 1, 0, cfg.Speed+1, 0, math.Pi/2)

	e.Step()

	attacker, _ := e.Agent(0, 0)
	victim, _ := e.Agent(1, 0)
	require.True(t, attacker.Alive())
	require.False(t, victim.Alive())

	red, err := NewEnv(e, 0)
	require.NoError(t, err)
	blue, err := NewEnv(e, 1)
	require.NoError(t, err)

	redResults := red.Results()
	blueResults := blue.Results()
	require.Equal(t, float32(1), redResults[0].Reward)
	require.Equal(t, float32(-1), blueResults[0].Reward)
	require.True(t, blueResults[0].Terminated)
	require.False(t, redResults[0].Terminated)

	// Rewards are consumed by Results.
	require.Zero(t, red.Results()[0].Reward)

	stats := red.Stats()
	require.Equal(t, KillStats{TotalThisEpisode: 1, HighestThisEpisode: 1, TotalAllEpisodes: 1, HighestAllEpisodes: 1}, stats)
	require.Zero(t, blue.Stats().TotalAllEpisodes)
}

func TestHeadOnContactKillsNobody(t *testing.T) {
	e := newEngine(t, 1, 1)
	cfg := e.Config()
	cfg.Speed = 0
	e.cfg = cfg
	place(t, e, 0, 0, 0, 0, 0)
	place(t, e, 1, 0, 1, 0, math.Pi)

	e.Step()

	a, _ := e.Agent(0, 0)
	b, _ := e.Agent(1, 0)
	require.True(t, a.Alive())
	require.True(t, b.Alive())
}

func TestEpisodeTruncatesAndResets(t *testing.T) {
	e := newEngine(t, 2, 2)
	e.teams[0].stats = KillStats{TotalThisEpisode: 2, HighestThisEpisode: 1, TotalAllEpisodes: 5, HighestAllEpisodes: 3}
	red, err := NewEnv(e, 0)
	require.NoError(t, err)

	for i := 0; i < e.Config().EpisodeTicks; i++ {
		require.False(t, e.Truncated())
		e.Step()
	}
	require.True(t, e.Truncated())
	for _, sr := range red.Results() {
		require.True(t, sr.Truncated)
	}

	e.Step()
	require.False(t, e.Truncated())
	require.Equal(t, 0, e.Tick())
	require.Equal(t, 1, e.Episode())
	require.Equal(t, KillStats{TotalAllEpisodes: 5, HighestAllEpisodes: 3}, red.Stats())
	for _, sr := range red.Results() {
		require.False(t, sr.Terminated)
	}
}

func TestWrapKeepsAgentsOnPlane(t *testing.T) {
	require.Equal(t, -9.0, wrap(11, 10))
	require.Equal(t, 9.0, wrap(-11, 10))
	require.Equal(t, 3.0, wrap(3, 10))
}

func TestObservationNearestNeighbours(t *testing.T) {
	e := newEngine(t, 3, 7)
	place(t, e, 0, 0, 0, 0, 0)
	place(t, e, 0, 1, 10, 0, 0)
	place(t, e, 0, 2, 0, 20, 0)
	for i := 0; i < 7; i++ {
		place(t, e, 1, i, -float64(30+10*i), 0, 0)
	}

	obs := e.observe(e.teams[0].members[0])
	require.Equal(t, 1.0, obs.Health)
	require.Len(t, obs.Friendlies, 2)
	require.Len(t, obs.Hostiles, NeighborCount)

	diagonal := math.Hypot(e.cfg.Width, e.cfg.Height)
	require.InDelta(t, 10/diagonal, obs.Friendlies[0].Distance, 1e-12)
	require.InDelta(t, 0, obs.Friendlies[0].Bearing, 1e-12)
	require.InDelta(t, math.Pi/2, obs.Friendlies[1].Bearing, 1e-12)
	require.InDelta(t, 30/diagonal, obs.Hostiles[0].Distance, 1e-12)
	require.InDelta(t, -math.Pi, obs.Hostiles[0].Bearing, 1e-12)
	require.InDelta(t, 70/diagonal, obs.Hostiles[4].Distance, 1e-12)

	vec := obs.ForNN()
	require.Len(t, vec, InputSize)
	require.Equal(t, 1.0, vec[0])
	// The third friendly slot is empty.
	require.Equal(t, []float64{1, 0}, vec[1+2*NeighborCount+4:1+2*NeighborCount+6])
}

func TestObservationMeasuresAcrossSeam(t *testing.T) {
	e := newEngine(t, 2, 1)
	w, h := e.cfg.Width, e.cfg.Height
	place(t, e, 0, 0, w-5, h-1, 0)
	place(t, e, 0, 1, -w+5, h-1, 0)
	place(t, e, 1, 0, w-5, -h+1, 0)

	obs := e.observe(e.teams[0].members[0])
	diagonal := math.Hypot(w, h)
	require.Len(t, obs.Friendlies, 1)
	require.InDelta(t, 10/diagonal, obs.Friendlies[0].Distance, 1e-12)
	require.InDelta(t, 0, obs.Friendlies[0].Bearing, 1e-12)
	require.InDelta(t, 2/diagonal, obs.Hostiles[0].Distance, 1e-12)
	require.InDelta(t, math.Pi/2, obs.Hostiles[0].Bearing, 1e-12)
}

func TestContactAcrossSeamKills(t *testing.T) {
	e := newEngine(t, 1, 1)
	w := e.cfg.Width
	place(t, e, 0, 0, w-1, 0, 0)
	place(t, e, 1, 0, -w+1, 0, math.Pi/2)

	e.resolveContacts()
	red, _ := e.Agent(0, 0)
	blue, _ := e.Agent(1, 0)
	require.True(t, red.Alive())
	require.False(t, blue.Alive())
	require.Equal(t, 1, e.Stats(0).TotalThisEpisode)
}

func TestDecideUsesArgmax(t *testing.T) {
	e := newEngine(t, 1)
	red, err := NewEnv(e, 0)
	require.NoError(t, err)

	tests := []struct {
		outputs []float64
		want    Turn
	}{
		{outputs: []float64{0.9, 0.1, 0.2}, want: Straight},
		{outputs: []float64{0.1, 0.9, 0.2}, want: Left},
		{outputs: []float64{0.1, 0.2, 0.9}, want: Right},
		{outputs: []float64{0.5, 0.5, 0.5}, want: Straight},
		{outputs: []float64{0.1, 0.7}, want: Left},
		{outputs: nil, want: Straight},
	}
	for _, tc := range tests {
		require.Equal(t, Move{ID: 3, Turn: tc.want}, red.Decide(3, tc.outputs))
	}
	require.Equal(t, Move{ID: 2, Turn: Straight}, red.Idle(2))
}

type otherAction struct{}

func (otherAction) AgentID() int { return 0 }

func TestTakeActionsTurnsAgents(t *testing.T) {
	e := newEngine(t, 2)
	red, err := NewEnv(e, 0)
	require.NoError(t, err)
	place(t, e, 0, 0, 0, 0, 0)
	place(t, e, 0, 1, 0, 0, 0)

	require.NoError(t, red.TakeActions([]env.Action{Move{ID: 0, Turn: Left}, Move{ID: 1, Turn: Right}}))
	a, _ := e.Agent(0, 0)
	b, _ := e.Agent(0, 1)
	require.InDelta(t, e.cfg.TurnRate, a.Dir, 1e-12)
	require.InDelta(t, -e.cfg.TurnRate, b.Dir, 1e-12)

	require.ErrorIs(t, red.TakeActions([]env.Action{Move{ID: 9}}), ErrUnknownAgent)
	require.Error(t, red.TakeActions([]env.Action{otherAction{}}))

	_, err = NewEnv(e, 4)
	require.ErrorIs(t, err, ErrUnknownTeam)
}

func TestSeekNearestHostileSteersTowardsTarget(t *testing.T) {
	tests := []struct {
		name string
		obs  env.Observation
		want Turn
	}{
		{name: "ahead", obs: Observation{Hostiles: []Polar{{Distance: 0.2, Bearing: 0}}}, want: Straight},
		{name: "counter-clockwise", obs: Observation{Hostiles: []Polar{{Distance: 0.2, Bearing: 0.4}, {Bearing: -1}}}, want: Left},
		{name: "clockwise", obs: Observation{Hostiles: []Polar{{Distance: 0.2, Bearing: -2}}}, want: Right},
		{name: "none visible", obs: Observation{Health: 1}, want: Straight},
		{name: "foreign observation", obs: env.Vector{1, 2, 3}, want: Straight},
	}
	e := newEngine(t, 1)
	red, err := NewEnv(e, 0)
	require.NoError(t, err)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			outputs := SeekNearestHostile(tc.obs)
			require.Len(t, outputs, OutputSize)
			require.Equal(t, Move{ID: 0, Turn: tc.want}, red.Decide(0, outputs))
		})
	}

	_, ok := Observation{}.NearestHostileBearing()
	require.False(t, ok)
}

func TestSeekingTurnsTowardsHostile(t *testing.T) {
	e := newEngine(t, 1, 1)
	red, err := NewEnv(e, 0)
	require.NoError(t, err)
	place(t, e, 0, 0, 0, 0, 0)
	place(t, e, 1, 0, 0, 50, 0)

	sr := red.Results()[0]
	bearing, ok := sr.Observation.(Observation).NearestHostileBearing()
	require.True(t, ok)
	require.InDelta(t, math.Pi/2, bearing, 1e-12)

	require.NoError(t, red.TakeActions([]env.Action{red.Decide(0, SeekNearestHostile(sr.Observation))}))
	a, _ := e.Agent(0, 0)
	require.InDelta(t, e.cfg.TurnRate, a.Dir, 1e-12)
}
