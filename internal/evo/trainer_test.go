package evo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"neuralwarfare/internal/env"
	"neuralwarfare/internal/nn"
)

type recordedAction struct {
	id      int
	outputs []float64
	idle    bool
}

func (a recordedAction) AgentID() int { return a.id }

type fakeEnv struct {
	results []env.StepResult
	taken   [][]env.Action
}

func (e *fakeEnv) Results() []env.StepResult { return e.results }

func (e *fakeEnv) Decide(id int, outputs []float64) env.Action {
	return recordedAction{id: id, outputs: outputs}
}

func (e *fakeEnv) Idle(id int) env.Action { return recordedAction{id: id, idle: true} }

func (e *fakeEnv) TakeActions(actions []env.Action) error {
	e.taken = append(e.taken, actions)
	return nil
}

func (e *fakeEnv) InputSize() int  { return 2 }
func (e *fakeEnv) OutputSize() int { return 2 }

func results(rewards []float32, truncated bool) []env.StepResult {
	out := make([]env.StepResult, len(rewards))
	for i, r := range rewards {
		out[i] = env.StepResult{
			Observation: env.Vector{float64(i), 1},
			Reward:      r,
			Truncated:   truncated,
			ID:          i,
		}
	}
	return out
}

func newTrainer(t *testing.T, e env.Environment, mutate func(*Hyperparameters)) *GeneticTrainer {
	t.Helper()
	hp := DefaultHyperparameters()
	hp.TopAgentCount = 2
	hp.MutationCount = 2
	if mutate != nil {
		mutate(&hp)
	}
	trainer, err := NewGeneticTrainer(GeneticConfig{
		Env:             e,
		Rand:            rand.New(rand.NewSource(5)),
		Hyperparameters: hp,
		Master:          seedNetwork(t),
		Name:            "test",
	})
	require.NoError(t, err)
	return trainer
}

func step(t *testing.T, trainer interface {
	Observe()
	Update() error
	Act() error
}) {
	t.Helper()
	trainer.Observe()
	require.NoError(t, trainer.Update())
	require.NoError(t, trainer.Act())
}

func TestGeneticTrainerGrowsPopulationLazily(t *testing.T) {
	e := &fakeEnv{results: results([]float32{1, 2, 3, 4, 5}, false)}
	trainer := newTrainer(t, e, nil)
	master := trainer.Master()

	step(t, trainer)

	agents := trainer.Agents()
	require.Len(t, agents, 5)
	require.Same(t, master, agents[0].Network)
	for i, a := range agents {
		require.Equal(t, float64(i+1), a.Fitness)
		if i > 0 {
			require.NotSame(t, master, a.Network)
		}
	}
	require.Len(t, e.taken, 1)
	require.Len(t, e.taken[0], 5)
	require.Equal(t, 0, trainer.Generation())
}

func TestGeneticTrainerIdlesTerminatedAgents(t *testing.T) {
	e := &fakeEnv{results: results([]float32{0, 0, 0}, false)}
	e.results[1].Terminated = true
	trainer := newTrainer(t, e, nil)

	step(t, trainer)

	actions := e.taken[0]
	require.Len(t, actions, 3)
	require.False(t, actions[0].(recordedAction).idle)
	require.Len(t, actions[0].(recordedAction).outputs, 2)
	require.True(t, actions[1].(recordedAction).idle)
	require.Equal(t, 1, actions[1].AgentID())
}

func TestGeneticTrainerEvolvesWhenEveryAgentIsTruncated(t *testing.T) {
	e := &fakeEnv{results: results([]float32{1, 1, 1, 1}, false)}
	trainer := newTrainer(t, e, nil)
	step(t, trainer)

	e.results = results([]float32{0, 0, 0, 0}, true)
	e.results[2].Truncated = false
	step(t, trainer)
	require.Equal(t, 0, trainer.Generation())

	e.results = results([]float32{0, 0, 0, 0}, true)
	step(t, trainer)
	require.Equal(t, 1, trainer.Generation())
	require.Len(t, trainer.Agents(), 4)

	reports := trainer.DrainReports()
	require.Len(t, reports, 1)
	require.Equal(t, 1, reports[0].Generation)
	require.Equal(t, 4, reports[0].Population)
	require.Empty(t, trainer.DrainReports())
}

func TestEvolveKeepsPopulationAndElites(t *testing.T) {
	e := &fakeEnv{results: results([]float32{0, 0, 0, 0, 0, 0}, false)}
	trainer := newTrainer(t, e, nil)
	step(t, trainer)

	agents := trainer.Agents()
	fitness := []float64{3, 9, 1, 7, 5, 9}
	for i, a := range agents {
		a.Fitness = fitness[i]
	}
	best, second := agents[1].Network, agents[5].Network
	others := map[*nn.Network]bool{}
	for _, i := range []int{0, 2, 3, 4} {
		others[agents[i].Network] = true
	}

	require.NoError(t, trainer.Evolve())

	agents = trainer.Agents()
	require.Len(t, agents, 6)
	require.Same(t, best, agents[0].Network)
	require.Same(t, second, agents[1].Network)
	require.Same(t, agents[0].Network, trainer.Master())
	require.Equal(t, 9.0, agents[0].Fitness)
	require.Equal(t, 9.0, agents[1].Fitness)
	for i := 2; i < len(agents); i++ {
		require.False(t, others[agents[i].Network], "agent %d kept a discarded network", i)
		require.NotSame(t, best, agents[i].Network)
		require.NotSame(t, second, agents[i].Network)
		requireFeedForward(t, agents[i].Network)
	}
	// Non-elite fitness is carried over; only networks are replaced.
	require.Equal(t, []float64{7, 5, 3, 1}, []float64{
		agents[2].Fitness, agents[3].Fitness, agents[4].Fitness, agents[5].Fitness,
	})

	report := trainer.DrainReports()[0]
	require.Equal(t, 9.0, report.BestFitness)
	require.Equal(t, 1.0, report.MinFitness)
	require.InDelta(t, 34.0/6.0, report.MeanFitness, 1e-12)
	require.Greater(t, report.StdDevFitness, 0.0)
}

func TestEvolveClampsTopAgentCount(t *testing.T) {
	e := &fakeEnv{results: results([]float32{1, 2, 3}, false)}
	trainer := newTrainer(t, e, func(hp *Hyperparameters) { hp.TopAgentCount = 10 })
	step(t, trainer)
	before := map[*nn.Network]bool{}
	for _, a := range trainer.Agents() {
		before[a.Network] = true
	}

	require.NoError(t, trainer.Evolve())

	require.Len(t, trainer.Agents(), 3)
	for _, a := range trainer.Agents() {
		require.True(t, before[a.Network])
	}
	require.Equal(t, 3.0, trainer.Agents()[0].Fitness)
	require.Equal(t, 3, trainer.DrainReports()[0].TopAgentCount)
}

func TestEvolveFailsForFunctionOutsideCatalog(t *testing.T) {
	e := &fakeEnv{results: results([]float32{1, 2, 3}, false)}
	trainer := newTrainer(t, e, func(hp *Hyperparameters) {
		hp.TopAgentCount = 1
		hp.NewLayerFunction = nn.ReLU.String()
	})
	step(t, trainer)
	before := make([]*nn.Network, 0, 3)
	for _, a := range trainer.Agents() {
		before = append(before, a.Network)
	}

	err := trainer.Evolve()
	require.ErrorIs(t, err, nn.ErrUnknownActivation)
	require.Equal(t, 0, trainer.Generation())
	for i, a := range trainer.Agents() {
		require.Same(t, before[i], a.Network)
	}

	hp := trainer.Hyperparameters()
	hp.NewLayerFunction = nn.Tanh.String()
	require.NoError(t, trainer.SetHyperparameters(hp))
	require.NoError(t, trainer.Evolve())
	require.Equal(t, 1, trainer.Generation())
}

func TestEvolveResetFitness(t *testing.T) {
	tests := []struct {
		name  string
		reset bool
		want  float64
	}{
		{name: "lifetime", reset: false, want: 4},
		{name: "per-generation", reset: true, want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := &fakeEnv{results: results([]float32{4, 2}, false)}
			trainer := newTrainer(t, e, func(hp *Hyperparameters) {
				hp.TopAgentCount = 1
				hp.ResetFitness = tc.reset
			})
			step(t, trainer)
			require.NoError(t, trainer.Evolve())
			require.Equal(t, tc.want, trainer.Agents()[0].Fitness)
		})
	}
}

func TestEvolveUsesStableOrderForTies(t *testing.T) {
	e := &fakeEnv{results: results([]float32{2, 2, 2}, false)}
	trainer := newTrainer(t, e, func(hp *Hyperparameters) { hp.TopAgentCount = 3 })
	step(t, trainer)
	order := make([]*nn.Network, 0, 3)
	for _, a := range trainer.Agents() {
		order = append(order, a.Network)
	}

	require.NoError(t, trainer.Evolve())
	for i, a := range trainer.Agents() {
		require.Same(t, order[i], a.Network)
	}
}

func TestGeneticTrainerRejectsNegativeID(t *testing.T) {
	e := &fakeEnv{results: []env.StepResult{{Observation: env.Vector{}, ID: -1}}}
	trainer := newTrainer(t, e, nil)
	trainer.Observe()
	require.ErrorIs(t, trainer.Update(), ErrInvalidAgentID)
}

func TestNewGeneticTrainerValidatesConfig(t *testing.T) {
	_, err := NewGeneticTrainer(GeneticConfig{Rand: rand.New(rand.NewSource(1)), Master: seedNetwork(t)})
	require.Error(t, err)

	hp := DefaultHyperparameters()
	hp.TopAgentCount = 0
	_, err = NewGeneticTrainer(GeneticConfig{
		Env:             &fakeEnv{},
		Rand:            rand.New(rand.NewSource(1)),
		Master:          seedNetwork(t),
		Hyperparameters: hp,
	})
	require.ErrorIs(t, err, ErrInvalidHyperparameters)
}

func TestStaticTrainerEvaluatesOneNetwork(t *testing.T) {
	net := seedNetwork(t)
	e := &fakeEnv{results: results([]float32{1, 0.5}, true)}
	e.results[0].Terminated = true
	trainer, err := NewStaticTrainer(e, net, "champion")
	require.NoError(t, err)

	step(t, trainer)

	actions := e.taken[0]
	require.True(t, actions[0].(recordedAction).idle)
	require.Equal(t, net.Evaluate([]float64{1, 1}), actions[1].(recordedAction).outputs)
	require.Equal(t, 1.5, trainer.TotalReward())
	require.Same(t, net, trainer.Network())
}

func TestTrainerWithoutObservationDoesNothing(t *testing.T) {
	e := &fakeEnv{}
	trainer := newTrainer(t, e, nil)

	require.NoError(t, trainer.Update())
	require.NoError(t, trainer.Act())
	require.Empty(t, e.taken)
}

func TestScriptedTrainerAppliesPolicy(t *testing.T) {
	e := &fakeEnv{results: results([]float32{-1, 2, 0}, false)}
	e.results[1].Terminated = true
	var seen []float64
	policy := func(obs env.Observation) []float64 {
		seen = append(seen, obs.ForNN()[0])
		return []float64{0, obs.ForNN()[0]}
	}
	trainer, err := NewScriptedTrainer(e, policy, "seeker")
	require.NoError(t, err)
	require.Equal(t, "seeker", trainer.Name())

	step(t, trainer)

	actions := e.taken[0]
	require.Len(t, actions, 3)
	require.Equal(t, []float64{0, 0}, actions[0].(recordedAction).outputs)
	require.True(t, actions[1].(recordedAction).idle)
	require.Equal(t, []float64{0, 2}, actions[2].(recordedAction).outputs)
	require.Equal(t, []float64{0, 2}, seen)
	require.Equal(t, 1.0, trainer.TotalReward())

	_, err = NewScriptedTrainer(e, nil, "none")
	require.Error(t, err)
	_, err = NewScriptedTrainer(nil, policy, "none")
	require.Error(t, err)
}
