package evo

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"

	"neuralwarfare/internal/env"
	"neuralwarfare/internal/nn"
)

var (
	ErrNoAgents       = errors.New("trainer has no agents")
	ErrInvalidAgentID = errors.New("invalid agent id")
)

// Agent pairs a network with the fitness it has accumulated.
type Agent struct {
	Network *nn.Network
	Fitness float64
}

// SetNetwork replaces the agent's network and releases the old one.
func (a *Agent) SetNetwork(net *nn.Network) {
	if a.Network != nil && a.Network != net {
		a.Network.Delete()
	}
	a.Network = net
}

// stepper holds the per-tick exchange with the environment shared by every
// trainer. Observe and Act run outside the update window; Update only reads
// results and writes actions.
type stepper struct {
	env     env.Environment
	results []env.StepResult
	actions []env.Action
}

// Observe snapshots the environment's latest step results.
func (s *stepper) Observe() {
	s.results = s.env.Results()
}

// Act hands the actions prepared by the last Update to the environment.
func (s *stepper) Act() error {
	if s.actions == nil {
		return nil
	}
	actions := s.actions
	s.actions = nil
	return s.env.TakeActions(actions)
}

func (s *stepper) decide(sr env.StepResult, net *nn.Network) env.Action {
	if sr.Terminated {
		return s.env.Idle(sr.ID)
	}
	return s.env.Decide(sr.ID, net.Evaluate(sr.Observation.ForNN()))
}

type GeneticConfig struct {
	Env             env.Environment
	Rand            *rand.Rand
	Hyperparameters Hyperparameters
	// Master seeds the population. It becomes the first agent's network.
	Master *nn.Network
	Logger *slog.Logger
	Name   string
}

// GeneticTrainer evolves a population of networks against one Environment.
// None of its methods are safe for concurrent use; the platform loop calls
// Update from a single task and everything else after joining it.
type GeneticTrainer struct {
	stepper
	name   string
	hp     Hyperparameters
	rng    *rand.Rand
	logger *slog.Logger

	master     *nn.Network
	agents     []*Agent
	generation int
	reports    []GenerationReport

	newLayerFunction nn.Activation
	resolved         bool
}

func NewGeneticTrainer(cfg GeneticConfig) (*GeneticTrainer, error) {
	if cfg.Env == nil {
		return nil, fmt.Errorf("environment is required")
	}
	if cfg.Rand == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if cfg.Master == nil {
		return nil, fmt.Errorf("master network is required")
	}
	if err := cfg.Hyperparameters.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Name != "" {
		logger = logger.With("trainer", cfg.Name)
	}
	return &GeneticTrainer{
		stepper: stepper{env: cfg.Env},
		name:    cfg.Name,
		hp:      cfg.Hyperparameters,
		rng:     cfg.Rand,
		logger:  logger,
		master:  cfg.Master,
		agents:  []*Agent{{Network: cfg.Master}},
	}, nil
}

func (t *GeneticTrainer) Name() string { return t.name }

// Master returns the current champion. It aliases an agent's network.
func (t *GeneticTrainer) Master() *nn.Network { return t.master }

// Agents returns the population in its current order.
func (t *GeneticTrainer) Agents() []*Agent { return t.agents }

// Generation is the number of completed Evolve calls.
func (t *GeneticTrainer) Generation() int { return t.generation }

func (t *GeneticTrainer) Hyperparameters() Hyperparameters { return t.hp }

// SetHyperparameters swaps the settings used by later generations.
func (t *GeneticTrainer) SetHyperparameters(hp Hyperparameters) error {
	if err := hp.Validate(); err != nil {
		return err
	}
	t.hp = hp
	t.resolved = false
	return nil
}

// DrainReports returns and forgets the reports of generations evolved since
// the previous call.
func (t *GeneticTrainer) DrainReports() []GenerationReport {
	reports := t.reports
	t.reports = nil
	return reports
}

func (t *GeneticTrainer) ensureAgent(id int) error {
	if id < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAgentID, id)
	}
	for len(t.agents) <= id {
		t.agents = append(t.agents, &Agent{Network: t.master.Copy()})
	}
	return nil
}

// Update credits rewards, evolves when every agent reports truncation and
// prepares one action per step result.
func (t *GeneticTrainer) Update() error {
	results := t.results
	t.results = nil
	if results == nil {
		return nil
	}
	for _, sr := range results {
		if err := t.ensureAgent(sr.ID); err != nil {
			return err
		}
	}

	allTruncated := len(results) > 0
	for _, sr := range results {
		t.agents[sr.ID].Fitness += float64(sr.Reward)
		if !sr.Truncated {
			allTruncated = false
		}
	}
	if allTruncated {
		if err := t.Evolve(); err != nil {
			return err
		}
	}

	actions := make([]env.Action, 0, len(results))
	for _, sr := range results {
		actions = append(actions, t.decide(sr, t.agents[sr.ID].Network))
	}
	t.actions = actions
	return nil
}

func (t *GeneticTrainer) resolveNewLayerFunction() (nn.Activation, error) {
	if t.resolved {
		return t.newLayerFunction, nil
	}
	fn, err := t.master.Catalog().Lookup(t.hp.NewLayerFunction)
	if err != nil {
		return 0, fmt.Errorf("resolve new layer function: %w", err)
	}
	t.newLayerFunction = fn
	t.resolved = true
	return fn, nil
}

// Evolve ranks the population by fitness, keeps the top agents unchanged and
// replaces every other network with a mutated copy of an elite, pairing them
// round-robin.
func (t *GeneticTrainer) Evolve() error {
	fn, err := t.resolveNewLayerFunction()
	if err != nil {
		return err
	}
	population := len(t.agents)
	if population == 0 {
		return ErrNoAgents
	}
	top := t.hp.TopAgentCount
	if top > population {
		t.logger.Warn("top agent count exceeds population, clamping",
			"top_agent_count", top,
			"population", population,
		)
		top = population
	}

	sort.SliceStable(t.agents, func(i, j int) bool {
		return t.agents[i].Fitness > t.agents[j].Fitness
	})
	report := summarise(t.generation+1, top, t.agents)
	t.master = t.agents[0].Network

	for i := top; i < population; i++ {
		elite := t.agents[(i-top)%top]
		child := elite.Network.Copy()
		if err := Mutate(child, t.rng, t.hp, fn); err != nil {
			return fmt.Errorf("mutate agent %d: %w", i, err)
		}
		t.agents[i].SetNetwork(child)
	}
	if t.hp.ResetFitness {
		for _, a := range t.agents {
			a.Fitness = 0
		}
	}

	t.generation++
	t.reports = append(t.reports, report)
	t.logger.Info("generation evolved",
		"generation", report.Generation,
		"population", report.Population,
		"best_fitness", report.BestFitness,
		"mean_fitness", report.MeanFitness,
		"champion_layers", report.ChampionLayers,
		"champion_synapses", report.ChampionSynapses,
	)
	return nil
}

// StaticTrainer drives every agent with one fixed network. It never evolves.
type StaticTrainer struct {
	stepper
	name    string
	network *nn.Network
	reward  float64
}

func NewStaticTrainer(environment env.Environment, network *nn.Network, name string) (*StaticTrainer, error) {
	if environment == nil {
		return nil, fmt.Errorf("environment is required")
	}
	if network == nil {
		return nil, fmt.Errorf("network is required")
	}
	return &StaticTrainer{stepper: stepper{env: environment}, name: name, network: network}, nil
}

func (t *StaticTrainer) Name() string { return t.name }

func (t *StaticTrainer) Network() *nn.Network { return t.network }

// TotalReward sums the rewards reported to this trainer.
func (t *StaticTrainer) TotalReward() float64 { return t.reward }

func (t *StaticTrainer) Update() error {
	results := t.results
	t.results = nil
	if results == nil {
		return nil
	}
	actions := make([]env.Action, 0, len(results))
	for _, sr := range results {
		t.reward += float64(sr.Reward)
		actions = append(actions, t.decide(sr, t.network))
	}
	t.actions = actions
	return nil
}

// Policy maps an observation to outputs for Environment.Decide.
type Policy func(env.Observation) []float64

// ScriptedTrainer drives every agent with a hand-written policy. It serves as
// a fixed baseline opponent.
type ScriptedTrainer struct {
	stepper
	name   string
	policy Policy
	reward float64
}

func NewScriptedTrainer(environment env.Environment, policy Policy, name string) (*ScriptedTrainer, error) {
	if environment == nil {
		return nil, fmt.Errorf("environment is required")
	}
	if policy == nil {
		return nil, fmt.Errorf("policy is required")
	}
	return &ScriptedTrainer{stepper: stepper{env: environment}, name: name, policy: policy}, nil
}

func (t *ScriptedTrainer) Name() string { return t.name }

// TotalReward sums the rewards reported to this trainer.
func (t *ScriptedTrainer) TotalReward() float64 { return t.reward }

func (t *ScriptedTrainer) Update() error {
	results := t.results
	t.results = nil
	if results == nil {
		return nil
	}
	actions := make([]env.Action, 0, len(results))
	for _, sr := range results {
		t.reward += float64(sr.Reward)
		if sr.Terminated {
			actions = append(actions, t.env.Idle(sr.ID))
			continue
		}
		actions = append(actions, t.env.Decide(sr.ID, t.policy(sr.Observation)))
	}
	t.actions = actions
	return nil
}
