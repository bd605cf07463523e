package evo

import (
	"slices"

	"gonum.org/v1/gonum/stat"

	"neuralwarfare/internal/nn"
)

// GenerationReport summarises the population at the moment Evolve ranked
// it, before any offspring were mutated.
type GenerationReport struct {
	Generation       int     `json:"generation"`
	Population       int     `json:"population"`
	TopAgentCount    int     `json:"top_agent_count"`
	BestFitness      float64 `json:"best_fitness"`
	MeanFitness      float64 `json:"mean_fitness"`
	MinFitness       float64 `json:"min_fitness"`
	StdDevFitness    float64 `json:"stddev_fitness"`
	ChampionLayers   []int   `json:"champion_layers"`
	ChampionSynapses int     `json:"champion_synapses"`
}

// summarise expects agents sorted by descending fitness.
func summarise(generation, top int, agents []*Agent) GenerationReport {
	report := GenerationReport{
		Generation:    generation,
		Population:    len(agents),
		TopAgentCount: top,
	}
	if len(agents) == 0 {
		return report
	}
	fitness := make([]float64, len(agents))
	for i, a := range agents {
		fitness[i] = a.Fitness
	}
	report.BestFitness = fitness[0]
	report.MinFitness = slices.Min(fitness)
	if len(fitness) > 1 {
		report.MeanFitness, report.StdDevFitness = stat.MeanStdDev(fitness, nil)
	} else {
		report.MeanFitness = fitness[0]
	}
	champion := agents[0].Network
	report.ChampionLayers = layerSizes(champion)
	report.ChampionSynapses = champion.SynapseCount()
	return report
}

func layerSizes(net *nn.Network) []int {
	sizes := make([]int, net.Len())
	for i := range sizes {
		sizes[i] = net.LayerSize(i)
	}
	return sizes
}
