package model

import (
	"encoding/json"
	"time"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Run describes one training session.
type Run struct {
	VersionedRecord
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Seed       int64     `json:"seed"`
	Ticks      int       `json:"ticks"`
	Trainers   []string  `json:"trainers"`
	TeamSize   int       `json:"team_size"`
	// Hyperparameters holds the trainer settings as JSON.
	Hyperparameters json.RawMessage `json:"hyperparameters,omitempty"`
}

// Generation is one evolve step of one trainer within a run.
type Generation struct {
	VersionedRecord
	RunID            string    `json:"run_id"`
	Trainer          int       `json:"trainer"`
	TrainerName      string    `json:"trainer_name"`
	Generation       int       `json:"generation"`
	Population       int       `json:"population"`
	BestFitness      float64   `json:"best_fitness"`
	MeanFitness      float64   `json:"mean_fitness"`
	MinFitness       float64   `json:"min_fitness"`
	StdDevFitness    float64   `json:"stddev_fitness"`
	ChampionLayers   []int     `json:"champion_layers"`
	ChampionSynapses int       `json:"champion_synapses"`
	RecordedAt       time.Time `json:"recorded_at"`
	// Champion is the champion network in the binary model codec. It is
	// stored next to the JSON payload, not inside it.
	Champion []byte `json:"-"`
}
