package storage

import (
	"encoding/json"
	"errors"

	"neuralwarfare/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion is the VersionedRecord new records should carry.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(r model.Run) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.Run, error) {
	var run model.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return model.Run{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.Run{}, err
	}
	return run, nil
}

// EncodeGeneration encodes everything except the champion blob.
func EncodeGeneration(g model.Generation) ([]byte, error) {
	return json.Marshal(g)
}

func DecodeGeneration(data []byte) (model.Generation, error) {
	var generation model.Generation
	if err := json.Unmarshal(data, &generation); err != nil {
		return model.Generation{}, err
	}
	if err := checkVersion(generation.VersionedRecord); err != nil {
		return model.Generation{}, err
	}
	return generation, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
