// Package checkpoints persists model snapshots and maintains the top-K
// retention set with its on-disk manifest. The blob format here is plain
// JSON keyed by parameter name; trainers that need a different format
// inject their own save function and only use the retention manager.
package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Snapshot is a complete serialized model state plus training progress.
type Snapshot struct {
	State map[string][]float64 `json:"state"`
	Epoch int                  `json:"epoch"`
	Step  int                  `json:"step"`

	Metadata Metadata `json:"metadata"`
}

// Metadata carries provenance for a snapshot file.
type Metadata struct {
	Framework   string    `json:"framework"`
	Version     string    `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
}

// StateExporter is implemented by models that can hand over their full
// parameter state as named float64 slices. The slices are copied before
// serialization, so the model may keep mutating them afterwards.
type StateExporter interface {
	StateMap() map[string][]float64
}

// Save writes a snapshot of the exporter's state to path.
func Save(path string, exporter StateExporter, epoch, step int) error {
	state := make(map[string][]float64)
	for name, values := range exporter.StateMap() {
		cp := make([]float64, len(values))
		copy(cp, values)
		state[name] = cp
	}

	snap := Snapshot{
		State: state,
		Epoch: epoch,
		Step:  step,
		Metadata: Metadata{
			Framework: "go-forge",
			Version:   "1.0.0",
			CreatedAt: time.Now(),
		},
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file: %v", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&snap); err != nil {
		return fmt.Errorf("failed to encode checkpoint: %v", err)
	}
	return nil
}

// Load reads a snapshot back from path.
func Load(path string) (*Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %v", err)
	}
	defer file.Close()

	var snap Snapshot
	if err := json.NewDecoder(file).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %v", err)
	}
	return &snap, nil
}
