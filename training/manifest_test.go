package training

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/tsawler/go-forge/distributed"
)

func TestWriteRunManifest(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultRunConfig("./runs", 0.01, 5)
	cfg.Extra = map[string]any{"dataset": "synthetic", "batch_size": 32.0}

	ctx := distributed.NewContext(0, 4)

	if err := WriteRunManifest(dir, cfg, ctx); err != nil {
		t.Fatalf("write manifest failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, RunManifestName))
	if err != nil {
		t.Fatalf("manifest not written: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("manifest is not valid JSON: %v", err)
	}

	if id, ok := got["run_id"].(string); !ok || id == "" {
		t.Error("expected non-empty run_id")
	}
	if got["world_size"].(float64) != 4 {
		t.Errorf("expected world_size 4, got %v", got["world_size"])
	}
	if got["lr"].(float64) != 0.01 {
		t.Errorf("expected lr 0.01, got %v", got["lr"])
	}
	if got["max_epoch"].(float64) != 5 {
		t.Errorf("expected max_epoch 5, got %v", got["max_epoch"])
	}
	if got["metric_min_better"].(bool) != true {
		t.Error("expected metric_min_better true")
	}
	if _, present := got["grad_clip"]; present {
		t.Error("grad_clip should be omitted when unset")
	}

	extra, ok := got["extra"].(map[string]any)
	if !ok {
		t.Fatal("expected extra map in manifest")
	}
	if extra["dataset"] != "synthetic" {
		t.Errorf("expected dataset synthetic, got %v", extra["dataset"])
	}
}

func TestWriteRunManifestGradClip(t *testing.T) {
	dir := t.TempDir()
	clip := 1.0
	cfg := DefaultRunConfig("./runs", 0.01, 5)
	cfg.GradClip = &clip

	ctx := distributed.NewContext(0, 1)
	if err := WriteRunManifest(dir, cfg, ctx); err != nil {
		t.Fatalf("write manifest failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, RunManifestName))
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["grad_clip"].(float64) != 1.0 {
		t.Errorf("expected grad_clip 1.0, got %v", got["grad_clip"])
	}
}
