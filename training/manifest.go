package training

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/tsawler/go-forge/distributed"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// RunManifestName is the run-configuration manifest written once at run
// start into the version directory.
const RunManifestName = "train_config.json"

// WriteRunManifest records the resolved run configuration, a fresh run id
// and the group shape. The payload goes through structpb, which also
// validates that the open extension map holds only JSON-representable
// values, then protojson for stable output.
func WriteRunManifest(dir string, cfg RunConfig, ctx distributed.Context) error {
	payload := map[string]any{
		"run_id":            uuid.NewString(),
		"created_at":        time.Now().UTC().Format(time.RFC3339),
		"world_size":        ctx.WorldSize,
		"save_dir":          cfg.SaveDir,
		"lr":                cfg.LR,
		"max_epoch":         cfg.MaxEpoch,
		"metric_min_better": cfg.MetricMinBetter,
		"warmup":            cfg.Warmup,
		"patience":          cfg.Patience,
		"save_topk":         cfg.SaveTopK,
	}
	if cfg.GradClip != nil {
		payload["grad_clip"] = *cfg.GradClip
	}
	if len(cfg.Extra) > 0 {
		payload["extra"] = cfg.Extra
	}

	s, err := structpb.NewStruct(payload)
	if err != nil {
		return fmt.Errorf("run config is not manifest-representable: %v", err)
	}
	data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode run manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, RunManifestName), data, 0644); err != nil {
		return fmt.Errorf("failed to write run manifest: %v", err)
	}
	return nil
}
