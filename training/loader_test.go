package training

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestLoadRunConfigDefaults(t *testing.T) {
	cfg, err := LoadRunConfig("", nil)
	require.NoError(t, err)

	require.Equal(t, "./runs", cfg.SaveDir)
	require.Equal(t, 1e-3, cfg.LR)
	require.Equal(t, 10, cfg.MaxEpoch)
	require.True(t, cfg.MetricMinBetter)
	require.Equal(t, 1000, cfg.Warmup)
	require.Equal(t, 3, cfg.Patience)
	require.Equal(t, -1, cfg.SaveTopK)
}

func TestLoadRunConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.yaml")
	yaml := "save_dir: /tmp/exp\nlr: 0.05\nmax_epoch: 20\nwarmup: 0\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := LoadRunConfig(path, nil)
	require.NoError(t, err)

	require.Equal(t, "/tmp/exp", cfg.SaveDir)
	require.Equal(t, 0.05, cfg.LR)
	require.Equal(t, 20, cfg.MaxEpoch)
	require.Equal(t, 0, cfg.Warmup)
	// Untouched keys keep their defaults.
	require.Equal(t, 3, cfg.Patience)
}

func TestLoadRunConfigEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_epoch: 20\n"), 0644))

	t.Setenv("FORGE_MAX_EPOCH", "30")
	t.Setenv("FORGE_PATIENCE", "5")

	cfg, err := LoadRunConfig(path, nil)
	require.NoError(t, err)
	require.Equal(t, 30, cfg.MaxEpoch)
	require.Equal(t, 5, cfg.Patience)
}

func TestLoadRunConfigFlagsWinOverEnv(t *testing.T) {
	t.Setenv("FORGE_MAX_EPOCH", "30")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("max-epoch", 10, "")
	flags.Float64("lr", 1e-3, "")
	require.NoError(t, flags.Parse([]string{"--max-epoch=50"}))

	cfg, err := LoadRunConfig("", flags)
	require.NoError(t, err)
	require.Equal(t, 50, cfg.MaxEpoch)
	// lr was not passed, so the flag's default must not shadow the
	// layered value.
	require.Equal(t, 1e-3, cfg.LR)
}

func TestLoadRunConfigMissingFile(t *testing.T) {
	_, err := LoadRunConfig(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
}

func TestLoadRunConfigValidates(t *testing.T) {
	t.Setenv("FORGE_LR", "-1")
	_, err := LoadRunConfig("", nil)
	require.Error(t, err)
}
