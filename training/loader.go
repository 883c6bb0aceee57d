package training

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// envPrefix namespaces the environment variables the loader reads:
// FORGE_MAX_EPOCH becomes max_epoch, and so on.
const envPrefix = "FORGE_"

// LoadRunConfig assembles a RunConfig from layered sources, highest
// precedence last: built-in defaults, then the YAML config file (skipped
// when cfgFile is empty), then FORGE_-prefixed environment variables, then
// explicitly set flags. The result is validated before it is returned.
func LoadRunConfig(cfgFile string, flags *pflag.FlagSet) (RunConfig, error) {
	k := koanf.New(".")

	defaults := DefaultRunConfig("./runs", 1e-3, 10)
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"save_dir":          defaults.SaveDir,
		"lr":                defaults.LR,
		"max_epoch":         defaults.MaxEpoch,
		"metric_min_better": defaults.MetricMinBetter,
		"warmup":            defaults.Warmup,
		"patience":          defaults.Patience,
		"save_topk":         defaults.SaveTopK,
	}, "."), nil); err != nil {
		return RunConfig{}, fmt.Errorf("failed to load defaults: %w", err)
	}

	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return RunConfig{}, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return RunConfig{}, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return RunConfig{}, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg RunConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return RunConfig{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}
