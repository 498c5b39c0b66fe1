package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. CSA_MAXREPLICAS.
const EnvPrefix = "CSA"

// flag name -> config key
var flagKeys = map[string]string{
	"min-replicas":           "minReplicas",
	"max-replicas":           "maxReplicas",
	"tiers":                  "tiers",
	"container-name":         "containerName",
	"cpu-step":               "cpuStep",
	"pushgateway-url":        "pushgatewayURL",
	"read-status-projection": "readStatusProjection",
}

// AddFlags registers the configuration flags on fs.
func AddFlags(fs *pflag.FlagSet) {
	fs.String("config", DefaultConfigFile, "path to the adapter configuration file")
	fs.String("config-map", "", "namespace/name of a ConfigMap holding adapter configuration")
	fs.Int32("min-replicas", DefaultMinReplicas, "minimum number of replicas")
	fs.Int32("max-replicas", DefaultMaxReplicas, "maximum number of replicas")
	fs.StringSlice("tiers", nil, "quality tiers from lowest to highest")
	fs.String("container-name", DefaultContainerName, "name of the adapted container")
	fs.Float64("cpu-step", DefaultCPUStep, "fraction by which adapt_cpu moves the CPU limit")
	fs.String("pushgateway-url", "", "Prometheus Pushgateway URL for adaptation metrics")
	fs.Bool("read-status-projection", false, "read baselines from the CustomSelfAdapter status first")
}

// NewViper returns a viper instance seeded with defaults, environment
// overrides and the flags registered by AddFlags.
func NewViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	d := Default()
	v.SetDefault("minReplicas", *d.MinReplicas)
	v.SetDefault("maxReplicas", d.MaxReplicas)
	v.SetDefault("tiers", d.Tiers)
	v.SetDefault("containerName", d.ContainerName)
	v.SetDefault("cpuStep", d.CPUStep)
	v.SetDefault("cpuRequestFloor", d.CPURequestFloor)
	v.SetDefault("cpuLimitFloor", d.CPULimitFloor)
	v.SetDefault("pushgatewayURL", "")
	v.SetDefault("readStatusProjection", false)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
		if f := fs.Lookup("config"); f != nil {
			if err := v.BindPFlag("config", f); err != nil {
				return nil, fmt.Errorf("failed to bind flag config: %w", err)
			}
		}
	}
	return v, nil
}

// Load reads the configuration file named by the "config" key, when it
// exists, and returns the validated result. A missing file is not an error:
// defaults, environment and flags still apply.
func Load(v *viper.Viper) (*AdapterConfig, error) {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &AdapterConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound)
}
