package config

import (
	"fmt"

	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/custom-self-adapter/quality-adapter/internal/engines/limiter"
	"github.com/custom-self-adapter/quality-adapter/internal/engines/tier"
)

// Defaults applied before any file, environment or flag is read.
const (
	DefaultConfigFile      = "/config.yaml"
	DefaultMinReplicas     = 1
	DefaultMaxReplicas     = 10
	DefaultContainerName   = "znn"
	DefaultCPUStep         = 0.2
	DefaultCPURequestFloor = "50m"
	DefaultCPULimitFloor   = "100m"
)

// AdapterConfig is the configuration shared by the adapter hooks.
type AdapterConfig struct {
	// Workload is the namespace/name an override entry applies to. It is only
	// used in ConfigMap override entries.
	Workload string `yaml:"workload,omitempty" json:"workload,omitempty" mapstructure:"workload"`

	// MinReplicas is a pointer so that overrides can set it to zero.
	MinReplicas *int32 `yaml:"minReplicas,omitempty" json:"minReplicas,omitempty" mapstructure:"minReplicas"`
	MaxReplicas int32  `yaml:"maxReplicas,omitempty" json:"maxReplicas,omitempty" mapstructure:"maxReplicas"`

	// Tiers lists the quality tiers from lowest to highest.
	Tiers []string `yaml:"tiers,omitempty" json:"tiers,omitempty" mapstructure:"tiers"`

	// ContainerName is the adapted container of the pod template.
	ContainerName string `yaml:"containerName,omitempty" json:"containerName,omitempty" mapstructure:"containerName"`

	// CPUStep is the default fraction applied by adapt_cpu when the
	// evaluation does not carry one.
	CPUStep float64 `yaml:"cpuStep,omitempty" json:"cpuStep,omitempty" mapstructure:"cpuStep"`

	CPURequestFloor string `yaml:"cpuRequestFloor,omitempty" json:"cpuRequestFloor,omitempty" mapstructure:"cpuRequestFloor"`
	CPULimitFloor   string `yaml:"cpuLimitFloor,omitempty" json:"cpuLimitFloor,omitempty" mapstructure:"cpuLimitFloor"`

	// PushgatewayURL enables pushing adaptation metrics at exit.
	PushgatewayURL string `yaml:"pushgatewayURL,omitempty" json:"pushgatewayURL,omitempty" mapstructure:"pushgatewayURL"`

	// ReadStatusProjection reads baselines from the CustomSelfAdapter status
	// before falling back to the pod annotation.
	ReadStatusProjection bool `yaml:"readStatusProjection,omitempty" json:"readStatusProjection,omitempty" mapstructure:"readStatusProjection"`
}

// Default returns the built-in configuration.
func Default() *AdapterConfig {
	minReplicas := int32(DefaultMinReplicas)
	return &AdapterConfig{
		MinReplicas:     &minReplicas,
		MaxReplicas:     DefaultMaxReplicas,
		Tiers:           append([]string(nil), tier.DefaultTiers...),
		ContainerName:   DefaultContainerName,
		CPUStep:         DefaultCPUStep,
		CPURequestFloor: DefaultCPURequestFloor,
		CPULimitFloor:   DefaultCPULimitFloor,
	}
}

// Validate checks for invalid configuration values.
func (c *AdapterConfig) Validate() error {
	if err := c.LimiterConfig().Validate(); err != nil {
		return err
	}
	if err := tier.Tiers(c.Tiers).Validate(); err != nil {
		return fmt.Errorf("invalid tiers: %w", err)
	}
	if c.ContainerName == "" {
		return fmt.Errorf("containerName must not be empty")
	}
	if c.CPUStep <= 0 || c.CPUStep >= 1 {
		return fmt.Errorf("cpuStep must be between 0 and 1 (exclusive), got %.2f", c.CPUStep)
	}
	if _, err := resource.ParseQuantity(c.CPURequestFloor); err != nil {
		return fmt.Errorf("invalid cpuRequestFloor %q: %w", c.CPURequestFloor, err)
	}
	if _, err := resource.ParseQuantity(c.CPULimitFloor); err != nil {
		return fmt.Errorf("invalid cpuLimitFloor %q: %w", c.CPULimitFloor, err)
	}
	return nil
}

// LimiterConfig returns the replica range of the configuration.
func (c *AdapterConfig) LimiterConfig() limiter.LimiterConfig {
	var minReplicas int32
	if c.MinReplicas != nil {
		minReplicas = *c.MinReplicas
	}
	return limiter.LimiterConfig{MinReplicas: minReplicas, MaxReplicas: c.MaxReplicas}
}

// TierList returns the configured tiers.
func (c *AdapterConfig) TierList() tier.Tiers {
	return tier.Tiers(c.Tiers)
}

// CPUFloors returns the parsed request and limit floors. Validate must have
// succeeded.
func (c *AdapterConfig) CPUFloors() (request, limit resource.Quantity) {
	return resource.MustParse(c.CPURequestFloor), resource.MustParse(c.CPULimitFloor)
}

// Merge returns base with every field set in override applied on top.
func Merge(base, override AdapterConfig) AdapterConfig {
	result := base
	if override.Workload != "" {
		result.Workload = override.Workload
	}
	if override.MinReplicas != nil {
		result.MinReplicas = override.MinReplicas
	}
	if override.MaxReplicas != 0 {
		result.MaxReplicas = override.MaxReplicas
	}
	if len(override.Tiers) > 0 {
		result.Tiers = override.Tiers
	}
	if override.ContainerName != "" {
		result.ContainerName = override.ContainerName
	}
	if override.CPUStep != 0 {
		result.CPUStep = override.CPUStep
	}
	if override.CPURequestFloor != "" {
		result.CPURequestFloor = override.CPURequestFloor
	}
	if override.CPULimitFloor != "" {
		result.CPULimitFloor = override.CPULimitFloor
	}
	if override.PushgatewayURL != "" {
		result.PushgatewayURL = override.PushgatewayURL
	}
	if override.ReadStatusProjection {
		result.ReadStatusProjection = true
	}
	return result
}
