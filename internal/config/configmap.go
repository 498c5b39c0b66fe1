package config

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/custom-self-adapter/quality-adapter/internal/logging"
)

// GlobalDefaultsKey is the ConfigMap key holding settings for every workload.
const GlobalDefaultsKey = "default"

// AdapterConfigData holds parsed ConfigMap entries keyed by workload
// (namespace/name), plus GlobalDefaultsKey.
type AdapterConfigData map[string]AdapterConfig

// ParseConfigMapData parses adapter configuration from a ConfigMap's data.
// The ConfigMap format:
//   - "default": settings applied to every workload
//   - "<override-name>": settings for the workload named by its workload field
//
// Entries that fail to parse, or lack a workload field, are skipped.
func ParseConfigMapData(data map[string]string) AdapterConfigData {
	out := make(AdapterConfigData)
	if data == nil {
		return out
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		var entry AdapterConfig
		if err := yaml.Unmarshal([]byte(data[key]), &entry); err != nil {
			ctrl.Log.Info("Failed to parse adapter config entry, skipping",
				"key", key,
				"error", err)
			continue
		}

		if key == GlobalDefaultsKey {
			out[GlobalDefaultsKey] = entry
			continue
		}

		if entry.Workload == "" || !strings.Contains(entry.Workload, "/") {
			ctrl.Log.Info("Skipping adapter config entry without namespace/name workload field",
				"key", key)
			continue
		}
		if _, exists := out[entry.Workload]; exists {
			ctrl.Log.Info("Duplicate workload found in adapter ConfigMap - first key wins",
				"workload", entry.Workload,
				"duplicateKey", key)
			continue
		}
		out[entry.Workload] = entry
	}

	ctrl.Log.V(logging.DEBUG).Info("Parsed adapter config map",
		"entryCount", len(out))
	return out
}

// ForWorkload layers the ConfigMap defaults and the workload's own entry on
// top of base, and validates the result.
func (data AdapterConfigData) ForWorkload(base *AdapterConfig, workload types.NamespacedName) (*AdapterConfig, error) {
	merged := *base
	if defaults, ok := data[GlobalDefaultsKey]; ok {
		merged = Merge(merged, defaults)
	}
	if entry, ok := data[workload.String()]; ok {
		merged = Merge(merged, entry)
	}
	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", workload, err)
	}
	return &merged, nil
}

// ReadConfigMap fetches and parses the named ConfigMap.
func ReadConfigMap(ctx context.Context, c client.Reader, key types.NamespacedName) (AdapterConfigData, error) {
	cm := &corev1.ConfigMap{}
	if err := c.Get(ctx, key, cm); err != nil {
		return nil, fmt.Errorf("failed to get config map %s: %w", key, err)
	}
	return ParseConfigMapData(cm.Data), nil
}

// ParseObjectKey parses "namespace/name".
func ParseObjectKey(s string) (types.NamespacedName, error) {
	ns, name, ok := strings.Cut(s, "/")
	if !ok || ns == "" || name == "" || strings.Contains(name, "/") {
		return types.NamespacedName{}, fmt.Errorf("expected namespace/name, got %q", s)
	}
	return types.NamespacedName{Namespace: ns, Name: name}, nil
}
