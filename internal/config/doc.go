// Package config loads the adapter configuration.
//
// Settings come, in increasing precedence, from built-in defaults, the YAML
// configuration file, CSA_* environment variables and command line flags. An
// optional ConfigMap may then layer cluster-wide defaults and per-workload
// overrides on top.
package config
