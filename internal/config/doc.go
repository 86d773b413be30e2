// Package config provides the gatekeeper configuration model.
//
// Configuration is YAML with ${VAR} and ${VAR:-default} environment
// substitution. It is loaded once at startup, defaulted, and validated:
//
//	cfg, err := config.LoadConfig("gatekeeper.yaml")
//	if err != nil {
//	    return err
//	}
//
// A Watcher can observe the file afterwards. The gatekeeper only applies
// the logging level on reload; every other section requires a restart.
package config
