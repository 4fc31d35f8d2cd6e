// Package config loads egress settings from YAML or JSON.
//
//	cfg, err := config.Load("egress.yaml")
//	reg, err := cfg.Registry()
//	c := client.New(cfg.ClientOptions(reg, inst)...)
//
// Header values may reference environment variables as ${VAR}; a reference
// to an unset variable fails the load.
package config
