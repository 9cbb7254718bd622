// Package config loads a stash configuration from YAML and STASH_*
// environment variables and opens the configured backend.
//
//	cfg, err := config.Load("stash.yaml")
//	if err != nil { ... }
//	store, err := config.Open(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close(ctx)
package config
