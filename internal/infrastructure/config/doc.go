// Package config handles loading and validating Stockwise Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (the JWT signing secret, the InfluxDB token) should be
//     set via environment variables, never committed to the config file
//   - The config file should have restricted permissions (0600)
//
// Configuration is loaded once at startup and treated as read-only afterwards.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.API.Port)
package config
