// Package config handles loading and validating codec bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Codec, MQTT and InfluxDB credentials should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - Control endpoints are only protected once security.jwt.secret is set
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Codec.Host)
package config
