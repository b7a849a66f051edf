// Package config handles loading and validating Haven Provision Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (HAVEN_* prefix)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (cloud bearer token, WiFi password, JWT secret)
//     should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Performance Characteristics:
//   - Configuration is loaded once at startup
//   - No runtime overhead after initial load
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Provisioning.WiFi.SSID)
package config
