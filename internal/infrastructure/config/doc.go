// Package config handles loading and validating Hotel Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with HOTELCORE_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The JWT secret and the hub-token encryption key must come from the
//     environment (HOTELCORE_JWT_SECRET, HOTELCORE_SECRET_KEY)
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Site.Name)
package config
