// Package config handles loading and validating user service configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (USERSVC_*)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The token signing secret is mandatory; Load fails without it
//   - Sensitive values (secrets, DSNs, passwords) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ttl := cfg.GetTokenTTL()
package config
