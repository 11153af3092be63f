// Package logging provides structured logging for the user service.
//
// It wraps log/slog so that every component logs with the same handler,
// level and default fields (service, version).
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 3000)
//	logger.Error("failed to load account", "error", err)
//
// # Security
//
// Never log passwords, password hashes, bearer tokens or the signing secret.
package logging
