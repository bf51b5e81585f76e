// Package logging provides structured logging for Hotel Core.
//
// It wraps log/slog so every component logs the same way: JSON in
// production, text during development, and service/version attributes on
// every entry.
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
//	logger.Info("drained queue", "claimed", 4)
//	logger.Error("hub call failed", "error", err)
//
// # Security
//
// Never log hub tokens, passwords or the encryption key.
package logging
