// Package config provides 12-factor configuration management for the catalog server.
//
// Configuration is layered: built-in defaults, then an optional YAML or TOML
// file named by CONFIG_FILE, then environment variables.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Extensions: install roots, public URL, upload limits, watcher settings
//   - App: host application name and version
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Serving %s on %s\n", cfg.Extensions.ExtensionsPath, cfg.Addr())
//
// Environment Variables:
//   - PORT, HOST
//   - EXTENSIONS_PATH, NODES_PATH, PUBLIC_URL, MAX_UPLOAD_MB, MAX_FILE_MB
//   - WATCH_ENABLED, WATCH_DEBOUNCE
//   - APP_NAME, APP_VERSION
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - CONFIG_FILE
package config
