// Package main is the entry point for the extension and node catalog server.
//
// The server installs uploaded component archives, keeps a live catalog of
// each install root and serves module source to embedded and browser hosts.
//
// Configuration:
//   - Environment variables (12-factor), see internal/infrastructure/config
//   - An optional YAML or TOML file named by CONFIG_FILE
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -extensions /srv/extensions -nodes /srv/nodes
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
