/*
Package monitoring provides Prometheus metrics for the catalog server.

# Overview

Each Metrics value owns a private registry, so tests and multiple servers in
one process never collide on global registration.

# Metrics

- HTTP request metrics (latency, throughput, size)
- Catalog scans, entry counts by status, watcher events
- Archive installs by outcome
- Remote module loads
- WebSocket connections and messages

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(monitoring.Handler(metrics)))

	timer := monitoring.NewTimer()
	// ... install ...
	metrics.RecordInstall("extension", "success", timer.Elapsed())
*/
package monitoring
