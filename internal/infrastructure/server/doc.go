// Package server wires the catalog server: configuration, logging, metrics,
// the extension and node catalogs, the gin middleware stack and the HTTP
// routes. Run blocks until its context is canceled and then shuts down.
package server
