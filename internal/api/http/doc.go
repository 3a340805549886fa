// Package http provides the gin handlers of the catalog server.
//
// Each catalog (extensions, nodes) gets its own Handlers mounted under its
// prefix <p>:
//   - GET    /<p>                list entries
//   - GET    /<p>/path           install root and whether it exists
//   - POST   /<p>/upload         install a multipart archive (field "extension" or "node")
//   - POST   /<p>/rescan         rebuild the catalog from disk
//   - GET    /<p>/events         websocket stream of catalog snapshot events
//   - GET    /<p>/:id            main module source
//   - GET    /<p>/:id/metadata   catalog entry
//   - GET    /<p>/:id/:file      any file of the component; nested paths use %2F
//   - PUT    /<p>/:id/status     {"status": "enabled" | "disabled"}
//   - DELETE /<p>/:id            uninstall
//
// System adds /, /health and /metrics.
//
// Errors are returned as {"success": false, "error": "..."}; StatusFor holds
// the mapping from domain errors to status codes.
//
// Nested asset paths rely on the engine decoding raw paths:
//
//	router.UseRawPath = true
//	router.UnescapePathValues = true
package http
