// Package middleware provides the gin middleware stack of the catalog server.
//
// Middleware stack includes:
//   - RequestID: X-Request-ID propagation using prefixed ULIDs
//   - AccessLog: one zap line per request
//   - CORS: Cross-origin resource sharing so browser hosts can fetch modules
//   - RateLimit: Per-IP token bucket rate limiting with idle client eviction
//
// Example Usage:
//
//	router.Use(middleware.RequestID())
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
