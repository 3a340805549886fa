// Package logging provides structured logging using uber/zap.
//
// Production mode writes JSON; development mode writes colored console lines.
//
// Components receive a plain *zap.Logger named after themselves, so the
// catalog, installer and watcher of each kind can be told apart:
//
//	logger, err := logging.New(logging.Config{Level: "info"})
//	svc := catalog.New(catalog.Options{Logger: logger.Component("catalog", "node")})
//
// Options structs accept a nil logger; OrNop substitutes a no-op one.
package logging
