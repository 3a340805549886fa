// Package types provides shared data structures for the extension host.
//
// Core Types:
//   - Kind: extension or node, selecting install root and URL prefix
//   - CatalogEntry: one row per install directory
//   - Status: installed, enabled, disabled, error
//   - InstallRecord: provenance written by the installer
//
// Errors:
//   - Sentinel errors (ErrNotFound, ErrAlreadyExists, ...) matched with errors.Is
//   - ManifestError and FileTooLargeError carry the offending field or entry
//
// Example Usage:
//
//	entry := types.CatalogEntry{ID: "foo", Kind: types.KindExtension, Status: types.StatusInstalled}
//	if errors.Is(err, types.ErrNotFound) { ... }
package types
