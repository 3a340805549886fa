// Package registry tracks which components the client has loaded.
//
// Components and capability functions are cached per catalog id. The
// registry is safe for concurrent use; concurrent loads of the same id are
// not deduplicated and the last Put wins.
package registry
