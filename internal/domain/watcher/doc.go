// Package watcher turns filesystem changes under an install root into
// debounced rescans.
//
// Scheduler is a single-slot delayed task: each Schedule call replaces the
// pending task and restarts the timer, so a burst of events (an archive
// being extracted, an editor saving several files) produces one run.
// Watcher feeds it from fsnotify, registering new subdirectories as they
// appear and filtering events through doublestar patterns.
package watcher
