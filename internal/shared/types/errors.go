package types

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the installer, the catalog and the loader.
var (
	ErrInvalidManifest = errors.New("invalid manifest")
	ErrMissingManifest = errors.New("manifest.json not found in archive")
	ErrAlreadyExists   = errors.New("already exists")
	ErrFileTooLarge    = errors.New("file too large")
	ErrMainFileMissing = errors.New("main file missing")
	ErrNotFound        = errors.New("not found")
	ErrLoadFailure     = errors.New("load failure")
	ErrInvalidArchive  = errors.New("invalid archive")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrNotLoaded       = errors.New("not loaded")
)

// ManifestError names the descriptor field that failed validation.
type ManifestError struct {
	Field  string
	Reason string
}

func (e *ManifestError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid manifest: %s", e.Reason)
	}
	return fmt.Sprintf("invalid manifest: %s %s", e.Field, e.Reason)
}

func (e *ManifestError) Unwrap() error { return ErrInvalidManifest }

// MissingField builds the error returned for an empty required field.
func MissingField(field string) error {
	return &ManifestError{Field: field, Reason: "is required"}
}

// FileTooLargeError identifies the archive entry that exceeded the size ceiling.
type FileTooLargeError struct {
	Entry string
	Size  int64
	Limit int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file too large: %s is %d bytes (limit %d)", e.Entry, e.Size, e.Limit)
}

func (e *FileTooLargeError) Unwrap() error { return ErrFileTooLarge }
