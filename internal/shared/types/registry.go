package types

import (
	"fmt"
	"time"
)

// Kind discriminates the two families of installable components.
type Kind string

const (
	KindExtension Kind = "extension"
	KindNode      Kind = "node"
)

// Prefix returns the HTTP and module-URL prefix for the kind.
func (k Kind) Prefix() string {
	if k == KindNode {
		return "nodes"
	}
	return "extensions"
}

// Label is the human-readable singular used in synthesized names.
func (k Kind) Label() string {
	if k == KindNode {
		return "Node"
	}
	return "Extension"
}

// Status is the lifecycle state of a catalog entry
type Status string

const (
	StatusInstalled Status = "installed"
	StatusEnabled   Status = "enabled"
	StatusDisabled  Status = "disabled"
	StatusError     Status = "error"
)

// Toggleable reports whether s can be set explicitly by an operator.
func (s Status) Toggleable() bool {
	return s == StatusEnabled || s == StatusDisabled
}

// Loadable reports whether a client may load the entry's module.
func (s Status) Loadable() bool {
	return s == StatusInstalled || s == StatusEnabled
}

// CatalogEntry is the server-owned view of one install directory.
type CatalogEntry struct {
	ID            string    `json:"id"`
	Kind          Kind      `json:"kind"`
	Name          string    `json:"name"`
	ComponentName string    `json:"componentName"`
	Version       string    `json:"version"`
	Author        string    `json:"author"`
	Description   string    `json:"description"`
	Main          string    `json:"main"`
	Tags          []string  `json:"tags,omitempty"`
	MinAppVersion string    `json:"minAppVersion,omitempty"`
	Icon          string    `json:"icon,omitempty"`
	Category      string    `json:"category,omitempty"`
	URL           string    `json:"url,omitempty"`
	File          string    `json:"file,omitempty"`
	Digest        string    `json:"digest,omitempty"`
	Size          int64     `json:"size"`
	InstalledAt   time.Time `json:"installedAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	Status        Status    `json:"status"`
	ErrorMessage  string    `json:"errorMessage,omitempty"`
}

// Usable reports whether the entry points at a readable module.
func (e *CatalogEntry) Usable() bool {
	return e.Status != StatusError && e.File != ""
}

// Clone returns a deep copy so snapshot entries are never shared with callers.
func (e CatalogEntry) Clone() CatalogEntry {
	if e.Tags != nil {
		e.Tags = append([]string(nil), e.Tags...)
	}
	return e
}

// InstallRecord is written next to an installed component to keep its provenance.
type InstallRecord struct {
	Digest      string    `json:"digest"`
	SourceFile  string    `json:"sourceFile"`
	InstalledAt time.Time `json:"installedAt"`
}

// CatalogStats contains catalog statistics
type CatalogStats struct {
	Kind     Kind           `json:"kind"`
	Version  uint64         `json:"version"`
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"by_status"`
	Scanned  *time.Time     `json:"scanned_at,omitempty"`
}

// ParseKind accepts a kind in singular or plural form.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "extension", "extensions", "":
		return KindExtension, nil
	case "node", "nodes":
		return KindNode, nil
	}
	return "", fmt.Errorf("unknown kind %q (want extension or node)", s)
}
