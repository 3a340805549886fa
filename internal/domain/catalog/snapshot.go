package catalog

import (
	"time"

	"github.com/GriffinCanCode/nodegraph/internal/shared/types"
)

// Snapshot is an immutable, versioned view of the catalog. A new snapshot is
// published after every scan or status change; readers never see a partial one.
type Snapshot struct {
	Version   uint64
	ScannedAt time.Time
	entries   []types.CatalogEntry
	index     map[string]int
}

func newSnapshot(version uint64, scannedAt time.Time, entries []types.CatalogEntry) *Snapshot {
	index := make(map[string]int, len(entries))
	for i, e := range entries {
		index[e.ID] = i
	}
	return &Snapshot{
		Version:   version,
		ScannedAt: scannedAt,
		entries:   entries,
		index:     index,
	}
}

// Len returns the number of entries
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Get returns a copy of the entry with the given id
func (s *Snapshot) Get(id string) (types.CatalogEntry, bool) {
	i, ok := s.index[id]
	if !ok {
		return types.CatalogEntry{}, false
	}
	return s.entries[i].Clone(), true
}

// Entries returns copies of all entries, ordered by id
func (s *Snapshot) Entries() []types.CatalogEntry {
	out := make([]types.CatalogEntry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Clone()
	}
	return out
}

// with returns a successor snapshot where id is replaced by e
func (s *Snapshot) with(e types.CatalogEntry) *Snapshot {
	entries := make([]types.CatalogEntry, len(s.entries))
	copy(entries, s.entries)
	entries[s.index[e.ID]] = e
	return &Snapshot{
		Version:   s.Version + 1,
		ScannedAt: s.ScannedAt,
		entries:   entries,
		index:     s.index,
	}
}

// Stats summarizes the snapshot
func (s *Snapshot) Stats(kind types.Kind) types.CatalogStats {
	byStatus := make(map[types.Status]int)
	for _, e := range s.entries {
		byStatus[e.Status]++
	}
	stats := types.CatalogStats{
		Kind:     kind,
		Version:  s.Version,
		Total:    len(s.entries),
		ByStatus: byStatus,
	}
	if !s.ScannedAt.IsZero() {
		t := s.ScannedAt
		stats.Scanned = &t
	}
	return stats
}
