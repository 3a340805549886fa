package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/nodegraph/internal/shared/paths"
	"github.com/GriffinCanCode/nodegraph/internal/shared/types"
)

// statusStore persists operator enabled/disabled choices next to the
// installed components. Callers serialize access.
type statusStore struct {
	path   string
	values map[string]types.Status
}

func loadStatusStore(root string) (*statusStore, error) {
	s := &statusStore{
		path:   filepath.Join(root, paths.StatusFile),
		values: make(map[string]types.Status),
	}

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("failed to read status file: %w", err)
	}

	var values map[string]types.Status
	if err := sonic.Unmarshal(raw, &values); err != nil {
		return s, fmt.Errorf("failed to decode status file: %w", err)
	}
	for id, st := range values {
		if st.Toggleable() {
			s.values[id] = st
		}
	}
	return s, nil
}

func (s *statusStore) get(id string) (types.Status, bool) {
	st, ok := s.values[id]
	return st, ok
}

func (s *statusStore) set(id string, st types.Status) error {
	prev, had := s.values[id]
	s.values[id] = st
	if err := s.save(); err != nil {
		if had {
			s.values[id] = prev
		} else {
			delete(s.values, id)
		}
		return err
	}
	return nil
}

// retain drops overlay keys for components that no longer exist
func (s *statusStore) retain(ids map[string]struct{}) error {
	changed := false
	for id := range s.values {
		if _, ok := ids[id]; !ok {
			delete(s.values, id)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.save()
}

func (s *statusStore) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}
	raw, err := sonic.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode status file: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace status file: %w", err)
	}
	return nil
}
