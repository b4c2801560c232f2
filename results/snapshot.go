package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// snapshotVersion guards against loading files written by an incompatible layout.
const snapshotVersion = 1

// Snapshot is the persistent form of a cache. Refs are not persisted;
// the selection is recorded by display text.
type Snapshot struct {
	Version  int             `json:"version"`
	Entries  []snapshotEntry `json:"entries"`
	Selected string          `json:"selected,omitempty"`
}

type snapshotEntry struct {
	Text  string `json:"text"`
	Value string `json:"value"`
}

// Snapshot captures the entries and selection.
func (c *Cache) Snapshot() Snapshot {
	s := Snapshot{Version: snapshotVersion, Entries: make([]snapshotEntry, 0, len(c.entries))}
	for _, e := range c.entries {
		s.Entries = append(s.Entries, snapshotEntry{Text: e.DisplayText, Value: e.Value})
	}
	if cur, ok := c.Current(); ok {
		s.Selected = cur.DisplayText
	}
	return s
}

// Restore replaces the cache contents with s. Entries get fresh refs.
// Duplicate display texts in s collapse onto the first position, last value wins.
func (c *Cache) Restore(s Snapshot) {
	c.Clear()
	for _, e := range s.Entries {
		c.Upsert(e.Text, e.Value)
	}
	if s.Selected != "" {
		if e, ok := c.Lookup(s.Selected); ok {
			c.selected = e.Ref
		}
	}
}

// Save writes the cache snapshot to path as JSON.
func (c *Cache) Save(path string) error {
	data, err := json.Marshal(c.Snapshot())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Load restores the cache from a snapshot written by Save.
// A snapshot with a different version is skipped and the cache is left unchanged.
func (c *Cache) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", path, err)
	}

	if s.Version != snapshotVersion {
		return nil
	}

	c.Restore(s)
	return nil
}
