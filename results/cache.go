// Package results holds the evaluation results received during a session.
//
// Results are keyed by their display text: a result whose text is already
// present replaces the stored value in place, keeping its position; any
// other result is appended. The cache also tracks which entry is selected.
//
// A Cache is not safe for concurrent use. The session owns it and mutates it
// only from its event loop.
package results

import "fmt"

// Ref identifies an entry for the lifetime of a cache. Refs are never reused.
type Ref uint64

// Entry is one cached evaluation result.
type Entry struct {
	Ref         Ref
	DisplayText string
	Value       string
}

// NoSuchEntryError is returned when a ref does not name a cached entry.
type NoSuchEntryError struct {
	Ref Ref
}

func (e *NoSuchEntryError) Error() string {
	return fmt.Sprintf("results: no entry with ref %d", e.Ref)
}

// Cache is an ordered set of entries with a selection.
type Cache struct {
	entries  []Entry
	lastRef  Ref
	selected Ref // 0 when nothing is selected
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{}
}

// Upsert stores value under displayText and returns the entry's ref.
// An existing entry keeps its ref and position; a new one is appended.
// Selection is left unchanged; callers select the returned ref explicitly.
func (c *Cache) Upsert(displayText, value string) Ref {
	// Linear scan: the list is a small, human-curated set of declarations.
	for i := range c.entries {
		if c.entries[i].DisplayText == displayText {
			c.entries[i].Value = value
			return c.entries[i].Ref
		}
	}
	c.lastRef++
	ref := c.lastRef
	c.entries = append(c.entries, Entry{Ref: ref, DisplayText: displayText, Value: value})
	return ref
}

// Select makes ref the selected entry.
func (c *Cache) Select(ref Ref) error {
	if c.index(ref) < 0 {
		return &NoSuchEntryError{Ref: ref}
	}
	c.selected = ref
	return nil
}

// Current returns the selected entry, if any.
func (c *Cache) Current() (Entry, bool) {
	if i := c.index(c.selected); i >= 0 {
		return c.entries[i], true
	}
	return Entry{}, false
}

// Get returns the entry for ref.
func (c *Cache) Get(ref Ref) (Entry, bool) {
	if i := c.index(ref); i >= 0 {
		return c.entries[i], true
	}
	return Entry{}, false
}

// Lookup returns the entry stored under displayText.
func (c *Cache) Lookup(displayText string) (Entry, bool) {
	for _, e := range c.entries {
		if e.DisplayText == displayText {
			return e, true
		}
	}
	return Entry{}, false
}

// Entries returns a copy of all entries in insertion order.
func (c *Cache) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Remove deletes the entry for ref. If it was selected, selection moves to
// the entry before it, or the one after it, or becomes empty.
func (c *Cache) Remove(ref Ref) error {
	i := c.index(ref)
	if i < 0 {
		return &NoSuchEntryError{Ref: ref}
	}
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
	if c.selected != ref {
		return nil
	}
	switch {
	case len(c.entries) == 0:
		c.selected = 0
	case i > 0:
		c.selected = c.entries[i-1].Ref
	default:
		c.selected = c.entries[0].Ref
	}
	return nil
}

// Clear removes every entry and the selection. Refs are not reused.
func (c *Cache) Clear() {
	c.entries = nil
	c.selected = 0
}

func (c *Cache) index(ref Ref) int {
	if ref == 0 {
		return -1
	}
	for i := range c.entries {
		if c.entries[i].Ref == ref {
			return i
		}
	}
	return -1
}
