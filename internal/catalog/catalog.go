// ============================================================================
// appstore - Terminal App Store for Python applications
// ============================================================================
//
// Package:     catalog
// Description: Immutable list of installable applications
// Author:      Mike Stoffels
// Created:     2026-10-12
// License:     MIT
// ============================================================================

package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/msto63/appstore/pkg/core/config"
)

var (
	// ErrEmptyName is returned for an entry without a display name
	ErrEmptyName = errors.New("catalog entry has no name")

	// ErrDuplicateName is returned when two entries share a display name
	ErrDuplicateName = errors.New("duplicate catalog entry name")
)

// Entry is a single installable application
type Entry struct {
	Name    string
	Package string
	Module  string
}

// Runnable reports whether the entry can be launched with "python -m"
func (e Entry) Runnable() bool {
	return e.Module != ""
}

func (e Entry) String() string {
	if e.Package == "" {
		return e.Name
	}
	return fmt.Sprintf("%s (%s)", e.Name, e.Package)
}

// Catalog holds the entries in display order
type Catalog struct {
	entries []Entry
	byName  map[string]int
}

// New builds a catalog. Names must be non-empty and unique.
func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{
		entries: make([]Entry, 0, len(entries)),
		byName:  make(map[string]int, len(entries)),
	}

	for i, e := range entries {
		e.Name = strings.TrimSpace(e.Name)
		e.Package = strings.TrimSpace(e.Package)
		e.Module = strings.TrimSpace(e.Module)

		if e.Name == "" {
			return nil, fmt.Errorf("entry %d: %w", i, ErrEmptyName)
		}
		if _, exists := c.byName[e.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, e.Name)
		}

		c.byName[e.Name] = len(c.entries)
		c.entries = append(c.entries, e)
	}

	return c, nil
}

// FromConfig builds a catalog from configured apps
func FromConfig(apps []config.AppConfig) (*Catalog, error) {
	entries := make([]Entry, 0, len(apps))
	for _, a := range apps {
		entries = append(entries, Entry{Name: a.Name, Package: a.Package, Module: a.Module})
	}
	return New(entries)
}

// Default returns the built-in catalog
func Default() *Catalog {
	c, err := FromConfig(config.DefaultApps())
	if err != nil {
		panic(err)
	}
	return c
}

// Len returns the number of entries
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Entries returns a copy of all entries in display order
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// At returns the entry at index i
func (c *Catalog) At(i int) (Entry, bool) {
	if i < 0 || i >= len(c.entries) {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Lookup finds an entry by its display name
func (c *Catalog) Lookup(name string) (Entry, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Suggest returns up to limit entry names closest to name, case-insensitive
func (c *Catalog) Suggest(name string, limit int) []string {
	if limit <= 0 || name == "" {
		return nil
	}

	type scored struct {
		name string
		dist int
	}

	needle := strings.ToLower(name)
	maxDist := len(needle)/2 + 1

	var candidates []scored
	for _, e := range c.entries {
		d := levenshtein.ComputeDistance(needle, strings.ToLower(e.Name))
		if pd := levenshtein.ComputeDistance(needle, strings.ToLower(e.Package)); e.Package != "" && pd < d {
			d = pd
		}
		if d <= maxDist {
			candidates = append(candidates, scored{name: e.Name, dist: d})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].dist < candidates[j].dist
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]string, 0, len(candidates))
	for _, s := range candidates {
		out = append(out, s.name)
	}
	return out
}
