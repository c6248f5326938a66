// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package catalog holds the loaded channel list, its search-narrowed view and
// the active channel.
//
// The active channel is tracked by URL, so reordering the full list cannot
// silently retarget it. When it was chosen by position, that position is
// kept alongside the URL to tell duplicate URLs apart.
//
// A Catalog is not safe for concurrent use; the player loop owns it.
package catalog

import (
	"slices"
	"strings"

	"github.com/ManuGH/tvplay/internal/playlist"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// NoIndex is returned when a channel cannot be resolved to a position.
const NoIndex = -1

// Catalog is the full and filtered channel set.
type Catalog struct {
	full    []playlist.Channel
	visible []playlist.Channel
	// visibleIdx holds the full-list position of each visible channel.
	visibleIdx []int

	query     string
	foldedQry string
	activeURL string
	activePos int

	fold     cases.Caser
	collator *collate.Collator
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithCollation sets the language used for locale-aware name sorting.
func WithCollation(tag language.Tag) Option {
	return func(c *Catalog) {
		c.collator = collate.New(tag)
	}
}

// New returns an empty catalog.
func New(opts ...Option) *Catalog {
	c := &Catalog{
		fold:      cases.Fold(),
		collator:  collate.New(language.Und),
		activePos: NoIndex,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load replaces the channel list wholesale and clears the active channel.
// The current search predicate is dropped as well.
func (c *Catalog) Load(channels []playlist.Channel) {
	c.full = slices.Clone(channels)
	c.query = ""
	c.foldedQry = ""
	c.activeURL = ""
	c.activePos = NoIndex
	c.refilter()
}

// Search narrows the visible list to channels whose name contains query,
// ignoring case. The active channel is kept even when filtered out of view.
func (c *Catalog) Search(query string) {
	c.query = query
	c.foldedQry = c.fold.String(query)
	c.refilter()
}

// SortByName reorders the full list by name using locale-aware collation and
// reapplies the current search.
func (c *Catalog) SortByName() {
	if len(c.full) == 0 {
		return
	}
	order := make([]int, len(c.full))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return c.collator.CompareString(c.full[a].Name, c.full[b].Name)
	})

	sorted := make([]playlist.Channel, len(order))
	pos := NoIndex
	for to, from := range order {
		sorted[to] = c.full[from]
		if from == c.activePos {
			pos = to
		}
	}
	c.full = sorted
	c.activePos = pos
	c.refilter()
}

func (c *Catalog) refilter() {
	c.visibleIdx = make([]int, 0, len(c.full))
	if c.foldedQry == "" {
		c.visible = slices.Clone(c.full)
		for i := range c.full {
			c.visibleIdx = append(c.visibleIdx, i)
		}
		return
	}
	c.visible = make([]playlist.Channel, 0, len(c.full))
	for i, ch := range c.full {
		if !strings.Contains(c.fold.String(ch.Name), c.foldedQry) {
			continue
		}
		c.visible = append(c.visible, ch)
		c.visibleIdx = append(c.visibleIdx, i)
	}
}

// ResolveByIndex returns the channel at position i of the full list.
func (c *Catalog) ResolveByIndex(i int) (playlist.Channel, bool) {
	if i < 0 || i >= len(c.full) {
		return playlist.Channel{}, false
	}
	return c.full[i], true
}

// IndexOf returns the position of the first channel with the given URL in
// the full list, or NoIndex.
func (c *Catalog) IndexOf(url string) int {
	if url == "" {
		return NoIndex
	}
	for i, ch := range c.full {
		if ch.URL == url {
			return i
		}
	}
	return NoIndex
}

// SetActive marks the channel with url as active. An empty url clears it.
// With duplicate URLs the first occurrence is the active position.
func (c *Catalog) SetActive(url string) {
	c.activeURL = url
	c.activePos = NoIndex
}

// SetActiveAt marks the channel at position i as active. An out of range
// position clears it.
func (c *Catalog) SetActiveAt(i int) {
	if i < 0 || i >= len(c.full) {
		c.activeURL = ""
		c.activePos = NoIndex
		return
	}
	c.activeURL = c.full[i].URL
	c.activePos = i
}

// Active returns the active channel when it is still part of the catalog.
func (c *Catalog) Active() (playlist.Channel, bool) {
	return c.ResolveByIndex(c.ActiveIndex())
}

// ActiveIndex resolves the active channel to its current position in the
// full list, or NoIndex. The position it was chosen at wins while it still
// holds the active URL.
func (c *Catalog) ActiveIndex() int {
	if c.activeURL == "" {
		return NoIndex
	}
	if c.activePos >= 0 && c.activePos < len(c.full) && c.full[c.activePos].URL == c.activeURL {
		return c.activePos
	}
	return c.IndexOf(c.activeURL)
}

// Len reports the size of the full list.
func (c *Catalog) Len() int { return len(c.full) }

// Query returns the active search text.
func (c *Catalog) Query() string { return c.query }

// Full returns a copy of the full list.
func (c *Catalog) Full() []playlist.Channel { return slices.Clone(c.full) }

// Visible returns a copy of the search-narrowed list.
func (c *Catalog) Visible() []playlist.Channel { return slices.Clone(c.visible) }

// VisibleEntry pairs a visible channel with its position in the full list.
type VisibleEntry struct {
	Index   int              `json:"index"`
	Channel playlist.Channel `json:"channel"`
	Active  bool             `json:"active"`
}

// VisibleEntries returns the visible list annotated for rendering: each
// entry carries its full-list index and the active highlight.
func (c *Catalog) VisibleEntries() []VisibleEntry {
	out := make([]VisibleEntry, 0, len(c.visible))
	active := c.ActiveIndex()
	for k, ch := range c.visible {
		idx := c.visibleIdx[k]
		out = append(out, VisibleEntry{Index: idx, Channel: ch, Active: active != NoIndex && idx == active})
	}
	return out
}
