// Package timeline indexes a normalized run for filtering, grouping and
// position lookup.
//
// An Index is built once per run load and is read-only afterwards; Apply
// returns an immutable View per filter change. Search text is case-folded at
// build time so filtering a few thousand items per keystroke is a single
// linear scan with no allocation beyond the result.
package timeline

import (
	"sort"

	"github.com/roach88/tracesync/internal/ir"
)

// Index is the full, unfiltered timeline of one run.
type Index struct {
	items     []ir.TimelineItem
	folded    []string
	byID      map[string]int
	steps     map[string]bool
	artifacts map[string][]ir.ArtifactRecord
}

// Option configures an Index.
type Option func(*Index)

// WithArtifacts attaches run artifacts for ArtifactsFor lookups. Artifacts
// without a step are ignored.
func WithArtifacts(artifacts []ir.ArtifactRecord) Option {
	return func(x *Index) {
		for _, a := range artifacts {
			if a.StepID == "" {
				continue
			}
			x.artifacts[a.StepID] = append(x.artifacts[a.StepID], a)
		}
	}
}

// New indexes items, which must already be in normalized order.
// The slice is retained, not copied.
func New(items []ir.TimelineItem, opts ...Option) *Index {
	x := &Index{
		items:     items,
		folded:    make([]string, len(items)),
		byID:      make(map[string]int, len(items)),
		steps:     make(map[string]bool),
		artifacts: make(map[string][]ir.ArtifactRecord),
	}
	for i, it := range items {
		x.folded[i] = foldSearch(searchText(it))
		x.byID[it.ID] = i
		if it.Kind == ir.KindStep {
			x.steps[it.SourceID] = true
		}
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Len is the number of items in the unfiltered timeline.
func (x *Index) Len() int {
	return len(x.items)
}

// Items returns the unfiltered timeline. Callers must not modify it.
func (x *Index) Items() []ir.TimelineItem {
	return x.items
}

// Lookup finds an item by ID.
func (x *Index) Lookup(id string) (ir.TimelineItem, bool) {
	i, ok := x.byID[id]
	if !ok {
		return ir.TimelineItem{}, false
	}
	return x.items[i], true
}

// HasStep reports whether a step with the given source ID exists.
func (x *Index) HasStep(stepID string) bool {
	return stepID != "" && x.steps[stepID]
}

// ArtifactsFor returns the artifacts attached to a step, in source order.
func (x *Index) ArtifactsFor(stepID string) []ir.ArtifactRecord {
	return x.artifacts[stepID]
}

// Apply filters the timeline.
func (x *Index) Apply(f Filter) *View {
	m := newMatcher(f)
	items := make([]ir.TimelineItem, 0, len(x.items))
	for i, it := range x.items {
		if m.match(it, x.folded[i]) {
			items = append(items, it)
		}
	}
	return newView(x, f, items)
}

// All is the unfiltered view.
func (x *Index) All() *View {
	return newView(x, Filter{}, x.items)
}

// Counts tallies the unfiltered timeline for filter badges.
type Counts struct {
	Total           int
	ByKind          map[ir.Kind]int
	ByStatus        map[ir.Status]int
	WithVideoOffset int
}

// Counts tallies items by kind and status.
func (x *Index) Counts() Counts {
	c := Counts{
		Total:    len(x.items),
		ByKind:   make(map[ir.Kind]int),
		ByStatus: make(map[ir.Status]int),
	}
	for _, it := range x.items {
		c.ByKind[it.Kind]++
		if it.Status != ir.StatusNone {
			c.ByStatus[it.Status]++
		}
		if it.HasVideoOffset() {
			c.WithVideoOffset++
		}
	}
	return c
}

// View is one filtered (and optionally grouped) projection of an Index.
type View struct {
	index  *Index
	filter Filter
	items  []ir.TimelineItem
	pos    map[string]int
	groups []Group
}

func newView(x *Index, f Filter, items []ir.TimelineItem) *View {
	pos := make(map[string]int, len(items))
	for i, it := range items {
		pos[it.ID] = i
	}
	return &View{
		index:  x,
		filter: f,
		items:  items,
		pos:    pos,
		groups: GroupItems(items, f.GroupByTest),
	}
}

// Filter is the filter this view was built from.
func (v *View) Filter() Filter {
	return v.filter
}

// Index is the index this view projects.
func (v *View) Index() *Index {
	return v.index
}

// Items returns the filtered sequence. Callers must not modify it.
func (v *View) Items() []ir.TimelineItem {
	return v.items
}

// Len is the number of visible items.
func (v *View) Len() int {
	return len(v.items)
}

// At returns the i-th visible item.
func (v *View) At(i int) (ir.TimelineItem, bool) {
	if i < 0 || i >= len(v.items) {
		return ir.TimelineItem{}, false
	}
	return v.items[i], true
}

// Groups returns the grouped projection. Without GroupByTest this is one
// group holding every visible item.
func (v *View) Groups() []Group {
	return v.groups
}

// IndexOf returns the position of the item with the given ID, or -1.
func (v *View) IndexOf(id string) int {
	if i, ok := v.pos[id]; ok {
		return i
	}
	return -1
}

// Clamp returns the position of it in this view or, when it is not visible,
// the position of the last visible item that precedes it in timeline order.
// When nothing precedes it the first visible item is used. Returns -1 only
// for an empty view.
//
// Items unknown to the index (dropped by a reload) are placed by timestamp.
func (v *View) Clamp(it ir.TimelineItem) int {
	if len(v.items) == 0 {
		return -1
	}
	if i, ok := v.pos[it.ID]; ok {
		return i
	}

	var before func(ir.TimelineItem) bool
	if ord, ok := v.index.byID[it.ID]; ok {
		pivot := v.index.items[ord].Ordinal
		before = func(c ir.TimelineItem) bool { return c.Ordinal < pivot }
	} else {
		before = func(c ir.TimelineItem) bool { return !c.Timestamp.After(it.Timestamp) }
	}

	// items are sorted, so the predicate is monotone.
	n := sort.Search(len(v.items), func(i int) bool { return !before(v.items[i]) })
	if n == 0 {
		return 0
	}
	return n - 1
}

// LastAtOrBefore returns the position of the last visible item with a video
// offset at or before t, or -1 if none.
func (v *View) LastAtOrBefore(t float64) int {
	found := -1
	for i, it := range v.items {
		off, ok := it.VideoOffset()
		if !ok {
			continue
		}
		if off <= t {
			found = i
		}
	}
	return found
}
