// Package markers projects video-correlated timeline items onto a
// normalized scrub bar.
//
// Only items with a video offset are projected. A Strip is immutable and
// built per (view, duration) pair; a duration that is unknown or not
// positive yields an empty Strip.
package markers

import (
	"cmp"
	"math"
	"slices"
	"sort"

	"github.com/roach88/tracesync/internal/ir"
)

// offsetEpsilon absorbs float noise when stepping between markers from the
// current playhead.
const offsetEpsilon = 1e-3

// Marker is one item placed on the scrub bar.
type Marker struct {
	// Ratio is the item's offset divided by the video duration, in [0, 1].
	Ratio float64
	// Offset is the item's video offset in seconds.
	Offset float64
	Item   ir.TimelineItem
}

// Strip is an ordered set of markers.
type Strip struct {
	duration float64
	markers  []Marker
}

// Project places every item that has a video offset. Offsets past the end
// of the video are pinned to ratio 1. Markers are ordered by ratio, ties
// keeping timeline order.
func Project(items []ir.TimelineItem, duration float64) *Strip {
	s := &Strip{duration: duration}
	if !(duration > 0) || math.IsInf(duration, 0) {
		s.duration = 0
		return s
	}
	for _, it := range items {
		off, ok := it.VideoOffset()
		if !ok {
			continue
		}
		s.markers = append(s.markers, Marker{
			Ratio:  clampRatio(off / duration),
			Offset: off,
			Item:   it,
		})
	}
	slices.SortStableFunc(s.markers, func(a, b Marker) int {
		return cmp.Compare(a.Ratio, b.Ratio)
	})
	return s
}

func clampRatio(r float64) float64 {
	switch {
	case math.IsNaN(r) || r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}

// Duration is the video duration the strip was projected against.
func (s *Strip) Duration() float64 {
	return s.duration
}

// Markers returns the projected markers. Callers must not modify them.
func (s *Strip) Markers() []Marker {
	return s.markers
}

// Len is the number of markers.
func (s *Strip) Len() int {
	return len(s.markers)
}

// Nearest returns the marker closest to a click ratio. Equidistant markers
// resolve to the earlier one. Returns false for an empty strip.
func (s *Strip) Nearest(ratio float64) (Marker, bool) {
	if len(s.markers) == 0 {
		return Marker{}, false
	}
	ratio = clampRatio(ratio)

	i := sort.Search(len(s.markers), func(i int) bool { return s.markers[i].Ratio >= ratio })
	switch {
	case i == 0:
		return s.markers[0], true
	case i == len(s.markers):
		return s.markers[i-1], true
	}

	before, after := s.markers[i-1], s.markers[i]
	if ratio-before.Ratio <= after.Ratio-ratio {
		return before, true
	}
	return after, true
}

// Next returns the first marker strictly after the playhead at t seconds.
func (s *Strip) Next(t float64) (Marker, bool) {
	for _, m := range s.markers {
		if m.Offset > t+offsetEpsilon {
			return m, true
		}
	}
	return Marker{}, false
}

// Prev returns the last marker strictly before the playhead at t seconds.
func (s *Strip) Prev(t float64) (Marker, bool) {
	for i := len(s.markers) - 1; i >= 0; i-- {
		if s.markers[i].Offset < t-offsetEpsilon {
			return s.markers[i], true
		}
	}
	return Marker{}, false
}
