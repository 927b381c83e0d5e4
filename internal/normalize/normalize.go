// Package normalize converts heterogeneous run records into one ordered
// timeline.
//
// Each input record maps to exactly one ir.TimelineItem or, when its
// timestamp cannot be read, to one MalformedRecordError on Result.Dropped.
// Normalization is a pure function of its inputs.
//
// Ordering: ascending by UTC timestamp; at equal timestamps steps come first
// (a step is the parent of the logs it produced), then original source order
// (steps, console logs, network logs, performance markers, each in slice
// order).
//
// Video offsets are copied only from the record's explicit correlation field.
// An absent offset stays absent; defaulting it to zero would pin the event to
// the start of the video.
package normalize

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/roach88/tracesync/internal/ir"
)

// Result is the normalized timeline plus diagnostics.
type Result struct {
	// Items are sorted per the package ordering rules; Items[i].Ordinal == i.
	Items []ir.TimelineItem

	// Dropped lists records that could not be placed on the timeline.
	Dropped []*MalformedRecordError
}

// DroppedCount is the number of records left out of Items.
func (r *Result) DroppedCount() int {
	return len(r.Dropped)
}

// Export normalizes every stream of a run export.
func Export(e *ir.RunExport) *Result {
	return Normalize(e.Steps, e.ConsoleLogs, e.NetworkLogs, e.PerformanceMarkers)
}

// rank orders kinds that share a timestamp.
const (
	rankStep  = 0
	rankChild = 1
)

type pending struct {
	item ir.TimelineItem
	rank int
	seq  int
}

// Normalize merges the four record streams into one timeline.
func Normalize(
	steps []ir.StepRecord,
	consoleLogs []ir.ConsoleLogRecord,
	networkLogs []ir.NetworkLogRecord,
	markers []ir.PerformanceMarkerRecord,
) *Result {
	res := &Result{}
	total := len(steps) + len(consoleLogs) + len(networkLogs) + len(markers)
	out := make([]pending, 0, total)
	ids := newIDAllocator(total)

	// Step test names let child events inherit their group.
	stepTests := make(map[string]string, len(steps))
	for _, s := range steps {
		if s.ID != "" {
			stepTests[s.ID] = s.TestName
		}
	}

	seq := 0
	add := func(it ir.TimelineItem, rank int) {
		it.ID = ids.allocate(it.Kind, it.SourceID, seq)
		out = append(out, pending{item: it, rank: rank, seq: seq})
		seq++
	}

	for i, s := range steps {
		it, err := fromStep(i, s)
		if err != nil {
			res.Dropped = append(res.Dropped, err)
			continue
		}
		add(it, rankStep)
	}
	for i, l := range consoleLogs {
		it, err := fromConsoleLog(i, l, stepTests)
		if err != nil {
			res.Dropped = append(res.Dropped, err)
			continue
		}
		add(it, rankChild)
	}
	for i, n := range networkLogs {
		it, err := fromNetworkLog(i, n, stepTests)
		if err != nil {
			res.Dropped = append(res.Dropped, err)
			continue
		}
		add(it, rankChild)
	}
	for i, m := range markers {
		it, err := fromPerformanceMarker(i, m, stepTests)
		if err != nil {
			res.Dropped = append(res.Dropped, err)
			continue
		}
		add(it, rankChild)
	}

	slices.SortStableFunc(out, func(a, b pending) int {
		if c := a.item.Timestamp.Compare(b.item.Timestamp); c != 0 {
			return c
		}
		if c := cmp.Compare(a.rank, b.rank); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	res.Items = make([]ir.TimelineItem, len(out))
	for i := range out {
		out[i].item.Ordinal = i
		res.Items[i] = out[i].item
	}
	return res
}

// idAllocator keeps timeline IDs unique even when the source repeats or
// omits record identifiers.
type idAllocator struct {
	seen map[string]bool
}

func newIDAllocator(n int) *idAllocator {
	return &idAllocator{seen: make(map[string]bool, n)}
}

func (a *idAllocator) allocate(kind ir.Kind, sourceID string, seq int) string {
	id := ir.ItemID(kind, sourceID)
	if a.seen[id] {
		id = fmt.Sprintf("%s#%d", id, seq)
	}
	a.seen[id] = true
	return id
}

// sourceID falls back to the record position when the API sent no ID.
func sourceID(id string, position int) string {
	if id != "" {
		return id
	}
	return fmt.Sprintf("#%d", position)
}

// videoOffset copies an explicit correlation. Negative or non-finite values
// are treated as uncorrelated rather than clamped.
func videoOffset(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		return nil
	}
	return ir.Float(*v)
}

func duration(v *int64) *int64 {
	if v == nil || *v < 0 {
		return nil
	}
	return ir.Int(*v)
}

func fromStep(position int, s ir.StepRecord) (ir.TimelineItem, *MalformedRecordError) {
	id := sourceID(s.ID, position)
	ts, err := s.StartedAt.Parse()
	if err != nil {
		return ir.TimelineItem{}, malformed(ir.KindStep, s.ID, position, err)
	}

	dur := duration(s.DurationMs)
	if dur == nil && !s.EndedAt.IsZero() {
		if end, err := s.EndedAt.Parse(); err == nil && !end.Before(ts) {
			dur = ir.Int(end.Sub(ts).Milliseconds())
		}
	}

	return ir.TimelineItem{
		SourceID:           id,
		Kind:               ir.KindStep,
		Timestamp:          ts,
		VideoOffsetSeconds: videoOffset(s.VideoOffsetSeconds),
		DurationMs:         dur,
		Status:             stepStatus(s.Status, s.RetryCount),
		Title:              stepTitle(s),
		Description:        stepDescription(s),
		TestName:           s.TestName,
	}, nil
}

func fromConsoleLog(position int, l ir.ConsoleLogRecord, stepTests map[string]string) (ir.TimelineItem, *MalformedRecordError) {
	ts, err := l.Timestamp.Parse()
	if err != nil {
		return ir.TimelineItem{}, malformed(ir.KindLog, l.ID, position, err)
	}
	return ir.TimelineItem{
		SourceID:           sourceID(l.ID, position),
		Kind:               ir.KindLog,
		Timestamp:          ts,
		VideoOffsetSeconds: videoOffset(l.VideoOffsetSeconds),
		Status:             logStatus(l.Level),
		Title:              logTitle(l),
		Description:        joinLines(l.Message, l.StackTrace),
		RelatedStepID:      l.StepID,
		TestName:           stepTests[l.StepID],
	}, nil
}

func fromNetworkLog(position int, n ir.NetworkLogRecord, stepTests map[string]string) (ir.TimelineItem, *MalformedRecordError) {
	ts, err := n.StartedAt.Parse()
	if err != nil {
		return ir.TimelineItem{}, malformed(ir.KindNetwork, n.ID, position, err)
	}
	return ir.TimelineItem{
		SourceID:           sourceID(n.ID, position),
		Kind:               ir.KindNetwork,
		Timestamp:          ts,
		VideoOffsetSeconds: videoOffset(n.VideoOffsetSeconds),
		DurationMs:         duration(n.DurationMs),
		Status:             networkStatus(n.Status),
		Title:              networkTitle(n),
		Description:        networkDescription(n),
		RelatedStepID:      n.StepID,
		TestName:           stepTests[n.StepID],
	}, nil
}

func fromPerformanceMarker(position int, m ir.PerformanceMarkerRecord, stepTests map[string]string) (ir.TimelineItem, *MalformedRecordError) {
	ts, err := m.Timestamp.Parse()
	if err != nil {
		return ir.TimelineItem{}, malformed(ir.KindPerformance, m.ID, position, err)
	}
	return ir.TimelineItem{
		SourceID:           sourceID(m.ID, position),
		Kind:               ir.KindPerformance,
		Timestamp:          ts,
		VideoOffsetSeconds: videoOffset(m.VideoOffsetSeconds),
		DurationMs:         duration(m.DurationMs),
		Status:             ir.StatusInfo,
		Title:              m.Name,
		Description:        markerDescription(m),
		RelatedStepID:      m.StepID,
		TestName:           stepTests[m.StepID],
	}, nil
}
