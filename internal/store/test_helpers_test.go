package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/tracesync/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testBase = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestRun builds a run with one step and one log.
func createTestRun(id, name string) Run {
	payload := []byte(`{"run": {"id": "` + id + `", "name": "` + name + `"}}`)
	return Run{
		Export:  &ir.RunExport{Run: ir.RunInfo{ID: id, Name: name, Status: "failed"}},
		Payload: payload,
		Items: []ir.TimelineItem{
			{
				ID:                 ir.ItemID(ir.KindStep, "st-1"),
				SourceID:           "st-1",
				Ordinal:            0,
				Kind:               ir.KindStep,
				Timestamp:          testBase,
				VideoOffsetSeconds: ir.Float(1.5),
				Status:             ir.StatusPassed,
				Title:              "Open <home> & wait",
				TestName:           "checkout",
			},
			{
				ID:            ir.ItemID(ir.KindLog, "c-1"),
				SourceID:      "c-1",
				Ordinal:       1,
				Kind:          ir.KindLog,
				Timestamp:     testBase.Add(500 * time.Millisecond),
				Status:        ir.StatusFailed,
				Title:         "boom",
				RelatedStepID: "st-1",
			},
		},
	}
}
