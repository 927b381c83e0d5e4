package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/tracesync/internal/ir"
)

// ErrNotFound is returned when a run ID is not in the cache.
var ErrNotFound = errors.New("run not found")

// Run is the input to PutRun.
type Run struct {
	Export  *ir.RunExport
	Payload []byte
	Items   []ir.TimelineItem
	Dropped []DroppedRecord
}

// DroppedRecord is a record the normalizer skipped.
type DroppedRecord struct {
	Kind     ir.Kind `json:"kind"`
	SourceID string  `json:"source_id"`
	Position int     `json:"position"`
	Message  string  `json:"message"`
}

// RunSummary is one row of ListRuns.
type RunSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Suite        string `json:"suite,omitempty"`
	Status       string `json:"status,omitempty"`
	StartedAt    string `json:"started_at,omitempty"`
	ContentHash  string `json:"content_hash"`
	ItemCount    int    `json:"item_count"`
	DroppedCount int    `json:"dropped_count"`
	Seq          int64  `json:"seq"`
}

// PutOutcome reports what PutRun did.
type PutOutcome int

const (
	PutInserted PutOutcome = iota + 1
	PutReplaced
	PutUnchanged
)

func (o PutOutcome) String() string {
	switch o {
	case PutInserted:
		return "inserted"
	case PutReplaced:
		return "replaced"
	case PutUnchanged:
		return "unchanged"
	}
	return "unknown"
}

// PutRun stores a normalized run.
//
// Identical content (same ir.RunHash) is a no-op. Different content under
// an existing run ID replaces the run and every dependent row in one
// transaction and moves the run to the end of the import order.
func (s *Store) PutRun(ctx context.Context, r Run) (PutOutcome, error) {
	if r.Export == nil || r.Export.Run.ID == "" {
		return 0, fmt.Errorf("put run: missing run id")
	}
	hash, err := ir.RunHash(r.Payload)
	if err != nil {
		return 0, fmt.Errorf("put run: %w", err)
	}
	runID := r.Export.Run.ID

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("put run: begin: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT content_hash FROM runs WHERE id = ?`, runID).Scan(&existing)
	outcome := PutInserted
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return 0, fmt.Errorf("put run: lookup: %w", err)
	case existing == hash:
		return PutUnchanged, nil
	default:
		outcome = PutReplaced
		// Cascades to timeline_items and dropped_records.
		if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID); err != nil {
			return 0, fmt.Errorf("put run: replace: %w", err)
		}
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("put run: next seq: %w", err)
	}

	info := r.Export.Run
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, content_hash, name, suite, status, started_at, payload, item_count, dropped_count, seq, schema_version, engine_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		hash,
		info.Name,
		info.Suite,
		info.Status,
		string(info.StartedAt),
		string(r.Payload),
		len(r.Items),
		len(r.Dropped),
		seq,
		ir.SchemaVersion,
		ir.EngineVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("put run: insert run: %w", err)
	}

	if err := insertItems(ctx, tx, runID, r.Items); err != nil {
		return 0, err
	}
	if err := insertDropped(ctx, tx, runID, r.Dropped); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("put run: commit: %w", err)
	}
	return outcome, nil
}

func insertItems(ctx context.Context, tx *sql.Tx, runID string, items []ir.TimelineItem) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO timeline_items
		(run_id, ordinal, item_id, kind, ts, video_offset, status, item)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("put run: prepare items: %w", err)
	}
	defer stmt.Close()

	for _, it := range items {
		data, err := marshalItem(it)
		if err != nil {
			return fmt.Errorf("put run: %w", err)
		}
		_, err = stmt.ExecContext(ctx,
			runID,
			it.Ordinal,
			it.ID,
			string(it.Kind),
			it.Timestamp.UTC().Format(time.RFC3339Nano),
			nullableOffset(it),
			string(it.Status),
			data,
		)
		if err != nil {
			return fmt.Errorf("put run: insert item %s: %w", it.ID, err)
		}
	}
	return nil
}

func insertDropped(ctx context.Context, tx *sql.Tx, runID string, dropped []DroppedRecord) error {
	for _, d := range dropped {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO dropped_records (run_id, position, kind, source_id, message)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(run_id, kind, position) DO NOTHING
		`, runID, d.Position, string(d.Kind), d.SourceID, d.Message)
		if err != nil {
			return fmt.Errorf("put run: insert dropped record: %w", err)
		}
	}
	return nil
}

// ListRuns returns every cached run, most recently imported first.
// Returns an empty slice (not nil) for an empty cache.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, suite, status, started_at, content_hash, item_count, dropped_count, seq
		FROM runs
		ORDER BY seq DESC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Name, &r.Suite, &r.Status, &r.StartedAt, &r.ContentHash, &r.ItemCount, &r.DroppedCount, &r.Seq); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a run's summary and its raw export payload.
func (s *Store) GetRun(ctx context.Context, id string) (RunSummary, []byte, error) {
	var r RunSummary
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, suite, status, started_at, content_hash, item_count, dropped_count, seq, payload
		FROM runs WHERE id = ?
	`, id).Scan(&r.ID, &r.Name, &r.Suite, &r.Status, &r.StartedAt, &r.ContentHash, &r.ItemCount, &r.DroppedCount, &r.Seq, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return RunSummary{}, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return RunSummary{}, nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, []byte(payload), nil
}

// ReadTimeline returns a run's items in normalized order.
func (s *Store) ReadTimeline(ctx context.Context, runID string) ([]ir.TimelineItem, error) {
	if _, _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT item FROM timeline_items
		WHERE run_id = ?
		ORDER BY ordinal ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	defer rows.Close()

	items := []ir.TimelineItem{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it, err := unmarshalItem(data)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline: %w", err)
	}
	return items, nil
}

// ReadDropped returns the records skipped for a run, by kind then position.
func (s *Store) ReadDropped(ctx context.Context, runID string) ([]DroppedRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, source_id, position, message FROM dropped_records
		WHERE run_id = ?
		ORDER BY kind COLLATE BINARY ASC, position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query dropped records: %w", err)
	}
	defer rows.Close()

	out := []DroppedRecord{}
	for rows.Next() {
		var d DroppedRecord
		var kind string
		if err := rows.Scan(&kind, &d.SourceID, &d.Position, &d.Message); err != nil {
			return nil, fmt.Errorf("scan dropped record: %w", err)
		}
		d.Kind = ir.Kind(kind)
		out = append(out, d)
	}
	return out, rows.Err()
}

// KindCounts returns the number of items per kind for a run.
func (s *Store) KindCounts(ctx context.Context, runID string) (map[ir.Kind]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM timeline_items
		WHERE run_id = ?
		GROUP BY kind
		ORDER BY kind COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query kind counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[ir.Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan kind count: %w", err)
		}
		counts[ir.Kind(kind)] = n
	}
	return counts, rows.Err()
}

// DeleteRun removes a run and its rows. Returns ErrNotFound if absent.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
