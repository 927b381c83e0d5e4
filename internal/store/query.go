package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/tracesync/internal/ir"
)

// ItemQuery selects timeline items across cached runs. Empty fields do not
// constrain the result.
type ItemQuery struct {
	RunIDs          []string
	Kinds           []ir.Kind
	Statuses        []ir.Status
	WithVideoOffset bool
	Limit           int
}

// RunItem is a timeline item tagged with the run it belongs to.
type RunItem struct {
	RunID string          `json:"run_id"`
	Item  ir.TimelineItem `json:"item"`
}

// predicate is one WHERE clause fragment. Columns come from the compiler,
// never from callers; every value is a ? parameter.
type predicate interface {
	compile() (string, []any)
}

type inList struct {
	column string
	values []any
}

func (p inList) compile() (string, []any) {
	if len(p.values) == 1 {
		return p.column + " = ?", p.values
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(p.values)), ", ")
	return fmt.Sprintf("%s IN (%s)", p.column, marks), p.values
}

type notNull struct {
	column string
}

func (p notNull) compile() (string, []any) {
	return p.column + " IS NOT NULL", nil
}

type and []predicate

func (a and) compile() (string, []any) {
	if len(a) == 0 {
		return "1 = 1", nil
	}
	parts := make([]string, len(a))
	var params []any
	for i, p := range a {
		sql, ps := p.compile()
		parts[i] = sql
		params = append(params, ps...)
	}
	return strings.Join(parts, " AND "), params
}

func anySlice[T ~string](vs []T) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}

func (q ItemQuery) where() and {
	var preds and
	if len(q.RunIDs) > 0 {
		preds = append(preds, inList{column: "t.run_id", values: anySlice(q.RunIDs)})
	}
	if len(q.Kinds) > 0 {
		preds = append(preds, inList{column: "t.kind", values: anySlice(q.Kinds)})
	}
	if len(q.Statuses) > 0 {
		preds = append(preds, inList{column: "t.status", values: anySlice(q.Statuses)})
	}
	if q.WithVideoOffset {
		preds = append(preds, notNull{column: "t.video_offset"})
	}
	return preds
}

// compile renders the query as parameterized SQL. Rows come back newest
// import first, then in timeline order, so results are deterministic.
func (q ItemQuery) compile() (string, []any) {
	where, params := q.where().compile()
	sql := "SELECT t.run_id, t.item FROM timeline_items t JOIN runs r ON r.id = t.run_id" +
		" WHERE " + where +
		" ORDER BY r.seq DESC, t.ordinal ASC"
	if q.Limit > 0 {
		sql += " LIMIT ?"
		params = append(params, q.Limit)
	}
	return sql, params
}

// QueryItems returns the items matching q across every cached run.
func (s *Store) QueryItems(ctx context.Context, q ItemQuery) ([]RunItem, error) {
	sql, params := q.compile()
	rows, err := s.db.QueryContext(ctx, sql, params...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	out := []RunItem{}
	for rows.Next() {
		var runID, data string
		if err := rows.Scan(&runID, &data); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it, err := unmarshalItem(data)
		if err != nil {
			return nil, err
		}
		out = append(out, RunItem{RunID: runID, Item: it})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return out, nil
}
