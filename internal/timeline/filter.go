package timeline

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/roach88/tracesync/internal/ir"
)

// Filter selects which timeline items are visible.
//
// All predicates are ANDed. An empty Kinds or Statuses set matches every
// item. The zero Filter matches everything.
type Filter struct {
	Kinds       []ir.Kind
	Statuses    []ir.Status
	Search      string
	ErrorsOnly  bool
	GroupByTest bool
}

// NewFilter builds a Filter from user-facing names, as given on the command
// line or in a config file.
func NewFilter(kinds, statuses []string, search string, errorsOnly, groupByTest bool) (Filter, error) {
	f := Filter{
		Search:      search,
		ErrorsOnly:  errorsOnly,
		GroupByTest: groupByTest,
	}
	for _, k := range kinds {
		kind, err := ir.ParseKind(k)
		if err != nil {
			return Filter{}, fmt.Errorf("filter: %w", err)
		}
		if !slices.Contains(f.Kinds, kind) {
			f.Kinds = append(f.Kinds, kind)
		}
	}
	for _, s := range statuses {
		status, err := ir.ParseStatus(s)
		if err != nil {
			return Filter{}, fmt.Errorf("filter: %w", err)
		}
		if !slices.Contains(f.Statuses, status) {
			f.Statuses = append(f.Statuses, status)
		}
	}
	return f, nil
}

// IsZero reports whether the filter hides nothing.
func (f Filter) IsZero() bool {
	return len(f.Kinds) == 0 && len(f.Statuses) == 0 && strings.TrimSpace(f.Search) == "" && !f.ErrorsOnly
}

// Equal reports whether two filters select the same items and grouping.
func (f Filter) Equal(o Filter) bool {
	return sameSet(f.Kinds, o.Kinds) &&
		sameSet(f.Statuses, o.Statuses) &&
		f.Search == o.Search &&
		f.ErrorsOnly == o.ErrorsOnly &&
		f.GroupByTest == o.GroupByTest
}

func sameSet[T comparable](a, b []T) bool {
	for _, v := range a {
		if !slices.Contains(b, v) {
			return false
		}
	}
	for _, v := range b {
		if !slices.Contains(a, v) {
			return false
		}
	}
	return true
}

// String renders the filter for logs and CLI output.
func (f Filter) String() string {
	var parts []string
	if len(f.Kinds) > 0 {
		names := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			names[i] = string(k)
		}
		parts = append(parts, "kinds="+strings.Join(names, ","))
	}
	if len(f.Statuses) > 0 {
		names := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			names[i] = string(s)
		}
		parts = append(parts, "statuses="+strings.Join(names, ","))
	}
	if f.Search != "" {
		parts = append(parts, fmt.Sprintf("search=%q", f.Search))
	}
	if f.ErrorsOnly {
		parts = append(parts, "errors-only")
	}
	if f.GroupByTest {
		parts = append(parts, "group-by-test")
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, " ")
}

// matcher evaluates a Filter against items whose search text has already
// been case-folded.
type matcher struct {
	f     Filter
	query string
}

func newMatcher(f Filter) matcher {
	return matcher{f: f, query: foldSearch(strings.TrimSpace(f.Search))}
}

func (m matcher) match(it ir.TimelineItem, folded string) bool {
	if len(m.f.Kinds) > 0 && !slices.Contains(m.f.Kinds, it.Kind) {
		return false
	}
	if len(m.f.Statuses) > 0 && !slices.Contains(m.f.Statuses, it.Status) {
		return false
	}
	if m.f.ErrorsOnly && !it.IsFailure() {
		return false
	}
	if m.query != "" && !strings.Contains(folded, m.query) {
		return false
	}
	return true
}

// searchText is what the search box matches against: the title followed by
// the description, separated by one space so a query may span both.
func searchText(it ir.TimelineItem) string {
	if it.Description == "" {
		return it.Title
	}
	return it.Title + " " + it.Description
}

// foldSearch applies Unicode case folding; cases.Caser is stateful so each
// call gets its own.
func foldSearch(s string) string {
	if s == "" {
		return ""
	}
	return cases.Fold().String(s)
}

// FilterItems applies f to items without an Index. Applying the same filter
// to its own output returns the same sequence.
func FilterItems(items []ir.TimelineItem, f Filter) []ir.TimelineItem {
	m := newMatcher(f)
	out := make([]ir.TimelineItem, 0, len(items))
	for _, it := range items {
		folded := ""
		if m.query != "" {
			folded = foldSearch(searchText(it))
		}
		if m.match(it, folded) {
			out = append(out, it)
		}
	}
	return out
}
