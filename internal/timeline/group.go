package timeline

import "github.com/roach88/tracesync/internal/ir"

// Group is one test's slice of the filtered timeline.
type Group struct {
	Key   string
	Items []ir.TimelineItem
}

// GroupItems partitions items by GroupKey. Groups appear in first-seen
// order and items keep their relative order. With byTest false the result
// is a single group holding every item under the empty key.
func GroupItems(items []ir.TimelineItem, byTest bool) []Group {
	if !byTest {
		return []Group{{Items: items}}
	}
	pos := make(map[string]int)
	var groups []Group
	for _, it := range items {
		key := it.GroupKey()
		i, ok := pos[key]
		if !ok {
			i = len(groups)
			pos[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Items = append(groups[i].Items, it)
	}
	return groups
}
