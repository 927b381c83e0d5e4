package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/tracesync/internal/ir"
)

// marshalItem converts a timeline item to JSON TEXT for storage.
// HTML escaping is disabled so stored text matches the export verbatim.
func marshalItem(it ir.TimelineItem) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(it); err != nil {
		return "", fmt.Errorf("marshal item %s: %w", it.ID, err)
	}
	// Encoder appends a newline; stored TEXT does not carry it.
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// unmarshalItem converts stored JSON TEXT back to a timeline item.
func unmarshalItem(data string) (ir.TimelineItem, error) {
	var it ir.TimelineItem
	if err := json.Unmarshal([]byte(data), &it); err != nil {
		return ir.TimelineItem{}, fmt.Errorf("unmarshal item: %w", err)
	}
	return it, nil
}

// nullableOffset maps an absent offset to SQL NULL.
func nullableOffset(it ir.TimelineItem) any {
	if off, ok := it.VideoOffset(); ok {
		return off
	}
	return nil
}
