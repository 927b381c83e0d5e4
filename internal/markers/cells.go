package markers

import "github.com/roach88/tracesync/internal/ir"

// Cell is one column of a rendered scrub bar.
type Cell struct {
	// Count is the number of markers that fall in this column.
	Count int
	// Status is the most severe status among them.
	Status ir.Status
}

// Cells buckets markers into width columns for a text scrub bar.
func (s *Strip) Cells(width int) []Cell {
	if width <= 0 {
		return nil
	}
	cells := make([]Cell, width)
	for _, m := range s.markers {
		c := &cells[Column(m.Ratio, width)]
		c.Count++
		if severity(m.Item.Status) > severity(c.Status) {
			c.Status = m.Item.Status
		}
	}
	return cells
}

// Column maps a ratio to a column in [0, width).
func Column(ratio float64, width int) int {
	if width <= 0 {
		return 0
	}
	col := int(clampRatio(ratio) * float64(width))
	if col >= width {
		col = width - 1
	}
	return col
}

// RatioAt maps a clicked column back to the ratio at its centre.
func RatioAt(col, width int) float64 {
	if width <= 0 {
		return 0
	}
	return clampRatio((float64(col) + 0.5) / float64(width))
}

func severity(s ir.Status) int {
	switch s {
	case ir.StatusFailed:
		return 4
	case ir.StatusWarning:
		return 3
	case ir.StatusPassed:
		return 2
	case ir.StatusInfo:
		return 1
	}
	return 0
}
