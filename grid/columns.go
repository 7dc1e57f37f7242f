package grid

import (
	"fmt"
	"time"

	domain "github.com/kenrgriggs/whatskennethdoing/domain/activity"
)

// ColumnKey identifies a column of the history table.
type ColumnKey string

const (
	ColTitle     ColumnKey = "title"
	ColCategory  ColumnKey = "category"
	ColStatus    ColumnKey = "status"
	ColProject   ColumnKey = "project"
	ColNotes     ColumnKey = "notes"
	ColReference ColumnKey = "reference"
	ColStart     ColumnKey = "start"
	ColEnd       ColumnKey = "end"
	ColDuration  ColumnKey = "duration"
)

// Column describes one column of the fixed column set.
type Column struct {
	Key      ColumnKey
	Title    string
	Editable bool
	MinWidth int
	MaxWidth int
	Width    int
}

// Columns returns the fixed column set in its default display order.
func Columns() []Column {
	return []Column{
		{Key: ColTitle, Title: "Task", Editable: true, MinWidth: 120, MaxWidth: 600, Width: 240},
		{Key: ColCategory, Title: "Type", Editable: true, MinWidth: 80, MaxWidth: 300, Width: 120},
		{Key: ColStatus, Title: "Status", Editable: true, MinWidth: 90, MaxWidth: 200, Width: 120},
		{Key: ColProject, Title: "Project", Editable: true, MinWidth: 80, MaxWidth: 300, Width: 140},
		{Key: ColNotes, Title: "Notes", Editable: true, MinWidth: 120, MaxWidth: 800, Width: 220},
		{Key: ColReference, Title: "Reference", Editable: true, MinWidth: 80, MaxWidth: 300, Width: 120},
		{Key: ColStart, Title: "Started", Editable: true, MinWidth: 130, MaxWidth: 240, Width: 150},
		{Key: ColEnd, Title: "Ended", Editable: true, MinWidth: 130, MaxWidth: 240, Width: 150},
		{Key: ColDuration, Title: "Duration", Editable: false, MinWidth: 70, MaxWidth: 160, Width: 90},
	}
}

// DefaultColumnOrder returns the keys of the fixed column set in default
// order.
func DefaultColumnOrder() []ColumnKey {
	cols := Columns()
	order := make([]ColumnKey, len(cols))
	for i, c := range cols {
		order[i] = c.Key
	}
	return order
}

// timeLayout is how the grid renders timestamps.
const timeLayout = "2006-01-02 15:04"

// formLayout is the HTML datetime-local representation used by edit
// inputs and dirty comparison.
const formLayout = "2006-01-02T15:04"

// DisplayValue renders the cell text for an event column. Filtering and
// sorting both operate on this rendered text. Open events show an empty
// end cell and a duration measured up to now.
func DisplayValue(e domain.Event, key ColumnKey, now time.Time, loc *time.Location) string {
	switch key {
	case ColTitle:
		return e.Title
	case ColCategory:
		return e.Category
	case ColStatus:
		return e.Status.Label()
	case ColProject:
		return e.Project
	case ColNotes:
		return e.Notes
	case ColReference:
		return e.ReferenceID
	case ColStart:
		return e.StartedAt.In(loc).Format(timeLayout)
	case ColEnd:
		if e.EndedAt == nil {
			return ""
		}
		return e.EndedAt.In(loc).Format(timeLayout)
	case ColDuration:
		end := now
		if e.EndedAt != nil {
			end = *e.EndedAt
		}
		return FormatDuration(end.Sub(e.StartedAt))
	default:
		return ""
	}
}

// FormatDuration renders an elapsed time as "Xh Ym" (or "Ym" under an
// hour), floored at zero.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int(d.Minutes())
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// clampWidth bounds a requested column width to the column's range.
func clampWidth(c Column, width int) int {
	if width < c.MinWidth {
		return c.MinWidth
	}
	if width > c.MaxWidth {
		return c.MaxWidth
	}
	return width
}
