package grid

import (
	"strings"
	"time"

	domain "github.com/kenrgriggs/whatskennethdoing/domain/activity"
)

// Draft is the per-row edit buffer. Every field the edit form owns always
// carries a value; an empty end means "no end" (still running). Clearing
// the end of a closed entry is rejected server-side.
type Draft struct {
	Title     string
	Category  string
	Status    string
	Project   string
	Notes     string
	Reference string
	Start     string // formLayout local representation
	End       string // formLayout, empty when open
}

// draftOf seeds a Draft from canonical event values.
func draftOf(e domain.Event, loc *time.Location) Draft {
	d := Draft{
		Title:     e.Title,
		Category:  e.Category,
		Status:    string(e.Status),
		Project:   e.Project,
		Notes:     e.Notes,
		Reference: e.ReferenceID,
		Start:     e.StartedAt.In(loc).Format(formLayout),
	}
	if e.EndedAt != nil {
		d.End = e.EndedAt.In(loc).Format(formLayout)
	}
	return d
}

// dirty reports whether the draft differs from the canonical event after
// trimming, with date fields compared via their normalized local-input
// representation.
func (d Draft) dirty(e domain.Event, loc *time.Location) bool {
	base := draftOf(e, loc)
	return !strings.EqualFold(string(domain.NormalizeStatus(d.Status)), base.Status) ||
		strings.TrimSpace(d.Title) != strings.TrimSpace(base.Title) ||
		strings.TrimSpace(d.Category) != strings.TrimSpace(base.Category) ||
		strings.TrimSpace(d.Project) != strings.TrimSpace(base.Project) ||
		strings.TrimSpace(d.Notes) != strings.TrimSpace(base.Notes) ||
		strings.TrimSpace(d.Reference) != strings.TrimSpace(base.Reference) ||
		normalizeFormTime(d.Start, loc) != base.Start ||
		normalizeFormTime(d.End, loc) != base.End
}

// normalizeFormTime reduces a time input value to the formLayout
// representation used for comparison. Unparseable input is compared
// verbatim so garbage still counts as a change and reaches the server's
// validation.
func normalizeFormTime(raw string, loc *time.Location) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range []string{formLayout, "2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.In(loc).Format(formLayout)
		}
	}
	return raw
}

// Patch is the full-draft update submitted on save. Every field is
// present; the service applies presence-based semantics, so the client
// sends the complete row it intends to keep.
type Patch struct {
	Title     *string `json:"title"`
	Category  *string `json:"category"`
	Status    *string `json:"status"`
	Project   *string `json:"project"`
	Notes     *string `json:"notes"`
	Reference *string `json:"referenceId"`
	StartTime *string `json:"startTime"`
	EndTime   *string `json:"endTime"`
}

// patchOf builds the full-draft patch for a row.
func patchOf(d Draft) Patch {
	title := strings.TrimSpace(d.Title)
	category := strings.TrimSpace(d.Category)
	status := d.Status
	project := strings.TrimSpace(d.Project)
	notes := d.Notes
	reference := strings.TrimSpace(d.Reference)
	start := strings.TrimSpace(d.Start)
	end := strings.TrimSpace(d.End)
	return Patch{
		Title:     &title,
		Category:  &category,
		Status:    &status,
		Project:   &project,
		Notes:     &notes,
		Reference: &reference,
		StartTime: &start,
		EndTime:   &end,
	}
}

// SetField assigns one draft field by column key. Unknown or derived
// columns are ignored.
func (d *Draft) SetField(key ColumnKey, value string) {
	switch key {
	case ColTitle:
		d.Title = value
	case ColCategory:
		d.Category = value
	case ColStatus:
		d.Status = value
	case ColProject:
		d.Project = value
	case ColNotes:
		d.Notes = value
	case ColReference:
		d.Reference = value
	case ColStart:
		d.Start = value
	case ColEnd:
		d.End = value
	}
}
