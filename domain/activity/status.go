package activity

import "strings"

// Status describes the progress of a task.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusOnHold     Status = "ON_HOLD"
	StatusCompleted  Status = "COMPLETED"
)

// Label returns the human-readable form of the status, used by the
// dashboard grid for display and status filtering.
func (s Status) Label() string {
	switch s {
	case StatusNotStarted:
		return "Not Started"
	case StatusInProgress:
		return "In Progress"
	case StatusOnHold:
		return "On Hold"
	case StatusCompleted:
		return "Completed"
	default:
		return string(s)
	}
}

// Visibility controls whether non-owner viewers see the real task fields.
type Visibility string

const (
	VisibilityPublic   Visibility = "PUBLIC"
	VisibilityRedacted Visibility = "REDACTED"
)

// NormalizeStatus maps free-text status input onto the Status enum.
// Matching ignores case and treats spaces, dashes and underscores as
// equivalent. Unrecognized values default to IN_PROGRESS.
func NormalizeStatus(raw string) Status {
	key := strings.ToUpper(strings.TrimSpace(raw))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	switch key {
	case "NOT_STARTED", "NOTSTARTED":
		return StatusNotStarted
	case "IN_PROGRESS", "INPROGRESS", "ACTIVE":
		return StatusInProgress
	case "ON_HOLD", "ONHOLD", "PAUSED":
		return StatusOnHold
	case "COMPLETED", "COMPLETE", "DONE":
		return StatusCompleted
	default:
		return StatusInProgress
	}
}

// NormalizeVisibility maps free-text visibility input onto the enum,
// defaulting to PUBLIC.
func NormalizeVisibility(raw string) Visibility {
	if strings.EqualFold(strings.TrimSpace(raw), string(VisibilityRedacted)) {
		return VisibilityRedacted
	}
	return VisibilityPublic
}
