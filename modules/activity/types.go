package activity

import (
	domain "github.com/kenrgriggs/whatskennethdoing/domain/activity"
)

// StartRequest is the input for starting (or backfilling) a task.
// Category may arrive under either "category" or the legacy "type" key;
// "category" wins when both are present.
type StartRequest struct {
	Title         string `json:"title"`
	Category      string `json:"category"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Project       string `json:"project"`
	Notes         string `json:"notes"`
	StartTime     string `json:"startTime"`
	EndTime       string `json:"endTime"`
	ReferenceID   string `json:"referenceId"`
	Visibility    string `json:"visibility"`
	RedactedLabel string `json:"redactedLabel"`
}

// EffectiveCategory returns the category honoring the legacy alias.
func (r StartRequest) EffectiveCategory() string {
	if r.Category != "" {
		return r.Category
	}
	return r.Type
}

// EventPatch is a presence-based patch for a history entry. A nil field
// is untouched; a pointer to an empty string clears an optional field.
type EventPatch struct {
	Title         *string `json:"title"`
	Category      *string `json:"category"`
	Type          *string `json:"type"`
	Status        *string `json:"status"`
	Project       *string `json:"project"`
	Notes         *string `json:"notes"`
	ReferenceID   *string `json:"referenceId"`
	StartTime     *string `json:"startTime"`
	EndTime       *string `json:"endTime"`
	Visibility    *string `json:"visibility"`
	RedactedLabel *string `json:"redactedLabel"`
}

// CategoryField returns the patched category honoring the legacy alias,
// and whether any category field was present at all.
func (p EventPatch) CategoryField() (*string, bool) {
	if p.Category != nil {
		return p.Category, true
	}
	if p.Type != nil {
		return p.Type, true
	}
	return nil, false
}

// Suggestions prefills the entry form from recent history.
type Suggestions struct {
	Titles     []string    `json:"titles"`
	Categories []string    `json:"categories"`
	TaskNotes  []TaskNotes `json:"taskNotes"`
}

// TaskNotes pairs a task title with the most recent notes recorded for it.
type TaskNotes struct {
	Task  string `json:"task"`
	Notes string `json:"notes"`
}

// Notifier receives best-effort notices when the subject's current
// activity changes. The broadcast hub implements it.
type Notifier interface {
	NotifyCurrent(subjectID string, active *domain.ActiveRecord)
}
