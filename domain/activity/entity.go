package activity

import "time"

// Event is one task instance in the subject's history, open or closed.
// An Event with a nil EndedAt is the subject's open ("current") task;
// at most one open Event may exist per subject at any time.
type Event struct {
	ID            string     `gorm:"primarykey;size:36" json:"id"`
	SubjectID     string     `gorm:"size:255;not null;index" json:"subjectId"`
	Title         string     `gorm:"size:500;not null" json:"title"`
	Category      string     `gorm:"size:100;not null" json:"category"`
	Status        Status     `gorm:"size:20;not null" json:"status"`
	Project       string     `gorm:"size:255" json:"project"`
	Notes         string     `gorm:"size:2000" json:"notes"`
	ReferenceID   string     `gorm:"size:255" json:"referenceId"`
	StartedAt     time.Time  `gorm:"not null;index" json:"startedAt"`
	EndedAt       *time.Time `json:"endedAt"`
	Visibility    Visibility `gorm:"size:20;not null;default:PUBLIC" json:"visibility"`
	RedactedLabel string     `gorm:"size:255" json:"redactedLabel"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// TableName returns the table name for the Event model.
func (Event) TableName() string {
	return "events"
}

// Open reports whether the event is still in progress.
func (e *Event) Open() bool {
	return e.EndedAt == nil
}

// ActiveRecord mirrors the subject's open Event. It exists iff an open
// Event exists for the subject, and its fields always equal that Event's.
type ActiveRecord struct {
	SubjectID       string     `gorm:"primarykey;size:255" json:"subjectId"`
	EventID         string     `gorm:"size:36;not null" json:"eventId"`
	Title           string     `gorm:"size:500;not null" json:"title"`
	Category        string     `gorm:"size:100;not null" json:"category"`
	Status          Status     `gorm:"size:20;not null" json:"status"`
	Project         string     `gorm:"size:255" json:"project"`
	Notes           string     `gorm:"size:2000" json:"notes"`
	ReferenceID     string     `gorm:"size:255" json:"referenceId"`
	StartedAt       time.Time  `gorm:"not null" json:"startedAt"`
	LastHeartbeatAt time.Time  `gorm:"not null" json:"lastHeartbeatAt"`
	Visibility      Visibility `gorm:"size:20;not null;default:PUBLIC" json:"visibility"`
	RedactedLabel   string     `gorm:"size:255" json:"redactedLabel"`
}

// TableName returns the table name for the ActiveRecord model.
func (ActiveRecord) TableName() string {
	return "active_records"
}
