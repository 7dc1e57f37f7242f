package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	domain "github.com/kenrgriggs/whatskennethdoing/domain/activity"
)

// Repository provides access to the activity store. Implementations must
// apply each multi-statement write atomically so that at most one open
// event exists per subject and the active record never diverges from the
// open event.
type Repository interface {
	// GetActive returns the subject's active record, or nil when no task
	// is in progress.
	GetActive(ctx context.Context, subjectID string) (*domain.ActiveRecord, error)
	// GetEvent returns the event with the given id belonging to the
	// subject, or domain.ErrNotFound.
	GetEvent(ctx context.Context, subjectID, eventID string) (*domain.Event, error)
	// ListEvents returns up to limit events ordered by startedAt descending.
	ListEvents(ctx context.Context, subjectID string, limit int) ([]domain.Event, error)
	// ListEventsSince returns up to limit events with startedAt at or after
	// since, ordered by startedAt descending.
	ListEventsSince(ctx context.Context, subjectID string, since time.Time, limit int) ([]domain.Event, error)
	// StartTask atomically closes any open event for the subject at the new
	// event's start time, inserts the event, and syncs the active record:
	// upserted as a mirror when the event is open, deleted when the event
	// is created already closed. Returns the resulting active record, or
	// nil when the task was created closed.
	StartTask(ctx context.Context, event *domain.Event, now time.Time) (*domain.ActiveRecord, error)
	// StopTask atomically closes the subject's open event at now and
	// deletes the active record. Safe to call when nothing is active.
	StopTask(ctx context.Context, subjectID string, now time.Time) error
	// SaveEvent atomically persists the (already validated) event and syncs
	// the active record: upserted when the event is open, removed when this
	// event was the mirrored one and is now closed.
	SaveEvent(ctx context.Context, event *domain.Event, now time.Time) error
}

// gormRepository implements Repository on GORM (SQLite by default).
type gormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a Repository backed by the given GORM handle.
func NewGormRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// Migrate runs the schema migrations for the activity tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&domain.Event{}, &domain.ActiveRecord{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (r *gormRepository) GetActive(ctx context.Context, subjectID string) (*domain.ActiveRecord, error) {
	var active domain.ActiveRecord
	err := r.db.WithContext(ctx).First(&active, "subject_id = ?", subjectID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load active record: %w", err)
	}
	return &active, nil
}

func (r *gormRepository) GetEvent(ctx context.Context, subjectID, eventID string) (*domain.Event, error) {
	var event domain.Event
	err := r.db.WithContext(ctx).First(&event, "id = ? AND subject_id = ?", eventID, subjectID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	return &event, nil
}

func (r *gormRepository) ListEvents(ctx context.Context, subjectID string, limit int) ([]domain.Event, error) {
	var events []domain.Event
	err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("started_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

func (r *gormRepository) ListEventsSince(ctx context.Context, subjectID string, since time.Time, limit int) ([]domain.Event, error) {
	var events []domain.Event
	err := r.db.WithContext(ctx).
		Where("subject_id = ? AND started_at >= ?", subjectID, since).
		Order("started_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events since %s: %w", since, err)
	}
	return events, nil
}

func (r *gormRepository) StartTask(ctx context.Context, event *domain.Event, now time.Time) (*domain.ActiveRecord, error) {
	var active *domain.ActiveRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Close any previously open event at the new task's start time so
		// events never overlap.
		err := tx.Model(&domain.Event{}).
			Where("subject_id = ? AND ended_at IS NULL", event.SubjectID).
			Update("ended_at", event.StartedAt).Error
		if err != nil {
			return fmt.Errorf("failed to close open event: %w", err)
		}

		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("failed to create event: %w", err)
		}

		if event.EndedAt != nil {
			// Backfilled historical entry: nothing is in progress.
			err := tx.Where("subject_id = ?", event.SubjectID).
				Delete(&domain.ActiveRecord{}).Error
			if err != nil {
				return fmt.Errorf("failed to clear active record: %w", err)
			}
			return nil
		}

		mirror := mirrorOf(event, now)
		if err := upsertActiveGorm(tx, &mirror); err != nil {
			return err
		}
		active = &mirror
		return nil
	})
	if err != nil {
		return nil, err
	}
	return active, nil
}

func (r *gormRepository) StopTask(ctx context.Context, subjectID string, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&domain.Event{}).
			Where("subject_id = ? AND ended_at IS NULL", subjectID).
			Update("ended_at", now).Error
		if err != nil {
			return fmt.Errorf("failed to close open event: %w", err)
		}
		err = tx.Where("subject_id = ?", subjectID).
			Delete(&domain.ActiveRecord{}).Error
		if err != nil {
			return fmt.Errorf("failed to delete active record: %w", err)
		}
		return nil
	})
}

func (r *gormRepository) SaveEvent(ctx context.Context, event *domain.Event, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&domain.Event{}).
			Where("id = ? AND subject_id = ?", event.ID, event.SubjectID).
			Select("title", "category", "status", "project", "notes",
				"reference_id", "started_at", "ended_at", "visibility",
				"redacted_label").
			Updates(event)
		if err := result.Error; err != nil {
			return fmt.Errorf("failed to update event: %w", err)
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}

		if event.EndedAt == nil {
			mirror := mirrorOf(event, now)
			return upsertActiveGorm(tx, &mirror)
		}

		// The event is closed; drop the active record if it mirrored this
		// event, leaving any other subject's state untouched.
		err := tx.Where("subject_id = ? AND event_id = ?", event.SubjectID, event.ID).
			Delete(&domain.ActiveRecord{}).Error
		if err != nil {
			return fmt.Errorf("failed to clear active record: %w", err)
		}
		return nil
	})
}

// mirrorOf builds the active record that mirrors an open event.
func mirrorOf(event *domain.Event, now time.Time) domain.ActiveRecord {
	return domain.ActiveRecord{
		SubjectID:       event.SubjectID,
		EventID:         event.ID,
		Title:           event.Title,
		Category:        event.Category,
		Status:          event.Status,
		Project:         event.Project,
		Notes:           event.Notes,
		ReferenceID:     event.ReferenceID,
		StartedAt:       event.StartedAt,
		LastHeartbeatAt: now,
		Visibility:      event.Visibility,
		RedactedLabel:   event.RedactedLabel,
	}
}

func upsertActiveGorm(tx *gorm.DB, mirror *domain.ActiveRecord) error {
	err := tx.Where("subject_id = ?", mirror.SubjectID).
		Delete(&domain.ActiveRecord{}).Error
	if err != nil {
		return fmt.Errorf("failed to replace active record: %w", err)
	}
	if err := tx.Create(mirror).Error; err != nil {
		return fmt.Errorf("failed to upsert active record: %w", err)
	}
	return nil
}
