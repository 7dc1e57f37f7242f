package activity

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kenrgriggs/whatskennethdoing/analytics"
	domain "github.com/kenrgriggs/whatskennethdoing/domain/activity"
)

const (
	// maxEventLimit caps how many history entries a single list request
	// may return.
	maxEventLimit = 300
	// analyticsEventCap bounds the analytics window query.
	analyticsEventCap = 500
	// maxNoteSuggestions caps the title-to-notes pairs returned to the
	// entry form.
	maxNoteSuggestions = 100
)

// Config holds service configuration.
type Config struct {
	// RedactedFallback is shown instead of the title of a redacted entry
	// that has no redacted label of its own.
	RedactedFallback string
	// FallbackCategory labels analytics minutes for events without a
	// category.
	FallbackCategory string
	// Location resolves "today" and "start of week" boundaries.
	Location *time.Location
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		RedactedFallback: domain.DefaultRedactedLabel,
		FallbackCategory: "General",
		Location:         time.Local,
	}
}

// Service implements the activity operations. Every method takes the
// caller's resolved Identity; owner-only operations fail with
// domain.ErrForbidden for other roles.
type Service struct {
	repo     Repository
	cfg      Config
	notifier Notifier
	now      func() time.Time
}

// NewService creates a new activity service.
func NewService(repo Repository, cfg Config) *Service {
	if cfg.RedactedFallback == "" {
		cfg.RedactedFallback = domain.DefaultRedactedLabel
	}
	if cfg.FallbackCategory == "" {
		cfg.FallbackCategory = "General"
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Service{
		repo: repo,
		cfg:  cfg,
		now:  time.Now,
	}
}

// SetNotifier wires the best-effort current-activity change notifier.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetClock overrides the service clock. Intended for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Current returns the subject's active record, or nil when idle. Redacted
// entries are substituted for non-owner viewers.
func (s *Service) Current(ctx context.Context, id domain.Identity) (*domain.ActiveRecord, error) {
	active, err := s.repo.GetActive(ctx, id.SubjectID)
	if err != nil || active == nil {
		return nil, err
	}
	if !id.Owner() {
		redacted := domain.RedactActive(*active, s.cfg.RedactedFallback)
		return &redacted, nil
	}
	return active, nil
}

// StartOrUpdate starts a new current task, or records an already-closed
// historical entry when an end time is supplied. Any previously open event
// is closed at the new task's start time. Returns the resulting active
// record, or nil when the entry was created closed.
func (s *Service) StartOrUpdate(ctx context.Context, id domain.Identity, req StartRequest) (*domain.ActiveRecord, error) {
	if !id.Owner() {
		return nil, domain.ErrForbidden
	}

	title := strings.TrimSpace(req.Title)
	category := strings.TrimSpace(req.EffectiveCategory())
	if title == "" {
		return nil, domain.NewValidationError("title is required")
	}
	if category == "" {
		return nil, domain.NewValidationError("category is required")
	}

	now := s.now()
	startedAt := now
	if strings.TrimSpace(req.StartTime) != "" {
		parsed, err := s.parseTime(req.StartTime)
		if err != nil {
			return nil, domain.NewValidationError("invalid start time")
		}
		startedAt = parsed
	}

	var endedAt *time.Time
	if strings.TrimSpace(req.EndTime) != "" {
		parsed, err := s.parseTime(req.EndTime)
		if err != nil {
			return nil, domain.NewValidationError("invalid end time")
		}
		if parsed.Before(startedAt) {
			return nil, domain.NewValidationError("end time is before start time")
		}
		endedAt = &parsed
	}

	event := &domain.Event{
		ID:            uuid.New().String(),
		SubjectID:     id.SubjectID,
		Title:         title,
		Category:      category,
		Status:        domain.NormalizeStatus(req.Status),
		Project:       strings.TrimSpace(req.Project),
		Notes:         req.Notes,
		ReferenceID:   strings.TrimSpace(req.ReferenceID),
		StartedAt:     startedAt,
		EndedAt:       endedAt,
		Visibility:    domain.NormalizeVisibility(req.Visibility),
		RedactedLabel: strings.TrimSpace(req.RedactedLabel),
	}

	active, err := s.repo.StartTask(ctx, event, now)
	if err != nil {
		return nil, fmt.Errorf("failed to start task: %w", err)
	}

	s.notifyCurrent(id.SubjectID, active)
	return active, nil
}

// Stop closes the subject's open event at now and clears the active
// record. Idempotent: stopping an idle subject is a no-op.
func (s *Service) Stop(ctx context.Context, id domain.Identity) error {
	if !id.Owner() {
		return domain.ErrForbidden
	}
	if err := s.repo.StopTask(ctx, id.SubjectID, s.now()); err != nil {
		return fmt.Errorf("failed to stop task: %w", err)
	}
	s.notifyCurrent(id.SubjectID, nil)
	return nil
}

// Events returns up to limit recent history entries, newest first.
// Redacted entries are substituted for non-owner viewers.
func (s *Service) Events(ctx context.Context, id domain.Identity, limit int) ([]domain.Event, error) {
	if limit <= 0 || limit > maxEventLimit {
		limit = maxEventLimit
	}
	events, err := s.repo.ListEvents(ctx, id.SubjectID, limit)
	if err != nil {
		return nil, err
	}
	if !id.Owner() {
		for i := range events {
			events[i] = domain.RedactEvent(events[i], s.cfg.RedactedFallback)
		}
	}
	return events, nil
}

// UpdateEvent applies a presence-based patch to a history entry and keeps
// the active record in sync: an entry that is open after the patch is
// mirrored, an entry that just closed clears the mirror.
func (s *Service) UpdateEvent(ctx context.Context, id domain.Identity, eventID string, patch EventPatch) (*domain.Event, error) {
	if !id.Owner() {
		return nil, domain.ErrForbidden
	}

	event, err := s.repo.GetEvent(ctx, id.SubjectID, eventID)
	if err != nil {
		return nil, err
	}
	wasClosed := event.EndedAt != nil

	if patch.Title != nil {
		event.Title = strings.TrimSpace(*patch.Title)
	}
	if cat, ok := patch.CategoryField(); ok {
		event.Category = strings.TrimSpace(*cat)
	}
	if patch.Status != nil {
		event.Status = domain.NormalizeStatus(*patch.Status)
	}
	if patch.Project != nil {
		event.Project = strings.TrimSpace(*patch.Project)
	}
	if patch.Notes != nil {
		event.Notes = *patch.Notes
	}
	if patch.ReferenceID != nil {
		event.ReferenceID = strings.TrimSpace(*patch.ReferenceID)
	}
	if patch.Visibility != nil {
		event.Visibility = domain.NormalizeVisibility(*patch.Visibility)
	}
	if patch.RedactedLabel != nil {
		event.RedactedLabel = strings.TrimSpace(*patch.RedactedLabel)
	}

	if patch.StartTime != nil {
		if strings.TrimSpace(*patch.StartTime) == "" {
			return nil, domain.NewValidationError("start time is required")
		}
		parsed, err := s.parseTime(*patch.StartTime)
		if err != nil {
			return nil, domain.NewValidationError("invalid start time")
		}
		event.StartedAt = parsed
	}

	if patch.EndTime != nil {
		if strings.TrimSpace(*patch.EndTime) == "" {
			// Only starting a new current task may re-establish an open
			// event; clearing the end of a closed entry is rejected.
			if wasClosed {
				return nil, domain.NewValidationError("reopening a closed entry is not supported")
			}
			event.EndedAt = nil
		} else {
			parsed, err := s.parseTime(*patch.EndTime)
			if err != nil {
				return nil, domain.NewValidationError("invalid end time")
			}
			event.EndedAt = &parsed
		}
	}

	if event.Title == "" {
		return nil, domain.NewValidationError("title is required")
	}
	if event.Category == "" {
		return nil, domain.NewValidationError("category is required")
	}
	if event.EndedAt != nil && event.EndedAt.Before(event.StartedAt) {
		return nil, domain.NewValidationError("end time is before start time")
	}

	if err := s.repo.SaveEvent(ctx, event, s.now()); err != nil {
		return nil, err
	}

	if active, err := s.repo.GetActive(ctx, id.SubjectID); err == nil {
		s.notifyCurrent(id.SubjectID, active)
	}
	return event, nil
}

// Suggestions builds entry-form prefill lists from the active record and
// the most recent history. Dedup is case-insensitive, first seen wins, and
// input order is preserved, so newer values surface first.
func (s *Service) Suggestions(ctx context.Context, id domain.Identity) (*Suggestions, error) {
	if !id.Owner() {
		return nil, domain.ErrForbidden
	}

	events, err := s.repo.ListEvents(ctx, id.SubjectID, maxEventLimit)
	if err != nil {
		return nil, err
	}
	active, err := s.repo.GetActive(ctx, id.SubjectID)
	if err != nil {
		return nil, err
	}

	var titles, categories []string
	seenTitle := map[string]bool{}
	seenCategory := map[string]bool{}
	addTitle := func(v string) {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seenTitle[key] {
			return
		}
		seenTitle[key] = true
		titles = append(titles, v)
	}
	addCategory := func(v string) {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seenCategory[key] {
			return
		}
		seenCategory[key] = true
		categories = append(categories, v)
	}

	if active != nil {
		addTitle(active.Title)
		addCategory(active.Category)
	}

	var pairs []TaskNotes
	seenNotes := map[string]bool{}
	if active != nil && strings.TrimSpace(active.Notes) != "" {
		pairs = append(pairs, TaskNotes{Task: strings.TrimSpace(active.Title), Notes: active.Notes})
		seenNotes[strings.ToLower(strings.TrimSpace(active.Title))] = true
	}

	for _, e := range events {
		addTitle(e.Title)
		addCategory(e.Category)
		title := strings.TrimSpace(e.Title)
		key := strings.ToLower(title)
		if title == "" || seenNotes[key] || strings.TrimSpace(e.Notes) == "" {
			continue
		}
		if len(pairs) >= maxNoteSuggestions {
			continue
		}
		seenNotes[key] = true
		pairs = append(pairs, TaskNotes{Task: title, Notes: e.Notes})
	}

	return &Suggestions{
		Titles:     titles,
		Categories: categories,
		TaskNotes:  pairs,
	}, nil
}

// Analytics aggregates this week's events into per-category minute totals.
// Always recomputed from the store; never cached.
func (s *Service) Analytics(ctx context.Context, id domain.Identity) (*analytics.Report, error) {
	now := s.now()
	weekStart := analytics.WeekStart(now, s.cfg.Location)
	events, err := s.repo.ListEventsSince(ctx, id.SubjectID, weekStart, analyticsEventCap)
	if err != nil {
		return nil, err
	}
	report := analytics.Aggregate(events, now, s.cfg.Location, s.cfg.FallbackCategory)
	return &report, nil
}

// parseTime accepts RFC3339 and the HTML datetime-local formats the
// dashboard submits; bare local forms resolve in the configured location.
func (s *Service) parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, raw, s.cfg.Location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", raw)
}

func (s *Service) notifyCurrent(subjectID string, active *domain.ActiveRecord) {
	if s.notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[activity] Warning: notifier panic: %v", r)
		}
	}()
	s.notifier.NotifyCurrent(subjectID, active)
}
