package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	domain "github.com/kenrgriggs/whatskennethdoing/domain/activity"
)

const testSubject = "kenneth"

var (
	ownerID  = domain.Identity{SubjectID: testSubject, ViewerID: testSubject, Role: domain.RoleOwner}
	viewerID = domain.Identity{SubjectID: testSubject, ViewerID: "guest", Role: domain.RoleViewer}
)

// setupService creates a service over an in-memory SQLite store.
func setupService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return NewService(NewGormRepository(db), DefaultConfig()), db
}

func strPtr(s string) *string { return &s }

// countOpenEvents returns how many events for the subject have no end.
func countOpenEvents(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	err := db.Model(&domain.Event{}).
		Where("subject_id = ? AND ended_at IS NULL", testSubject).
		Count(&n).Error
	if err != nil {
		t.Fatalf("failed to count open events: %v", err)
	}
	return n
}

func TestStartOrUpdate_RoundTrip(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	active, err := svc.StartOrUpdate(ctx, ownerID, StartRequest{Title: "Write spec", Category: "Admin"})
	if err != nil {
		t.Fatalf("StartOrUpdate() error = %v", err)
	}
	if active == nil {
		t.Fatal("StartOrUpdate() returned nil active record")
	}

	current, err := svc.Current(ctx, ownerID)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if current == nil {
		t.Fatal("Current() returned nil")
	}
	if current.Title != "Write spec" || current.Category != "Admin" {
		t.Errorf("Current() = %q/%q, want Write spec/Admin", current.Title, current.Category)
	}
	if current.Status != domain.StatusInProgress {
		t.Errorf("status = %q, want default IN_PROGRESS", current.Status)
	}
}

func TestStartOrUpdate_SingleOpenEventInvariant(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	for _, title := range []string{"one", "two", "three"} {
		if _, err := svc.StartOrUpdate(ctx, ownerID, StartRequest{Title: title, Category: "Work"}); err != nil {
			t.Fatalf("StartOrUpdate(%q) error = %v", title, err)
		}
		if n := countOpenEvents(t, db); n != 1 {
			t.Fatalf("after starting %q: %d open events, want 1", title, n)
		}
	}

	// The superseded events must be closed at the successor's start.
	var events []domain.Event
	if err := db.Order("started_at ASC").Find(&events).Error; err != nil {
		t.Fatalf("failed to load events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for i := 0; i < 2; i++ {
		if events[i].EndedAt == nil {
			t.Fatalf("event %d still open", i)
		}
		if !events[i].EndedAt.Equal(events[i+1].StartedAt) {
			t.Errorf("event %d closed at %v, want successor start %v", i, events[i].EndedAt, events[i+1].StartedAt)
		}
	}
}

func TestStartOrUpdate_MirrorConsistency(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	if _, err := svc.StartOrUpdate(ctx, ownerID, StartRequest{Title: "Deep work", Category: "Focus", Project: "Q3", Notes: "heads down"}); err != nil {
		t.Fatalf("StartOrUpdate() error = %v", err)
	}

	var open domain.Event
	if err := db.First(&open, "ended_at IS NULL").Error; err != nil {
		t.Fatalf("failed to load open event: %v", err)
	}
	var active domain.ActiveRecord
	if err := db.First(&active, "subject_id = ?", testSubject).Error; err != nil {
		t.Fatalf("failed to load active record: %v", err)
	}

	if active.EventID != open.ID {
		t.Errorf("active mirrors event %q, want %q", active.EventID, open.ID)
	}
	if active.Title != open.Title || active.Category != open.Category ||
		active.Status != open.Status || active.Project != open.Project ||
		active.Notes != open.Notes || active.ReferenceID != open.ReferenceID {
		t.Error("active record fields diverge from open event")
	}
}

func TestStartOrUpdate_ClosedHistoricalEntry(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	active, err := svc.StartOrUpdate(ctx, ownerID, StartRequest{
		Title:     "Backfilled",
		Category:  "Admin",
		StartTime: "2024-01-02T09:00",
		EndTime:   "2024-01-02T10:00",
	})
	if err != nil {
		t.Fatalf("StartOrUpdate() error = %v", err)
	}
	if active != nil {
		t.Errorf("closed entry returned active record %+v, want nil", active)
	}
	if n := countOpenEvents(t, db); n != 0 {
		t.Errorf("%d open events after backfill, want 0", n)
	}

	current, err := svc.Current(ctx, ownerID)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if current != nil {
		t.Errorf("Current() = %+v, want nil after backfill", current)
	}
}

func TestStartOrUpdate_EndBeforeStart(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.StartOrUpdate(context.Background(), ownerID, StartRequest{
		Title:     "A",
		Category:  "B",
		StartTime: "2024-01-02T10:00",
		EndTime:   "2024-01-02T09:00",
	})
	if !domain.IsValidation(err) {
		t.Fatalf("StartOrUpdate() error = %v, want validation error", err)
	}
}

func TestStartOrUpdate_Validation(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  StartRequest
	}{
		{"missing title", StartRequest{Category: "Admin"}},
		{"blank title", StartRequest{Title: "   ", Category: "Admin"}},
		{"missing category", StartRequest{Title: "Task"}},
		{"blank category", StartRequest{Title: "Task", Category: " "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.StartOrUpdate(ctx, ownerID, tc.req); !domain.IsValidation(err) {
				t.Errorf("error = %v, want validation error", err)
			}
		})
	}
}

func TestStartOrUpdate_LegacyTypeAlias(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	active, err := svc.StartOrUpdate(ctx, ownerID, StartRequest{Title: "Old client", Type: "Meeting"})
	if err != nil {
		t.Fatalf("StartOrUpdate() error = %v", err)
	}
	if active.Category != "Meeting" {
		t.Errorf("category = %q, want Meeting via legacy type alias", active.Category)
	}

	// category wins when both are present
	active, err = svc.StartOrUpdate(ctx, ownerID, StartRequest{Title: "Both", Category: "Focus", Type: "Meeting"})
	if err != nil {
		t.Fatalf("StartOrUpdate() error = %v", err)
	}
	if active.Category != "Focus" {
		t.Errorf("category = %q, want Focus (category over type)", active.Category)
	}
}

func TestStartOrUpdate_Forbidden(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.StartOrUpdate(ctx, viewerID, StartRequest{Title: "X", Category: "Y"}); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("StartOrUpdate() error = %v, want ErrForbidden", err)
	}
	if err := svc.Stop(ctx, viewerID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("Stop() error = %v, want ErrForbidden", err)
	}
	if _, err := svc.Suggestions(ctx, viewerID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("Suggestions() error = %v, want ErrForbidden", err)
	}
	if _, err := svc.UpdateEvent(ctx, viewerID, "whatever", EventPatch{}); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("UpdateEvent() error = %v, want ErrForbidden", err)
	}
}

func TestStop_Idempotent(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	if err := svc.Stop(ctx, ownerID); err != nil {
		t.Fatalf("Stop() on idle subject error = %v", err)
	}

	if _, err := svc.StartOrUpdate(ctx, ownerID, StartRequest{Title: "T", Category: "C"}); err != nil {
		t.Fatalf("StartOrUpdate() error = %v", err)
	}
	if err := svc.Stop(ctx, ownerID); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := svc.Stop(ctx, ownerID); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}

	if n := countOpenEvents(t, db); n != 0 {
		t.Errorf("%d open events after stop, want 0", n)
	}
	current, err := svc.Current(ctx, ownerID)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if current != nil {
		t.Errorf("Current() = %+v after stop, want nil", current)
	}
}

func TestRedaction(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.StartOrUpdate(ctx, ownerID, StartRequest{
		Title:       "Secret project",
		Category:    "Work",
		Project:     "Skunkworks",
		Notes:       "do not tell",
		ReferenceID: "REF-1",
		Visibility:  "REDACTED",
	})
	if err != nil {
		t.Fatalf("StartOrUpdate() error = %v", err)
	}

	current, err := svc.Current(ctx, viewerID)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if current.Title != domain.DefaultRedactedLabel {
		t.Errorf("title = %q, want fallback label", current.Title)
	}
	if current.Project != "" || current.Notes != "" || current.ReferenceID != "" {
		t.Error("project/notes/reference should be cleared for non-owner")
	}

	owner, err := svc.Current(ctx, ownerID)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if owner.Title != "Secret project" || owner.Notes != "do not tell" {
		t.Error("owner should see the real fields")
	}

	events, err := svc.Events(ctx, viewerID, 10)
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Title != domain.DefaultRedactedLabel || events[0].Project != "" {
		t.Error("event not redacted for non-owner")
	}
}

func TestRedaction_CustomLabel(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.StartOrUpdate(ctx, ownerID, StartRequest{
		Title:         "Secret",
		Category:      "Work",
		Visibility:    "redacted",
		RedactedLabel: "Heads-down time",
	})
	if err != nil {
		t.Fatalf("StartOrUpdate() error = %v", err)
	}

	current, err := svc.Current(ctx, viewerID)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if current.Title != "Heads-down time" {
		t.Errorf("title = %q, want the entry's own label", current.Title)
	}
}

func TestUpdateEvent_NoReopen(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	if _, err := svc.StartOrUpdate(ctx, ownerID, StartRequest{Title: "T", Category: "C"}); err != nil {
		t.Fatalf("StartOrUpdate() error = %v", err)
	}
	if err := svc.Stop(ctx, ownerID); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	var closed domain.Event
	if err := db.First(&closed).Error; err != nil {
		t.Fatalf("failed to load event: %v", err)
	}
	before := *closed.EndedAt

	_, err := svc.UpdateEvent(ctx, ownerID, closed.ID, EventPatch{EndTime: strPtr("")})
	if !domain.IsValidation(err) {
		t.Fatalf("UpdateEvent() error = %v, want validation error", err)
	}

	if err := db.First(&closed, "id = ?", closed.ID).Error; err != nil {
		t.Fatalf("failed to reload event: %v", err)
	}
	if closed.EndedAt == nil || !closed.EndedAt.Equal(before) {
		t.Error("endedAt changed despite rejected reopen")
	}
}

func TestUpdateEvent_PresenceSemantics(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	if _, err := svc.StartOrUpdate(ctx, ownerID, StartRequest{
		Title: "T", Category: "C", Project: "P", Notes: "N",
	}); err != nil {
		t.Fatalf("StartOrUpdate() error = %v", err)
	}
	var event domain.Event
	if err := db.First(&event).Error; err != nil {
		t.Fatalf("failed to load event: %v", err)
	}

	// Omitted fields stay untouched; explicit empty clears.
	updated, err := svc.UpdateEvent(ctx, ownerID, event.ID, EventPatch{
		Title:   strPtr("Renamed"),
		Project: strPtr(""),
	})
	if err != nil {
		t.Fatalf("UpdateEvent() error = %v", err)
	}
	if updated.Title != "Renamed" {
		t.Errorf("title = %q, want Renamed", updated.Title)
	}
	if updated.Project != "" {
		t.Errorf("project = %q, want cleared", updated.Project)
	}
	if updated.Category != "C" || updated.Notes != "N" {
		t.Error("omitted fields were modified")
	}
}

func TestUpdateEvent_ActiveRecordSync(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	if _, err := svc.StartOrUpdate(ctx, ownerID, StartRequest{Title: "T", Category: "C"}); err != nil {
		t.Fatalf("StartOrUpdate() error = %v", err)
	}
	var open domain.Event
	if err := db.First(&open, "ended_at IS NULL").Error; err != nil {
		t.Fatalf("failed to load open event: %v", err)
	}

	// Editing the open event keeps the mirror in sync.
	if _, err := svc.UpdateEvent(ctx, ownerID, open.ID, EventPatch{Title: strPtr("Edited")}); err != nil {
		t.Fatalf("UpdateEvent() error = %v", err)
	}
	current, err := svc.Current(ctx, ownerID)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if current == nil || current.Title != "Edited" {
		t.Fatalf("active record not updated, got %+v", current)
	}

	// Closing the open event via edit removes the active record.
	end := open.StartedAt.Add(24 * time.Hour).Format("2006-01-02T15:04:05")
	if _, err := svc.UpdateEvent(ctx, ownerID, open.ID, EventPatch{EndTime: strPtr(end)}); err != nil {
		t.Fatalf("UpdateEvent() error = %v", err)
	}
	current, err = svc.Current(ctx, ownerID)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if current != nil {
		t.Errorf("active record survives closed event: %+v", current)
	}
}

func TestUpdateEvent_Validation(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	if _, err := svc.StartOrUpdate(ctx, ownerID, StartRequest{Title: "T", Category: "C"}); err != nil {
		t.Fatalf("StartOrUpdate() error = %v", err)
	}
	var event domain.Event
	if err := db.First(&event).Error; err != nil {
		t.Fatalf("failed to load event: %v", err)
	}

	if _, err := svc.UpdateEvent(ctx, ownerID, event.ID, EventPatch{Title: strPtr("  ")}); !domain.IsValidation(err) {
		t.Errorf("blank title: error = %v, want validation error", err)
	}
	if _, err := svc.UpdateEvent(ctx, ownerID, event.ID, EventPatch{Category: strPtr("")}); !domain.IsValidation(err) {
		t.Errorf("empty category: error = %v, want validation error", err)
	}
	end := event.StartedAt.Add(-48 * time.Hour).Format("2006-01-02T15:04:05")
	if _, err := svc.UpdateEvent(ctx, ownerID, event.ID, EventPatch{EndTime: strPtr(end)}); !domain.IsValidation(err) {
		t.Errorf("end before start: error = %v, want validation error", err)
	}
}

func TestUpdateEvent_NotFound(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.UpdateEvent(context.Background(), ownerID, "no-such-id", EventPatch{Title: strPtr("X")})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("UpdateEvent() error = %v, want ErrNotFound", err)
	}
}

func TestEvents_LimitCap(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.StartOrUpdate(ctx, ownerID, StartRequest{Title: "T", Category: "C"}); err != nil {
		t.Fatalf("StartOrUpdate() error = %v", err)
	}

	// Out-of-range limits fall back to the cap rather than failing.
	for _, limit := range []int{0, -5, 5000} {
		events, err := svc.Events(ctx, ownerID, limit)
		if err != nil {
			t.Fatalf("Events(%d) error = %v", limit, err)
		}
		if len(events) != 1 {
			t.Errorf("Events(%d) returned %d rows, want 1", limit, len(events))
		}
	}
}

func TestSuggestions(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	seed := []StartRequest{
		{Title: "standup", Category: "Meeting", Notes: "daily"},
		{Title: "Code Review", Category: "Work"},
		{Title: "Standup", Category: "meeting", Notes: "with notes"},
		{Title: "Deep Work", Category: "Focus", Notes: "sprint goal"},
	}
	for _, req := range seed {
		if _, err := svc.StartOrUpdate(ctx, ownerID, req); err != nil {
			t.Fatalf("StartOrUpdate(%q) error = %v", req.Title, err)
		}
	}

	s, err := svc.Suggestions(ctx, ownerID)
	if err != nil {
		t.Fatalf("Suggestions() error = %v", err)
	}

	// Active title first, then newest history, case-insensitive dedup.
	wantTitles := []string{"Deep Work", "Standup", "Code Review"}
	if len(s.Titles) != len(wantTitles) {
		t.Fatalf("titles = %v, want %v", s.Titles, wantTitles)
	}
	for i, want := range wantTitles {
		if s.Titles[i] != want {
			t.Errorf("titles[%d] = %q, want %q", i, s.Titles[i], want)
		}
	}

	wantCategories := []string{"Focus", "meeting", "Work"}
	if len(s.Categories) != len(wantCategories) {
		t.Fatalf("categories = %v, want %v", s.Categories, wantCategories)
	}
	for i, want := range wantCategories {
		if s.Categories[i] != want {
			t.Errorf("categories[%d] = %q, want %q", i, s.Categories[i], want)
		}
	}

	// Most recent notes win per title.
	notesByTask := map[string]string{}
	for _, p := range s.TaskNotes {
		notesByTask[p.Task] = p.Notes
	}
	if notesByTask["Standup"] != "with notes" {
		t.Errorf("Standup notes = %q, want the most recent", notesByTask["Standup"])
	}
	if notesByTask["Deep Work"] != "sprint goal" {
		t.Errorf("Deep Work notes = %q", notesByTask["Deep Work"])
	}
}

func TestStatusNormalization(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	cases := map[string]domain.Status{
		"on hold":     domain.StatusOnHold,
		"Completed":   domain.StatusCompleted,
		"not-started": domain.StatusNotStarted,
		"bananas":     domain.StatusInProgress,
		"":            domain.StatusInProgress,
	}
	for raw, want := range cases {
		active, err := svc.StartOrUpdate(ctx, ownerID, StartRequest{Title: "T", Category: "C", Status: raw})
		if err != nil {
			t.Fatalf("StartOrUpdate(status=%q) error = %v", raw, err)
		}
		if active.Status != want {
			t.Errorf("status %q normalized to %q, want %q", raw, active.Status, want)
		}
	}
}
