package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/kenrgriggs/whatskennethdoing/domain/activity"
)

// pgSchema creates the activity tables when deploying against Postgres.
const pgSchema = `
CREATE TABLE IF NOT EXISTS events (
	id             VARCHAR(36) PRIMARY KEY,
	subject_id     VARCHAR(255) NOT NULL,
	title          VARCHAR(500) NOT NULL,
	category       VARCHAR(100) NOT NULL,
	status         VARCHAR(20) NOT NULL,
	project        VARCHAR(255) NOT NULL DEFAULT '',
	notes          VARCHAR(2000) NOT NULL DEFAULT '',
	reference_id   VARCHAR(255) NOT NULL DEFAULT '',
	started_at     TIMESTAMPTZ NOT NULL,
	ended_at       TIMESTAMPTZ,
	visibility     VARCHAR(20) NOT NULL DEFAULT 'PUBLIC',
	redacted_label VARCHAR(255) NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_events_subject ON events (subject_id);
CREATE INDEX IF NOT EXISTS idx_events_started ON events (started_at);

CREATE TABLE IF NOT EXISTS active_records (
	subject_id        VARCHAR(255) PRIMARY KEY,
	event_id          VARCHAR(36) NOT NULL,
	title             VARCHAR(500) NOT NULL,
	category          VARCHAR(100) NOT NULL,
	status            VARCHAR(20) NOT NULL,
	project           VARCHAR(255) NOT NULL DEFAULT '',
	notes             VARCHAR(2000) NOT NULL DEFAULT '',
	reference_id      VARCHAR(255) NOT NULL DEFAULT '',
	started_at        TIMESTAMPTZ NOT NULL,
	last_heartbeat_at TIMESTAMPTZ NOT NULL,
	visibility        VARCHAR(20) NOT NULL DEFAULT 'PUBLIC',
	redacted_label    VARCHAR(255) NOT NULL DEFAULT ''
);
`

const eventColumns = `id, subject_id, title, category, status, project, notes,
	reference_id, started_at, ended_at, visibility, redacted_label,
	created_at, updated_at`

// pgRepository implements Repository on a pgx connection pool.
type pgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a Repository backed by Postgres and ensures the
// schema exists.
func NewPgRepository(ctx context.Context, pool *pgxpool.Pool) (Repository, error) {
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return &pgRepository{pool: pool}, nil
}

func (r *pgRepository) GetActive(ctx context.Context, subjectID string) (*domain.ActiveRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT subject_id, event_id, title, category, status, project, notes,
			reference_id, started_at, last_heartbeat_at, visibility, redacted_label
		FROM active_records WHERE subject_id = $1`, subjectID)

	var a domain.ActiveRecord
	err := row.Scan(&a.SubjectID, &a.EventID, &a.Title, &a.Category, &a.Status,
		&a.Project, &a.Notes, &a.ReferenceID, &a.StartedAt, &a.LastHeartbeatAt,
		&a.Visibility, &a.RedactedLabel)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load active record: %w", err)
	}
	return &a, nil
}

func (r *pgRepository) GetEvent(ctx context.Context, subjectID, eventID string) (*domain.Event, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM events WHERE id = $1 AND subject_id = $2`, eventID, subjectID)

	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	return event, nil
}

func (r *pgRepository) ListEvents(ctx context.Context, subjectID string, limit int) ([]domain.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM events WHERE subject_id = $1
		ORDER BY started_at DESC LIMIT $2`, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (r *pgRepository) ListEventsSince(ctx context.Context, subjectID string, since time.Time, limit int) ([]domain.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM events WHERE subject_id = $1 AND started_at >= $2
		ORDER BY started_at DESC LIMIT $3`, subjectID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events since %s: %w", since, err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (r *pgRepository) StartTask(ctx context.Context, event *domain.Event, now time.Time) (*domain.ActiveRecord, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE events SET ended_at = $1, updated_at = $2
		WHERE subject_id = $3 AND ended_at IS NULL`,
		event.StartedAt, now, event.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to close open event: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO events (id, subject_id, title, category, status, project,
			notes, reference_id, started_at, ended_at, visibility,
			redacted_label, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)`,
		event.ID, event.SubjectID, event.Title, event.Category, event.Status,
		event.Project, event.Notes, event.ReferenceID, event.StartedAt,
		event.EndedAt, event.Visibility, event.RedactedLabel, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	var active *domain.ActiveRecord
	if event.EndedAt != nil {
		_, err = tx.Exec(ctx,
			`DELETE FROM active_records WHERE subject_id = $1`, event.SubjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to clear active record: %w", err)
		}
	} else {
		mirror := mirrorOf(event, now)
		if err := upsertActivePg(ctx, tx, &mirror); err != nil {
			return nil, err
		}
		active = &mirror
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return active, nil
}

func (r *pgRepository) StopTask(ctx context.Context, subjectID string, now time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE events SET ended_at = $1, updated_at = $1
		WHERE subject_id = $2 AND ended_at IS NULL`, now, subjectID)
	if err != nil {
		return fmt.Errorf("failed to close open event: %w", err)
	}
	_, err = tx.Exec(ctx,
		`DELETE FROM active_records WHERE subject_id = $1`, subjectID)
	if err != nil {
		return fmt.Errorf("failed to delete active record: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *pgRepository) SaveEvent(ctx context.Context, event *domain.Event, now time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE events SET title = $1, category = $2, status = $3, project = $4,
			notes = $5, reference_id = $6, started_at = $7, ended_at = $8,
			visibility = $9, redacted_label = $10, updated_at = $11
		WHERE id = $12 AND subject_id = $13`,
		event.Title, event.Category, event.Status, event.Project, event.Notes,
		event.ReferenceID, event.StartedAt, event.EndedAt, event.Visibility,
		event.RedactedLabel, now, event.ID, event.SubjectID)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	if event.EndedAt == nil {
		mirror := mirrorOf(event, now)
		if err := upsertActivePg(ctx, tx, &mirror); err != nil {
			return err
		}
	} else {
		_, err = tx.Exec(ctx, `
			DELETE FROM active_records WHERE subject_id = $1 AND event_id = $2`,
			event.SubjectID, event.ID)
		if err != nil {
			return fmt.Errorf("failed to clear active record: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func upsertActivePg(ctx context.Context, tx pgx.Tx, mirror *domain.ActiveRecord) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO active_records (subject_id, event_id, title, category,
			status, project, notes, reference_id, started_at,
			last_heartbeat_at, visibility, redacted_label)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (subject_id) DO UPDATE SET
			event_id = EXCLUDED.event_id,
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			status = EXCLUDED.status,
			project = EXCLUDED.project,
			notes = EXCLUDED.notes,
			reference_id = EXCLUDED.reference_id,
			started_at = EXCLUDED.started_at,
			last_heartbeat_at = EXCLUDED.last_heartbeat_at,
			visibility = EXCLUDED.visibility,
			redacted_label = EXCLUDED.redacted_label`,
		mirror.SubjectID, mirror.EventID, mirror.Title, mirror.Category,
		mirror.Status, mirror.Project, mirror.Notes, mirror.ReferenceID,
		mirror.StartedAt, mirror.LastHeartbeatAt, mirror.Visibility,
		mirror.RedactedLabel)
	if err != nil {
		return fmt.Errorf("failed to upsert active record: %w", err)
	}
	return nil
}

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	err := row.Scan(&e.ID, &e.SubjectID, &e.Title, &e.Category, &e.Status,
		&e.Project, &e.Notes, &e.ReferenceID, &e.StartedAt, &e.EndedAt,
		&e.Visibility, &e.RedactedLabel, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func collectEvents(rows pgx.Rows) ([]domain.Event, error) {
	var events []domain.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return events, nil
}
