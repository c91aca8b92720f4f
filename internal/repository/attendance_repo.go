package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"slidecast-backend/internal/models"
)

type AttendanceRepo struct {
	pool *pgxpool.Pool
}

func NewAttendanceRepo(pool *pgxpool.Pool) *AttendanceRepo {
	return &AttendanceRepo{pool: pool}
}

// Insert writes one attendance event. Re-delivery of the same event id is a
// no-op, so workers can retry without double-counting.
func (r *AttendanceRepo) Insert(ctx context.Context, ev *models.AttendanceEvent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO attendance_events (id, presentation_id, session_id, display_name, anonymous, kind, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.PresentationID, ev.SessionID, ev.DisplayName, ev.Anonymous, ev.Kind, ev.OccurredAt,
	)
	return err
}

func (r *AttendanceRepo) ListByPresentation(ctx context.Context, presentationID uuid.UUID, limit int) ([]models.AttendanceEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	query := `SELECT id, presentation_id, session_id, display_name, anonymous, kind, occurred_at
		FROM attendance_events WHERE presentation_id = $1
		ORDER BY occurred_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, presentationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.AttendanceEvent, 0)
	for rows.Next() {
		var ev models.AttendanceEvent
		if err := rows.Scan(
			&ev.ID, &ev.PresentationID, &ev.SessionID,
			&ev.DisplayName, &ev.Anonymous, &ev.Kind, &ev.OccurredAt,
		); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// PeakAttendance reports the largest number of distinct sessions that ever
// joined one presentation, a rough engagement figure for the presenter.
func (r *AttendanceRepo) PeakAttendance(ctx context.Context, presentationID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT session_id) FROM attendance_events
		WHERE presentation_id = $1 AND kind = 'joined'`,
		presentationID,
	).Scan(&n)
	return n, err
}
