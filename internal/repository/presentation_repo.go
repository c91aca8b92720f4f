package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"slidecast-backend/internal/models"
)

type PresentationRepo struct {
	pool *pgxpool.Pool
}

func NewPresentationRepo(pool *pgxpool.Pool) *PresentationRepo {
	return &PresentationRepo{pool: pool}
}

func (r *PresentationRepo) Create(ctx context.Context, pres *models.Presentation) error {
	query := `
		INSERT INTO presentations (id, presenter_id, title, access_code, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	pres.ID = uuid.New()
	pres.IsActive = false
	pres.CurrentSlideIndex = 0

	err := r.pool.QueryRow(ctx, query,
		pres.ID, pres.PresenterID, pres.Title, pres.AccessCode, pres.ExpiresAt,
	).Scan(&pres.CreatedAt, &pres.UpdatedAt)
	if isUniqueViolation(err) {
		return models.ErrDuplicateAccessCode
	}
	return err
}

func (r *PresentationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Presentation, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *PresentationRepo) GetByAccessCode(ctx context.Context, code string) (*models.Presentation, error) {
	return r.getOne(ctx, "access_code = $1", code)
}

func (r *PresentationRepo) getOne(ctx context.Context, where string, arg interface{}) (*models.Presentation, error) {
	pres := &models.Presentation{}
	query := `SELECT id, presenter_id, title, access_code, is_active, current_slide_index, expires_at, created_at, updated_at
		FROM presentations WHERE ` + where

	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&pres.ID, &pres.PresenterID, &pres.Title, &pres.AccessCode,
		&pres.IsActive, &pres.CurrentSlideIndex, &pres.ExpiresAt,
		&pres.CreatedAt, &pres.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return pres, nil
}

func (r *PresentationRepo) ListByPresenter(ctx context.Context, presenterID uuid.UUID) ([]models.Presentation, error) {
	query := `SELECT id, presenter_id, title, access_code, is_active, current_slide_index, expires_at, created_at, updated_at
		FROM presentations WHERE presenter_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, presenterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Presentation, 0)
	for rows.Next() {
		var pres models.Presentation
		if err := rows.Scan(
			&pres.ID, &pres.PresenterID, &pres.Title, &pres.AccessCode,
			&pres.IsActive, &pres.CurrentSlideIndex, &pres.ExpiresAt,
			&pres.CreatedAt, &pres.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, pres)
	}
	return out, rows.Err()
}

func (r *PresentationRepo) Update(ctx context.Context, pres *models.Presentation) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE presentations SET title = $1, expires_at = $2, updated_at = NOW() WHERE id = $3`,
		pres.Title, pres.ExpiresAt, pres.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdateAccessCode swaps the join code, kicking future joins over to the new
// one. Existing sessions are unaffected.
func (r *PresentationRepo) UpdateAccessCode(ctx context.Context, id uuid.UUID, code string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE presentations SET access_code = $1, updated_at = NOW() WHERE id = $2`,
		code, id,
	)
	if isUniqueViolation(err) {
		return models.ErrDuplicateAccessCode
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdateState persists the live control state. This is the only writer of
// is_active and current_slide_index.
func (r *PresentationRepo) UpdateState(ctx context.Context, id uuid.UUID, isActive bool, slideIndex int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE presentations SET is_active = $1, current_slide_index = $2, updated_at = NOW() WHERE id = $3`,
		isActive, slideIndex, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *PresentationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM presentations WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
