package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"slidecast-backend/internal/models"
)

type SlideRepo struct {
	pool *pgxpool.Pool
}

func NewSlideRepo(pool *pgxpool.Pool) *SlideRepo {
	return &SlideRepo{pool: pool}
}

// Create appends a slide at the end of the deck.
func (r *SlideRepo) Create(ctx context.Context, slide *models.Slide) error {
	query := `
		INSERT INTO slides (id, presentation_id, position, title, body, deck_page)
		SELECT $1, $2, COALESCE(MAX(position) + 1, 0), $3, $4, $5
		FROM slides WHERE presentation_id = $2
		RETURNING position, created_at`

	slide.ID = uuid.New()

	return r.pool.QueryRow(ctx, query,
		slide.ID, slide.PresentationID, slide.Title, slide.Body, slide.DeckPage,
	).Scan(&slide.Position, &slide.CreatedAt)
}

func (r *SlideRepo) ListByPresentation(ctx context.Context, presentationID uuid.UUID) ([]models.Slide, error) {
	query := `SELECT id, presentation_id, position, title, body, deck_page, created_at
		FROM slides WHERE presentation_id = $1 ORDER BY position ASC`

	rows, err := r.pool.Query(ctx, query, presentationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Slide, 0)
	for rows.Next() {
		var slide models.Slide
		if err := rows.Scan(
			&slide.ID, &slide.PresentationID, &slide.Position,
			&slide.Title, &slide.Body, &slide.DeckPage, &slide.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, slide)
	}
	return out, rows.Err()
}

func (r *SlideRepo) CountByPresentation(ctx context.Context, presentationID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM slides WHERE presentation_id = $1", presentationID,
	).Scan(&n)
	return n, err
}

// Delete removes one slide and closes the position gap it leaves, so
// positions stay dense and slide indexes keep meaning "Nth slide".
func (r *SlideRepo) Delete(ctx context.Context, presentationID, slideID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var position int
	err = tx.QueryRow(ctx,
		"DELETE FROM slides WHERE id = $1 AND presentation_id = $2 RETURNING position",
		slideID, presentationID,
	).Scan(&position)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrNotFound
		}
		return err
	}

	_, err = tx.Exec(ctx,
		"UPDATE slides SET position = position - 1 WHERE presentation_id = $1 AND position > $2",
		presentationID, position,
	)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ReplaceAll swaps the whole deck in one transaction, used when a new deck
// file is uploaded. Positions follow the order of the given slice.
func (r *SlideRepo) ReplaceAll(ctx context.Context, presentationID uuid.UUID, slides []models.Slide) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM slides WHERE presentation_id = $1", presentationID); err != nil {
		return err
	}

	for i := range slides {
		slides[i].ID = uuid.New()
		slides[i].PresentationID = presentationID
		slides[i].Position = i
		if _, err := tx.Exec(ctx,
			`INSERT INTO slides (id, presentation_id, position, title, body, deck_page)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			slides[i].ID, presentationID, i, slides[i].Title, slides[i].Body, slides[i].DeckPage,
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
