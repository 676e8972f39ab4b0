package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/perkhub/coffee-shop-backend/internal/models"
)

type ReviewRepo struct {
	db *sql.DB
}

func NewReviewRepo(db *sql.DB) *ReviewRepo {
	return &ReviewRepo{db: db}
}

const reviewColumns = `id, user_id, coffee_id, rating, comment, created_at, updated_at`

// CreateReview inserts a review and refreshes the coffee's mean
// rating in the same transaction. A second review by the same user
// for the same coffee yields ErrDuplicateReview.
func (r *ReviewRepo) CreateReview(ctx context.Context, rev *models.Review) (*models.Review, error) {
	created := *rev
	err := r.inRatingTx(ctx, rev.CoffeeID, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `
			INSERT INTO reviews (user_id, coffee_id, rating, comment)
			VALUES ($1, $2, $3, $4)
			RETURNING `+reviewColumns,
			rev.UserID, rev.CoffeeID, rev.Rating, rev.Comment,
		).Scan(&created.ID, &created.UserID, &created.CoffeeID, &created.Rating,
			&created.Comment, &created.CreatedAt, &created.UpdatedAt)
	})
	if isUniqueViolation(err) {
		return nil, ErrDuplicateReview
	}
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *ReviewRepo) ReviewByID(ctx context.Context, id int) (*models.Review, error) {
	var rev models.Review
	err := r.db.QueryRowContext(ctx,
		"SELECT "+reviewColumns+" FROM reviews WHERE id = $1", id,
	).Scan(&rev.ID, &rev.UserID, &rev.CoffeeID, &rev.Rating, &rev.Comment,
		&rev.CreatedAt, &rev.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load review: %w", err)
	}
	return &rev, nil
}

// UpdateReview rewrites the rating and comment, then refreshes the
// coffee's mean rating.
func (r *ReviewRepo) UpdateReview(ctx context.Context, id, rating int, comment string) (*models.Review, error) {
	existing, err := r.ReviewByID(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := *existing
	err = r.inRatingTx(ctx, existing.CoffeeID, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `
			UPDATE reviews SET rating = $2, comment = $3, updated_at = NOW()
			WHERE id = $1
			RETURNING `+reviewColumns,
			id, rating, comment,
		).Scan(&updated.ID, &updated.UserID, &updated.CoffeeID, &updated.Rating,
			&updated.Comment, &updated.CreatedAt, &updated.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *ReviewRepo) DeleteReview(ctx context.Context, id, coffeeID int) error {
	return r.inRatingTx(ctx, coffeeID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete review: %w", err)
		}
		return requireRow(res, ErrReviewNotFound)
	})
}

// ReviewsByCoffee lists a coffee's reviews newest first.
func (r *ReviewRepo) ReviewsByCoffee(ctx context.Context, coffeeID int) ([]models.Review, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+reviewColumns+" FROM reviews WHERE coffee_id = $1 ORDER BY created_at DESC", coffeeID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []models.Review{}
	for rows.Next() {
		var rev models.Review
		if err := rows.Scan(&rev.ID, &rev.UserID, &rev.CoffeeID, &rev.Rating,
			&rev.Comment, &rev.CreatedAt, &rev.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return reviews, nil
}

// inRatingTx runs fn and then recomputes the coffee's mean rating,
// all in one transaction so the stored rating always matches the
// surviving reviews.
func (r *ReviewRepo) inRatingTx(ctx context.Context, coffeeID int, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin review tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE coffees
		SET rating = COALESCE((SELECT AVG(rating) FROM reviews WHERE coffee_id = $1), 0),
		    updated_at = NOW()
		WHERE id = $1`, coffeeID)
	if err != nil {
		return fmt.Errorf("recalculate coffee rating: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit review tx: %w", err)
	}
	committed = true
	return nil
}
