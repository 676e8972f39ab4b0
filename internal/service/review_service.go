package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/perkhub/coffee-shop-backend/internal/models"
)

const maxCommentLength = 1000

type ReviewRepo interface {
	CreateReview(ctx context.Context, rev *models.Review) (*models.Review, error)
	ReviewByID(ctx context.Context, id int) (*models.Review, error)
	UpdateReview(ctx context.Context, id, rating int, comment string) (*models.Review, error)
	DeleteReview(ctx context.Context, id, coffeeID int) error
	ReviewsByCoffee(ctx context.Context, coffeeID int) ([]models.Review, error)
}

// ReviewService enforces the one-review-per-coffee rule and review
// ownership. Rating recalculation happens inside the repository's
// transactions.
type ReviewService struct {
	reviews ReviewRepo
	coffees CoffeeRepo
}

func NewReviewService(reviews ReviewRepo, coffees CoffeeRepo) *ReviewService {
	return &ReviewService{reviews: reviews, coffees: coffees}
}

// Create adds a review for a coffee the user has not reviewed yet.
func (s *ReviewService) Create(ctx context.Context, userID, coffeeID, rating int, comment string) (*models.Review, error) {
	comment = strings.TrimSpace(comment)
	if err := validateReview(rating, comment); err != nil {
		return nil, err
	}
	// Confirm the coffee exists so the review's 404 beats a foreign
	// key error.
	if _, err := s.coffees.CoffeeByID(ctx, coffeeID); err != nil {
		return nil, err
	}
	return s.reviews.CreateReview(ctx, &models.Review{
		UserID:   userID,
		CoffeeID: coffeeID,
		Rating:   rating,
		Comment:  comment,
	})
}

// Update rewrites the caller's own review.
func (s *ReviewService) Update(ctx context.Context, reviewID, userID, rating int, comment string) (*models.Review, error) {
	comment = strings.TrimSpace(comment)
	if err := validateReview(rating, comment); err != nil {
		return nil, err
	}
	existing, err := s.reviews.ReviewByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if existing.UserID != userID {
		return nil, ErrForbidden
	}
	return s.reviews.UpdateReview(ctx, reviewID, rating, comment)
}

// Delete removes a review; the author or an admin may delete it.
func (s *ReviewService) Delete(ctx context.Context, reviewID, userID int, role models.Role) error {
	existing, err := s.reviews.ReviewByID(ctx, reviewID)
	if err != nil {
		return err
	}
	if existing.UserID != userID && role != models.RoleAdmin {
		return ErrForbidden
	}
	return s.reviews.DeleteReview(ctx, reviewID, existing.CoffeeID)
}

// ListForCoffee returns a coffee's reviews, newest first.
func (s *ReviewService) ListForCoffee(ctx context.Context, coffeeID int) ([]models.Review, error) {
	if _, err := s.coffees.CoffeeByID(ctx, coffeeID); err != nil {
		return nil, err
	}
	return s.reviews.ReviewsByCoffee(ctx, coffeeID)
}

func validateReview(rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}
	if len(comment) > maxCommentLength {
		return fmt.Errorf("%w: comment must be at most %d characters", ErrValidation, maxCommentLength)
	}
	return nil
}
