package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/shorelinehq/oysterly/internal/domain"
	"github.com/shorelinehq/oysterly/pkg/database"
	apperrors "github.com/shorelinehq/oysterly/pkg/errors"
)

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
// The reviews table carries a unique constraint on (author_id, subject_id),
// which is the source of truth for the no-duplicate invariant.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

const reviewColumns = "id, author_id, subject_id, rating, body, created_at, updated_at"

// Create inserts a new review. A unique-constraint violation means a
// concurrent submission already created a review for this (author, subject)
// pair and is reported as already-exists.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	query := `
		INSERT INTO reviews (id, author_id, subject_id, rating, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		review.ID,
		review.AuthorID,
		review.SubjectID,
		review.Rating,
		review.Body,
		review.CreatedAt,
		review.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("review", "subject_id", review.SubjectID)
		}
		return fmt.Errorf("insert review: %w", err)
	}

	return nil
}

// Update rewrites the rating and body of an existing review.
func (r *ReviewRepository) Update(ctx context.Context, review *domain.Review) error {
	review.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE reviews
		SET rating = $1, body = $2, updated_at = $3
		WHERE id = $4`

	ct, err := r.pool.Exec(ctx, query,
		review.Rating,
		review.Body,
		review.UpdatedAt,
		review.ID,
	)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("review", review.ID)
	}

	return nil
}

// GetByID retrieves a review by its ID.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	query := `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE id = $1`

	return r.scanReview(ctx, query, id)
}

// GetByAuthorAndSubject retrieves the review an author wrote for a subject.
func (r *ReviewRepository) GetByAuthorAndSubject(ctx context.Context, authorID, subjectID string) (*domain.Review, error) {
	query := `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE author_id = $1 AND subject_id = $2`

	return r.scanReview(ctx, query, authorID, subjectID)
}

// ListBySubject returns paginated reviews for a subject with the total count.
func (r *ReviewRepository) ListBySubject(ctx context.Context, subjectID string, page, perPage int) ([]domain.Review, int, error) {
	limit := perPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * limit
	}

	query := `
		SELECT ` + reviewColumns + `,
		       count(*) OVER() AS total_count
		FROM reviews
		WHERE subject_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, subjectID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var (
		reviews    []domain.Review
		totalCount int
	)

	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(
			&rv.ID,
			&rv.AuthorID,
			&rv.SubjectID,
			&rv.Rating,
			&rv.Body,
			&rv.CreatedAt,
			&rv.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, rv)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}

	if reviews == nil {
		reviews = []domain.Review{}
	}

	return reviews, totalCount, nil
}

func (r *ReviewRepository) scanReview(ctx context.Context, query string, args ...any) (*domain.Review, error) {
	var rv domain.Review

	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&rv.ID,
		&rv.AuthorID,
		&rv.SubjectID,
		&rv.Rating,
		&rv.Body,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", fmt.Sprint(args[0]))
		}
		return nil, fmt.Errorf("get review: %w", err)
	}

	return &rv, nil
}

// isUniqueViolation checks for a PostgreSQL unique constraint violation
// (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
