package repository

import (
	"context"

	"github.com/shorelinehq/oysterly/internal/domain"
)

// ReviewRepository defines the persistence contract for reviews. It is the
// authoritative guard for the one-review-per-(author, subject) invariant:
// Create fails with an already-exists error when a concurrent submission won
// the race, regardless of what any earlier lookup reported.
type ReviewRepository interface {
	// Create inserts a new review. Returns an already-exists error if a
	// review by the same author for the same subject is present.
	Create(ctx context.Context, review *domain.Review) error

	// Update rewrites the rating and body of an existing review by ID.
	// Returns a not-found error if the review vanished.
	Update(ctx context.Context, review *domain.Review) error

	// GetByID retrieves a review by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Review, error)

	// GetByAuthorAndSubject retrieves the review a given author wrote for a
	// given subject. Returns a not-found error when none exists.
	GetByAuthorAndSubject(ctx context.Context, authorID, subjectID string) (*domain.Review, error)

	// ListBySubject returns reviews for a subject, newest first, along with
	// the total count.
	ListBySubject(ctx context.Context, subjectID string, page, perPage int) ([]domain.Review, int, error)
}

// ProfileRepository defines the persistence contract for public profiles.
type ProfileRepository interface {
	// GetProfile retrieves a user's public profile with stats, including
	// the friends visibility flag. Returns a not-found error for unknown
	// users.
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)

	// ListFriends returns a user's friends ordered by name. Callers must
	// consult the profile's FriendsPrivate flag first; this method is never
	// invoked for a private list.
	ListFriends(ctx context.Context, userID string) ([]domain.User, error)
}

// ProfileCache is a read-through cache for public profiles. Misses are
// reported with a not-found error so callers fall back to the repository.
type ProfileCache interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	Set(ctx context.Context, profile *domain.Profile) error
	Invalidate(ctx context.Context, userID string) error
}
