package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/shorelinehq/oysterly/internal/domain"
	"github.com/shorelinehq/oysterly/pkg/database"
	apperrors "github.com/shorelinehq/oysterly/pkg/errors"
)

// ProfileRepository implements repository.ProfileRepository using PostgreSQL.
type ProfileRepository struct {
	pool database.DBTX
}

// NewProfileRepository creates a PostgreSQL-backed profile repository.
func NewProfileRepository(pool database.DBTX) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// GetProfile retrieves a user's public profile with aggregate stats and the
// friends visibility flag.
func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	query := `
		SELECT u.id, u.name, u.email,
		       s.friends_private, s.review_count, s.friend_count
		FROM users u
		JOIN profile_stats s ON s.user_id = u.id
		WHERE u.id = $1`

	var p domain.Profile

	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&p.User.ID,
		&p.User.Name,
		&p.User.Email,
		&p.Stats.FriendsPrivate,
		&p.Stats.ReviewCount,
		&p.Stats.FriendCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user", userID)
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return &p, nil
}

// ListFriends returns a user's friends ordered by name.
func (r *ProfileRepository) ListFriends(ctx context.Context, userID string) ([]domain.User, error) {
	query := `
		SELECT u.id, u.name, u.email
		FROM friendships f
		JOIN users u ON u.id = f.friend_id
		WHERE f.user_id = $1
		ORDER BY u.name ASC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()

	var friends []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, fmt.Errorf("scan friend row: %w", err)
		}
		friends = append(friends, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friend rows: %w", err)
	}

	if friends == nil {
		friends = []domain.User{}
	}

	return friends, nil
}
