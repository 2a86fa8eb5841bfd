package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shorelinehq/oysterly/pkg/database"
	apperrors "github.com/shorelinehq/oysterly/pkg/errors"
)

func setupProfileRepo(t *testing.T) (*ProfileRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewProfileRepository(mock), mock
}

func TestProfileRepository_GetProfile_Success(t *testing.T) {
	repo, mock := setupProfileRepo(t)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"id", "name", "email", "friends_private", "review_count", "friend_count"}).
		AddRow("user-1", "Test User", "test@example.com", true, 12, 3)

	mock.ExpectQuery("SELECT .+ FROM users").
		WithArgs("user-1").
		WillReturnRows(rows)

	profile, err := repo.GetProfile(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Test User", profile.User.Name)
	assert.True(t, profile.Stats.FriendsPrivate)
	assert.Equal(t, 12, profile.Stats.ReviewCount)
	assert.Equal(t, 3, profile.Stats.FriendCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_GetProfile_NotFound(t *testing.T) {
	repo, mock := setupProfileRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM users").
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetProfile(context.Background(), "ghost")
	assert.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_ListFriends_OrderedByName(t *testing.T) {
	repo, mock := setupProfileRepo(t)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"id", "name", "email"}).
		AddRow("friend-1", "Alice", "alice@example.com").
		AddRow("friend-2", "Bob", "bob@example.com")

	mock.ExpectQuery("SELECT .+ FROM friendships").
		WithArgs("user-1").
		WillReturnRows(rows)

	friends, err := repo.ListFriends(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, friends, 2)
	assert.Equal(t, "Alice", friends[0].Name)
	assert.Equal(t, "Bob", friends[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_ListFriends_Empty(t *testing.T) {
	repo, mock := setupProfileRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM friendships").
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email"}))

	friends, err := repo.ListFriends(context.Background(), "user-1")
	require.NoError(t, err)
	assert.NotNil(t, friends)
	assert.Empty(t, friends)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_ListFriends_QueryError(t *testing.T) {
	repo, mock := setupProfileRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM friendships").
		WithArgs("user-1").
		WillReturnError(errors.New("connection refused"))

	_, err := repo.ListFriends(context.Background(), "user-1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "list friends")
	assert.NoError(t, mock.ExpectationsWereMet())
}
