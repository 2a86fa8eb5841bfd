package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shorelinehq/oysterly/internal/domain"
	"github.com/shorelinehq/oysterly/internal/service"
	apperrors "github.com/shorelinehq/oysterly/pkg/errors"
	"github.com/shorelinehq/oysterly/pkg/httputil"
)

type mockProfileRepository struct {
	mock.Mock
}

func (m *mockProfileRepository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *mockProfileRepository) ListFriends(ctx context.Context, userID string) ([]domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.User), args.Error(1)
}

func setupProfileRouter(repo *mockProfileRepository) *chi.Mux {
	svc := service.NewProfileService(repo, nil, testLogger())
	handler := NewProfileHandler(svc, testLogger())

	r := chi.NewRouter()
	r.Route("/api/v1/users", func(r chi.Router) {
		r.Get("/{userID}/profile", handler.GetProfile)
		r.Get("/{userID}/friends", handler.GetFriends)
	})
	return r
}

func publicProfile(name string, private bool) *domain.Profile {
	return &domain.Profile{
		User: domain.User{ID: "user-1", Name: name, Email: "test@example.com"},
		Stats: domain.ProfileStats{
			FriendsPrivate: private,
			ReviewCount:    5,
			FriendCount:    2,
		},
	}
}

func TestGetProfile_Success(t *testing.T) {
	repo := new(mockProfileRepository)
	router := setupProfileRouter(repo)

	repo.On("GetProfile", mock.Anything, "user-1").Return(publicProfile("Test User", false), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/user-1/profile", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			User  domain.User         `json:"user"`
			Stats domain.ProfileStats `json:"stats"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Test User", resp.Data.User.Name)
	assert.Equal(t, 5, resp.Data.Stats.ReviewCount)
}

func TestGetFriends_Visible(t *testing.T) {
	repo := new(mockProfileRepository)
	router := setupProfileRouter(repo)

	friends := []domain.User{
		{ID: "friend-1", Name: "Alice", Email: "alice@example.com"},
		{ID: "friend-2", Name: "Bob", Email: "bob@example.com"},
	}
	repo.On("GetProfile", mock.Anything, "user-1").Return(publicProfile("Test User", false), nil)
	repo.On("ListFriends", mock.Anything, "user-1").Return(friends, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/user-1/friends", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Header  string        `json:"header"`
			Kind    string        `json:"kind"`
			Friends []domain.User `json:"friends"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Test User's Friends", resp.Data.Header)
	assert.Equal(t, "VISIBLE", resp.Data.Kind)
	assert.Equal(t, friends, resp.Data.Friends)
}

func TestGetFriends_PrivateContract(t *testing.T) {
	repo := new(mockProfileRepository)
	router := setupProfileRouter(repo)

	repo.On("GetProfile", mock.Anything, "user-1").Return(publicProfile("Test User", true), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/user-1/friends", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Header  string        `json:"header"`
			Kind    string        `json:"kind"`
			Friends []domain.User `json:"friends"`
			Private *struct {
				Title       string `json:"title"`
				Description string `json:"description"`
			} `json:"private"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	assert.Equal(t, "Test User's Friends", resp.Data.Header)
	assert.Equal(t, "PRIVATE", resp.Data.Kind)
	require.NotNil(t, resp.Data.Private)
	assert.Equal(t, "Friends List is Private", resp.Data.Private.Title)
	assert.Equal(t, "Test User's friends list is set to private.", resp.Data.Private.Description)

	// The list is absent and was never queried.
	assert.Nil(t, resp.Data.Friends)
	repo.AssertNotCalled(t, "ListFriends")
}

func TestGetFriends_UnknownUserIs404NotPrivate(t *testing.T) {
	repo := new(mockProfileRepository)
	router := setupProfileRouter(repo)

	repo.On("GetProfile", mock.Anything, "ghost").Return(nil, apperrors.NotFound("user", "ghost"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/ghost/friends", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestGetFriends_StoreFailureIs500NotPrivate(t *testing.T) {
	repo := new(mockProfileRepository)
	router := setupProfileRouter(repo)

	repo.On("GetProfile", mock.Anything, "user-1").Return(publicProfile("Test User", false), nil)
	repo.On("ListFriends", mock.Anything, "user-1").
		Return(nil, apperrors.Internal(assert.AnError))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/user-1/friends", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
