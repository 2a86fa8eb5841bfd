package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shorelinehq/oysterly/internal/domain"
	apperrors "github.com/shorelinehq/oysterly/pkg/errors"
)

// --- Mock Repository ---

type mockReviewRepository struct {
	mock.Mock
}

func (m *mockReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *mockReviewRepository) Update(ctx context.Context, review *domain.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *mockReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewRepository) GetByAuthorAndSubject(ctx context.Context, authorID, subjectID string) (*domain.Review, error) {
	args := m.Called(ctx, authorID, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewRepository) ListBySubject(ctx context.Context, subjectID string, page, perPage int) ([]domain.Review, int, error) {
	args := m.Called(ctx, subjectID, page, perPage)
	return args.Get(0).([]domain.Review), args.Int(1), args.Error(2)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestFlow(repo *mockReviewRepository) *ReviewFlow {
	return NewReviewFlow("author-1", "subject-1", NewDuplicateResolver(repo), repo, newTestLogger())
}

func existingReview() *domain.Review {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Review{
		ID:        "rev-001",
		AuthorID:  "author-1",
		SubjectID: "subject-1",
		Rating:    domain.RatingLikeIt,
		Body:      "Pretty good",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// --- Tests ---

func TestSubmit_CreatesWhenNoPriorReview(t *testing.T) {
	repo := new(mockReviewRepository)
	flow := newTestFlow(repo)
	ctx := context.Background()

	repo.On("GetByAuthorAndSubject", ctx, "author-1", "subject-1").
		Return(nil, apperrors.NotFound("review", "author-1"))
	repo.On("Create", ctx, mock.AnythingOfType("*domain.Review")).Return(nil).Once()

	state, err := flow.Submit(ctx, domain.ReviewDraft{Rating: domain.RatingLikeIt, Body: "Test review"})
	require.NoError(t, err)

	persisted, ok := state.(Persisted)
	require.True(t, ok, "expected Persisted, got %T", state)
	assert.False(t, persisted.Updated)
	assert.Equal(t, domain.RatingLikeIt, persisted.Review.Rating)
	assert.Equal(t, "Test review", persisted.Review.Body)
	assert.Equal(t, "author-1", persisted.Review.AuthorID)
	assert.Equal(t, "subject-1", persisted.Review.SubjectID)
	assert.NotEmpty(t, persisted.Review.ID)

	repo.AssertNumberOfCalls(t, "Create", 1)
}

func TestSubmit_TrimsBodyWhitespace(t *testing.T) {
	repo := new(mockReviewRepository)
	flow := newTestFlow(repo)
	ctx := context.Background()

	repo.On("GetByAuthorAndSubject", ctx, "author-1", "subject-1").
		Return(nil, apperrors.NotFound("review", "author-1"))
	repo.On("Create", ctx, mock.AnythingOfType("*domain.Review")).Return(nil)

	state, err := flow.Submit(ctx, domain.ReviewDraft{Rating: domain.RatingLoveIt, Body: "  briny perfection  "})
	require.NoError(t, err)

	persisted := state.(Persisted)
	assert.Equal(t, "briny perfection", persisted.Review.Body)
}

func TestSubmit_InvalidRating_NoStoreContact(t *testing.T) {
	repo := new(mockReviewRepository)
	flow := newTestFlow(repo)

	state, err := flow.Submit(context.Background(), domain.ReviewDraft{Rating: "AMAZING", Body: "nope"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	composing, ok := state.(Composing)
	require.True(t, ok, "expected Composing, got %T", state)
	assert.Equal(t, "nope", composing.Draft.Body, "draft survives rejection")

	repo.AssertNotCalled(t, "GetByAuthorAndSubject")
	repo.AssertNotCalled(t, "Create")
}

func TestSubmit_MissingRating_NoStoreContact(t *testing.T) {
	repo := new(mockReviewRepository)
	flow := newTestFlow(repo)

	_, err := flow.Submit(context.Background(), domain.ReviewDraft{Body: "no rating"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	repo.AssertNotCalled(t, "GetByAuthorAndSubject")
	repo.AssertNotCalled(t, "Create")
}

func TestSubmit_PriorReview_StopsAtDuplicateDetected(t *testing.T) {
	repo := new(mockReviewRepository)
	flow := newTestFlow(repo)
	ctx := context.Background()
	existing := existingReview()

	repo.On("GetByAuthorAndSubject", ctx, "author-1", "subject-1").Return(existing, nil)

	state, err := flow.Submit(ctx, domain.ReviewDraft{Rating: domain.RatingLoveIt, Body: "Even better"})
	require.NoError(t, err)

	dup, ok := state.(DuplicateDetected)
	require.True(t, ok, "expected DuplicateDetected, got %T", state)
	assert.Equal(t, "rev-001", dup.Existing.ID)
	assert.Equal(t, "Even better", dup.Draft.Body)

	// Nothing persisted without explicit confirmation.
	repo.AssertNotCalled(t, "Create")
	repo.AssertNotCalled(t, "Update")
}

func TestSubmit_DuplicateCheckFailure_IsFailedNotCreate(t *testing.T) {
	repo := new(mockReviewRepository)
	flow := newTestFlow(repo)
	ctx := context.Background()

	storeErr := errors.New("connection refused")
	repo.On("GetByAuthorAndSubject", ctx, "author-1", "subject-1").Return(nil, storeErr)

	state, err := flow.Submit(ctx, domain.ReviewDraft{Rating: domain.RatingLikeIt, Body: "text"})
	require.Error(t, err)

	failed, ok := state.(Failed)
	require.True(t, ok, "expected Failed, got %T", state)
	assert.Equal(t, "text", failed.Draft.Body, "draft survives failure")

	// A failed lookup must never be treated as "no duplicate".
	repo.AssertNotCalled(t, "Create")
}

func TestSubmit_CreateConflict_IsFailedWithDraftPreserved(t *testing.T) {
	repo := new(mockReviewRepository)
	flow := newTestFlow(repo)
	ctx := context.Background()

	repo.On("GetByAuthorAndSubject", ctx, "author-1", "subject-1").
		Return(nil, apperrors.NotFound("review", "author-1"))
	repo.On("Create", ctx, mock.AnythingOfType("*domain.Review")).
		Return(apperrors.AlreadyExists("review", "subject_id", "subject-1"))

	state, err := flow.Submit(ctx, domain.ReviewDraft{Rating: domain.RatingLikeIt, Body: "lost the race"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyExists))

	failed, ok := state.(Failed)
	require.True(t, ok, "expected Failed, got %T", state)
	assert.Equal(t, "lost the race", failed.Draft.Body)
}

func TestSubmit_RetryFromFailed(t *testing.T) {
	repo := new(mockReviewRepository)
	flow := newTestFlow(repo)
	ctx := context.Background()

	storeErr := errors.New("i/o timeout")
	repo.On("GetByAuthorAndSubject", ctx, "author-1", "subject-1").
		Return(nil, storeErr).Once()
	repo.On("GetByAuthorAndSubject", ctx, "author-1", "subject-1").
		Return(nil, apperrors.NotFound("review", "author-1")).Once()
	repo.On("Create", ctx, mock.AnythingOfType("*domain.Review")).Return(nil).Once()

	draft := domain.ReviewDraft{Rating: domain.RatingLikeIt, Body: "retry me"}

	state, err := flow.Submit(ctx, draft)
	require.Error(t, err)
	failed := state.(Failed)

	state, err = flow.Submit(ctx, failed.Draft)
	require.NoError(t, err)
	persisted := state.(Persisted)
	assert.Equal(t, "retry me", persisted.Review.Body)
}

func TestResolveAsUpdate_PrefillsDraftFromExisting(t *testing.T) {
	repo := new(mockReviewRepository)
	flow := newTestFlow(repo)
	ctx := context.Background()
	existing := existingReview()

	repo.On("GetByAuthorAndSubject", ctx, "author-1", "subject-1").Return(existing, nil)

	_, err := flow.Submit(ctx, domain.ReviewDraft{Rating: domain.RatingLoveIt, Body: "new take"})
	require.NoError(t, err)

	state, err := flow.ResolveAsUpdate()
	require.NoError(t, err)

	resolving, ok := state.(Resolving)
	require.True(t, ok, "expected Resolving, got %T", state)
	assert.Equal(t, existing.Rating, resolving.Draft.Rating)
	assert.Equal(t, existing.Body, resolving.Draft.Body)
}

func TestResolveAsUpdate_OnlyFromDuplicateDetected(t *testing.T) {
	repo := new(mockReviewRepository)
	flow := newTestFlow(repo)

	_, err := flow.ResolveAsUpdate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestConfirmUpdate_PreservesReviewID(t *testing.T) {
	repo := new(mockReviewRepository)
	flow := newTestFlow(repo)
	ctx := context.Background()
	existing := existingReview()

	repo.On("GetByAuthorAndSubject", ctx, "author-1", "subject-1").Return(existing, nil)
	repo.On("Update", ctx, mock.MatchedBy(func(r *domain.Review) bool {
		return r.ID == "rev-001"
	})).Return(nil).Once()

	_, err := flow.Submit(ctx, domain.ReviewDraft{Rating: domain.RatingLoveIt, Body: "updated text"})
	require.NoError(t, err)
	_, err = flow.ResolveAsUpdate()
	require.NoError(t, err)

	state, err := flow.ConfirmUpdate(ctx, domain.ReviewDraft{Rating: domain.RatingLoveIt, Body: "updated text"})
	require.NoError(t, err)

	persisted, ok := state.(Persisted)
	require.True(t, ok, "expected Persisted, got %T", state)
	assert.True(t, persisted.Updated)
	assert.Equal(t, "rev-001", persisted.Review.ID)
	assert.Equal(t, "updated text", persisted.Review.Body)

	repo.AssertNotCalled(t, "Create")
	repo.AssertNumberOfCalls(t, "Update", 1)
}

func TestConfirmUpdate_RepeatConvergesOnSameState(t *testing.T) {
	repo := new(mockReviewRepository)
	flow := newTestFlow(repo)
	ctx := context.Background()
	existing := existingReview()

	repo.On("GetByAuthorAndSubject", ctx, "author-1", "subject-1").Return(existing, nil)
	repo.On("Update", ctx, mock.AnythingOfType("*domain.Review")).Return(nil)

	_, err := flow.Submit(ctx, domain.ReviewDraft{Rating: domain.RatingLoveIt, Body: "final say"})
	require.NoError(t, err)
	_, err = flow.ResolveAsUpdate()
	require.NoError(t, err)

	draft := domain.ReviewDraft{Rating: domain.RatingLoveIt, Body: "final say"}

	first, err := flow.ConfirmUpdate(ctx, draft)
	require.NoError(t, err)
	second, err := flow.ConfirmUpdate(ctx, draft)
	require.NoError(t, err)

	p1 := first.(Persisted)
	p2 := second.(Persisted)
	assert.Equal(t, p1.Review.ID, p2.Review.ID)
	assert.Equal(t, p1.Review.Rating, p2.Review.Rating)
	assert.Equal(t, p1.Review.Body, p2.Review.Body)
}

func TestConfirmUpdate_VanishedReview_IsFailed(t *testing.T) {
	repo := new(mockReviewRepository)
	flow := newTestFlow(repo)
	ctx := context.Background()
	existing := existingReview()

	_, err := flow.ResumeResolve(existing)
	require.NoError(t, err)

	repo.On("Update", ctx, mock.AnythingOfType("*domain.Review")).
		Return(apperrors.NotFound("review", "rev-001"))

	state, err := flow.ConfirmUpdate(ctx, domain.ReviewDraft{Rating: domain.RatingLikeIt, Body: "too late"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, ok := state.(Failed)
	assert.True(t, ok, "expected Failed, got %T", state)
}

func TestSubmit_SecondWhileInFlight_IsRejected(t *testing.T) {
	repo := new(mockReviewRepository)
	flow := newTestFlow(repo)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})

	repo.On("GetByAuthorAndSubject", mock.Anything, "author-1", "subject-1").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(nil, apperrors.NotFound("review", "author-1"))
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Review")).Return(nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := flow.Submit(ctx, domain.ReviewDraft{Rating: domain.RatingLikeIt, Body: "first"})
		assert.NoError(t, err)
	}()

	<-started

	_, err := flow.Submit(ctx, domain.ReviewDraft{Rating: domain.RatingLikeIt, Body: "second"})
	assert.ErrorIs(t, err, ErrFlowBusy)

	close(release)
	<-done

	repo.AssertNumberOfCalls(t, "Create", 1)
}

func TestCancel_DiscardsLateStoreResponse(t *testing.T) {
	repo := new(mockReviewRepository)
	flow := newTestFlow(repo)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})

	repo.On("GetByAuthorAndSubject", mock.Anything, "author-1", "subject-1").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(nil, apperrors.NotFound("review", "author-1"))

	result := make(chan error, 1)
	go func() {
		_, err := flow.Submit(ctx, domain.ReviewDraft{Rating: domain.RatingLikeIt, Body: "abandoned"})
		result <- err
	}()

	<-started
	flow.Cancel()
	close(release)

	err := <-result
	assert.ErrorIs(t, err, ErrFlowCanceled)

	// The late response applied no transition and nothing was persisted.
	_, isPersisted := flow.State().(Persisted)
	assert.False(t, isPersisted, "canceled flow must not reach Persisted")
	repo.AssertNotCalled(t, "Create")
}
