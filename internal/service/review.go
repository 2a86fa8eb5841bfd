package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shorelinehq/oysterly/internal/domain"
	"github.com/shorelinehq/oysterly/internal/repository"
	apperrors "github.com/shorelinehq/oysterly/pkg/errors"
)

// ReviewEvents publishes review lifecycle events.
type ReviewEvents interface {
	PublishReviewCreated(ctx context.Context, review *domain.Review) error
	PublishReviewUpdated(ctx context.Context, review *domain.Review) error
}

// SubmitOutcome is the result of a submission attempt, exposed to the HTTP
// layer as a stable contract.
type SubmitOutcome struct {
	State FlowState

	// Review is set when the flow reached Persisted.
	Review *domain.Review

	// Existing is set when the flow stopped at DuplicateDetected. The
	// caller must explicitly confirm before the existing review is touched.
	Existing *domain.Review
}

// ReviewService owns the review submission flows. One flow exists per
// (author, subject) pair at a time, so a second submission while the first is
// in flight is rejected instead of racing it.
type ReviewService struct {
	reviews  repository.ReviewRepository
	resolver *DuplicateResolver
	events   ReviewEvents
	logger   *slog.Logger

	mu    sync.Mutex
	flows map[string]*ReviewFlow
}

// NewReviewService creates a review service.
func NewReviewService(reviews repository.ReviewRepository, events ReviewEvents, logger *slog.Logger) *ReviewService {
	return &ReviewService{
		reviews:  reviews,
		resolver: NewDuplicateResolver(reviews),
		events:   events,
		logger:   logger,
		flows:    make(map[string]*ReviewFlow),
	}
}

func flowKey(authorID, subjectID string) string {
	return authorID + "/" + subjectID
}

func (s *ReviewService) flowFor(authorID, subjectID string) *ReviewFlow {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := flowKey(authorID, subjectID)
	flow, ok := s.flows[key]
	if !ok {
		flow = NewReviewFlow(authorID, subjectID, s.resolver, s.reviews, s.logger)
		s.flows[key] = flow
	}
	return flow
}

func (s *ReviewService) dropFlow(authorID, subjectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flows, flowKey(authorID, subjectID))
}

// Submit runs the author's draft through the submission flow. A first review
// for the subject is created; a prior review stops the flow at
// DuplicateDetected without persisting anything.
func (s *ReviewService) Submit(ctx context.Context, authorID, subjectID string, draft domain.ReviewDraft) (*SubmitOutcome, error) {
	flow := s.flowFor(authorID, subjectID)

	state, err := flow.Submit(ctx, draft)
	if err != nil {
		return nil, err
	}

	switch st := state.(type) {
	case Persisted:
		s.dropFlow(authorID, subjectID)
		s.publishCreated(ctx, st.Review)
		return &SubmitOutcome{State: st, Review: st.Review}, nil
	case DuplicateDetected:
		return &SubmitOutcome{State: st, Existing: st.Existing}, nil
	default:
		return &SubmitOutcome{State: state}, nil
	}
}

// ResolveUpdate applies the draft as an update to an existing review, driving
// the flow through Resolving. Only the review's author may update it. A flow
// with no detected duplicate yet, such as after a restart, is resumed from
// the stored review.
func (s *ReviewService) ResolveUpdate(ctx context.Context, authorID, reviewID string, draft domain.ReviewDraft) (*domain.Review, error) {
	existing, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if existing.AuthorID != authorID {
		return nil, apperrors.Forbidden("only the author may update this review")
	}

	flow := s.flowFor(authorID, existing.SubjectID)

	switch flow.State().(type) {
	case DuplicateDetected:
		if _, err := flow.ResolveAsUpdate(); err != nil {
			return nil, err
		}
	case Resolving, Persisted:
	default:
		if _, err := flow.ResumeResolve(existing); err != nil {
			return nil, err
		}
	}

	state, err := flow.ConfirmUpdate(ctx, draft)
	if err != nil {
		return nil, err
	}

	persisted, ok := state.(Persisted)
	if !ok {
		return nil, apperrors.Internal(ErrInvalidTransition)
	}

	s.dropFlow(authorID, existing.SubjectID)
	s.publishUpdated(ctx, persisted.Review)

	return persisted.Review, nil
}

// CancelFlow abandons the author's pending flow for a subject. A store
// response still in flight is discarded when it lands.
func (s *ReviewService) CancelFlow(authorID, subjectID string) {
	s.mu.Lock()
	flow, ok := s.flows[flowKey(authorID, subjectID)]
	if ok {
		delete(s.flows, flowKey(authorID, subjectID))
	}
	s.mu.Unlock()

	if ok {
		flow.Cancel()
	}
}

// GetReview retrieves a review by ID.
func (s *ReviewService) GetReview(ctx context.Context, id string) (*domain.Review, error) {
	return s.reviews.GetByID(ctx, id)
}

// ListBySubject returns a page of reviews for a subject, newest first.
func (s *ReviewService) ListBySubject(ctx context.Context, subjectID string, page, perPage int) ([]domain.Review, int, error) {
	return s.reviews.ListBySubject(ctx, subjectID, page, perPage)
}

// Event publishing is best effort. A persisted review is the source of truth;
// a publish failure is logged and never turns a successful write into an
// error for the caller.
func (s *ReviewService) publishCreated(ctx context.Context, review *domain.Review) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishReviewCreated(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review created event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *ReviewService) publishUpdated(ctx context.Context, review *domain.Review) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishReviewUpdated(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review updated event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}
}
