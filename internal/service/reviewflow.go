package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shorelinehq/oysterly/internal/domain"
	"github.com/shorelinehq/oysterly/internal/repository"
	apperrors "github.com/shorelinehq/oysterly/pkg/errors"
)

// Flow-level errors. They wrap the conflict sentinel so the HTTP layer maps
// them to 409 without knowing about flows.
var (
	// ErrFlowBusy is returned when a submission arrives while another is
	// still in flight for the same flow.
	ErrFlowBusy = fmt.Errorf("%w: a submission is already in flight", apperrors.ErrConflict)

	// ErrInvalidTransition is returned when an action is not available from
	// the flow's current state.
	ErrInvalidTransition = fmt.Errorf("%w: action not available in current state", apperrors.ErrConflict)

	// ErrFlowCanceled is returned to a caller whose in-flight operation was
	// superseded by Cancel before the store responded.
	ErrFlowCanceled = fmt.Errorf("%w: flow was canceled", apperrors.ErrConflict)
)

// FlowState is the closed set of states a review submission flow moves
// through. Each state carries exactly the data that is meaningful in it, so
// illegal transitions (such as confirming an update with no existing review)
// cannot be expressed.
type FlowState interface {
	flowState()

	// Name returns the wire-stable state discriminator.
	Name() string
}

// Composing holds the draft being edited. It is the initial state and the
// state a rejected draft returns to.
type Composing struct {
	Draft domain.ReviewDraft
}

// Submitting means a duplicate check or create is in flight for the draft.
type Submitting struct {
	Draft domain.ReviewDraft
}

// DuplicateDetected means a prior review by the same author for the same
// subject exists. Nothing has been persisted. The only action out of this
// state is ResolveAsUpdate; overwriting without explicit confirmation is not
// possible.
type DuplicateDetected struct {
	Existing *domain.Review
	Draft    domain.ReviewDraft
}

// Resolving means the user confirmed they want to update the existing review.
// The draft is prefilled from the existing review so they edit their previous
// text and rating rather than starting blank.
type Resolving struct {
	Existing *domain.Review
	Draft    domain.ReviewDraft
}

// Persisted is the terminal success state. Updated distinguishes a fresh
// create from a duplicate resolved as an update.
type Persisted struct {
	Review  *domain.Review
	Updated bool
}

// Failed carries the error and the draft that was being submitted, so the
// user can retry without losing what they typed.
type Failed struct {
	Draft domain.ReviewDraft
	Err   error
}

func (Composing) flowState()         {}
func (Submitting) flowState()        {}
func (DuplicateDetected) flowState() {}
func (Resolving) flowState()         {}
func (Persisted) flowState()         {}
func (Failed) flowState()            {}

func (Composing) Name() string         { return "COMPOSING" }
func (Submitting) Name() string        { return "SUBMITTING" }
func (DuplicateDetected) Name() string { return "DUPLICATE_DETECTED" }
func (Resolving) Name() string         { return "RESOLVING" }
func (Persisted) Name() string         { return "PERSISTED" }
func (Failed) Name() string            { return "FAILED" }

// DuplicateResolver looks up whether an author already reviewed a subject.
// Pure lookup, no side effects. A lookup failure is reported as an error
// rather than "no duplicate": proceeding to create on a failed check would
// gamble on the uniqueness constraint instead of the user's intent.
type DuplicateResolver struct {
	reviews repository.ReviewRepository
}

// NewDuplicateResolver creates a resolver over the given repository.
func NewDuplicateResolver(reviews repository.ReviewRepository) *DuplicateResolver {
	return &DuplicateResolver{reviews: reviews}
}

// Check returns the author's existing review for the subject, or nil when
// there is none.
func (r *DuplicateResolver) Check(ctx context.Context, authorID, subjectID string) (*domain.Review, error) {
	review, err := r.reviews.GetByAuthorAndSubject(ctx, authorID, subjectID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("duplicate check: %w", err)
	}
	return review, nil
}

// ReviewFlow drives one author's submission for one subject through the
// state machine. At most one store operation is in flight per flow; a second
// Submit while one is outstanding fails with ErrFlowBusy rather than issuing
// a second request. Cross-flow races on the same (author, subject) pair are
// resolved by the reviews table's unique constraint, not here.
type ReviewFlow struct {
	authorID  string
	subjectID string

	resolver *DuplicateResolver
	reviews  repository.ReviewRepository
	logger   *slog.Logger

	mu         sync.Mutex
	state      FlowState
	inFlight   bool
	generation uint64
}

// NewReviewFlow creates a flow in the Composing state.
func NewReviewFlow(authorID, subjectID string, resolver *DuplicateResolver, reviews repository.ReviewRepository, logger *slog.Logger) *ReviewFlow {
	return &ReviewFlow{
		authorID:  authorID,
		subjectID: subjectID,
		resolver:  resolver,
		reviews:   reviews,
		logger:    logger,
		state:     Composing{},
	}
}

// State returns the flow's current state.
func (f *ReviewFlow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Submit validates the draft, checks for a duplicate and either creates the
// review or stops at DuplicateDetected for explicit confirmation. Valid from
// Composing and from Failed (retry with the preserved draft).
func (f *ReviewFlow) Submit(ctx context.Context, draft domain.ReviewDraft) (FlowState, error) {
	draft = draft.Normalize()

	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return nil, ErrFlowBusy
	}
	switch f.state.(type) {
	case Composing, Failed:
	default:
		st := f.state
		f.mu.Unlock()
		return st, ErrInvalidTransition
	}

	if !domain.IsValidRating(draft.Rating) {
		// Rejected locally, no store contact. The draft stays editable.
		f.state = Composing{Draft: draft}
		st := f.state
		f.mu.Unlock()
		return st, apperrors.InvalidInput(
			"rating must be one of " + strings.Join(domain.ValidRatings(), ", "))
	}

	f.state = Submitting{Draft: draft}
	f.inFlight = true
	gen := f.generation
	f.mu.Unlock()

	existing, err := f.resolver.Check(ctx, f.authorID, f.subjectID)
	if err != nil {
		return f.finish(gen, Failed{Draft: draft, Err: err})
	}
	if f.stale(gen) {
		return f.State(), ErrFlowCanceled
	}

	if existing != nil {
		return f.finish(gen, DuplicateDetected{Existing: existing, Draft: draft})
	}

	now := time.Now().UTC()
	review := &domain.Review{
		ID:        uuid.NewString(),
		AuthorID:  f.authorID,
		SubjectID: f.subjectID,
		Rating:    draft.Rating,
		Body:      draft.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := f.reviews.Create(ctx, review); err != nil {
		// A concurrent submission won the race. Surface it as a failure so
		// the caller can retry, which will now detect the duplicate.
		return f.finish(gen, Failed{Draft: draft, Err: err})
	}

	f.logger.InfoContext(ctx, "review created",
		slog.String("review_id", review.ID),
		slog.String("subject_id", f.subjectID),
	)

	return f.finish(gen, Persisted{Review: review})
}

// ResolveAsUpdate is the single action out of DuplicateDetected. It moves to
// Resolving with the draft prefilled from the existing review. Nothing is
// persisted until ConfirmUpdate.
func (f *ReviewFlow) ResolveAsUpdate() (FlowState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	dup, ok := f.state.(DuplicateDetected)
	if !ok {
		return f.state, ErrInvalidTransition
	}

	f.state = Resolving{
		Existing: dup.Existing,
		Draft:    domain.DraftOf(dup.Existing),
	}
	return f.state, nil
}

// ResumeResolve seeds a flow with a duplicate that was detected outside this
// flow instance, such as before a restart, and moves straight to Resolving.
// Valid from Composing and Failed. The existing review must already have been
// loaded and ownership-checked by the caller.
func (f *ReviewFlow) ResumeResolve(existing *domain.Review) (FlowState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state.(type) {
	case Composing, Failed:
	default:
		return f.state, ErrInvalidTransition
	}
	if f.inFlight {
		return f.state, ErrFlowBusy
	}

	f.state = Resolving{
		Existing: existing,
		Draft:    domain.DraftOf(existing),
	}
	return f.state, nil
}

// ConfirmUpdate writes the draft over the existing review. Valid from
// Resolving, and from Persisted after an update so that a repeated
// confirmation with the same draft converges on the same state instead of
// failing.
func (f *ReviewFlow) ConfirmUpdate(ctx context.Context, draft domain.ReviewDraft) (FlowState, error) {
	draft = draft.Normalize()

	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return nil, ErrFlowBusy
	}

	var existing *domain.Review
	switch st := f.state.(type) {
	case Resolving:
		existing = st.Existing
	case Persisted:
		if !st.Updated {
			cur := f.state
			f.mu.Unlock()
			return cur, ErrInvalidTransition
		}
		existing = st.Review
	default:
		cur := f.state
		f.mu.Unlock()
		return cur, ErrInvalidTransition
	}

	if !domain.IsValidRating(draft.Rating) {
		cur := f.state
		f.mu.Unlock()
		return cur, apperrors.InvalidInput(
			"rating must be one of " + strings.Join(domain.ValidRatings(), ", "))
	}

	f.inFlight = true
	gen := f.generation
	f.mu.Unlock()

	updated := *existing
	updated.Rating = draft.Rating
	updated.Body = draft.Body

	if err := f.reviews.Update(ctx, &updated); err != nil {
		return f.finish(gen, Failed{Draft: draft, Err: err})
	}

	f.logger.InfoContext(ctx, "review updated",
		slog.String("review_id", updated.ID),
		slog.String("subject_id", f.subjectID),
	)

	return f.finish(gen, Persisted{Review: &updated, Updated: true})
}

// Cancel abandons any in-flight operation. A store response arriving after
// Cancel is discarded instead of applying a transition to a flow the user has
// left.
func (f *ReviewFlow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generation++
	f.inFlight = false
}

func (f *ReviewFlow) stale(gen uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return gen != f.generation
}

// finish applies the resulting state unless the flow was canceled while the
// store call was pending.
func (f *ReviewFlow) finish(gen uint64, next FlowState) (FlowState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if gen != f.generation {
		return f.state, ErrFlowCanceled
	}

	f.inFlight = false
	f.state = next

	if failed, ok := next.(Failed); ok {
		return f.state, failed.Err
	}
	return f.state, nil
}
