package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shorelinehq/oysterly/internal/domain"
	"github.com/shorelinehq/oysterly/internal/service"
	apperrors "github.com/shorelinehq/oysterly/pkg/errors"
	"github.com/shorelinehq/oysterly/pkg/httputil"
	"github.com/shorelinehq/oysterly/pkg/middleware"
	"github.com/shorelinehq/oysterly/pkg/validator"
)

// ReviewHandler serves the review submission and lookup endpoints.
type ReviewHandler struct {
	reviews *service.ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a review handler.
func NewReviewHandler(reviews *service.ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, logger: logger}
}

type submitReviewRequest struct {
	Rating string `json:"rating" validate:"required,oneof=DISLIKE_IT LIKE_IT LOVE_IT"`
	Body   string `json:"body" validate:"max=5000"`
}

type reviewResponse struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	SubjectID string    `json:"subject_id"`
	Rating    string    `json:"rating"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toReviewResponse(r *domain.Review) reviewResponse {
	return reviewResponse{
		ID:        r.ID,
		AuthorID:  r.AuthorID,
		SubjectID: r.SubjectID,
		Rating:    r.Rating,
		Body:      r.Body,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type submitReviewResponse struct {
	State  string         `json:"state"`
	Review reviewResponse `json:"review"`
}

// duplicateResponse is returned with 409 when the author already reviewed the
// subject. Nothing was persisted; the existing review is included so the
// client can prefill an update, which must be confirmed explicitly via PUT.
type duplicateResponse struct {
	State    string         `json:"state"`
	Message  string         `json:"message"`
	Existing reviewResponse `json:"existing_review"`
}

// Submit handles POST /api/v1/subjects/{subjectID}/reviews.
func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")
	authorID := middleware.UserIDFromContext(r.Context())

	var req submitReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid JSON body"), h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	outcome, err := h.reviews.Submit(r.Context(), authorID, subjectID, domain.ReviewDraft{
		Rating: req.Rating,
		Body:   req.Body,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	switch {
	case outcome.Review != nil:
		httputil.WriteJSON(w, http.StatusCreated, httputil.Response{
			Data: submitReviewResponse{
				State:  outcome.State.Name(),
				Review: toReviewResponse(outcome.Review),
			},
		})
	case outcome.Existing != nil:
		httputil.WriteJSON(w, http.StatusConflict, httputil.Response{
			Data: duplicateResponse{
				State:    outcome.State.Name(),
				Message:  "you already reviewed this subject; confirm to update your existing review",
				Existing: toReviewResponse(outcome.Existing),
			},
		})
	default:
		httputil.WriteError(w, r, apperrors.Internal(fmt.Errorf("unexpected flow state %q", outcome.State.Name())), h.logger)
	}
}

// Update handles PUT /api/v1/reviews/{reviewID}. It is the explicit
// confirmation step for a detected duplicate.
func (h *ReviewHandler) Update(w http.ResponseWriter, r *http.Request) {
	reviewID := chi.URLParam(r, "reviewID")
	authorID := middleware.UserIDFromContext(r.Context())

	var req submitReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid JSON body"), h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	review, err := h.reviews.ResolveUpdate(r.Context(), authorID, reviewID, domain.ReviewDraft{
		Rating: req.Rating,
		Body:   req.Body,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: submitReviewResponse{
			State:  service.Persisted{Updated: true}.Name(),
			Review: toReviewResponse(review),
		},
	})
}

// Get handles GET /api/v1/reviews/{reviewID}.
func (h *ReviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	review, err := h.reviews.GetReview(r.Context(), chi.URLParam(r, "reviewID"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toReviewResponse(review)})
}

// ListBySubject handles GET /api/v1/subjects/{subjectID}/reviews.
func (h *ReviewHandler) ListBySubject(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")
	page, perPage := parsePagination(r)

	reviews, total, err := h.reviews.ListBySubject(r.Context(), subjectID, page, perPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	items := make([]reviewResponse, 0, len(reviews))
	for i := range reviews {
		items = append(items, toReviewResponse(&reviews[i]))
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(items, total, page, perPage))
}

// CancelFlow handles DELETE /api/v1/subjects/{subjectID}/reviews/flow. It
// abandons the caller's pending submission so a late store response is
// discarded.
func (h *ReviewHandler) CancelFlow(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")
	authorID := middleware.UserIDFromContext(r.Context())

	h.reviews.CancelFlow(authorID, subjectID)
	w.WriteHeader(http.StatusNoContent)
}

func parsePagination(r *http.Request) (page, perPage int) {
	page = 1
	perPage = 20

	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			perPage = n
		}
	}
	return page, perPage
}
