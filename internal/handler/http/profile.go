package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shorelinehq/oysterly/internal/domain"
	"github.com/shorelinehq/oysterly/internal/service"
	apperrors "github.com/shorelinehq/oysterly/pkg/errors"
	"github.com/shorelinehq/oysterly/pkg/httputil"
)

// ProfileHandler serves public profiles and the privacy-gated friends page.
type ProfileHandler struct {
	profiles *service.ProfileService
	logger   *slog.Logger
}

// NewProfileHandler creates a profile handler.
func NewProfileHandler(profiles *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

type profileResponse struct {
	User  domain.User         `json:"user"`
	Stats domain.ProfileStats `json:"stats"`
}

// friendsPageResponse mirrors the gate contract. Exactly one of Friends or
// Private is present; a private list carries fixed messaging and no data.
type friendsPageResponse struct {
	Header  string                  `json:"header"`
	Kind    string                  `json:"kind"`
	Friends []domain.User           `json:"friends,omitempty"`
	Private *friendsPrivateResponse `json:"private,omitempty"`
}

type friendsPrivateResponse struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// GetProfile handles GET /api/v1/users/{userID}/profile.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profiles.GetProfile(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: profileResponse{User: profile.User, Stats: profile.Stats},
	})
}

// GetFriends handles GET /api/v1/users/{userID}/friends. A missing user is a
// 404; it is never rendered as the private fallback.
func (h *ProfileHandler) GetFriends(w http.ResponseWriter, r *http.Request) {
	page, err := h.profiles.FriendsPage(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	resp := friendsPageResponse{
		Header: page.HeaderName,
		Kind:   page.View.Kind(),
	}

	switch view := page.View.(type) {
	case service.FriendsVisible:
		resp.Friends = view.Friends
	case service.FriendsPrivate:
		resp.Private = &friendsPrivateResponse{
			Title:       view.Title,
			Description: view.Description,
		}
	default:
		httputil.WriteError(w, r, apperrors.Internal(fmt.Errorf("unhandled friends view %q", page.View.Kind())), h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: resp})
}
