package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shorelinehq/oysterly/internal/domain"
	"github.com/shorelinehq/oysterly/internal/repository"
	apperrors "github.com/shorelinehq/oysterly/pkg/errors"
)

// Fixed user-facing text for the friends page. These are part of the
// rendering contract and are asserted on verbatim by consumers.
const (
	LoadingFriendsLabel = "Loading friends..."
	PrivateFriendsTitle = "Friends List is Private"
)

// FriendsView is the closed set of outcomes for a friends list. Private
// carries fixed messaging and never a list; a lookup error is an error
// return, never one of these views, so absence by policy cannot be confused
// with absence by failure.
type FriendsView interface {
	friendsView()

	// Kind returns the wire-stable view discriminator.
	Kind() string
}

// FriendsLoading is the transient view while the profile fetch is pending.
type FriendsLoading struct {
	Label string `json:"label"`
}

// FriendsVisible carries the friends list of a public profile.
type FriendsVisible struct {
	Friends []domain.User `json:"friends"`
}

// FriendsPrivate is the fallback for a private list. The underlying list was
// never fetched.
type FriendsPrivate struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (FriendsLoading) friendsView() {}
func (FriendsVisible) friendsView() {}
func (FriendsPrivate) friendsView() {}

func (FriendsLoading) Kind() string { return "LOADING" }
func (FriendsVisible) Kind() string { return "VISIBLE" }
func (FriendsPrivate) Kind() string { return "PRIVATE" }

// FriendsPage is what the presentation layer renders: the subject's header
// name, shown regardless of privacy, and the gated friends view.
type FriendsPage struct {
	HeaderName string
	View       FriendsView
}

// ProfileVisibilityGate decides whether a viewer sees a profile's friends
// list or the private fallback.
type ProfileVisibilityGate struct{}

// Header returns the friends page header for a display name.
func (ProfileVisibilityGate) Header(name string) string {
	return name + "'s Friends"
}

// Loading returns the view shown while the profile fetch is pending.
func (ProfileVisibilityGate) Loading() FriendsView {
	return FriendsLoading{Label: LoadingFriendsLabel}
}

// Evaluate produces the friends page for a fetched profile. fetchFriends is
// invoked only when the list is public; for a private profile the list is
// never loaded. A fetch failure propagates as an error and is never rendered
// as the private fallback.
func (g ProfileVisibilityGate) Evaluate(ctx context.Context, profile *domain.Profile, fetchFriends func(context.Context) ([]domain.User, error)) (*FriendsPage, error) {
	page := &FriendsPage{HeaderName: g.Header(profile.User.Name)}

	if profile.Stats.FriendsPrivate {
		page.View = FriendsPrivate{
			Title:       PrivateFriendsTitle,
			Description: profile.User.Name + "'s friends list is set to private.",
		}
		return page, nil
	}

	friends, err := fetchFriends(ctx)
	if err != nil {
		return nil, err
	}

	page.View = FriendsVisible{Friends: friends}
	return page, nil
}

// ProfileService serves public profiles and privacy-gated friends pages, with
// a read-through cache in front of the profile store.
type ProfileService struct {
	profiles repository.ProfileRepository
	cache    repository.ProfileCache
	gate     ProfileVisibilityGate
	logger   *slog.Logger
}

// NewProfileService creates a profile service. cache may be nil, in which
// case every read goes to the repository.
func NewProfileService(profiles repository.ProfileRepository, cache repository.ProfileCache, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		cache:    cache,
		logger:   logger,
	}
}

// GetProfile retrieves a user's public profile, preferring the cache.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	if s.cache != nil {
		profile, err := s.cache.Get(ctx, userID)
		if err == nil {
			return profile, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "profile cache read failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, profile); err != nil {
			s.logger.WarnContext(ctx, "profile cache write failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	return profile, nil
}

// FriendsPage builds the gated friends page for a user. The friends list is
// loaded only when the profile allows it.
func (s *ProfileService) FriendsPage(ctx context.Context, userID string) (*FriendsPage, error) {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.gate.Evaluate(ctx, profile, func(ctx context.Context) ([]domain.User, error) {
		return s.profiles.ListFriends(ctx, userID)
	})
}
