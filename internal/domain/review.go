package domain

import (
	"strings"
	"time"
)

// Rating levels a review may carry. The set is closed: anything else is
// rejected before a store is ever contacted.
const (
	RatingDislikeIt = "DISLIKE_IT"
	RatingLikeIt    = "LIKE_IT"
	RatingLoveIt    = "LOVE_IT"
)

// Review is a user's review of a subject (an oyster). At most one review per
// (author, subject) pair exists; the reviews table enforces this with a
// unique constraint, and a repeat submission updates the existing row.
type Review struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	SubjectID string    `json:"subject_id"`
	Rating    string    `json:"rating"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReviewDraft holds the user-editable fields of a review before it is
// persisted.
type ReviewDraft struct {
	Rating string `json:"rating"`
	Body   string `json:"body"`
}

// Normalize trims surrounding whitespace from the body; a body that is all
// whitespace becomes empty, which counts as no text.
func (d ReviewDraft) Normalize() ReviewDraft {
	d.Body = strings.TrimSpace(d.Body)
	return d
}

// DraftOf returns a draft prefilled from an existing review, so a user
// resolving a duplicate edits their previous text and rating rather than
// starting blank.
func DraftOf(r *Review) ReviewDraft {
	return ReviewDraft{Rating: r.Rating, Body: r.Body}
}

// ValidRatings returns the closed set of recognized rating values.
func ValidRatings() []string {
	return []string{RatingDislikeIt, RatingLikeIt, RatingLoveIt}
}

// IsValidRating reports whether the given value is a recognized rating.
func IsValidRating(rating string) bool {
	for _, r := range ValidRatings() {
		if r == rating {
			return true
		}
	}
	return false
}
