// Package event publishes review lifecycle events to Kafka.
package event

import (
	"context"
	"fmt"
	"time"

	"github.com/shorelinehq/oysterly/internal/domain"
	"github.com/shorelinehq/oysterly/pkg/kafka"
	"github.com/shorelinehq/oysterly/pkg/logger"
)

// Topics this service publishes to.
const (
	TopicReviewCreated = "oysterly.review.created"
	TopicReviewUpdated = "oysterly.review.updated"
)

// Event types carried in the envelope.
const (
	TypeReviewCreated = "review.created"
	TypeReviewUpdated = "review.updated"
)

const source = "oysterly"

// ReviewCreatedPayload is the data carried by a review.created event.
type ReviewCreatedPayload struct {
	ReviewID  string    `json:"review_id"`
	AuthorID  string    `json:"author_id"`
	SubjectID string    `json:"subject_id"`
	Rating    string    `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}

// ReviewUpdatedPayload is the data carried by a review.updated event.
type ReviewUpdatedPayload struct {
	ReviewID  string    `json:"review_id"`
	AuthorID  string    `json:"author_id"`
	SubjectID string    `json:"subject_id"`
	Rating    string    `json:"rating"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Producer publishes review events.
type Producer struct {
	producer *kafka.Producer
}

// NewProducer creates a review event producer.
func NewProducer(producer *kafka.Producer) *Producer {
	return &Producer{producer: producer}
}

// PublishReviewCreated publishes a review.created event keyed by review ID.
func (p *Producer) PublishReviewCreated(ctx context.Context, review *domain.Review) error {
	payload := ReviewCreatedPayload{
		ReviewID:  review.ID,
		AuthorID:  review.AuthorID,
		SubjectID: review.SubjectID,
		Rating:    review.Rating,
		CreatedAt: review.CreatedAt,
	}

	evt, err := kafka.NewEvent(TypeReviewCreated, review.ID, "review", source, payload)
	if err != nil {
		return fmt.Errorf("build review created event: %w", err)
	}
	evt.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	return p.producer.Publish(ctx, TopicReviewCreated, evt)
}

// PublishReviewUpdated publishes a review.updated event keyed by review ID.
func (p *Producer) PublishReviewUpdated(ctx context.Context, review *domain.Review) error {
	payload := ReviewUpdatedPayload{
		ReviewID:  review.ID,
		AuthorID:  review.AuthorID,
		SubjectID: review.SubjectID,
		Rating:    review.Rating,
		UpdatedAt: review.UpdatedAt,
	}

	evt, err := kafka.NewEvent(TypeReviewUpdated, review.ID, "review", source, payload)
	if err != nil {
		return fmt.Errorf("build review updated event: %w", err)
	}
	evt.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	return p.producer.Publish(ctx, TopicReviewUpdated, evt)
}
