// Package event wires the analysis service to the review event stream.
package event

import (
	"context"
	"log/slog"
	"time"

	pkgkafka "github.com/dinewise/analysis/pkg/kafka"
	"github.com/dinewise/analysis/pkg/validator"
)

// Kafka topics consumed by the analysis service.
var (
	TopicReviewCreated = pkgkafka.Topic("review", "created")
	TopicReviewDeleted = pkgkafka.Topic("review", "deleted")
)

// ReviewAnalyzer is the aggregation surface the consumer drives.
type ReviewAnalyzer interface {
	ProcessReview(ctx context.Context, reviewID, placeID, text string) error
	RemoveReview(ctx context.Context, reviewID string) error
}

// ReviewRegistry registers reviews with the vote ledger.
type ReviewRegistry interface {
	RegisterReview(ctx context.Context, reviewID, placeID, authorID string) error
}

// ReviewCreatedData is the expected payload of a review.created event.
type ReviewCreatedData struct {
	ReviewID  string    `json:"review_id" validate:"required"`
	PlaceID   string    `json:"place_id" validate:"required"`
	UserID    string    `json:"user_id" validate:"required"`
	Text      string    `json:"text"`
	Rating    int       `json:"rating" validate:"min=1,max=5"`
	CreatedAt time.Time `json:"created_at"`
}

// ReviewDeletedData is the expected payload of a review.deleted event.
type ReviewDeletedData struct {
	ReviewID string `json:"review_id" validate:"required"`
}

// Consumer processes incoming Kafka events for the analysis service.
type Consumer struct {
	logger   *slog.Logger
	analyzer ReviewAnalyzer
	registry ReviewRegistry
}

// NewConsumer creates a new event consumer for the analysis service.
func NewConsumer(analyzer ReviewAnalyzer, registry ReviewRegistry, logger *slog.Logger) *Consumer {
	return &Consumer{
		analyzer: analyzer,
		registry: registry,
		logger:   logger,
	}
}

// HandleReviewCreated processes a review.created event: the review is
// registered with the vote ledger and its text is classified and merged into
// the place aggregate. Malformed payloads are logged and dropped; retrying
// them can never succeed. Downstream failures are returned so the stream
// consumer retries and eventually dead-letters the event.
func (c *Consumer) HandleReviewCreated(ctx context.Context, event *pkgkafka.Event) error {
	var data ReviewCreatedData
	if err := event.UnmarshalData(&data); err != nil {
		c.logger.ErrorContext(ctx, "dropping malformed review.created event",
			slog.String("event_id", event.EventID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if err := validator.Validate(data); err != nil {
		c.logger.ErrorContext(ctx, "dropping invalid review.created event",
			slog.String("event_id", event.EventID),
			slog.String("review_id", data.ReviewID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	c.logger.InfoContext(ctx, "processing review.created event",
		slog.String("review_id", data.ReviewID),
		slog.String("place_id", data.PlaceID),
	)

	if err := c.registry.RegisterReview(ctx, data.ReviewID, data.PlaceID, data.UserID); err != nil {
		return err
	}

	if err := c.analyzer.ProcessReview(ctx, data.ReviewID, data.PlaceID, data.Text); err != nil {
		return err
	}

	return nil
}

// HandleReviewDeleted processes a review.deleted event by dropping the
// review's record from its place aggregate.
func (c *Consumer) HandleReviewDeleted(ctx context.Context, event *pkgkafka.Event) error {
	var data ReviewDeletedData
	if err := event.UnmarshalData(&data); err != nil {
		c.logger.ErrorContext(ctx, "dropping malformed review.deleted event",
			slog.String("event_id", event.EventID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if err := validator.Validate(data); err != nil {
		c.logger.ErrorContext(ctx, "dropping invalid review.deleted event",
			slog.String("event_id", event.EventID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	c.logger.InfoContext(ctx, "processing review.deleted event",
		slog.String("review_id", data.ReviewID),
	)

	return c.analyzer.RemoveReview(ctx, data.ReviewID)
}
