// Package activity records normalized webhook activity and serves the
// recent-activity feed.
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/webhooks/v6/github"
	"github.com/google/uuid"

	"github.com/vincentbai/webhook-activity/internal/database"
	"github.com/vincentbai/webhook-activity/internal/events"
	"github.com/vincentbai/webhook-activity/internal/idgen"
	"github.com/vincentbai/webhook-activity/internal/metrics"
	"github.com/vincentbai/webhook-activity/internal/models"
	"github.com/vincentbai/webhook-activity/internal/normalize"
)

const (
	// RecentLimit caps the number of records returned by ListRecent.
	RecentLimit = 10

	DefaultStoreTimeout = 5 * time.Second
)

// Service owns the store handle for the lifetime of the process. It holds
// no other mutable state.
type Service struct {
	store        database.Store
	publisher    events.Publisher
	metrics      *metrics.Metrics
	logger       *slog.Logger
	now          func() time.Time
	storeTimeout time.Duration
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock replaces time.Now as the source of created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithStoreTimeout bounds every store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

func NewService(store database.Store, opts ...Option) *Service {
	s := &Service{
		store:        store,
		publisher:    &events.NoopPublisher{},
		logger:       slog.Default(),
		now:          time.Now,
		storeTimeout: DefaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	return s
}

func (s *Service) Metrics() *metrics.Metrics {
	return s.metrics
}

// Ingest normalizes one webhook delivery and stores the result. Deliveries
// the normalizer ignores return (nil, nil). deliveryID is the
// X-GitHub-Delivery header and is kept only when it is a valid UUID.
func (s *Service) Ingest(ctx context.Context, eventType, deliveryID string, body []byte) (*models.ActivityEvent, error) {
	label := eventLabel(eventType)
	now := s.now().UTC().Truncate(time.Microsecond)

	event, err := normalize.Normalize(eventType, body, now)
	if err != nil {
		s.metrics.WebhooksReceived.WithLabelValues(label, "invalid").Inc()
		return nil, err
	}
	if event == nil {
		s.metrics.WebhooksReceived.WithLabelValues(label, "ignored").Inc()
		s.logger.Debug("ignoring webhook", "event", eventType, "delivery", deliveryID)
		return nil, nil
	}

	id, err := idgen.Generate()
	if err != nil {
		return nil, err
	}
	event.ID = id
	if parsed, err := uuid.Parse(deliveryID); err == nil {
		event.DeliveryID = &parsed
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if err := s.store.Insert(storeCtx, event); err != nil {
		s.metrics.StoreErrors.WithLabelValues("insert").Inc()
		s.metrics.WebhooksReceived.WithLabelValues(label, "error").Inc()
		return nil, fmt.Errorf("store activity: %w", err)
	}
	s.metrics.WebhooksReceived.WithLabelValues(label, "stored").Inc()
	s.metrics.ActivitiesStored.WithLabelValues(string(event.Action)).Inc()
	s.logger.Info("activity stored", "id", event.ID, "action", event.Action, "author", event.Author)

	if err := s.publisher.Publish(ctx, events.TopicActivityCreated, events.ActivityCreated{Activity: event}); err != nil {
		s.metrics.PublishErrors.Inc()
		s.logger.Warn("failed to publish activity", "id", event.ID, "err", err)
	}
	return event, nil
}

// ListRecent returns the newest activity, at most RecentLimit records.
// A non-empty since restricts the result to records created strictly after
// it and must be an ISO-8601 timestamp.
func (s *Service) ListRecent(ctx context.Context, since string) ([]models.RecentEvent, error) {
	var sinceTime *time.Time
	if since != "" {
		t, err := ParseTimestamp(since)
		if err != nil {
			return nil, err
		}
		sinceTime = &t
	}

	records, err := s.Recent(ctx, sinceTime, RecentLimit)
	if err != nil {
		return nil, err
	}

	recent := make([]models.RecentEvent, 0, len(records))
	for _, record := range records {
		recent = append(recent, models.NewRecentEvent(record))
	}
	return recent, nil
}

// Recent returns full records, newest first.
func (s *Service) Recent(ctx context.Context, since *time.Time, limit int) ([]models.ActivityEvent, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	records, err := s.store.ListRecent(storeCtx, since, limit)
	if err != nil {
		s.metrics.StoreErrors.WithLabelValues("list").Inc()
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return records, nil
}

// Ready reports whether the store answers within the store timeout.
func (s *Service) Ready(ctx context.Context) error {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.Ping(storeCtx)
}

// eventLabel keeps the metric label set closed.
func eventLabel(eventType string) string {
	switch github.Event(eventType) {
	case github.PushEvent, github.PullRequestEvent:
		return eventType
	}
	return "other"
}
