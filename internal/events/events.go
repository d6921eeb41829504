// Package events fans stored activity out to a message broker.
package events

import (
	"context"

	"github.com/vincentbai/webhook-activity/internal/models"
)

// TopicActivityCreated carries every newly stored activity record.
const TopicActivityCreated = "activity.created"

type ActivityCreated struct {
	Activity *models.ActivityEvent `json:"activity"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
