package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	ActionPush        Action = "PUSH"
	ActionPullRequest Action = "PULL_REQUEST"
	ActionMerge       Action = "MERGE"
)

func (a Action) Valid() bool {
	switch a {
	case ActionPush, ActionPullRequest, ActionMerge:
		return true
	}
	return false
}

// ActivityEvent is a normalized webhook delivery. Records are written once
// and never updated.
type ActivityEvent struct {
	ID         string     `json:"id"`
	DeliveryID *uuid.UUID `json:"delivery_id,omitempty"`
	Author     string     `json:"author"`
	Action     Action     `json:"action"`
	FromBranch *string    `json:"from_branch,omitempty"` // nil for PUSH
	ToBranch   string     `json:"to_branch"`
	Timestamp  string     `json:"timestamp"` // formatted form of CreatedAt used in Message
	Message    string     `json:"message"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Validate checks the invariants a stored record must hold.
func (e *ActivityEvent) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("id cannot be empty")
	}
	if !e.Action.Valid() {
		return fmt.Errorf("invalid action: %s", e.Action)
	}
	if e.Action == ActionPush && e.FromBranch != nil {
		return fmt.Errorf("from_branch must be absent for %s", e.Action)
	}
	if e.Action != ActionPush && e.FromBranch == nil {
		return fmt.Errorf("from_branch is required for %s", e.Action)
	}
	if e.Message == "" {
		return fmt.Errorf("message cannot be empty")
	}
	if e.CreatedAt.IsZero() {
		return fmt.Errorf("created_at must be set")
	}
	return nil
}

// RecentEvent is the projection returned by the polling endpoint.
type RecentEvent struct {
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// TimeLayout is the wire format for created_at.
const TimeLayout = time.RFC3339Nano

func NewRecentEvent(e ActivityEvent) RecentEvent {
	return RecentEvent{
		Message:   e.Message,
		CreatedAt: e.CreatedAt.UTC().Format(TimeLayout),
	}
}
