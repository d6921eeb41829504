// Package normalize turns raw GitHub webhook deliveries into activity records.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/webhooks/v6/github"

	"github.com/vincentbai/webhook-activity/internal/models"
)

const unknown = "Unknown"

// ErrInvalidPayload is returned when a push or pull_request body is not a
// JSON object.
var ErrInvalidPayload = errors.New("invalid webhook payload")

// Kind is the closed set of deliveries the normalizer distinguishes.
type Kind int

const (
	KindIgnored Kind = iota
	KindPush
	KindPullRequestOpened
	KindPullRequestMerged
)

func (k Kind) String() string {
	switch k {
	case KindPush:
		return "push"
	case KindPullRequestOpened:
		return "pull_request_opened"
	case KindPullRequestMerged:
		return "pull_request_merged"
	default:
		return "ignored"
	}
}

// Action maps a kind to the stored action. Ignored has no action.
func (k Kind) Action() (models.Action, bool) {
	switch k {
	case KindPush:
		return models.ActionPush, true
	case KindPullRequestOpened:
		return models.ActionPullRequest, true
	case KindPullRequestMerged:
		return models.ActionMerge, true
	}
	return "", false
}

// Payload shapes. Every field is optional; absence is resolved by the
// defaults in Parse, never by a failed lookup.

type user struct {
	Name  *string `json:"name"`
	Login *string `json:"login"`
}

type branchRef struct {
	Ref *string `json:"ref"`
}

type pushPayload struct {
	Ref    *string `json:"ref"`
	Pusher *user   `json:"pusher"`
}

type pullRequest struct {
	User   *user      `json:"user"`
	Head   *branchRef `json:"head"`
	Base   *branchRef `json:"base"`
	Merged *bool      `json:"merged"`
}

type pullRequestPayload struct {
	Action      *string      `json:"action"`
	PullRequest *pullRequest `json:"pull_request"`
}

func (p pullRequestPayload) kind() Kind {
	switch valueOr(p.Action, "") {
	case "opened":
		return KindPullRequestOpened
	case "closed":
		if p.PullRequest != nil && p.PullRequest.Merged != nil && *p.PullRequest.Merged {
			return KindPullRequestMerged
		}
	}
	return KindIgnored
}

// Activity holds the fields extracted from a delivery after defaults are
// applied.
type Activity struct {
	Kind       Kind
	Author     string
	FromBranch *string
	ToBranch   string
}

// Parse classifies a delivery and extracts its fields. Unrecognized event
// types and actions yield KindIgnored and no error.
func Parse(eventType string, payload []byte) (Activity, error) {
	switch github.Event(eventType) {
	case github.PushEvent:
		var p pushPayload
		if err := decode(payload, &p); err != nil {
			return Activity{}, err
		}
		author := unknown
		if p.Pusher != nil {
			author = valueOr(p.Pusher.Name, unknown)
		}
		return Activity{
			Kind:     KindPush,
			Author:   author,
			ToBranch: lastSegment(valueOr(p.Ref, "")),
		}, nil

	case github.PullRequestEvent:
		var p pullRequestPayload
		if err := decode(payload, &p); err != nil {
			return Activity{}, err
		}
		kind := p.kind()
		if kind == KindIgnored {
			return Activity{Kind: KindIgnored}, nil
		}
		pr := p.PullRequest
		if pr == nil {
			pr = &pullRequest{}
		}
		author := unknown
		if pr.User != nil {
			author = valueOr(pr.User.Login, unknown)
		}
		from := refOr(pr.Head, unknown)
		return Activity{
			Kind:       kind,
			Author:     author,
			FromBranch: &from,
			ToBranch:   refOr(pr.Base, unknown),
		}, nil
	}
	return Activity{Kind: KindIgnored}, nil
}

// Event builds the activity record for the given ingestion time. It returns
// nil for ignored deliveries.
func (a Activity) Event(now time.Time) *models.ActivityEvent {
	action, ok := a.Kind.Action()
	if !ok {
		return nil
	}
	now = now.UTC()
	ts := FormatTimestamp(now)

	var message string
	switch a.Kind {
	case KindPush:
		message = fmt.Sprintf("%s pushed to %s on %s", a.Author, a.ToBranch, ts)
	case KindPullRequestOpened:
		message = fmt.Sprintf("%s submitted a pull request from %s to %s on %s", a.Author, *a.FromBranch, a.ToBranch, ts)
	case KindPullRequestMerged:
		message = fmt.Sprintf("%s merged branch %s to %s on %s", a.Author, *a.FromBranch, a.ToBranch, ts)
	}

	return &models.ActivityEvent{
		Author:     a.Author,
		Action:     action,
		FromBranch: a.FromBranch,
		ToBranch:   a.ToBranch,
		Timestamp:  ts,
		Message:    message,
		CreatedAt:  now,
	}
}

// Normalize maps a delivery to zero or one activity record. A nil event with
// a nil error means the delivery is intentionally ignored.
func Normalize(eventType string, payload []byte, now time.Time) (*models.ActivityEvent, error) {
	activity, err := Parse(eventType, payload)
	if err != nil {
		return nil, err
	}
	return activity.Event(now), nil
}

func decode(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func valueOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

func refOr(b *branchRef, fallback string) string {
	if b == nil {
		return fallback
	}
	return valueOr(b.Ref, fallback)
}

// lastSegment returns the part of ref after its final slash, so
// "refs/heads/main" becomes "main".
func lastSegment(ref string) string {
	return ref[strings.LastIndex(ref, "/")+1:]
}
