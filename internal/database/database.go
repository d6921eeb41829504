package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vincentbai/webhook-activity/internal/models"
)

// ErrUnavailable wraps every failure to reach or use the backing store.
var ErrUnavailable = errors.New("store unavailable")

// Store is append-only persistence for activity records.
type Store interface {
	Insert(ctx context.Context, event *models.ActivityEvent) error
	// ListRecent returns records created strictly after since (all records
	// when since is nil), newest first, at most limit of them.
	ListRecent(ctx context.Context, since *time.Time, limit int) ([]models.ActivityEvent, error)
	Ping(ctx context.Context) error
	Close() error
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	Driver         string
	Path           string // sqlite database file
	URL            string // postgres DSN or mongodb URI
	Database       string // mongo database
	Collection     string // mongo collection
	ConnectTimeout time.Duration
}

// Open constructs the store selected by cfg.Driver. Network backends connect
// lazily, so Open succeeds even when the server is down.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		return NewSQLite(cfg.Path, cfg.ConnectTimeout)
	case DriverPostgres:
		return NewPostgres(cfg.URL, cfg.ConnectTimeout)
	case DriverMongo:
		return NewMongo(ctx, cfg.URL, cfg.Database, cfg.Collection, cfg.ConnectTimeout)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

// WaitReady pings the store with exponential backoff until it answers or
// maxElapsed passes.
func WaitReady(ctx context.Context, store Store, maxElapsed time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = maxElapsed

	return backoff.Retry(func() error {
		return store.Ping(ctx)
	}, backoff.WithContext(b, ctx))
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
