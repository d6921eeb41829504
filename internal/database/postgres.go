package database

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type PostgresStore struct {
	*sqlStore
}

var _ Store = (*PostgresStore)(nil)

// NewPostgres prepares a pooled connection to databaseURL. No connection is
// made until the first query.
func NewPostgres(databaseURL string, connectTimeout time.Duration) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("postgres database URL is required")
	}
	dsn, err := withConnectTimeout(databaseURL, connectTimeout)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresStore{sqlStore: newSQLStore(db, sq.Dollar)}, nil
}

// withConnectTimeout adds lib/pq's connect_timeout (whole seconds) to dsn
// unless it already sets one. Both URL and key=value forms are handled.
func withConnectTimeout(dsn string, timeout time.Duration) (string, error) {
	if timeout <= 0 || strings.Contains(dsn, "connect_timeout") {
		return dsn, nil
	}
	seconds := int(timeout.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse database URL: %w", err)
		}
		q := u.Query()
		q.Set("connect_timeout", fmt.Sprint(seconds))
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	return fmt.Sprintf("%s connect_timeout=%d", dsn, seconds), nil
}
