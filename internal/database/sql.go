package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vincentbai/webhook-activity/internal/models"
)

const tableActivityEvents = "activity_events"

// created_at holds Unix microseconds so both SQL dialects order and compare
// it the same way.
const schema = `
CREATE TABLE IF NOT EXISTS activity_events(
  id                  TEXT   PRIMARY KEY,
  delivery_id         TEXT,
  author              TEXT   NOT NULL,
  action              TEXT   NOT NULL CHECK (action IN ('PUSH','PULL_REQUEST','MERGE')),
  from_branch         TEXT,
  to_branch           TEXT   NOT NULL,
  formatted_timestamp TEXT   NOT NULL,
  message             TEXT   NOT NULL,
  created_at          BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activity_events_created_at ON activity_events(created_at DESC);
`

var activityColumns = []string{
	"id", "delivery_id", "author", "action", "from_branch",
	"to_branch", "formatted_timestamp", "message", "created_at",
}

type activityRow struct {
	ID         string         `db:"id"`
	DeliveryID sql.NullString `db:"delivery_id"`
	Author     string         `db:"author"`
	Action     string         `db:"action"`
	FromBranch sql.NullString `db:"from_branch"`
	ToBranch   string         `db:"to_branch"`
	Timestamp  string         `db:"formatted_timestamp"`
	Message    string         `db:"message"`
	CreatedAt  int64          `db:"created_at"`
}

func (r activityRow) toModel() models.ActivityEvent {
	event := models.ActivityEvent{
		ID:        r.ID,
		Author:    r.Author,
		Action:    models.Action(r.Action),
		ToBranch:  r.ToBranch,
		Timestamp: r.Timestamp,
		Message:   r.Message,
		CreatedAt: time.UnixMicro(r.CreatedAt).UTC(),
	}
	if r.FromBranch.Valid {
		from := r.FromBranch.String
		event.FromBranch = &from
	}
	if r.DeliveryID.Valid {
		if id, err := uuid.Parse(r.DeliveryID.String); err == nil {
			event.DeliveryID = &id
		}
	}
	return event
}

// sqlStore is the dialect-independent part of the SQLite and Postgres
// stores. The schema is created on first successful use so a server that
// starts before its database can recover once the database comes up.
type sqlStore struct {
	db      *sqlx.DB
	builder sq.StatementBuilderType

	mu          sync.Mutex
	schemaReady bool
}

func newSQLStore(db *sqlx.DB, placeholder sq.PlaceholderFormat) *sqlStore {
	return &sqlStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
	}
}

func (s *sqlStore) ensureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schemaReady {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create database tables: %w", err)
	}
	s.schemaReady = true
	return nil
}

func (s *sqlStore) Insert(ctx context.Context, event *models.ActivityEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}
	if err := s.ensureSchema(ctx); err != nil {
		return unavailable("insert", err)
	}

	var deliveryID sql.NullString
	if event.DeliveryID != nil {
		deliveryID = sql.NullString{String: event.DeliveryID.String(), Valid: true}
	}
	var fromBranch sql.NullString
	if event.FromBranch != nil {
		fromBranch = sql.NullString{String: *event.FromBranch, Valid: true}
	}

	query, args, err := s.builder.Insert(tableActivityEvents).
		Columns(activityColumns...).
		Values(
			event.ID, deliveryID, event.Author, string(event.Action), fromBranch,
			event.ToBranch, event.Timestamp, event.Message, event.CreatedAt.UnixMicro(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return unavailable("insert", err)
	}
	return nil
}

func (s *sqlStore) ListRecent(ctx context.Context, since *time.Time, limit int) ([]models.ActivityEvent, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, unavailable("list", err)
	}

	builder := s.builder.Select(activityColumns...).From(tableActivityEvents)
	if since != nil {
		builder = builder.Where(sq.Gt{"created_at": since.UnixMicro()})
	}
	builder = builder.OrderBy("created_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var rows []activityRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, unavailable("list", err)
	}

	events := make([]models.ActivityEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.toModel())
	}
	return events, nil
}

func (s *sqlStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	if err := s.ensureSchema(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
