package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"reloop/internal/activity/models"
	id "reloop/pkg/domain"
	"reloop/pkg/platform/sentinel"
)

// PostgresStore persists activity events in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const eventColumns = `id, user_id, ip_address, device, location, action, action_label,
	entity_type, entity_id, entity_name, outcome, risk_level, source,
	before_state, after_state, reason, audit_ref, request_id, method, path, status_code,
	timestamp, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, event *models.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if event.ID.IsNil() {
		event.ID = id.NewActivityID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	event.UpdatedAt = event.CreatedAt

	query := `
		INSERT INTO activity_events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(event.ID),
		event.UserID.String(),
		event.IPAddress,
		event.Device,
		event.Location,
		string(event.Action),
		event.ActionLabel,
		event.EntityType,
		event.EntityID,
		event.EntityName,
		string(event.Outcome),
		string(event.RiskLevel),
		string(event.Source),
		nullString(event.BeforeState),
		nullString(event.AfterState),
		nullString(event.Reason),
		event.AuditRef,
		event.RequestID,
		event.Method,
		event.Path,
		event.StatusCode,
		event.Timestamp,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity event: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert activity event rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, activityID id.ActivityID) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM activity_events WHERE id = $1`
	event, err := scanEvent(s.db.QueryRowContext(ctx, query, uuid.UUID(activityID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find activity event: %w", err)
	}
	return event, nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.Filter, page models.Page) ([]*models.Event, int, error) {
	page = page.Normalize()
	where, args := filterClause(filter)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_events`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count activity events: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	args = append(args, page.Limit, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM activity_events%s
		ORDER BY timestamp DESC, created_at DESC
		LIMIT $%d OFFSET $%d`, eventColumns, where, len(args)-1, len(args))

	events, err := s.queryEvents(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID, limit int) ([]*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM activity_events
		WHERE user_id = $1
		ORDER BY timestamp DESC, created_at DESC`
	args := []any{userID.String()}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.queryEvents(ctx, query, args...)
}

func (s *PostgresStore) ListByUserAndAction(ctx context.Context, userID id.UserID, action models.Action, limit int) ([]*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM activity_events
		WHERE user_id = $1 AND action = $2
		ORDER BY timestamp DESC, created_at DESC`
	args := []any{userID.String(), string(action)}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	return s.queryEvents(ctx, query, args...)
}

func (s *PostgresStore) DeviceHistory(ctx context.Context, userID id.UserID, device string, exclude id.ActivityID) (models.DeviceHistory, error) {
	const query = `
		SELECT
			EXISTS (SELECT 1 FROM activity_events WHERE user_id = $1 AND action = $2 AND id <> $3),
			EXISTS (SELECT 1 FROM activity_events WHERE user_id = $1 AND action = $2 AND id <> $3 AND device = $4)`
	var h models.DeviceHistory
	err := s.db.QueryRowContext(ctx, query, userID.String(), string(models.ActionLogin), uuid.UUID(exclude), device).
		Scan(&h.PriorLogins, &h.DeviceSeen)
	if err != nil {
		return h, fmt.Errorf("read device history: %w", err)
	}
	return h, nil
}

func (s *PostgresStore) CountByUserAndActionSince(ctx context.Context, userID id.UserID, action models.Action, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM activity_events WHERE user_id = $1 AND action = $2 AND timestamp >= $3`
	var count int
	if err := s.db.QueryRowContext(ctx, query, userID.String(), string(action), since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count activity events by action: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) DistinctLocations(ctx context.Context, userID id.UserID, since, until time.Time) ([]string, error) {
	query := `
		SELECT location
		FROM activity_events
		WHERE user_id = $1 AND timestamp >= $2 AND timestamp < $3
			AND location <> '' AND location <> $4
		GROUP BY location
		ORDER BY MAX(timestamp) DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID.String(), since, until, models.UnknownLocation)
	if err != nil {
		return nil, fmt.Errorf("list distinct locations: %w", err)
	}
	defer rows.Close()

	var locations []string
	for rows.Next() {
		var location string
		if err := rows.Scan(&location); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		locations = append(locations, location)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}
	return locations, nil
}

func (s *PostgresStore) MostRecentForUser(ctx context.Context, userID id.UserID) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM activity_events
		WHERE user_id = $1
		ORDER BY timestamp DESC, created_at DESC
		LIMIT 1`
	event, err := scanEvent(s.db.QueryRowContext(ctx, query, userID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find most recent activity event: %w", err)
	}
	return event, nil
}

func (s *PostgresStore) Summary(ctx context.Context, userID id.UserID, since time.Time) (*models.Summary, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE timestamp >= $2 AND action = $3),
			COUNT(*) FILTER (WHERE timestamp >= $2 AND action NOT IN ($3, $4, $5)),
			COUNT(*) FILTER (WHERE timestamp >= $2 AND risk_level IN ('HIGH', 'CRITICAL')),
			COUNT(DISTINCT location) FILTER (WHERE timestamp >= $2 AND location <> '' AND location <> $6),
			MAX(timestamp)
		FROM activity_events
		WHERE user_id = $1
	`
	var (
		summary models.Summary
		last    sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query,
		userID.String(),
		since,
		string(models.ActionLogin),
		string(models.ActionLogout),
		string(models.ActionFailedLogin),
		models.UnknownLocation,
	).Scan(
		&summary.RecentLogins,
		&summary.ActionsPerformed,
		&summary.SensitiveActions,
		&summary.DistinctLocations,
		&last,
	)
	if err != nil {
		return nil, fmt.Errorf("summarize activity: %w", err)
	}
	if last.Valid {
		summary.LastActivityTime = last.Time
	}
	return &summary, nil
}

func (s *PostgresStore) queryEvents(ctx context.Context, query string, args ...any) ([]*models.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activity events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity events: %w", err)
	}
	return events, nil
}

// filterClause renders a WHERE clause (with leading space) and its positional args.
func filterClause(f models.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if !f.UserID.IsNil() {
		add("user_id = $%d", f.UserID.String())
	}
	if f.Action != nil {
		add("action = $%d", string(*f.Action))
	}
	if f.RiskLevel != nil {
		add("risk_level = $%d", string(*f.RiskLevel))
	}
	if f.Source != nil {
		add("source = $%d", string(*f.Source))
	}
	if f.Outcome != nil {
		add("outcome = $%d", string(*f.Outcome))
	}
	if f.EntityType != "" {
		add("entity_type = $%d", f.EntityType)
	}
	if f.EntityID != "" {
		add("entity_id = $%d", f.EntityID)
	}
	if f.From != nil {
		add("timestamp >= $%d", *f.From)
	}
	if f.To != nil {
		add("timestamp <= $%d", *f.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type eventRow interface {
	Scan(dest ...any) error
}

func scanEvent(row eventRow) (*models.Event, error) {
	var (
		e                     models.Event
		eventID               uuid.UUID
		userID                string
		action, outcome       string
		risk, source          string
		before, after, reason sql.NullString
	)
	err := row.Scan(
		&eventID, &userID, &e.IPAddress, &e.Device, &e.Location, &action, &e.ActionLabel,
		&e.EntityType, &e.EntityID, &e.EntityName, &outcome, &risk, &source,
		&before, &after, &reason, &e.AuditRef, &e.RequestID, &e.Method, &e.Path, &e.StatusCode,
		&e.Timestamp, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.ID = id.ActivityID(eventID)
	e.UserID = id.UserID(userID)
	e.Action = models.Action(action)
	e.Outcome = models.Outcome(outcome)
	e.RiskLevel = models.RiskLevel(risk)
	e.Source = models.Source(source)
	e.BeforeState = before.String
	e.AfterState = after.String
	e.Reason = reason.String
	return &e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
