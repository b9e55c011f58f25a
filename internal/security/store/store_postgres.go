package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	activitymodels "reloop/internal/activity/models"
	"reloop/internal/security/models"
	id "reloop/pkg/domain"
	"reloop/pkg/platform/sentinel"
)

// PostgresStore persists security signals in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const signalColumns = `id, user_id, activity_id, type, severity, title, description, metadata,
	timestamp, acknowledged, acknowledged_at`

const signalOrder = ` ORDER BY (severity = 'CRITICAL') DESC, timestamp DESC`

func (s *PostgresStore) Create(ctx context.Context, signal *models.Signal) error {
	if signal != nil && signal.ID.IsNil() {
		signal.ID = id.NewSignalID()
	}
	if err := signal.Validate(); err != nil {
		return err
	}
	metadata, err := json.Marshal(signalMetadata(signal.Metadata))
	if err != nil {
		return fmt.Errorf("encode signal metadata: %w", err)
	}

	query := `
		INSERT INTO security_signals (` + signalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(signal.ID),
		signal.UserID.String(),
		nullUUID(signal.ActivityID),
		string(signal.Type),
		string(signal.Severity),
		signal.Title,
		signal.Description,
		string(metadata),
		signal.Timestamp,
		signal.Acknowledged,
		signal.AcknowledgedAt,
	)
	if err != nil {
		return fmt.Errorf("insert security signal: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert security signal rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, signalID id.SignalID) (*models.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM security_signals WHERE id = $1`
	signal, err := scanSignal(s.db.QueryRowContext(ctx, query, uuid.UUID(signalID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find security signal: %w", err)
	}
	return signal, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID, includeAcknowledged bool) ([]*models.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM security_signals WHERE user_id = $1`
	if !includeAcknowledged {
		query += ` AND NOT acknowledged`
	}
	return s.querySignals(ctx, query+signalOrder, userID.String())
}

func (s *PostgresStore) List(ctx context.Context, filter models.Filter, page activitymodels.Page) ([]*models.Signal, int, error) {
	page = page.Normalize()
	where, args := filterClause(filter)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM security_signals`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count security signals: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	args = append(args, page.Limit, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM security_signals%s%s LIMIT $%d OFFSET $%d`,
		signalColumns, where, signalOrder, len(args)-1, len(args))
	signals, err := s.querySignals(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return signals, total, nil
}

func (s *PostgresStore) Acknowledge(ctx context.Context, signalID id.SignalID, at time.Time) (*models.Signal, error) {
	query := `
		UPDATE security_signals
		SET acknowledged = TRUE, acknowledged_at = COALESCE(acknowledged_at, $2)
		WHERE id = $1
		RETURNING ` + signalColumns
	signal, err := scanSignal(s.db.QueryRowContext(ctx, query, uuid.UUID(signalID), at))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("acknowledge security signal: %w", err)
	}
	return signal, nil
}

func (s *PostgresStore) AcknowledgeAllForUser(ctx context.Context, userID id.UserID, at time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE security_signals
		SET acknowledged = TRUE, acknowledged_at = $2
		WHERE user_id = $1 AND NOT acknowledged
	`, userID.String(), at)
	if err != nil {
		return 0, fmt.Errorf("acknowledge security signals: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("acknowledge security signals rows: %w", err)
	}
	return int(rows), nil
}

func (s *PostgresStore) querySignals(ctx context.Context, query string, args ...any) ([]*models.Signal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list security signals: %w", err)
	}
	defer rows.Close()

	var signals []*models.Signal
	for rows.Next() {
		signal, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan security signal: %w", err)
		}
		signals = append(signals, signal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate security signals: %w", err)
	}
	return signals, nil
}

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
	if f.Type != nil {
		add("type = $%d", string(*f.Type))
	}
	if f.Severity != nil {
		add("severity = $%d", string(*f.Severity))
	}
	if f.Acknowledged != nil {
		add("acknowledged = $%d", *f.Acknowledged)
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

type signalRow interface {
	Scan(dest ...any) error
}

func scanSignal(row signalRow) (*models.Signal, error) {
	var (
		signal         models.Signal
		signalID       uuid.UUID
		userID         string
		activityID     uuid.NullUUID
		typ, severity  string
		metadata       []byte
		acknowledgedAt sql.NullTime
	)
	err := row.Scan(&signalID, &userID, &activityID, &typ, &severity, &signal.Title,
		&signal.Description, &metadata, &signal.Timestamp, &signal.Acknowledged, &acknowledgedAt)
	if err != nil {
		return nil, err
	}
	signal.ID = id.SignalID(signalID)
	signal.UserID = id.UserID(userID)
	if activityID.Valid {
		signal.ActivityID = id.ActivityID(activityID.UUID)
	}
	signal.Type = models.SignalType(typ)
	signal.Severity = models.Severity(severity)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &signal.Metadata); err != nil {
			return nil, fmt.Errorf("decode signal metadata: %w", err)
		}
	}
	if acknowledgedAt.Valid {
		signal.AcknowledgedAt = &acknowledgedAt.Time
	}
	return &signal, nil
}

func signalMetadata(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func nullUUID(activityID id.ActivityID) uuid.NullUUID {
	return uuid.NullUUID{UUID: uuid.UUID(activityID), Valid: !activityID.IsNil()}
}
