package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no record matches the lookup key.
var ErrNotFound = errors.New("conversation record not found")

const selectColumns = `line_user_id, company_id, user_id,
	       COALESCE(conversation_id, ''), remarks, created_at, updated_at`

// Store persists per-user conversation records in Postgres. The
// (company_id, user_id) unique constraint makes GetOrCreate safe under
// concurrent first contacts from the same user.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		pool:   pool,
		logger: log.With(slog.String("service", "conversation")),
	}
}

// GetOrCreate returns the record for (companyID, userID), creating one
// with no conversation handle on first contact. Idempotent: a losing
// concurrent insert falls through to the surviving row.
func (s *Store) GetOrCreate(ctx context.Context, companyID, userID string) (Record, error) {
	rec, err := s.get(ctx, companyID, userID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Record{}, err
	}

	const ins = `
		INSERT INTO line_users
		       (line_user_id, company_id, user_id, conversation_id, remarks,
		        created_at, updated_at)
		VALUES ($1, $2, $3, NULL, '', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (company_id, user_id) DO NOTHING`

	if _, err := s.pool.Exec(ctx, ins, uuid.NewString(), companyID, userID); err != nil {
		return Record{}, fmt.Errorf("create line user: %w", err)
	}
	return s.get(ctx, companyID, userID)
}

// GetByID loads a record by its primary key. Used by the report path,
// which receives line_user_id from Dify callbacks.
func (s *Store) GetByID(ctx context.Context, id string) (Record, error) {
	q := `SELECT ` + selectColumns + `
		  FROM line_users
		 WHERE line_user_id = $1
		 LIMIT 1`

	rec, err := s.scanRow(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("get line user %s: %w", id, err)
	}
	return rec, nil
}

// SetConversationIfAbsent assigns the Dify handle only when none is
// stored yet. When the stored handle already exists it wins; a
// different handle reported by upstream is logged as a session rotation
// signal rather than overwritten.
func (s *Store) SetConversationIfAbsent(ctx context.Context, id, conversationID string) (Record, error) {
	const upd = `
		UPDATE line_users
		   SET conversation_id = $2,
		       updated_at = CURRENT_TIMESTAMP
		 WHERE line_user_id = $1
		   AND conversation_id IS NULL
		RETURNING ` + selectColumns

	rec, err := s.scanRow(s.pool.QueryRow(ctx, upd, id, conversationID))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("set conversation for %s: %w", id, err)
	}

	// Handle already present (or record gone). Re-read and keep the
	// stored value.
	rec, err = s.GetByID(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if rec.ConversationID != conversationID {
		s.logger.Warn("upstream reported a different conversation handle",
			slog.String("line_user_id", id),
			slog.String("stored", rec.ConversationID),
			slog.String("reported", conversationID))
	}
	return rec, nil
}

func (s *Store) get(ctx context.Context, companyID, userID string) (Record, error) {
	q := `SELECT ` + selectColumns + `
		  FROM line_users
		 WHERE company_id = $1
		   AND user_id = $2
		 LIMIT 1`

	rec, err := s.scanRow(s.pool.QueryRow(ctx, q, companyID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("get line user: %w", err)
	}
	return rec, nil
}

func (s *Store) scanRow(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID, &rec.CompanyID, &rec.UserID,
		&rec.ConversationID, &rec.Remarks, &rec.CreatedAt, &rec.UpdatedAt,
	)
	return rec, err
}
