package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists report rows.
type Store interface {
	Insert(ctx context.Context, r Report) (Report, error)
}

// PostgresStore writes to the reports table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Insert(ctx context.Context, r Report) (Report, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	payload, err := json.Marshal(r.Payload)
	if err != nil {
		return Report{}, fmt.Errorf("marshal report payload: %w", err)
	}

	const q = `
		INSERT INTO reports
		       (report_id, company_id, line_user_id, report_json, s3_path,
		        remarks, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING created_at, updated_at`

	err = s.pool.QueryRow(ctx, q,
		r.ID, r.CompanyID, r.LineUserID, payload, r.S3Path, r.Remarks,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return Report{}, fmt.Errorf("insert report: %w", err)
	}
	return r, nil
}
