package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUnknownTenant means no credential row matches the destination
// channel ID. Callers must treat it as terminal for the batch: the
// webhook is acknowledged so the provider does not redeliver, but no
// events are processed.
var ErrUnknownTenant = errors.New("unknown tenant")

// Service resolves channel destinations to tenant credentials.
type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "tenant")),
	}
}

// ResolveByChannelID looks up the credential row for a LINE destination
// channel ID. Pure read, no mutation.
func (s *Service) ResolveByChannelID(ctx context.Context, channelID string) (Credential, error) {
	const q = `
		SELECT line_api_key_id, company_id, line_channel_id,
		       dify_api_url, dify_api_key,
		       line_channel_access_token, line_channel_secret,
		       remarks, created_at, updated_at
		  FROM line_api_keys
		 WHERE line_channel_id = $1
		 LIMIT 1`

	var c Credential
	err := s.pool.QueryRow(ctx, q, channelID).Scan(
		&c.ID, &c.CompanyID, &c.LineChannelID,
		&c.DifyAPIURL, &c.DifyAPIKey,
		&c.ChannelAccessToken, &c.ChannelSecret,
		&c.Remarks, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, ErrUnknownTenant
		}
		return Credential{}, fmt.Errorf("resolve channel %s: %w", channelID, err)
	}
	return c, nil
}

// CreateCredential registers a company's channel credentials. Used by
// provisioning tooling, not by the relay path.
func (s *Service) CreateCredential(ctx context.Context, c Credential) (Credential, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO line_api_keys
		       (line_api_key_id, company_id, line_channel_id,
		        dify_api_url, dify_api_key,
		        line_channel_access_token, line_channel_secret, remarks,
		        created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8,
		        CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING created_at, updated_at`

	err := s.pool.QueryRow(ctx, q,
		c.ID, c.CompanyID, c.LineChannelID,
		c.DifyAPIURL, c.DifyAPIKey,
		c.ChannelAccessToken, c.ChannelSecret, c.Remarks,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Credential{}, fmt.Errorf("create credential: %w", err)
	}
	return c, nil
}

// GetCompanyByID returns the company owning a credential set.
func (s *Service) GetCompanyByID(ctx context.Context, companyID string) (Company, error) {
	const q = `
		SELECT company_id, company_name, COALESCE(email_address, ''),
		       remarks, created_at, updated_at
		  FROM companies
		 WHERE company_id = $1
		 LIMIT 1`

	var c Company
	err := s.pool.QueryRow(ctx, q, companyID).Scan(
		&c.ID, &c.Name, &c.EmailAddress, &c.Remarks, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, fmt.Errorf("company %s: %w", companyID, pgx.ErrNoRows)
		}
		return Company{}, fmt.Errorf("get company %s: %w", companyID, err)
	}
	return c, nil
}
