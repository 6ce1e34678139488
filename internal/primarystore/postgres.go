package primarystore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresConfig holds configuration for the Postgres-backed primary store.
type PostgresConfig struct {
	// DSN is the Postgres connection string.
	DSN string

	// QueryTimeout bounds every query issued by this client.
	// Default: 5s
	QueryTimeout time.Duration

	// MaxOpenConns caps the connection pool. Default: 10
	MaxOpenConns int
}

// ApplyDefaults sets default values for unset fields.
func (c *PostgresConfig) ApplyDefaults() {
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 5 * time.Second
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 10
	}
}

// Validate validates the configuration.
func (c *PostgresConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("primarystore: dsn is required")
	}
	return nil
}

// PostgresStore implements Store against the backend's Postgres database.
//
// It reads the documents and users tables owned by the CRUD backend and
// never issues writes. All queries carry a bounded timeout so a slow
// primary cannot stall cache operations indefinitely.
type PostgresStore struct {
	db     *sql.DB
	config PostgresConfig
	logger *zap.Logger
}

// NewPostgresStore opens a connection pool to the primary store.
func NewPostgresStore(config PostgresConfig, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening primary store: %w", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	ctx, cancel := context.WithTimeout(context.Background(), config.QueryTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	logger.Info("primary store connected",
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Duration("query_timeout", config.QueryTimeout),
	)

	return &PostgresStore{db: db, config: config, logger: logger}, nil
}

// FindDocuments returns the tenant's documents, optionally narrowed to one
// scope. Rows that vanish mid-scan are simply not returned.
func (s *PostgresStore) FindDocuments(ctx context.Context, tenantID, scopeID string) ([]Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()

	const q = `
		SELECT id, tenant_id, COALESCE(scope_id, ''), filename,
		       COALESCE(content, ''), COALESCE(content_type, ''), uploaded_at
		FROM documents
		WHERE tenant_id = $1 AND ($2 = '' OR scope_id = $2)
		ORDER BY uploaded_at`

	rows, err := s.db.QueryContext(ctx, q, tenantID, scopeID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying documents: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.TenantID, &d.ScopeID, &d.Filename,
			&d.Content, &d.ContentType, &d.UploadedAt); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating documents: %v", ErrUnavailable, err)
	}

	return docs, nil
}

// FindUserTenant resolves the tenant id a user record belongs to.
func (s *PostgresStore) FindUserTenant(ctx context.Context, userID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()

	var tenantID string
	err := s.db.QueryRowContext(ctx,
		`SELECT tenant_id FROM users WHERE id = $1`, userID,
	).Scan(&tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: querying user: %v", ErrUnavailable, err)
	}

	return tenantID, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
