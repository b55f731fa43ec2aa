package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tokengate/internal/identity"
	"tokengate/pkg/platform/sentinel"
)

// PostgresDirectory persists accounts in PostgreSQL. This is the production
// implementation; provisioning races on first sign-in are resolved by the
// unique (provider, provider_id) constraint.
type PostgresDirectory struct {
	db    *sql.DB
	clock func() time.Time
}

// PostgresDirectoryOption configures a PostgresDirectory instance.
type PostgresDirectoryOption func(*PostgresDirectory)

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) PostgresDirectoryOption {
	return func(d *PostgresDirectory) {
		if clock != nil {
			d.clock = clock
		}
	}
}

func NewPostgresDirectory(db *sql.DB, opts ...PostgresDirectoryOption) *PostgresDirectory {
	d := &PostgresDirectory{
		db:    db,
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// GetOrCreate upserts on the external identity key in one round trip. Two
// concurrent first sign-ins for the same identity both land on the same row.
func (d *PostgresDirectory) GetOrCreate(ctx context.Context, provider identity.Provider, providerID, email string) (*User, bool, error) {
	now := d.clock().UTC()
	// xmax = 0 distinguishes a fresh insert from a conflict-update.
	query := `
		INSERT INTO users (id, provider, provider_id, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (provider, provider_id) DO UPDATE SET
			email      = CASE WHEN EXCLUDED.email <> '' THEN EXCLUDED.email ELSE users.email END,
			updated_at = EXCLUDED.updated_at
		RETURNING id, provider, provider_id, email, created_at, updated_at, (xmax = 0)
	`
	var u User
	var created bool
	err := d.db.QueryRowContext(ctx, query, uuid.New(), provider.String(), providerID, email, now).
		Scan(&u.ID, &u.Provider, &u.ProviderID, &u.Email, &u.CreatedAt, &u.UpdatedAt, &created)
	if err != nil {
		return nil, false, fmt.Errorf("get or create user: %w", err)
	}
	return &u, created, nil
}

func (d *PostgresDirectory) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, provider, provider_id, email, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var u User
	err := d.db.QueryRowContext(ctx, query, id).
		Scan(&u.ID, &u.Provider, &u.ProviderID, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}
