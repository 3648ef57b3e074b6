package identity

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrUserExists is returned when registering an account identifier twice.
	ErrUserExists = errors.New("user exists")
	// ErrUserNotFound is returned when no credentials exist for an account.
	ErrUserNotFound = errors.New("user not found")
)

//go:embed schema.sql
var schema string

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByID(ctx context.Context, id string) (User, error)
	UpdateDevice(ctx context.Context, id, deviceID string) error
	UpdateTokenVersion(ctx context.Context, id string, version int) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the identities table when it does not exist yet.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply identity schema: %w", err)
	}
	return nil
}

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	_, err := r.db.Exec(ctx, `INSERT INTO identities (account, pin_hash, device_id, token_version, created_at)
        VALUES ($1, $2, $3, $4, $5)`, user.ID, user.PINHash, user.DeviceID, user.TokenVersion, user.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrUserExists
	}
	return err
}

// FindByID fetches a user by account identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT account, pin_hash, device_id, token_version, created_at, last_login
        FROM identities WHERE account = $1`, id)
	var (
		user      User
		createdAt time.Time
		lastLogin *time.Time
	)
	if err := row.Scan(&user.ID, &user.PINHash, &user.DeviceID, &user.TokenVersion, &createdAt, &lastLogin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	user.CreatedAt = createdAt.UTC()
	if lastLogin != nil {
		user.LastLogin = lastLogin.UTC()
	}
	return user, nil
}

// UpdateDevice stores the user's bound device identifier.
func (r *PostgresRepository) UpdateDevice(ctx context.Context, id, deviceID string) error {
	return r.update(ctx, `UPDATE identities SET device_id = $1 WHERE account = $2`, deviceID, id)
}

// UpdateTokenVersion replaces the token version, invalidating older tokens.
func (r *PostgresRepository) UpdateTokenVersion(ctx context.Context, id string, version int) error {
	return r.update(ctx, `UPDATE identities SET token_version = $1 WHERE account = $2`, version, id)
}

// TouchLogin records the time of the last successful login.
func (r *PostgresRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, `UPDATE identities SET last_login = $1 WHERE account = $2`, at.UTC(), id)
}

func (r *PostgresRepository) update(ctx context.Context, query string, value any, id string) error {
	cmd, err := r.db.Exec(ctx, query, value, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
