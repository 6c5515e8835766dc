package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Emart29/iOpsAI/internal/domain"
)

// UserStore provides read access to the account subsystem's user table.
//
// The quota engine treats users as read-only apart from UpdateTier, which
// exists for the out-of-band billing process that moves users between tiers.
type UserStore interface {
	// GetByID returns the user, including the live tier value. Callers must
	// not cache the result across requests: tier changes take effect on the
	// very next admission check.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// Create registers a user. Duplicate emails surface as a conflict.
	Create(ctx context.Context, user *domain.User) error

	// UpdateTier moves a user to a new tier, effective immediately.
	UpdateTier(ctx context.Context, id uuid.UUID, tier domain.Tier) error
}

type userStore struct {
	db *sql.DB
}

// NewUserStore creates a PostgreSQL-backed UserStore.
func NewUserStore(db *sql.DB) UserStore {
	return &userStore{db: db}
}

// GetByID implements UserStore.
func (s *userStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "user_store.get_by_id"
	const q = `
		SELECT id, email, name, tier, is_active, created_at, updated_at
		FROM users
		WHERE id = $1`

	var (
		u    domain.User
		tier string
	)
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&tier,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", id.String())
		}
		return nil, domain.Storage(err, op, "failed to read user")
	}

	u.Tier, err = domain.ParseTier(tier)
	if err != nil {
		// A tier value outside the enumeration means the table and the
		// code disagree. Fail closed rather than guessing a limit.
		return nil, err
	}
	return &u, nil
}

// Create implements UserStore.
func (s *userStore) Create(ctx context.Context, user *domain.User) error {
	const op = "user_store.create"
	const q = `
		INSERT INTO users (id, email, name, tier, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err := s.db.QueryRowContext(ctx, q, user.ID, user.Email, user.Name, user.Tier, user.IsActive).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.Conflict(op, "Email already registered")
		}
		return domain.Storage(err, op, "failed to create user")
	}
	return nil
}

// UpdateTier implements UserStore.
func (s *userStore) UpdateTier(ctx context.Context, id uuid.UUID, tier domain.Tier) error {
	const op = "user_store.update_tier"
	const q = `
		UPDATE users
		SET tier = $2, updated_at = now()
		WHERE id = $1`

	res, err := s.db.ExecContext(ctx, q, id, tier)
	if err != nil {
		return domain.Storage(err, op, "failed to update tier")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Storage(err, op, "failed to read tier update result")
	}
	if affected == 0 {
		return domain.NotFound(op, "user", id.String())
	}
	return nil
}
