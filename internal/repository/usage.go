// Package repository contains the persistence layer backed by PostgreSQL.
//
// Queries are hand-written SQL executed through database/sql with the pgx
// stdlib driver. Each store is an interface plus an unexported
// implementation so services can be tested against in-memory fakes.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"

	"github.com/Emart29/iOpsAI/internal/domain"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint
// violation (class 23, integrity constraint violation).
const uniqueViolation = "23505"

// UsageStore is the durable, race-safe storage of usage records.
type UsageStore interface {
	// GetOrCreate returns the usage record for (userID, period), creating a
	// zero-counter row if none exists. Safe under concurrent first calls:
	// creation is insert-then-read, with the losing inserter observing the
	// uniqueness violation and re-reading the winner's row.
	GetOrCreate(ctx context.Context, userID uuid.UUID, period domain.Period) (*domain.UsageRecord, error)

	// TryIncrement atomically adds 1 to the named counter only if the
	// pre-increment value is still below limit, reporting whether the
	// increment happened. When limit is Unlimited the increment is
	// unconditional and always succeeds.
	TryIncrement(ctx context.Context, userID uuid.UUID, period domain.Period, resource domain.ResourceType, limit domain.Limit) (bool, error)

	// Get returns the usage record for (userID, period), or a not-found
	// error if no metered action has touched the period yet.
	Get(ctx context.Context, userID uuid.UUID, period domain.Period) (*domain.UsageRecord, error)

	// CountRollovers counts users who have usage history but no record yet
	// for the given period. These are the users whose next metered action
	// will lazily open a fresh row.
	CountRollovers(ctx context.Context, period domain.Period) (int64, error)
}

type usageStore struct {
	db *sql.DB
}

// NewUsageStore creates a PostgreSQL-backed UsageStore.
func NewUsageStore(db *sql.DB) UsageStore {
	return &usageStore{db: db}
}

const usageColumns = `id, user_id, period, datasets_count, ai_messages_count, reports_count, created_at, updated_at`

// GetOrCreate implements UsageStore.
//
// A read-then-insert sequence would race: two first callers could both see
// "no row" and both insert. Inserting first and falling back to a read on
// the expected uniqueness violation closes that window. The whole path is
// idempotent, so a transient storage failure is retried once.
func (s *usageStore) GetOrCreate(ctx context.Context, userID uuid.UUID, period domain.Period) (*domain.UsageRecord, error) {
	const op = "usage_store.get_or_create"

	var rec *domain.UsageRecord
	backoff := retry.WithMaxRetries(1, retry.NewConstant(100*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, err := s.getOrCreate(ctx, userID, period)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return retry.RetryableError(err)
		}
		rec = r
		return nil
	})
	if err != nil {
		return nil, domain.Storage(err, op, "failed to get or create usage record")
	}
	return rec, nil
}

func (s *usageStore) getOrCreate(ctx context.Context, userID uuid.UUID, period domain.Period) (*domain.UsageRecord, error) {
	const insertQ = `
		INSERT INTO usage_records (id, user_id, period)
		VALUES ($1, $2, $3)
		RETURNING ` + usageColumns

	row := s.db.QueryRowContext(ctx, insertQ, uuid.New(), userID, period)
	rec, err := scanUsageRecord(row)
	if err == nil {
		return rec, nil
	}

	// The losing side of a concurrent first-touch creation lands here.
	// That violation is expected and resolved by reading the winner's row.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return s.get(ctx, userID, period)
	}
	return nil, fmt.Errorf("inserting usage record for user %s period %s: %w", userID, period, err)
}

// TryIncrement implements UsageStore.
//
// Check and increment are fused into a single conditional UPDATE so that no
// two concurrent callers can both be admitted past the limit boundary. The
// affected-row count is the admission verdict.
func (s *usageStore) TryIncrement(ctx context.Context, userID uuid.UUID, period domain.Period, resource domain.ResourceType, limit domain.Limit) (bool, error) {
	const op = "usage_store.try_increment"

	column, err := counterColumn(resource)
	if err != nil {
		return false, err
	}

	var res sql.Result
	if limit.IsUnlimited() {
		q := fmt.Sprintf(`
			UPDATE usage_records
			SET %[1]s = %[1]s + 1, updated_at = now()
			WHERE user_id = $1 AND period = $2`, column)
		res, err = s.db.ExecContext(ctx, q, userID, period)
	} else {
		q := fmt.Sprintf(`
			UPDATE usage_records
			SET %[1]s = %[1]s + 1, updated_at = now()
			WHERE user_id = $1 AND period = $2 AND %[1]s < $3`, column)
		res, err = s.db.ExecContext(ctx, q, userID, period, int64(limit))
	}
	if err != nil {
		return false, domain.Storage(err, op, "failed to increment usage counter")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, domain.Storage(err, op, "failed to read increment result")
	}
	return affected == 1, nil
}

// Get implements UsageStore.
func (s *usageStore) Get(ctx context.Context, userID uuid.UUID, period domain.Period) (*domain.UsageRecord, error) {
	const op = "usage_store.get"

	rec, err := s.get(ctx, userID, period)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "usage record", fmt.Sprintf("%s/%s", userID, period))
		}
		return nil, domain.Storage(err, op, "failed to read usage record")
	}
	return rec, nil
}

func (s *usageStore) get(ctx context.Context, userID uuid.UUID, period domain.Period) (*domain.UsageRecord, error) {
	const q = `
		SELECT ` + usageColumns + `
		FROM usage_records
		WHERE user_id = $1 AND period = $2`

	return scanUsageRecord(s.db.QueryRowContext(ctx, q, userID, period))
}

// CountRollovers implements UsageStore.
func (s *usageStore) CountRollovers(ctx context.Context, period domain.Period) (int64, error) {
	const op = "usage_store.count_rollovers"
	const q = `
		SELECT COUNT(DISTINCT prev.user_id)
		FROM usage_records prev
		WHERE prev.period < $1
		  AND NOT EXISTS (
			SELECT 1 FROM usage_records cur
			WHERE cur.user_id = prev.user_id AND cur.period = $1
		  )`

	var count int64
	if err := s.db.QueryRowContext(ctx, q, period).Scan(&count); err != nil {
		return 0, domain.Storage(err, op, "failed to count rollover candidates")
	}
	return count, nil
}

// counterColumn maps a resource type to its counter column. The mapping is a
// closed switch: column names are never derived from caller input.
func counterColumn(resource domain.ResourceType) (string, error) {
	switch resource {
	case domain.ResourceDataset:
		return "datasets_count", nil
	case domain.ResourceAIMessage:
		return "ai_messages_count", nil
	case domain.ResourceReport:
		return "reports_count", nil
	}
	return "", domain.Config("usage_store.counter_column", "no counter column for resource type %q", resource)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUsageRecord(row rowScanner) (*domain.UsageRecord, error) {
	var rec domain.UsageRecord
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Period,
		&rec.DatasetsCount,
		&rec.AIMessagesCount,
		&rec.ReportsCount,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
