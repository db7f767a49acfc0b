package userstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devarispbrown/gtsd-sub009/internal/domain"
)

// The users and tasks tables are owned by the main application's schema;
// this store reads them and writes exactly one column (users.sms_opt_in).
type pgUserStore struct {
	pool *pgxpool.Pool
}

// NewPgUserStore returns a UserStore backed by PostgreSQL.
func NewPgUserStore(pool *pgxpool.Pool) UserStore {
	return &pgUserStore{pool: pool}
}

func (s *pgUserStore) ListEligible(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, phone_number, timezone, sms_opt_in, is_active
		FROM users
		WHERE is_active = TRUE
		  AND sms_opt_in = TRUE
		  AND phone_number IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("list eligible users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *pgUserStore) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, phone_number, timezone, sms_opt_in, is_active
		FROM users WHERE id = $1`, id)

	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return u, err
}

func (s *pgUserStore) SetOptInByPhone(ctx context.Context, phoneNumber string, optIn bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Row lock so the flag flip is atomic with respect to concurrent reads
	// in the scanner and worker.
	var id string
	err = tx.QueryRow(ctx,
		`SELECT id FROM users WHERE phone_number = $1 FOR UPDATE`, phoneNumber).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock user row: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET sms_opt_in = $1, updated_at = NOW() WHERE id = $2`, optIn, id); err != nil {
		return fmt.Errorf("update opt-in: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *pgUserStore) PendingTaskCount(ctx context.Context, userID string, from, to time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM tasks
		WHERE user_id = $1
		  AND completed_at IS NULL
		  AND due_at >= $2 AND due_at < $3`, userID, from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending tasks: %w", err)
	}
	return count, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.PhoneNumber, &u.Timezone, &u.SMSOptIn, &u.IsActive); err != nil {
		return nil, err
	}
	return &u, nil
}
