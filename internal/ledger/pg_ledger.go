package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devarispbrown/gtsd-sub009/internal/clock"
	"github.com/devarispbrown/gtsd-sub009/internal/domain"
)

type pgLedger struct {
	pool *pgxpool.Pool
	clk  clock.Clock
}

// NewPgLedger returns a Ledger backed by PostgreSQL.
func NewPgLedger(pool *pgxpool.Pool, clk clock.Clock) Ledger {
	return &pgLedger{pool: pool, clk: clk}
}

func (l *pgLedger) InsertQueued(ctx context.Context, userID string, mt domain.MessageType, localDay string) (*domain.SendRecord, bool, error) {
	now := l.clk.Now().UTC()
	rec := &domain.SendRecord{
		ID:          uuid.New().String(),
		UserID:      userID,
		MessageType: mt,
		LocalDay:    localDay,
		Status:      domain.SendQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// ON CONFLICT against the partial unique index: exactly one non-failed
	// row per key survives a concurrent race. Losers fall through and fetch
	// the winner.
	tag, err := l.pool.Exec(ctx, `
		INSERT INTO send_records
			(id, user_id, message_type, local_day, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (user_id, message_type, local_day) WHERE status <> 'failed'
		DO NOTHING`,
		rec.ID, rec.UserID, rec.MessageType, rec.LocalDay, rec.Status, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert send record: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return rec, true, nil
	}

	existing, err := l.getNonFailed(ctx, userID, mt, localDay)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (l *pgLedger) HasNonFailed(ctx context.Context, userID string, mt domain.MessageType, localDay string) (bool, error) {
	var exists bool
	err := l.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM send_records
			WHERE user_id = $1 AND message_type = $2 AND local_day = $3
			  AND status <> 'failed'
		)`, userID, mt, localDay).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check send record: %w", err)
	}
	return exists, nil
}

func (l *pgLedger) MarkSent(ctx context.Context, id, providerMessageID string) error {
	_, err := l.pool.Exec(ctx, `
		UPDATE send_records
		SET status = 'sent', provider_message_id = $1, error_detail = NULL, updated_at = NOW()
		WHERE id = $2`, providerMessageID, id)
	return err
}

func (l *pgLedger) MarkFailed(ctx context.Context, id, errDetail string) error {
	_, err := l.pool.Exec(ctx, `
		UPDATE send_records
		SET status = 'failed', error_detail = $1, updated_at = NOW()
		WHERE id = $2`, errDetail, id)
	return err
}

func (l *pgLedger) UpdateStatusByProviderID(ctx context.Context, providerMessageID string, status domain.SendStatus) error {
	// The rank CASE mirrors statusRank: a callback only moves the record
	// forward, so an out-of-order 'sent' after 'delivered' matches no row.
	tag, err := l.pool.Exec(ctx, `
		UPDATE send_records
		SET status = $1, updated_at = NOW()
		WHERE provider_message_id = $2
		  AND CASE status WHEN 'queued' THEN 0 WHEN 'sent' THEN 1 ELSE 2 END
		    < CASE $1::text WHEN 'queued' THEN 0 WHEN 'sent' THEN 1 ELSE 2 END`,
		status, providerMessageID)
	if err != nil {
		return fmt.Errorf("update by provider id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		err := l.pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM send_records WHERE provider_message_id = $1
			)`, providerMessageID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check provider id: %w", err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		// Stale callback; the record is already at or past this stage.
	}
	return nil
}

func (l *pgLedger) GetByID(ctx context.Context, id string) (*domain.SendRecord, error) {
	row := l.pool.QueryRow(ctx, `
		SELECT id, user_id, message_type, local_day, status,
		       provider_message_id, error_detail, created_at, updated_at
		FROM send_records WHERE id = $1`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rec, err
}

func (l *pgLedger) getNonFailed(ctx context.Context, userID string, mt domain.MessageType, localDay string) (*domain.SendRecord, error) {
	row := l.pool.QueryRow(ctx, `
		SELECT id, user_id, message_type, local_day, status,
		       provider_message_id, error_detail, created_at, updated_at
		FROM send_records
		WHERE user_id = $1 AND message_type = $2 AND local_day = $3
		  AND status <> 'failed'`, userID, mt, localDay)

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rec, err
}

// scanRecord reads a single send record from any pgx row type.
func scanRecord(row pgx.Row) (*domain.SendRecord, error) {
	var rec domain.SendRecord
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.MessageType, &rec.LocalDay, &rec.Status,
		&rec.ProviderMessageID, &rec.ErrorDetail, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
