package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/open-builders/contest-bot/internal/domain/broadcast"
)

type BroadcastRepository struct {
	db *sql.DB
}

func NewBroadcastRepository(db *sql.DB) *BroadcastRepository { return &BroadcastRepository{db: db} }

var _ broadcast.Repository = (*BroadcastRepository)(nil)

func (r *BroadcastRepository) Create(ctx context.Context, b *broadcast.Broadcast) error {
	const q = `INSERT INTO broadcasts (admin_id, text, status) VALUES ($1, $2, $3) RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, q, b.AdminID, b.Text, b.Status).Scan(&b.ID, &b.CreatedAt)
}

func scanBroadcast(row rowScanner) (*broadcast.Broadcast, error) {
	var (
		b         broadcast.Broadcast
		completed sql.NullTime
	)
	if err := row.Scan(&b.ID, &b.AdminID, &b.Text, &b.Status, &b.SentCount, &b.FailedCount, &b.CreatedAt, &completed); err != nil {
		return nil, err
	}
	if completed.Valid {
		t := completed.Time
		b.CompletedAt = &t
	}
	return &b, nil
}

const broadcastColumns = `id, admin_id, text, status, sent_count, failed_count, created_at, completed_at`

func (r *BroadcastRepository) GetByID(ctx context.Context, id int64) (*broadcast.Broadcast, error) {
	b, err := scanBroadcast(r.db.QueryRowContext(ctx, `SELECT `+broadcastColumns+` FROM broadcasts WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

func (r *BroadcastRepository) List(ctx context.Context, limit int) ([]broadcast.Broadcast, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+broadcastColumns+` FROM broadcasts ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []broadcast.Broadcast
	for rows.Next() {
		b, err := scanBroadcast(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// UpdateProgress stamps completed_at once the broadcast reaches a final state.
func (r *BroadcastRepository) UpdateProgress(ctx context.Context, id int64, status broadcast.Status, sent, failed int) error {
	const q = `
	UPDATE broadcasts
	SET status=$2, sent_count=$3, failed_count=$4,
		completed_at = CASE WHEN $2 IN ('completed', 'failed') THEN now() ELSE completed_at END
	WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id, status, sent, failed)
	return err
}
