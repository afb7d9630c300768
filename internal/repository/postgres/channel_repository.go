package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/open-builders/contest-bot/internal/domain/channel"
)

type ChannelRepository struct {
	db *sql.DB
}

func NewChannelRepository(db *sql.DB) *ChannelRepository { return &ChannelRepository{db: db} }

var _ channel.Repository = (*ChannelRepository)(nil)

func (r *ChannelRepository) Upsert(ctx context.Context, ch *channel.Channel) error {
	const q = `
	INSERT INTO channels (id, title, username, owner_id, member_count, is_active)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET
		title = EXCLUDED.title,
		username = EXCLUDED.username,
		owner_id = EXCLUDED.owner_id,
		member_count = EXCLUDED.member_count,
		is_active = EXCLUDED.is_active,
		updated_at = now()
	RETURNING updated_at`
	return r.db.QueryRowContext(ctx, q, ch.ID, ch.Title, ch.Username, ch.OwnerID, ch.MemberCount, ch.IsActive).
		Scan(&ch.UpdatedAt)
}

func (r *ChannelRepository) GetByID(ctx context.Context, id int64) (*channel.Channel, error) {
	const q = `SELECT id, title, username, owner_id, member_count, is_active, updated_at FROM channels WHERE id=$1`
	var ch channel.Channel
	err := r.db.QueryRowContext(ctx, q, id).
		Scan(&ch.ID, &ch.Title, &ch.Username, &ch.OwnerID, &ch.MemberCount, &ch.IsActive, &ch.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ch, nil
}

func (r *ChannelRepository) ListActive(ctx context.Context) ([]channel.Channel, error) {
	const q = `SELECT id, title, username, owner_id, member_count, is_active, updated_at
	FROM channels WHERE is_active ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []channel.Channel
	for rows.Next() {
		var ch channel.Channel
		if err := rows.Scan(&ch.ID, &ch.Title, &ch.Username, &ch.OwnerID, &ch.MemberCount, &ch.IsActive, &ch.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (r *ChannelRepository) UpdateMemberCount(ctx context.Context, id int64, count int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE channels SET member_count=$2, updated_at=now() WHERE id=$1`, id, count)
	return err
}

func (r *ChannelRepository) ListForceSub(ctx context.Context, activeOnly bool) ([]channel.ForceSubChannel, error) {
	q := `SELECT channel_id, title, username, priority, is_active FROM force_sub_channels`
	if activeOnly {
		q += ` WHERE is_active`
	}
	q += ` ORDER BY priority ASC, channel_id ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []channel.ForceSubChannel
	for rows.Next() {
		var ch channel.ForceSubChannel
		if err := rows.Scan(&ch.ChannelID, &ch.Title, &ch.Username, &ch.Priority, &ch.IsActive); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (r *ChannelRepository) UpsertForceSub(ctx context.Context, ch *channel.ForceSubChannel) error {
	const q = `
	INSERT INTO force_sub_channels (channel_id, title, username, priority, is_active)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (channel_id) DO UPDATE SET
		title = EXCLUDED.title,
		username = EXCLUDED.username,
		priority = EXCLUDED.priority,
		is_active = EXCLUDED.is_active`
	_, err := r.db.ExecContext(ctx, q, ch.ChannelID, ch.Title, ch.Username, ch.Priority, ch.IsActive)
	return err
}

func (r *ChannelRepository) DeleteForceSub(ctx context.Context, channelID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM force_sub_channels WHERE channel_id=$1`, channelID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
