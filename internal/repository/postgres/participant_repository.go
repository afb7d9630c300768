package postgres

import (
	"context"
	"database/sql"

	dc "github.com/open-builders/contest-bot/internal/domain/contest"
)

// ParticipantRepository is the participation ledger. The UNIQUE
// (contest_id, user_id) constraint is the authoritative duplicate guard.
type ParticipantRepository struct {
	db *sql.DB
}

func NewParticipantRepository(db *sql.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

var _ dc.ParticipantRepository = (*ParticipantRepository)(nil)

// recount rebuilds the cached participant_count from the ledger, capped at
// max_participants.
const recount = `
UPDATE contests
SET participant_count = LEAST(
	(SELECT COUNT(*) FROM participants WHERE contest_id=$1),
	COALESCE(max_participants, 2147483647)
)
WHERE id=$1`

// Insert records the join and recounts the cached counter in one
// transaction. It returns false when the pair already existed. The contest
// row is locked FOR NO KEY UPDATE before the insert: it conflicts with
// Finish (FOR UPDATE), so Finish either sees this row or the insert fails
// with ErrNotActive, and joins never upgrade a shared lock for the recount.
func (r *ParticipantRepository) Insert(ctx context.Context, p *dc.Participant) (inserted bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var status dc.Status
	err = tx.QueryRowContext(ctx, `SELECT status FROM contests WHERE id=$1 FOR NO KEY UPDATE`, p.ContestID).Scan(&status)
	if err == sql.ErrNoRows {
		err = dc.ErrNotFound
	}
	if err != nil {
		return false, err
	}
	if status != dc.StatusActive {
		err = dc.ErrNotActive
		return false, err
	}

	var referrer any
	if p.ReferrerID != nil {
		referrer = *p.ReferrerID
	}
	const ins = `
	INSERT INTO participants (contest_id, user_id, referrer_id)
	VALUES ($1, $2, $3)
	ON CONFLICT (contest_id, user_id) DO NOTHING
	RETURNING joined_at`
	if err = tx.QueryRowContext(ctx, ins, p.ContestID, p.UserID, referrer).Scan(&p.JoinedAt); err != nil {
		if err == sql.ErrNoRows {
			err = nil
			_ = tx.Rollback()
			return false, nil
		}
		return false, err
	}

	if _, err = tx.ExecContext(ctx, recount, p.ContestID); err != nil {
		return false, err
	}
	if err = tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *ParticipantRepository) Count(ctx context.Context, contestID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM participants WHERE contest_id=$1`, contestID).Scan(&n)
	return n, err
}

func (r *ParticipantRepository) CountAll(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM participants`).Scan(&n)
	return n, err
}

func (r *ParticipantRepository) Exists(ctx context.Context, contestID, userID int64) (bool, error) {
	var ok bool
	const q = `SELECT EXISTS(SELECT 1 FROM participants WHERE contest_id=$1 AND user_id=$2)`
	err := r.db.QueryRowContext(ctx, q, contestID, userID).Scan(&ok)
	return ok, err
}

func scanParticipants(rows *sql.Rows) ([]dc.Participant, error) {
	defer rows.Close()
	var out []dc.Participant
	for rows.Next() {
		var (
			p        dc.Participant
			referrer sql.NullInt64
		)
		if err := rows.Scan(&p.ContestID, &p.UserID, &p.JoinedAt, &referrer, &p.IsWinner); err != nil {
			return nil, err
		}
		if referrer.Valid {
			id := referrer.Int64
			p.ReferrerID = &id
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// List returns participants in join order; limit <= 0 means all.
func (r *ParticipantRepository) List(ctx context.Context, contestID int64, limit int) ([]dc.Participant, error) {
	q := `SELECT contest_id, user_id, joined_at, referrer_id, is_winner
	FROM participants WHERE contest_id=$1 ORDER BY id ASC`
	args := []any{contestID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanParticipants(rows)
}

func (r *ParticipantRepository) ListByUser(ctx context.Context, userID int64) ([]dc.Participant, error) {
	const q = `SELECT contest_id, user_id, joined_at, referrer_id, is_winner
	FROM participants WHERE user_id=$1 ORDER BY joined_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	return scanParticipants(rows)
}

func (r *ParticipantRepository) Remove(ctx context.Context, contestID, userID int64) (removed bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM participants WHERE contest_id=$1 AND user_id=$2`, contestID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		if _, err = tx.ExecContext(ctx, recount, contestID); err != nil {
			return false, err
		}
	}
	if err = tx.Commit(); err != nil {
		return false, err
	}
	return n > 0, nil
}
