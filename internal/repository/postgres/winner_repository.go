package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	dc "github.com/open-builders/contest-bot/internal/domain/contest"
)

// WinnerRepository stores winner rows and performs the final draw.
type WinnerRepository struct {
	db *sql.DB
}

func NewWinnerRepository(db *sql.DB) *WinnerRepository { return &WinnerRepository{db: db} }

var _ dc.WinnerRepository = (*WinnerRepository)(nil)

// Finish draws winners for an active contest and ends it. The contest row
// lock serializes concurrent callers; whoever arrives second sees the
// stored winners and created=false.
func (r *WinnerRepository) Finish(ctx context.Context, contestID int64, pick dc.PickFunc) (winners []dc.Winner, created bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var status dc.Status
	if err = tx.QueryRowContext(ctx, `SELECT status FROM contests WHERE id=$1 FOR UPDATE`, contestID).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = dc.ErrNotFound
		}
		return nil, false, err
	}

	existing, err := listWinners(ctx, tx, `WHERE contest_id=$1 ORDER BY position ASC`, contestID)
	if err != nil {
		return nil, false, err
	}
	if len(existing) > 0 {
		_ = tx.Rollback()
		return existing, false, nil
	}
	switch status {
	case dc.StatusEnded:
		_ = tx.Rollback()
		return []dc.Winner{}, false, nil
	case dc.StatusActive:
	default:
		err = dc.ErrNotActive
		return nil, false, err
	}

	rows, err := tx.QueryContext(ctx, `SELECT contest_id, user_id, joined_at, referrer_id, is_winner
	FROM participants WHERE contest_id=$1 ORDER BY id ASC`, contestID)
	if err != nil {
		return nil, false, err
	}
	participants, err := scanParticipants(rows)
	if err != nil {
		return nil, false, err
	}

	winners, err = pick(participants)
	if err != nil {
		return nil, false, err
	}

	ids := make([]int64, 0, len(winners))
	for i := range winners {
		winners[i].ContestID = contestID
		const ins = `INSERT INTO winners (contest_id, user_id, position) VALUES ($1,$2,$3) RETURNING announced_at`
		if err = tx.QueryRowContext(ctx, ins, contestID, winners[i].UserID, winners[i].Position).Scan(&winners[i].AnnouncedAt); err != nil {
			return nil, false, err
		}
		ids = append(ids, winners[i].UserID)
	}
	if len(ids) > 0 {
		const mark = `UPDATE participants SET is_winner=TRUE WHERE contest_id=$1 AND user_id = ANY($2)`
		if _, err = tx.ExecContext(ctx, mark, contestID, pq.Array(ids)); err != nil {
			return nil, false, err
		}
	}
	if _, err = tx.ExecContext(ctx, `UPDATE contests SET status='ended', updated_at=now() WHERE id=$1`, contestID); err != nil {
		return nil, false, err
	}
	if err = tx.Commit(); err != nil {
		return nil, false, err
	}
	return winners, true, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listWinners(ctx context.Context, q querier, where string, args ...any) ([]dc.Winner, error) {
	rows, err := q.QueryContext(ctx, `SELECT contest_id, user_id, position, prize_claimed, announced_at FROM winners `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []dc.Winner
	for rows.Next() {
		var w dc.Winner
		if err := rows.Scan(&w.ContestID, &w.UserID, &w.Position, &w.PrizeClaimed, &w.AnnouncedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *WinnerRepository) ListByContest(ctx context.Context, contestID int64) ([]dc.Winner, error) {
	return listWinners(ctx, r.db, `WHERE contest_id=$1 ORDER BY position ASC`, contestID)
}

func (r *WinnerRepository) ListByUser(ctx context.Context, userID int64) ([]dc.Winner, error) {
	return listWinners(ctx, r.db, `WHERE user_id=$1 ORDER BY announced_at DESC`, userID)
}

func (r *WinnerRepository) StatsByUser(ctx context.Context, userID int64) (dc.WinnerStats, error) {
	const q = `
	SELECT COUNT(*),
		COUNT(*) FILTER (WHERE position = 1),
		COUNT(*) FILTER (WHERE prize_claimed)
	FROM winners WHERE user_id=$1`
	var st dc.WinnerStats
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&st.TotalWins, &st.FirstPlaceWins, &st.ClaimedPrizes)
	return st, err
}

func (r *WinnerRepository) CountAll(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM winners`).Scan(&n)
	return n, err
}

func (r *WinnerRepository) MarkPrizeClaimed(ctx context.Context, contestID, userID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE winners SET prize_claimed=TRUE WHERE contest_id=$1 AND user_id=$2`, contestID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
