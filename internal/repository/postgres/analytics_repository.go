package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/open-builders/contest-bot/internal/domain/analytics"
)

type AnalyticsRepository struct {
	db *sql.DB
}

func NewAnalyticsRepository(db *sql.DB) *AnalyticsRepository { return &AnalyticsRepository{db: db} }

var _ analytics.Repository = (*AnalyticsRepository)(nil)

func (r *AnalyticsRepository) Insert(ctx context.Context, e *analytics.Event) error {
	var contestID any
	if e.ContestID != nil {
		contestID = *e.ContestID
	}
	const q = `INSERT INTO analytics_events (user_id, event_type, contest_id) VALUES ($1, $2, $3) RETURNING created_at`
	return r.db.QueryRowContext(ctx, q, e.UserID, e.Type, contestID).Scan(&e.CreatedAt)
}

func (r *AnalyticsRepository) CountSince(ctx context.Context, since time.Time) (map[analytics.EventType]int, error) {
	const q = `SELECT event_type, COUNT(*) FROM analytics_events WHERE created_at >= $1 GROUP BY event_type`
	rows, err := r.db.QueryContext(ctx, q, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[analytics.EventType]int{}
	for rows.Next() {
		var (
			t analytics.EventType
			n int
		)
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		out[t] = n
	}
	return out, rows.Err()
}

func (r *AnalyticsRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM analytics_events WHERE created_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
