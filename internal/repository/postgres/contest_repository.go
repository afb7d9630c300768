package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	dc "github.com/open-builders/contest-bot/internal/domain/contest"
)

const contestColumns = `id, owner_id, channel_id, title, description, image_file_id, button_text, prize_description,
	winners_count, start_time, end_time, max_participants, status, view_count, participant_count, message_id,
	created_at, updated_at`

// ContestRepository persists contests.
type ContestRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

func NewContestRepository(db *sql.DB) *ContestRepository {
	return &ContestRepository{db: db, sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

var _ dc.Repository = (*ContestRepository)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContest(row rowScanner) (*dc.Contest, error) {
	var (
		c         dc.Contest
		endTime   sql.NullTime
		maxPart   sql.NullInt64
		messageID sql.NullInt64
	)
	if err := row.Scan(&c.ID, &c.OwnerID, &c.ChannelID, &c.Title, &c.Description, &c.ImageFileID, &c.ButtonText,
		&c.PrizeDescription, &c.WinnersCount, &c.StartTime, &endTime, &maxPart, &c.Status, &c.ViewCount,
		&c.ParticipantCount, &messageID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if endTime.Valid {
		t := endTime.Time
		c.EndTime = &t
	}
	if maxPart.Valid {
		m := int(maxPart.Int64)
		c.MaxParticipants = &m
	}
	if messageID.Valid {
		m := int(messageID.Int64)
		c.MessageID = &m
	}
	return &c, nil
}

func scanContests(rows *sql.Rows) ([]dc.Contest, error) {
	defer rows.Close()
	var out []dc.Contest
	for rows.Next() {
		c, err := scanContest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return *v
}

// Create inserts a contest and fills ID and timestamps.
func (r *ContestRepository) Create(ctx context.Context, c *dc.Contest) error {
	const q = `
	INSERT INTO contests (owner_id, channel_id, title, description, image_file_id, button_text, prize_description,
		winners_count, start_time, end_time, max_participants, status)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	RETURNING id, created_at, updated_at`
	return r.db.QueryRowContext(ctx, q,
		c.OwnerID, c.ChannelID, c.Title, c.Description, c.ImageFileID, c.ButtonText, c.PrizeDescription,
		c.WinnersCount, c.StartTime, nullableTime(c.EndTime), nullableInt(c.MaxParticipants), c.Status,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// GetByID returns nil, nil when the contest does not exist.
func (r *ContestRepository) GetByID(ctx context.Context, id int64) (*dc.Contest, error) {
	q := `SELECT ` + contestColumns + ` FROM contests WHERE id=$1`
	c, err := scanContest(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// TransitionStatus is a compare-and-set on the status column.
func (r *ContestRepository) TransitionStatus(ctx context.Context, id int64, from []dc.Status, to dc.Status) (bool, error) {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	const q = `UPDATE contests SET status=$2, updated_at=now() WHERE id=$1 AND status = ANY($3)`
	res, err := r.db.ExecContext(ctx, q, id, to, pq.Array(states))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *ContestRepository) ListActivatable(ctx context.Context, now time.Time) ([]dc.Contest, error) {
	q := `SELECT ` + contestColumns + `
	FROM contests
	WHERE status='pending' AND start_time <= $1
	ORDER BY start_time ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, now)
	if err != nil {
		return nil, err
	}
	return scanContests(rows)
}

// ListEndable counts ledger rows instead of trusting participant_count.
func (r *ContestRepository) ListEndable(ctx context.Context, now time.Time) ([]dc.Contest, error) {
	q := `SELECT ` + contestColumns + `
	FROM contests c
	WHERE c.status='active' AND (
		(c.end_time IS NOT NULL AND c.end_time <= $1)
		OR (c.max_participants IS NOT NULL
			AND (SELECT COUNT(*) FROM participants p WHERE p.contest_id=c.id) >= c.max_participants)
	)
	ORDER BY c.id ASC`
	rows, err := r.db.QueryContext(ctx, q, now)
	if err != nil {
		return nil, err
	}
	return scanContests(rows)
}

func (r *ContestRepository) RecordPosting(ctx context.Context, id int64, messageID int) error {
	const q = `UPDATE contests SET message_id=$2, updated_at=now() WHERE id=$1`
	res, err := r.db.ExecContext(ctx, q, id, messageID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dc.ErrNotFound
	}
	return nil
}

func (r *ContestRepository) IncrementViews(ctx context.Context, id int64) error {
	const q = `UPDATE contests SET view_count=view_count+1 WHERE id=$1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dc.ErrNotFound
	}
	return nil
}

// Delete removes the contest; participants and winners cascade.
func (r *ContestRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contests WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *ContestRepository) Search(ctx context.Context, f dc.ListFilter) ([]dc.Contest, error) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	b := r.sb.Select(strings.Fields(strings.ReplaceAll(contestColumns, ",", " "))...).From("contests")
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": f.Status})
	}
	if f.OwnerID != 0 {
		b = b.Where(sq.Eq{"owner_id": f.OwnerID})
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		b = b.Where(sq.ILike{"title": "%" + q + "%"})
	}
	if f.OrderBy == "views" {
		b = b.OrderBy("view_count DESC", "id DESC")
	} else {
		b = b.OrderBy("id DESC")
	}
	query, args, err := b.Limit(uint64(f.Limit)).Offset(uint64(f.Offset)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build contest search query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanContests(rows)
}

func (r *ContestRepository) CountByStatus(ctx context.Context) (dc.StatusCounts, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM contests GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := dc.StatusCounts{}
	for rows.Next() {
		var (
			status dc.Status
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}
