package postgres

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/open-builders/contest-bot/internal/domain/user"
)

const userColumns = `id, username, first_name, last_name, language_code, is_banned, created_at, last_seen_at`

// UserRepository provides CRUD operations for users in Postgres.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository { return &UserRepository{db: db} }

var _ domain.Repository = (*UserRepository)(nil)

// Upsert inserts or refreshes a user by Telegram ID. The ban flag is
// never overwritten from profile data.
func (r *UserRepository) Upsert(ctx context.Context, u *domain.User) error {
	const q = `
	INSERT INTO users (id, username, first_name, last_name, language_code)
	VALUES ($1, lower($2), $3, $4, $5)
	ON CONFLICT (id) DO UPDATE SET
		username = EXCLUDED.username,
		first_name = EXCLUDED.first_name,
		last_name = EXCLUDED.last_name,
		language_code = COALESCE(NULLIF(EXCLUDED.language_code, ''), users.language_code),
		last_seen_at = now()
	RETURNING is_banned, created_at, last_seen_at`
	return r.db.QueryRowContext(ctx, q, u.ID, u.Username, u.FirstName, u.LastName, u.LanguageCode).
		Scan(&u.IsBanned, &u.CreatedAt, &u.LastSeenAt)
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.LanguageCode, &u.IsBanned, &u.CreatedAt, &u.LastSeenAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID returns a user by Telegram ID, or nil if unknown.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// List returns users with pagination ordered by created_at desc.
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]domain.User, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	q := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func (r *UserRepository) SetBanned(ctx context.Context, id int64, banned bool) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_banned=$2 WHERE id=$1`, id, banned)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListIDs is keyset pagination used by broadcasts.
func (r *UserRepository) ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 1000
	}
	const q = `SELECT id FROM users WHERE id > $1 AND NOT is_banned ORDER BY id ASC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
