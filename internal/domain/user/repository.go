package user

import "context"

// Repository defines persistence operations for users. GetByID returns
// nil, nil when the user is unknown.
type Repository interface {
	Upsert(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	List(ctx context.Context, limit, offset int) ([]User, error)
	Count(ctx context.Context) (int, error)
	// SetBanned reports false when the user is unknown.
	SetBanned(ctx context.Context, id int64, banned bool) (bool, error)
	// ListIDs pages through non-banned user ids ordered by id, starting
	// after afterID.
	ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error)
}
