package contest

import (
	"context"
	"time"
)

// Repository persists contest records. GetByID returns nil, nil when the
// contest does not exist.
type Repository interface {
	Create(ctx context.Context, c *Contest) error
	GetByID(ctx context.Context, id int64) (*Contest, error)
	// TransitionStatus moves the contest to "to" only if its current status
	// is one of "from". It reports whether a row changed.
	TransitionStatus(ctx context.Context, id int64, from []Status, to Status) (bool, error)
	ListActivatable(ctx context.Context, now time.Time) ([]Contest, error)
	// ListEndable evaluates capacity against COUNT(*) of the ledger, not the
	// cached participant_count column.
	ListEndable(ctx context.Context, now time.Time) ([]Contest, error)
	RecordPosting(ctx context.Context, id int64, messageID int) error
	IncrementViews(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) (bool, error)
	Search(ctx context.Context, f ListFilter) ([]Contest, error)
	CountByStatus(ctx context.Context) (StatusCounts, error)
}

// ParticipantRepository is the participation ledger store. The (contest,
// user) pair is unique at the storage layer.
type ParticipantRepository interface {
	// Insert reports false when the pair already exists. It fails with
	// ErrNotActive unless the contest is active at insert time, and with
	// ErrNotFound when the contest is missing.
	Insert(ctx context.Context, p *Participant) (bool, error)
	Count(ctx context.Context, contestID int64) (int, error)
	CountAll(ctx context.Context) (int, error)
	Exists(ctx context.Context, contestID, userID int64) (bool, error)
	// List returns participants in join order. limit <= 0 returns all rows.
	List(ctx context.Context, contestID int64, limit int) ([]Participant, error)
	ListByUser(ctx context.Context, userID int64) ([]Participant, error)
	Remove(ctx context.Context, contestID, userID int64) (bool, error)
}

// PickFunc chooses winners from the full participant list in join order.
type PickFunc func(participants []Participant) ([]Winner, error)

// WinnerRepository stores winner rows.
type WinnerRepository interface {
	// Finish ends an active contest and records its winners as one atomic
	// unit. If winners already exist they are returned unchanged and
	// created is false; pick is not called in that case.
	Finish(ctx context.Context, contestID int64, pick PickFunc) (winners []Winner, created bool, err error)
	ListByContest(ctx context.Context, contestID int64) ([]Winner, error)
	ListByUser(ctx context.Context, userID int64) ([]Winner, error)
	StatsByUser(ctx context.Context, userID int64) (WinnerStats, error)
	CountAll(ctx context.Context) (int, error)
	MarkPrizeClaimed(ctx context.Context, contestID, userID int64) (bool, error)
}
