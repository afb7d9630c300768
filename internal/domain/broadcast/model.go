package broadcast

import (
	"context"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSending   Status = "sending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Broadcast is an admin message fanned out to every user.
type Broadcast struct {
	ID          int64      `json:"id"`
	AdminID     int64      `json:"admin_id"`
	Text        string     `json:"text"`
	Status      Status     `json:"status"`
	SentCount   int        `json:"sent_count"`
	FailedCount int        `json:"failed_count"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Repository persists broadcasts and their delivery counters.
type Repository interface {
	Create(ctx context.Context, b *Broadcast) error
	GetByID(ctx context.Context, id int64) (*Broadcast, error)
	List(ctx context.Context, limit int) ([]Broadcast, error)
	UpdateProgress(ctx context.Context, id int64, status Status, sent, failed int) error
}
