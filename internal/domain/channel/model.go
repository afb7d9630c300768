package channel

import (
	"context"
	"time"
)

// Channel is a Telegram channel the bot posts contests to.
type Channel struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Username    string    `json:"username,omitempty"`
	OwnerID     int64     `json:"owner_id"`
	MemberCount int       `json:"member_count"`
	IsActive    bool      `json:"is_active"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ForceSubChannel is a channel every participant must be subscribed to.
// Lower Priority is checked first.
type ForceSubChannel struct {
	ChannelID int64  `json:"channel_id" binding:"required"`
	Title     string `json:"title"`
	Username  string `json:"username,omitempty"`
	Priority  int    `json:"priority"`
	IsActive  bool   `json:"is_active"`
}

// Repository stores channels and the force-subscription list.
type Repository interface {
	Upsert(ctx context.Context, ch *Channel) error
	GetByID(ctx context.Context, id int64) (*Channel, error)
	ListActive(ctx context.Context) ([]Channel, error)
	UpdateMemberCount(ctx context.Context, id int64, count int) error

	ListForceSub(ctx context.Context, activeOnly bool) ([]ForceSubChannel, error)
	UpsertForceSub(ctx context.Context, ch *ForceSubChannel) error
	DeleteForceSub(ctx context.Context, channelID int64) (bool, error)
}
