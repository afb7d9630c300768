package analytics

import (
	"context"
	"time"
)

// EventType names a tracked user action.
type EventType string

const (
	EventBotStarted    EventType = "bot_started"
	EventContestJoined EventType = "contest_joined"
	EventContestViewed EventType = "contest_viewed"
	EventPrizeClaimed  EventType = "prize_claimed"
)

type Event struct {
	UserID    int64     `json:"user_id"`
	Type      EventType `json:"type"`
	ContestID *int64    `json:"contest_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Overview is the admin dashboard summary.
type Overview struct {
	Users            int               `json:"users"`
	ContestsByStatus map[string]int    `json:"contests_by_status"`
	Participants     int               `json:"participants"`
	Winners          int               `json:"winners"`
	EventsLast24h    map[EventType]int `json:"events_last_24h"`
	GeneratedAt      time.Time         `json:"generated_at"`
}

// Repository stores analytics events.
type Repository interface {
	Insert(ctx context.Context, e *Event) error
	CountSince(ctx context.Context, since time.Time) (map[EventType]int, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
