package workers

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	dc "github.com/open-builders/contest-bot/internal/domain/contest"
)

const (
	StreamKey     = "contest:events"
	consumerGroup = "contest-bot"
	streamMaxLen  = 10000
)

// EventType names a lifecycle event in the stream.
type EventType string

const (
	EventContestStarted EventType = "contest_started"
	// EventContestEnded posts the results in the channel.
	EventContestEnded EventType = "contest_ended"
	// EventWinnersNotified sends direct messages to winners and the owner.
	// It is acked separately so a retried channel post never repeats them.
	EventWinnersNotified EventType = "contest_ended_dm"
)

// Publisher queues announcements on the stream instead of sending them
// inline. It satisfies the scheduler's announcer.
type Publisher struct {
	rdb redis.Cmdable
}

func NewPublisher(rdb redis.Cmdable) *Publisher {
	return &Publisher{rdb: rdb}
}

// AnnounceContestStart returns 0: the consumer records the message id
// once the post is delivered.
func (p *Publisher) AnnounceContestStart(ctx context.Context, c *dc.Contest) (int, error) {
	return 0, p.publish(ctx, EventContestStarted, c.ID)
}

// AnnounceWinners queues the channel post and the direct messages as two
// entries in one transaction. Winners are re-read from storage by the
// consumer.
func (p *Publisher) AnnounceWinners(ctx context.Context, c *dc.Contest, _ []dc.Winner) error {
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAdd(ctx, eventArgs(EventContestEnded, c.ID))
		pipe.XAdd(ctx, eventArgs(EventWinnersNotified, c.ID))
		return nil
	})
	return err
}

func (p *Publisher) publish(ctx context.Context, t EventType, contestID int64) error {
	return p.rdb.XAdd(ctx, eventArgs(t, contestID)).Err()
}

func eventArgs(t EventType, contestID int64) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":       string(t),
			"contest_id": strconv.FormatInt(contestID, 10),
		},
	}
}
