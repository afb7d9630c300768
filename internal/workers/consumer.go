package workers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/open-builders/contest-bot/internal/common/errors"
	"github.com/open-builders/contest-bot/internal/common/logger"
	dc "github.com/open-builders/contest-bot/internal/domain/contest"
)

// Delivery performs the actual sends.
type Delivery interface {
	AnnounceContestStart(ctx context.Context, c *dc.Contest) (int, error)
	PostWinners(ctx context.Context, c *dc.Contest, winners []dc.Winner) error
	NotifyWinners(ctx context.Context, c *dc.Contest, winners []dc.Winner) error
}

type ContestSource interface {
	Get(ctx context.Context, id int64) (*dc.Contest, error)
	RecordPosting(ctx context.Context, id int64, messageID int) error
}

type WinnerSource interface {
	GetWinners(ctx context.Context, contestID int64) ([]dc.Winner, error)
}

// Consumer reads lifecycle events through a consumer group. Entries are
// acknowledged on success; failed ones stay pending, are reclaimed after
// MinIdle and dropped after MaxDeliveries attempts.
type Consumer struct {
	rdb      redis.Cmdable
	name     string
	contests ContestSource
	winners  WinnerSource
	delivery Delivery

	MaxDeliveries int64
	MinIdle       time.Duration
	Block         time.Duration
}

func NewConsumer(rdb redis.Cmdable, name string, contests ContestSource, winners WinnerSource, delivery Delivery) *Consumer {
	return &Consumer{
		rdb:           rdb,
		name:          name,
		contests:      contests,
		winners:       winners,
		delivery:      delivery,
		MaxDeliveries: 5,
		MinIdle:       time.Minute,
		Block:         5 * time.Second,
	}
}

// EnsureGroup creates the stream and group if missing.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, StreamKey, consumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// Run consumes until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	logger.Info().Str("stream", StreamKey).Str("consumer", c.name).Msg("Outbox consumer started")

	for {
		if ctx.Err() != nil {
			logger.Info().Msg("Outbox consumer stopped")
			return nil
		}
		if _, err := c.Poll(ctx); err != nil && ctx.Err() == nil {
			logger.Warn().Err(err).Msg("Outbox poll failed")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// Poll reclaims stale entries, then reads new ones once. It returns the
// number of entries acknowledged.
func (c *Consumer) Poll(ctx context.Context) (int, error) {
	acked := 0

	claimed, _, err := c.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    consumerGroup,
		Consumer: c.name,
		MinIdle:  c.MinIdle,
		Start:    "0-0",
		Count:    10,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	for _, msg := range claimed {
		if c.process(ctx, msg, true) {
			acked++
		}
	}

	streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    consumerGroup,
		Consumer: c.name,
		Streams:  []string{StreamKey, ">"},
		Count:    10,
		Block:    c.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return acked, nil
		}
		return acked, err
	}
	for _, s := range streams {
		for _, msg := range s.Messages {
			if c.process(ctx, msg, false) {
				acked++
			}
		}
	}
	return acked, nil
}

func (c *Consumer) process(ctx context.Context, msg redis.XMessage, reclaimed bool) bool {
	err := c.handle(ctx, msg.Values)
	if err == nil {
		return c.ack(ctx, msg.ID)
	}

	if reclaimed && c.deliveries(ctx, msg.ID) >= c.MaxDeliveries {
		logger.Error().Err(err).Str("id", msg.ID).Interface("event", msg.Values).Msg("Outbox entry dropped after retries")
		return c.ack(ctx, msg.ID)
	}
	logger.Warn().Err(err).Str("id", msg.ID).Msg("Outbox delivery failed, will retry")
	return false
}

func (c *Consumer) ack(ctx context.Context, id string) bool {
	if err := c.rdb.XAck(ctx, StreamKey, consumerGroup, id).Err(); err != nil {
		logger.Warn().Err(err).Str("id", id).Msg("Outbox ack failed")
		return false
	}
	return true
}

func (c *Consumer) deliveries(ctx context.Context, id string) int64 {
	pending, err := c.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: StreamKey,
		Group:  consumerGroup,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil || len(pending) == 0 {
		return 0
	}
	return pending[0].RetryCount
}

func (c *Consumer) handle(ctx context.Context, values map[string]interface{}) error {
	t, _ := values["type"].(string)
	raw, _ := values["contest_id"].(string)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// Malformed entries can never succeed.
		logger.Error().Interface("event", values).Msg("Outbox entry without contest id")
		return nil
	}

	switch EventType(t) {
	case EventContestStarted:
		contest, err := c.contests.Get(ctx, id)
		if err != nil {
			return dropMissing(err)
		}
		if contest.Status != dc.StatusActive || contest.MessageID != nil {
			return nil
		}
		msgID, err := c.delivery.AnnounceContestStart(ctx, contest)
		if err != nil {
			return err
		}
		return c.contests.RecordPosting(ctx, id, msgID)

	case EventContestEnded, EventWinnersNotified:
		contest, err := c.contests.Get(ctx, id)
		if err != nil {
			return dropMissing(err)
		}
		winners, err := c.winners.GetWinners(ctx, id)
		if err != nil {
			return err
		}
		if EventType(t) == EventContestEnded {
			return c.delivery.PostWinners(ctx, contest, winners)
		}
		return c.delivery.NotifyWinners(ctx, contest, winners)
	}

	logger.Warn().Str("type", t).Msg("Unknown outbox event")
	return nil
}

// dropMissing treats a deleted contest as delivered.
func dropMissing(err error) error {
	if apperrors.HasCode(err, apperrors.ErrCodeContestNotFound) {
		return nil
	}
	return err
}
