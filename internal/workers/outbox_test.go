package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	apperrors "github.com/open-builders/contest-bot/internal/common/errors"
	dc "github.com/open-builders/contest-bot/internal/domain/contest"
	redisp "github.com/open-builders/contest-bot/internal/platform/redis"
)

type memContests struct {
	mu sync.Mutex
	m  map[int64]*dc.Contest
}

func (m *memContests) Get(_ context.Context, id int64) (*dc.Contest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.m[id]
	if !ok {
		return nil, apperrors.NewContestNotFoundError(id)
	}
	out := *c
	return &out, nil
}

func (m *memContests) RecordPosting(_ context.Context, id int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m[id].MessageID = &messageID
	return nil
}

type memWinners map[int64][]dc.Winner

func (m memWinners) GetWinners(_ context.Context, id int64) ([]dc.Winner, error) { return m[id], nil }

type recordingDelivery struct {
	mu       sync.Mutex
	started  []int64
	ended    map[int64]int
	notified map[int64]int
	fail     bool
	// postFailures fails that many channel result posts before succeeding.
	postFailures int
}

func (d *recordingDelivery) AnnounceContestStart(_ context.Context, c *dc.Contest) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return 0, errors.New("telegram down")
	}
	d.started = append(d.started, c.ID)
	return 500 + int(c.ID), nil
}

func (d *recordingDelivery) PostWinners(_ context.Context, c *dc.Contest, ws []dc.Winner) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return errors.New("telegram down")
	}
	if d.postFailures > 0 {
		d.postFailures--
		return errors.New("channel unavailable")
	}
	if d.ended == nil {
		d.ended = map[int64]int{}
	}
	d.ended[c.ID] = len(ws)
	return nil
}

func (d *recordingDelivery) NotifyWinners(_ context.Context, c *dc.Contest, ws []dc.Winner) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.notified == nil {
		d.notified = map[int64]int{}
	}
	d.notified[c.ID]++
	return nil
}

func startRedis(t *testing.T) *redisp.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	client, err := redisp.OpenURL(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestOutboxDeliversAndAcks(t *testing.T) {
	ctx := context.Background()
	rdb := startRedis(t)

	contests := &memContests{m: map[int64]*dc.Contest{
		1: {ID: 1, Status: dc.StatusActive},
		2: {ID: 2, Status: dc.StatusEnded},
	}}
	delivery := &recordingDelivery{}
	consumer := NewConsumer(rdb, "test", contests, memWinners{2: {{UserID: 5, Position: 1}}}, delivery)
	consumer.Block = 100 * time.Millisecond
	require.NoError(t, consumer.EnsureGroup(ctx))

	pub := NewPublisher(rdb)
	msgID, err := pub.AnnounceContestStart(ctx, &dc.Contest{ID: 1})
	require.NoError(t, err)
	assert.Zero(t, msgID)
	require.NoError(t, pub.AnnounceWinners(ctx, &dc.Contest{ID: 2}, nil))
	require.NoError(t, pub.AnnounceWinners(ctx, &dc.Contest{ID: 404}, nil))

	acked, err := consumer.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, acked, "one start entry and two entries per ended contest")

	assert.Equal(t, []int64{1}, delivery.started)
	assert.Equal(t, map[int64]int{2: 1}, delivery.ended)
	assert.Equal(t, map[int64]int{2: 1}, delivery.notified)
	c, _ := contests.Get(ctx, 1)
	require.NotNil(t, c.MessageID)
	assert.Equal(t, 501, *c.MessageID)

	pending, err := rdb.XPending(ctx, StreamKey, consumerGroup).Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)

	// A redelivered start event does not post twice.
	_, err = pub.AnnounceContestStart(ctx, &dc.Contest{ID: 1})
	require.NoError(t, err)
	_, err = consumer.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, delivery.started)
}

func TestOutboxRetriesThenDrops(t *testing.T) {
	ctx := context.Background()
	rdb := startRedis(t)

	contests := &memContests{m: map[int64]*dc.Contest{3: {ID: 3, Status: dc.StatusActive}}}
	delivery := &recordingDelivery{fail: true}
	consumer := NewConsumer(rdb, "test", contests, memWinners{}, delivery)
	consumer.Block = 50 * time.Millisecond
	consumer.MinIdle = 0
	consumer.MaxDeliveries = 3
	require.NoError(t, consumer.EnsureGroup(ctx))

	_, err := NewPublisher(rdb).AnnounceContestStart(ctx, &dc.Contest{ID: 3})
	require.NoError(t, err)

	acked, err := consumer.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, acked, "first failure stays pending")

	dropped := false
	for i := 0; i < 5 && !dropped; i++ {
		n, err := consumer.Poll(ctx)
		require.NoError(t, err)
		dropped = n == 1
	}
	assert.True(t, dropped)

	pending, err := rdb.XPending(ctx, StreamKey, consumerGroup).Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestOutboxRetriedResultsPostDoesNotRepeatDirectMessages(t *testing.T) {
	ctx := context.Background()
	rdb := startRedis(t)

	contests := &memContests{m: map[int64]*dc.Contest{7: {ID: 7, Status: dc.StatusEnded}}}
	winners := memWinners{7: {{UserID: 5, Position: 1}, {UserID: 6, Position: 2}}}
	delivery := &recordingDelivery{postFailures: 1}
	consumer := NewConsumer(rdb, "test", contests, winners, delivery)
	consumer.Block = 50 * time.Millisecond
	consumer.MinIdle = 0
	require.NoError(t, consumer.EnsureGroup(ctx))

	require.NoError(t, NewPublisher(rdb).AnnounceWinners(ctx, &dc.Contest{ID: 7}, nil))

	acked, err := consumer.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, acked, "direct messages acked, channel post pending")
	assert.Empty(t, delivery.ended)

	delivered := false
	for i := 0; i < 5 && !delivered; i++ {
		_, err := consumer.Poll(ctx)
		require.NoError(t, err)
		delivery.mu.Lock()
		delivered = delivery.ended[7] == 2
		delivery.mu.Unlock()
	}
	require.True(t, delivered)
	assert.Equal(t, map[int64]int{7: 1}, delivery.notified)

	pending, err := rdb.XPending(ctx, StreamKey, consumerGroup).Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}
