package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dc "github.com/open-builders/contest-bot/internal/domain/contest"
	"github.com/open-builders/contest-bot/internal/platform/telegram"
)

type sent struct {
	chatID int64
	text   string
	photo  string
	rows   [][]telegram.Button
}

type fakeSender struct {
	mu      sync.Mutex
	out     []sent
	failFor map[int64]bool
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string, rows ...[]telegram.Button) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[chatID] {
		return 0, errors.New("chat not found")
	}
	f.out = append(f.out, sent{chatID: chatID, text: text, rows: rows})
	return len(f.out), nil
}

func (f *fakeSender) SendPhoto(_ context.Context, chatID int64, fileID, caption string, rows ...[]telegram.Button) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, sent{chatID: chatID, text: caption, photo: fileID, rows: rows})
	return len(f.out), nil
}

type mapNames map[int64]string

func (m mapNames) DisplayNames(context.Context, []int64) map[int64]string { return m }

func TestAnnounceContestStart(t *testing.T) {
	end := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	c := &dc.Contest{ID: 4, ChannelID: -100, Title: "<Big> drop", ButtonText: "Join", WinnersCount: 2, EndTime: &end}
	tg := &fakeSender{}
	svc := NewService(tg, nil, "contestbot")

	id, err := svc.AnnounceContestStart(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 1, id)
	require.Len(t, tg.out, 1)
	msg := tg.out[0]
	assert.Equal(t, int64(-100), msg.chatID)
	assert.Contains(t, msg.text, "&lt;Big&gt; drop")
	assert.Contains(t, msg.text, "01 Jun 2026 18:00 UTC")
	assert.Equal(t, "join_contest:4", msg.rows[0][0].Data)
	assert.Equal(t, "contest_stats:4", msg.rows[1][0].Data)

	c.ImageFileID = "AgAD"
	_, err = svc.AnnounceContestStart(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "AgAD", tg.out[1].photo)
}

func TestAnnounceWinners(t *testing.T) {
	c := &dc.Contest{ID: 9, OwnerID: 1, ChannelID: -100, Title: "Drop", PrizeDescription: "NFT"}
	winners := []dc.Winner{{UserID: 10, Position: 1}, {UserID: 11, Position: 2}}
	tg := &fakeSender{failFor: map[int64]bool{11: true}}
	svc := NewService(tg, mapNames{10: "@alice"}, "contestbot").WithDMDelay(0)

	require.NoError(t, svc.AnnounceWinners(context.Background(), c, winners))

	require.Len(t, tg.out, 3, "channel post, one delivered DM, owner DM")
	post := tg.out[0]
	assert.Equal(t, int64(-100), post.chatID)
	assert.Contains(t, post.text, "1. <a href=\"tg://user?id=10\">@alice</a>")
	assert.Contains(t, post.text, "2. <a href=\"tg://user?id=11\">User</a>")
	assert.Equal(t, "https://t.me/contestbot?start=c_9", post.rows[0][0].URL)

	assert.Equal(t, int64(10), tg.out[1].chatID)
	assert.Contains(t, tg.out[1].text, "#1")
	assert.Equal(t, int64(1), tg.out[2].chatID)
}

func TestAnnounceWinnersChannelFailure(t *testing.T) {
	c := &dc.Contest{ID: 9, OwnerID: 1, ChannelID: -100, Title: "Drop"}
	tg := &fakeSender{failFor: map[int64]bool{-100: true}}
	svc := NewService(tg, nil, "").WithDMDelay(0)

	err := svc.AnnounceWinners(context.Background(), c, []dc.Winner{{UserID: 5, Position: 1}})
	assert.Error(t, err)
	require.Len(t, tg.out, 2, "direct messages still go out")
}

func TestPostAndNotifyWinnersAreIndependent(t *testing.T) {
	c := &dc.Contest{ID: 9, OwnerID: 1, ChannelID: -100, Title: "Drop"}
	winners := []dc.Winner{{UserID: 5, Position: 1}}
	tg := &fakeSender{failFor: map[int64]bool{-100: true}}
	svc := NewService(tg, nil, "").WithDMDelay(0)

	assert.Error(t, svc.PostWinners(context.Background(), c, winners))
	assert.Empty(t, tg.out)

	require.NoError(t, svc.NotifyWinners(context.Background(), c, winners))
	require.Len(t, tg.out, 2)
	assert.Equal(t, int64(5), tg.out[0].chatID)
	assert.Equal(t, int64(1), tg.out[1].chatID)
}

func TestJoinButtonsShowCount(t *testing.T) {
	c := &dc.Contest{ID: 3, ButtonText: "Go"}
	assert.Equal(t, "Go", JoinButtons(c, 0)[0][0].Text)
	assert.Equal(t, "Go (12)", JoinButtons(c, 12)[0][0].Text)
}
