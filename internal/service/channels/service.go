package channels

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/open-builders/contest-bot/internal/common/errors"
	"github.com/open-builders/contest-bot/internal/common/logger"
	"github.com/open-builders/contest-bot/internal/domain/channel"
	dc "github.com/open-builders/contest-bot/internal/domain/contest"
	"github.com/open-builders/contest-bot/internal/platform/telegram"
)

// ChatAPI is the part of the Telegram client the channel service needs.
type ChatAPI interface {
	GetChat(ctx context.Context, chatID int64) (*telegram.ChatInfo, error)
	GetChatMemberCount(ctx context.Context, chatID int64) (int, error)
}

// Link is a channel the user is asked to join.
type Link struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// Service manages registered channels and the mandatory subscription list.
type Service struct {
	repo                  channel.Repository
	tg                    ChatAPI
	sponsorChannelID      int64
	requireContestChannel bool
}

func NewService(repo channel.Repository, tg ChatAPI, sponsorChannelID int64, requireContestChannel bool) *Service {
	return &Service{
		repo:                  repo,
		tg:                    tg,
		sponsorChannelID:      sponsorChannelID,
		requireContestChannel: requireContestChannel,
	}
}

// Register looks the channel up in Telegram and stores it for the owner.
func (s *Service) Register(ctx context.Context, ownerID, channelID int64) (*channel.Channel, error) {
	info, err := s.tg.GetChat(ctx, channelID)
	if err != nil {
		return nil, err
	}
	count, err := s.tg.GetChatMemberCount(ctx, channelID)
	if err != nil {
		logger.Warn().Err(err).Int64("channel_id", channelID).Msg("Member count unavailable on register")
	}
	ch := &channel.Channel{
		ID:          info.ID,
		Title:       info.Title,
		Username:    info.Username,
		OwnerID:     ownerID,
		MemberCount: count,
		IsActive:    true,
	}
	if err := s.repo.Upsert(ctx, ch); err != nil {
		return nil, apperrors.NewDatabaseError("upsert channel", err)
	}
	return ch, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*channel.Channel, error) {
	ch, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.NewDatabaseError("get channel", err)
	}
	if ch == nil {
		return nil, apperrors.New(apperrors.ErrCodeChannelNotFound, "Channel not found").WithDetail("channel_id", id)
	}
	return ch, nil
}

func (s *Service) ListActive(ctx context.Context) ([]channel.Channel, error) {
	out, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list channels", err)
	}
	return out, nil
}

// RefreshMemberCounts updates every active channel. One failing channel
// does not stop the rest; the next run retries it.
func (s *Service) RefreshMemberCounts(ctx context.Context) (int, error) {
	chs, err := s.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, ch := range chs {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}
		n, err := s.tg.GetChatMemberCount(ctx, ch.ID)
		if err != nil {
			logger.Warn().Err(err).Int64("channel_id", ch.ID).Msg("Member count refresh failed")
			continue
		}
		if err := s.repo.UpdateMemberCount(ctx, ch.ID, n); err != nil {
			logger.Warn().Err(err).Int64("channel_id", ch.ID).Msg("Member count save failed")
			continue
		}
		updated++
	}
	return updated, nil
}

// RequiredChannels lists every channel a participant of c must be in:
// active force-sub channels by priority, then the sponsor channel, then
// the contest's own channel when configured.
func (s *Service) RequiredChannels(ctx context.Context, c *dc.Contest) ([]int64, error) {
	forced, err := s.repo.ListForceSub(ctx, true)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list force-sub channels", err)
	}
	ids := make([]int64, 0, len(forced)+2)
	for _, f := range forced {
		ids = append(ids, f.ChannelID)
	}
	if s.sponsorChannelID != 0 {
		ids = append(ids, s.sponsorChannelID)
	}
	if s.requireContestChannel && c != nil && c.ChannelID != 0 {
		ids = append(ids, c.ChannelID)
	}
	return dedupe(ids), nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Links resolves titles and t.me links for channel ids, for "please
// subscribe" prompts. Unknown channels fall back to getChat.
func (s *Service) Links(ctx context.Context, ids []int64) []Link {
	forced, _ := s.repo.ListForceSub(ctx, false)
	byID := make(map[int64]channel.ForceSubChannel, len(forced))
	for _, f := range forced {
		byID[f.ChannelID] = f
	}

	out := make([]Link, 0, len(ids))
	for _, id := range ids {
		link := Link{ID: id, Title: fmt.Sprintf("Channel %d", id)}
		if f, ok := byID[id]; ok {
			link.Title, link.URL = f.Title, ChannelURL(f.Username)
		} else if ch, err := s.repo.GetByID(ctx, id); err == nil && ch != nil {
			link.Title, link.URL = ch.Title, ChannelURL(ch.Username)
		} else if info, err := s.tg.GetChat(ctx, id); err == nil {
			link.Title, link.URL = info.Title, ChannelURL(info.Username)
		}
		out = append(out, link)
	}
	return out
}

func (s *Service) ListForceSub(ctx context.Context) ([]channel.ForceSubChannel, error) {
	out, err := s.repo.ListForceSub(ctx, false)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list force-sub channels", err)
	}
	return out, nil
}

// AddForceSub stores a mandatory channel. Title and username are filled
// from Telegram when missing.
func (s *Service) AddForceSub(ctx context.Context, f channel.ForceSubChannel) (*channel.ForceSubChannel, error) {
	if f.ChannelID == 0 {
		return nil, apperrors.NewValidationError("channel_id", "is required")
	}
	if f.Title == "" || f.Username == "" {
		if info, err := s.tg.GetChat(ctx, f.ChannelID); err == nil {
			if f.Title == "" {
				f.Title = info.Title
			}
			if f.Username == "" {
				f.Username = info.Username
			}
		}
	}
	f.Username = strings.TrimPrefix(f.Username, "@")
	if err := s.repo.UpsertForceSub(ctx, &f); err != nil {
		return nil, apperrors.NewDatabaseError("upsert force-sub channel", err)
	}
	logger.Info().Int64("channel_id", f.ChannelID).Bool("active", f.IsActive).Msg("Force-sub channel saved")
	return &f, nil
}

func (s *Service) RemoveForceSub(ctx context.Context, channelID int64) error {
	deleted, err := s.repo.DeleteForceSub(ctx, channelID)
	if err != nil {
		return apperrors.NewDatabaseError("delete force-sub channel", err)
	}
	if !deleted {
		return apperrors.New(apperrors.ErrCodeChannelNotFound, "Channel not found").WithDetail("channel_id", channelID)
	}
	return nil
}

// ChannelURL builds a public t.me link, or "" for private channels.
func ChannelURL(username string) string {
	username = strings.TrimPrefix(username, "@")
	if username == "" {
		return ""
	}
	return "https://t.me/" + username
}
