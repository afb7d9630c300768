package notifications

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/open-builders/contest-bot/internal/common/logger"
	dc "github.com/open-builders/contest-bot/internal/domain/contest"
	"github.com/open-builders/contest-bot/internal/platform/telegram"
)

const (
	JoinCallbackPrefix  = "join_contest:"
	StatsCallbackPrefix = "contest_stats:"
)

// Sender is the transport the notifications go through.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, rows ...[]telegram.Button) (int, error)
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string, rows ...[]telegram.Button) (int, error)
}

// Names renders user ids for winner lists.
type Names interface {
	DisplayNames(ctx context.Context, ids []int64) map[int64]string
}

// Service formats and sends contest announcements. Channel posts are the
// only failures it reports; direct messages are best-effort.
type Service struct {
	tg          Sender
	names       Names
	botUsername string
	dmDelay     time.Duration
}

func NewService(tg Sender, names Names, botUsername string) *Service {
	return &Service{tg: tg, names: names, botUsername: botUsername, dmDelay: 150 * time.Millisecond}
}

// WithDMDelay sets the pause between consecutive direct messages.
func (s *Service) WithDMDelay(d time.Duration) *Service {
	s.dmDelay = d
	return s
}

// JoinButtons is the keyboard under a contest post.
func JoinButtons(c *dc.Contest, participants int) [][]telegram.Button {
	label := c.ButtonText
	if participants > 0 {
		label = fmt.Sprintf("%s (%d)", label, participants)
	}
	id := fmt.Sprint(c.ID)
	return [][]telegram.Button{
		{{Text: label, Data: JoinCallbackPrefix + id}},
		{{Text: "📊 Stats", Data: StatsCallbackPrefix + id}},
	}
}

// DeepLink opens the bot with the contest preselected.
func (s *Service) DeepLink(contestID int64) string {
	if s.botUsername == "" {
		return ""
	}
	return fmt.Sprintf("https://t.me/%s?start=c_%d", s.botUsername, contestID)
}

// AnnounceContestStart posts the contest to its channel and returns the
// message id.
func (s *Service) AnnounceContestStart(ctx context.Context, c *dc.Contest) (int, error) {
	text := StartMessage(c)
	rows := JoinButtons(c, c.ParticipantCount)
	if c.ImageFileID != "" {
		return s.tg.SendPhoto(ctx, c.ChannelID, c.ImageFileID, text, rows...)
	}
	return s.tg.SendMessage(ctx, c.ChannelID, text, rows...)
}

// AnnounceWinners posts results to the channel, then messages each winner
// and the owner. Direct messages go out even when the channel post fails.
func (s *Service) AnnounceWinners(ctx context.Context, c *dc.Contest, winners []dc.Winner) error {
	channelErr := s.PostWinners(ctx, c, winners)
	if err := s.NotifyWinners(ctx, c, winners); err != nil {
		return err
	}
	return channelErr
}

// PostWinners publishes the results post in the contest channel.
func (s *Service) PostWinners(ctx context.Context, c *dc.Contest, winners []dc.Winner) error {
	ids := make([]int64, len(winners))
	for i, w := range winners {
		ids[i] = w.UserID
	}
	var names map[int64]string
	if s.names != nil {
		names = s.names.DisplayNames(ctx, ids)
	}

	var rows [][]telegram.Button
	if link := s.DeepLink(c.ID); link != "" {
		rows = append(rows, []telegram.Button{{Text: "View results", URL: link}})
	}
	_, err := s.tg.SendMessage(ctx, c.ChannelID, WinnersMessage(c, winners, names), rows...)
	return err
}

// NotifyWinners messages each winner and then the owner. Undelivered
// messages are logged; only cancellation is returned.
func (s *Service) NotifyWinners(ctx context.Context, c *dc.Contest, winners []dc.Winner) error {
	for i, w := range winners {
		if i > 0 && s.dmDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.dmDelay):
			}
		}
		text := fmt.Sprintf("🎉 Congratulations! You took place #%d in <b>%s</b>.", w.Position, html.EscapeString(c.Title))
		if c.PrizeDescription != "" {
			text += "\n\n🎁 Prize: " + html.EscapeString(c.PrizeDescription)
		}
		s.NotifyUser(ctx, w.UserID, text)
	}

	owner := fmt.Sprintf("✅ Your contest <b>%s</b> has ended.\n\nWinners selected: %d", html.EscapeString(c.Title), len(winners))
	if len(winners) == 0 {
		owner = fmt.Sprintf("Your contest <b>%s</b> has ended with no participants.", html.EscapeString(c.Title))
	}
	s.NotifyUser(ctx, c.OwnerID, owner)
	return nil
}

// NotifyUser sends a direct message and only logs failures. Users who
// blocked the bot are expected.
func (s *Service) NotifyUser(ctx context.Context, userID int64, text string) {
	if userID == 0 {
		return
	}
	if _, err := s.tg.SendMessage(ctx, userID, text); err != nil {
		ev := logger.Warn()
		if telegram.IsForbidden(err) {
			ev = logger.Debug()
		}
		ev.Err(err).Int64("user_id", userID).Msg("Direct message not delivered")
	}
}

func StartMessage(c *dc.Contest) string {
	var b strings.Builder
	b.WriteString("🎁 <b>")
	b.WriteString(html.EscapeString(c.Title))
	b.WriteString("</b>\n")
	if c.Description != "" {
		b.WriteString("\n")
		b.WriteString(html.EscapeString(c.Description))
		b.WriteString("\n")
	}
	if c.PrizeDescription != "" {
		b.WriteString("\n🏆 Prize: ")
		b.WriteString(html.EscapeString(c.PrizeDescription))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n👑 Winners: %d\n", c.WinnersCount)
	switch c.EndCondition() {
	case dc.EndByTime:
		b.WriteString("⏰ Ends: ")
		b.WriteString(c.EndTime.UTC().Format("02 Jan 2006 15:04 UTC"))
		b.WriteString("\n")
	case dc.EndByCapacity:
		fmt.Fprintf(&b, "👥 Ends at %d participants\n", *c.MaxParticipants)
	}
	b.WriteString("\nPress the button below to participate. Good luck!")
	return b.String()
}

func WinnersMessage(c *dc.Contest, winners []dc.Winner, names map[int64]string) string {
	var b strings.Builder
	b.WriteString("🎉 <b>")
	b.WriteString(html.EscapeString(c.Title))
	b.WriteString("</b> has ended!\n\n")
	if len(winners) == 0 {
		b.WriteString("Nobody took part, so there are no winners.")
		return b.String()
	}
	b.WriteString("🏆 Winners:\n")
	for _, w := range winners {
		name, ok := names[w.UserID]
		if !ok {
			name = "User"
		}
		fmt.Fprintf(&b, "%d. <a href=\"tg://user?id=%d\">%s</a>\n", w.Position, w.UserID, html.EscapeString(name))
	}
	b.WriteString("\nCongratulations to all the winners!")
	return b.String()
}
