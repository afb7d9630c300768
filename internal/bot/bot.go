// Package bot handles Telegram updates: commands, deep links and the
// inline buttons under contest posts.
package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	apperrors "github.com/open-builders/contest-bot/internal/common/errors"
	"github.com/open-builders/contest-bot/internal/common/logger"
	"github.com/open-builders/contest-bot/internal/domain/analytics"
	dc "github.com/open-builders/contest-bot/internal/domain/contest"
	"github.com/open-builders/contest-bot/internal/domain/user"
	"github.com/open-builders/contest-bot/internal/platform/telegram"
	"github.com/open-builders/contest-bot/internal/service/channels"
	"github.com/open-builders/contest-bot/internal/service/notifications"
)

const (
	checkSubPrefix = "check_sub:"
	handleTimeout  = 15 * time.Second
	workers        = 16
)

type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, rows ...[]telegram.Button) (int, error)
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
	EditButtons(ctx context.Context, chatID int64, messageID int, rows ...[]telegram.Button) error
}

type Contests interface {
	Get(ctx context.Context, id int64) (*dc.Contest, error)
	IncrementViews(ctx context.Context, id int64) error
}

type Participation interface {
	Join(ctx context.Context, contestID, userID int64, referrerID *int64) (dc.JoinResult, error)
	Count(ctx context.Context, contestID int64) (int, error)
	IsParticipating(ctx context.Context, contestID, userID int64) (bool, error)
}

type Winners interface {
	UserWins(ctx context.Context, userID int64) ([]dc.Winner, error)
	UserStats(ctx context.Context, userID int64) (dc.WinnerStats, error)
}

type Users interface {
	Touch(ctx context.Context, u *user.User) error
}

type Gate interface {
	Forget(ctx context.Context, userID int64)
}

type ChannelLinks interface {
	Links(ctx context.Context, ids []int64) []channels.Link
}

type Tracker interface {
	Track(ctx context.Context, userID int64, t analytics.EventType, contestID *int64)
}

// Deps are the collaborators the bot dispatches to.
type Deps struct {
	Messenger     Messenger
	Contests      Contests
	Participation Participation
	Winners       Winners
	Users         Users
	Gate          Gate
	Channels      ChannelLinks
	Tracker       Tracker
}

type Bot struct {
	d Deps
}

func New(d Deps) *Bot {
	return &Bot{d: d}
}

// Run long-polls api until ctx is done. Updates are handled concurrently
// so that a slow membership lookup does not stall other users.
func (b *Bot) Run(ctx context.Context, api *tgbotapi.BotAPI) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	cfg.AllowedUpdates = []string{"message", "callback_query"}
	updates := api.GetUpdatesChan(cfg)
	defer api.StopReceivingUpdates()

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	defer wg.Wait()

	logger.Info().Str("bot", api.Self.UserName).Msg("Bot polling started")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Bot polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			sem <- struct{}{}
			wg.Add(1)
			go func(u tgbotapi.Update) {
				defer func() { <-sem; wg.Done() }()
				b.HandleUpdate(ctx, u)
			}(update)
		}
	}
}

// HandleUpdate dispatches one update. Errors are logged, never returned:
// the user always gets some answer.
func (b *Bot) HandleUpdate(ctx context.Context, u tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Int("update_id", u.UpdateID).Msg("Update handler panicked")
		}
	}()

	var err error
	switch {
	case u.CallbackQuery != nil:
		err = b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil && u.Message.IsCommand():
		err = b.handleCommand(ctx, u.Message)
	}
	if err != nil {
		logger.Warn().Err(err).Int("update_id", u.UpdateID).Msg("Update handling failed")
	}
}

func (b *Bot) touch(ctx context.Context, from *tgbotapi.User) {
	if from == nil || b.d.Users == nil {
		return
	}
	err := b.d.Users.Touch(ctx, &user.User{
		ID:           from.ID,
		Username:     from.UserName,
		FirstName:    from.FirstName,
		LastName:     from.LastName,
		LanguageCode: from.LanguageCode,
	})
	if err != nil {
		logger.Debug().Err(err).Int64("user_id", from.ID).Msg("User upsert failed")
	}
}

func (b *Bot) track(ctx context.Context, userID int64, t analytics.EventType, contestID *int64) {
	if b.d.Tracker != nil {
		b.d.Tracker.Track(ctx, userID, t, contestID)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || !msg.Chat.IsPrivate() {
		return nil
	}
	b.touch(ctx, msg.From)

	switch msg.Command() {
	case "start":
		return b.start(ctx, msg.Chat.ID, msg.From.ID, msg.CommandArguments())
	case "wins":
		return b.wins(ctx, msg.Chat.ID, msg.From.ID)
	default:
		_, err := b.d.Messenger.SendMessage(ctx, msg.Chat.ID, "Unknown command. Try /start or /wins.")
		return err
	}
}

// parseDeepLink reads "c_<id>" with an optional "_r<referrer>" suffix.
func parseDeepLink(arg string) (contestID int64, ref *int64, ok bool) {
	if !strings.HasPrefix(arg, "c_") {
		return 0, nil, false
	}
	parts := strings.Split(strings.TrimPrefix(arg, "c_"), "_r")
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, nil, false
	}
	if len(parts) == 2 {
		if r, err := strconv.ParseInt(parts[1], 10, 64); err == nil && r > 0 {
			ref = &r
		}
	}
	return id, ref, true
}

func (b *Bot) start(ctx context.Context, chatID, userID int64, arg string) error {
	b.track(ctx, userID, analytics.EventBotStarted, nil)

	contestID, ref, ok := parseDeepLink(arg)
	if !ok {
		_, err := b.d.Messenger.SendMessage(ctx, chatID,
			"👋 Welcome! I run contests in Telegram channels.\n\nPress the button under a contest post to take part. Use /wins to see your prizes.")
		return err
	}

	c, err := b.d.Contests.Get(ctx, contestID)
	if err != nil {
		_, sendErr := b.d.Messenger.SendMessage(ctx, chatID, userMessage(err))
		return sendErr
	}
	if err := b.d.Contests.IncrementViews(ctx, contestID); err != nil {
		logger.Debug().Err(err).Int64("contest_id", contestID).Msg("View count not incremented")
	}
	b.track(ctx, userID, analytics.EventContestViewed, &contestID)

	count, _ := b.d.Participation.Count(ctx, contestID)
	rows := joinRows(c, count, ref)
	text := notifications.StartMessage(c)
	if c.Status != dc.StatusActive {
		text += fmt.Sprintf("\n\nStatus: <b>%s</b>", c.Status)
		rows = nil
	}
	_, err = b.d.Messenger.SendMessage(ctx, chatID, text, rows...)
	return err
}

// joinRows carries the referrer in the callback data of private cards.
func joinRows(c *dc.Contest, count int, ref *int64) [][]telegram.Button {
	rows := notifications.JoinButtons(c, count)
	if ref != nil {
		rows[0][0].Data = fmt.Sprintf("%s%d:%d", notifications.JoinCallbackPrefix, c.ID, *ref)
	}
	return rows
}

func (b *Bot) wins(ctx context.Context, chatID, userID int64) error {
	wins, err := b.d.Winners.UserWins(ctx, userID)
	if err != nil {
		_, sendErr := b.d.Messenger.SendMessage(ctx, chatID, userMessage(err))
		return sendErr
	}
	if len(wins) == 0 {
		_, err := b.d.Messenger.SendMessage(ctx, chatID, "You have not won anything yet. Keep participating!")
		return err
	}
	stats, err := b.d.Winners.UserStats(ctx, userID)
	if err != nil {
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🏆 <b>Your wins</b>: %d (first place: %d, prizes claimed: %d)\n\n",
		stats.TotalWins, stats.FirstPlaceWins, stats.ClaimedPrizes)
	for _, w := range wins {
		title := fmt.Sprintf("Contest #%d", w.ContestID)
		if c, err := b.d.Contests.Get(ctx, w.ContestID); err == nil {
			title = html.EscapeString(c.Title)
		}
		claimed := ""
		if w.PrizeClaimed {
			claimed = " ✅"
		}
		fmt.Fprintf(&sb, "• %s: place #%d%s\n", title, w.Position, claimed)
	}
	_, err = b.d.Messenger.SendMessage(ctx, chatID, sb.String())
	return err
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb.From == nil {
		return nil
	}
	b.touch(ctx, cb.From)

	switch {
	case strings.HasPrefix(cb.Data, notifications.JoinCallbackPrefix):
		id, ref, err := parseJoinData(strings.TrimPrefix(cb.Data, notifications.JoinCallbackPrefix))
		if err != nil {
			return b.d.Messenger.AnswerCallback(ctx, cb.ID, "Unknown button.", false)
		}
		return b.join(ctx, cb, id, ref)

	case strings.HasPrefix(cb.Data, checkSubPrefix):
		id, err := strconv.ParseInt(strings.TrimPrefix(cb.Data, checkSubPrefix), 10, 64)
		if err != nil {
			return b.d.Messenger.AnswerCallback(ctx, cb.ID, "Unknown button.", false)
		}
		if b.d.Gate != nil {
			b.d.Gate.Forget(ctx, cb.From.ID)
		}
		return b.join(ctx, cb, id, nil)

	case strings.HasPrefix(cb.Data, notifications.StatsCallbackPrefix):
		id, err := strconv.ParseInt(strings.TrimPrefix(cb.Data, notifications.StatsCallbackPrefix), 10, 64)
		if err != nil {
			return b.d.Messenger.AnswerCallback(ctx, cb.ID, "Unknown button.", false)
		}
		return b.stats(ctx, cb, id)
	}
	return b.d.Messenger.AnswerCallback(ctx, cb.ID, "", false)
}

func parseJoinData(s string) (int64, *int64, error) {
	idPart, refPart, hasRef := strings.Cut(s, ":")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, nil, err
	}
	if !hasRef {
		return id, nil, nil
	}
	ref, err := strconv.ParseInt(refPart, 10, 64)
	if err != nil {
		return id, nil, nil
	}
	return id, &ref, nil
}

func (b *Bot) join(ctx context.Context, cb *tgbotapi.CallbackQuery, contestID int64, ref *int64) error {
	userID := cb.From.ID
	res, err := b.d.Participation.Join(ctx, contestID, userID, ref)
	if err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok && appErr.Code == apperrors.ErrCodeNotSubscribed {
			return b.promptSubscribe(ctx, cb, contestID, appErr)
		}
		if !isUserFacing(err) {
			logger.Warn().Err(err).Int64("contest_id", contestID).Int64("user_id", userID).Msg("Join failed")
		}
		return b.d.Messenger.AnswerCallback(ctx, cb.ID, userMessage(err), true)
	}

	if res == dc.JoinResultAlreadyJoined {
		return b.d.Messenger.AnswerCallback(ctx, cb.ID, "You are already participating. Good luck!", true)
	}
	if err := b.d.Messenger.AnswerCallback(ctx, cb.ID, "✅ You are in! Good luck!", true); err != nil {
		logger.Debug().Err(err).Msg("Callback answer failed")
	}
	b.refreshButtons(ctx, cb, contestID)
	return nil
}

// refreshButtons updates the participant counter on the post the button
// was pressed under.
func (b *Bot) refreshButtons(ctx context.Context, cb *tgbotapi.CallbackQuery, contestID int64) {
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	c, err := b.d.Contests.Get(ctx, contestID)
	if err != nil {
		return
	}
	count, err := b.d.Participation.Count(ctx, contestID)
	if err != nil {
		return
	}
	if err := b.d.Messenger.EditButtons(ctx, cb.Message.Chat.ID, cb.Message.MessageID, notifications.JoinButtons(c, count)...); err != nil {
		logger.Debug().Err(err).Int64("contest_id", contestID).Msg("Button refresh failed")
	}
}

func (b *Bot) promptSubscribe(ctx context.Context, cb *tgbotapi.CallbackQuery, contestID int64, appErr *apperrors.AppError) error {
	missing, _ := appErr.Details["channels"].([]int64)
	var links []channels.Link
	if b.d.Channels != nil {
		links = b.d.Channels.Links(ctx, missing)
	}

	titles := make([]string, 0, len(links))
	rows := make([][]telegram.Button, 0, len(links)+1)
	for _, l := range links {
		titles = append(titles, l.Title)
		if l.URL != "" {
			rows = append(rows, []telegram.Button{{Text: "➕ " + l.Title, URL: l.URL}})
		}
	}
	rows = append(rows, []telegram.Button{{Text: "✅ I subscribed", Data: fmt.Sprintf("%s%d", checkSubPrefix, contestID)}})

	alert := "Please subscribe to the required channels first."
	if len(titles) > 0 {
		alert = "Please subscribe first: " + strings.Join(titles, ", ")
	}
	if err := b.d.Messenger.AnswerCallback(ctx, cb.ID, alert, true); err != nil {
		logger.Debug().Err(err).Msg("Callback answer failed")
	}
	_, err := b.d.Messenger.SendMessage(ctx, cb.From.ID,
		"To take part, subscribe to these channels and press the button below.", rows...)
	if err != nil && telegram.IsForbidden(err) {
		// The user never started the bot; the alert is all they get.
		return nil
	}
	return err
}

func (b *Bot) stats(ctx context.Context, cb *tgbotapi.CallbackQuery, contestID int64) error {
	c, err := b.d.Contests.Get(ctx, contestID)
	if err != nil {
		return b.d.Messenger.AnswerCallback(ctx, cb.ID, userMessage(err), true)
	}
	count, err := b.d.Participation.Count(ctx, contestID)
	if err != nil {
		return b.d.Messenger.AnswerCallback(ctx, cb.ID, userMessage(err), true)
	}
	in, _ := b.d.Participation.IsParticipating(ctx, contestID, cb.From.ID)

	text := fmt.Sprintf("👥 Participants: %d\n👑 Winners: %d\n📌 Status: %s", count, c.WinnersCount, c.Status)
	if c.MaxParticipants != nil {
		text += fmt.Sprintf("\n🎯 Limit: %d", *c.MaxParticipants)
	}
	if in {
		text += "\n\n✅ You are participating"
	}
	return b.d.Messenger.AnswerCallback(ctx, cb.ID, text, true)
}

func isUserFacing(err error) bool {
	appErr, ok := apperrors.AsAppError(err)
	return ok && (appErr.IsUserFacing() || appErr.IsNotFound())
}

// userMessage turns an error into callback alert text.
func userMessage(err error) string {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		return "Something went wrong, please try again."
	}
	switch {
	case appErr.Code == apperrors.ErrCodeContestNotActive:
		return "This contest is not accepting participants."
	case appErr.Code == apperrors.ErrCodeCapacityExceeded:
		return "Sorry, this contest is already full."
	case appErr.IsNotFound():
		return "Contest not found."
	case appErr.Code == apperrors.ErrCodeRateLimit:
		return "Too many requests, please try again in a minute."
	}
	return "Something went wrong, please try again."
}
