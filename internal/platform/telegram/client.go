package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	apperrors "github.com/open-builders/contest-bot/internal/common/errors"
	"github.com/open-builders/contest-bot/internal/common/logger"
)

// MembershipStatus is the coarse answer to "is this user in that chat".
type MembershipStatus string

const (
	StatusMember    MembershipStatus = "member"
	StatusNotMember MembershipStatus = "not_member"
	StatusUnknown   MembershipStatus = "unknown"
)

// Button is an inline keyboard button. Either Data or URL is set.
type Button struct {
	Text string
	Data string
	URL  string
}

// ChatInfo is the subset of getChat the bot uses.
type ChatInfo struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Username string `json:"username,omitempty"`
}

// Client wraps the Bot API with context-aware calls and typed errors.
type Client struct {
	api *tgbotapi.BotAPI
}

// New connects with the default endpoint and verifies the token via getMe.
func New(token string, debug bool) (*Client, error) {
	return NewWithEndpoint(token, tgbotapi.APIEndpoint, &http.Client{Timeout: 30 * time.Second}, debug)
}

// NewWithEndpoint lets tests point the client at a fake server.
func NewWithEndpoint(token, endpoint string, httpClient *http.Client, debug bool) (*Client, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	api.Debug = debug
	logger.Info().Str("bot", api.Self.UserName).Msg("Telegram client initialized")
	return &Client{api: api}, nil
}

// API exposes the underlying bot for the update loop.
func (c *Client) API() *tgbotapi.BotAPI { return c.api }

// Username returns the bot's @username without the @.
func (c *Client) Username() string { return c.api.Self.UserName }

// call runs fn in a goroutine so callers can abandon it on ctx expiry.
func call[T any](ctx context.Context, op string, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, apperrors.NewTelegramAPIError(op, ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return r.v, mapError(op, r.err)
		}
		return r.v, nil
	}
}

func mapError(op string, err error) error {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.RetryAfter > 0 {
		return apperrors.NewRateLimitError("telegram", time.Duration(tgErr.RetryAfter)*time.Second).
			WithContext("operation", op)
	}
	return apperrors.NewTelegramAPIError(op, err)
}

// IsForbidden reports whether Telegram refused delivery, e.g. the user
// blocked the bot.
func IsForbidden(err error) bool {
	var tgErr *tgbotapi.Error
	return errors.As(err, &tgErr) && tgErr.Code == http.StatusForbidden
}

// GetMembershipStatus maps getChatMember onto member, not_member or unknown.
// Errors are returned alongside StatusUnknown so the caller decides.
func (c *Client) GetMembershipStatus(ctx context.Context, chatID, userID int64) (MembershipStatus, error) {
	member, err := call(ctx, "getChatMember", func() (tgbotapi.ChatMember, error) {
		return c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
			ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
		})
	})
	if err != nil {
		return StatusUnknown, err
	}
	return classify(member), nil
}

func classify(m tgbotapi.ChatMember) MembershipStatus {
	switch m.Status {
	case "creator", "administrator", "member":
		return StatusMember
	case "restricted":
		if m.IsMember {
			return StatusMember
		}
		return StatusNotMember
	case "left", "kicked":
		return StatusNotMember
	default:
		return StatusUnknown
	}
}

func (c *Client) GetChatMemberCount(ctx context.Context, chatID int64) (int, error) {
	return call(ctx, "getChatMemberCount", func() (int, error) {
		return c.api.GetChatMembersCount(tgbotapi.ChatMemberCountConfig{
			ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
		})
	})
}

func (c *Client) GetChat(ctx context.Context, chatID int64) (*ChatInfo, error) {
	chat, err := call(ctx, "getChat", func() (tgbotapi.Chat, error) {
		return c.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: chatID}})
	})
	if err != nil {
		return nil, err
	}
	return &ChatInfo{ID: chat.ID, Type: chat.Type, Title: chat.Title, Username: chat.UserName}, nil
}

func keyboard(rows [][]Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			} else {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
		}
		out = append(out, buttons)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(out...)
	return &markup
}

// SendMessage sends HTML text and returns the message id.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, rows ...[]Button) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if kb := keyboard(rows); kb != nil {
		msg.ReplyMarkup = kb
	}
	sent, err := call(ctx, "sendMessage", func() (tgbotapi.Message, error) { return c.api.Send(msg) })
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// SendPhoto sends a photo by Telegram file id with an HTML caption.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, fileID, caption string, rows ...[]Button) (int, error) {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeHTML
	if kb := keyboard(rows); kb != nil {
		photo.ReplyMarkup = kb
	}
	sent, err := call(ctx, "sendPhoto", func() (tgbotapi.Message, error) { return c.api.Send(photo) })
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// AnswerCallback acknowledges an inline button press.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	cfg := tgbotapi.NewCallback(callbackID, text)
	if alert {
		cfg = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	_, err := call(ctx, "answerCallbackQuery", func() (*tgbotapi.APIResponse, error) { return c.api.Request(cfg) })
	return err
}

// EditButtons replaces the inline keyboard of a sent message. Telegram
// answers "message is not modified" when nothing changed; that is not an error.
func (c *Client) EditButtons(ctx context.Context, chatID int64, messageID int, rows ...[]Button) error {
	kb := keyboard(rows)
	if kb == nil {
		kb = &tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	}
	cfg := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, *kb)
	_, err := call(ctx, "editMessageReplyMarkup", func() (*tgbotapi.APIResponse, error) { return c.api.Request(cfg) })
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		return nil
	}
	return err
}
