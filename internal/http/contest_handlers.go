package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/open-builders/contest-bot/internal/common/errors"
	"github.com/open-builders/contest-bot/internal/common/middleware"
	"github.com/open-builders/contest-bot/internal/domain/analytics"
	dc "github.com/open-builders/contest-bot/internal/domain/contest"
)

func (h *handlers) registerContests(r *gin.RouterGroup) {
	contests := r.Group("/contests")
	{
		contests.POST("", h.createContest)
		contests.GET("/me", h.listMyContests)
		contests.GET("/trending", middleware.ResponseCache(h.d.Redis, h.d.CacheTTL), h.trendingContests)
		contests.GET("/:id", h.getContest)
		contests.POST("/:id/join", h.joinContest)
		contests.POST("/:id/cancel", h.cancelContest)
		contests.POST("/:id/end", h.endContest)
		contests.GET("/:id/winners", middleware.ResponseCache(h.d.Redis, h.d.CacheTTL), h.contestWinners)
	}

	me := r.Group("/me")
	{
		me.GET("/wins", h.myWins)
		me.GET("/stats", h.myStats)
	}

	r.POST("/channels", h.registerChannel)
}

type createContestRequest struct {
	ChannelID        int64      `json:"channel_id" binding:"required"`
	Title            string     `json:"title" binding:"required"`
	Description      string     `json:"description"`
	ImageFileID      string     `json:"image_file_id"`
	ButtonText       string     `json:"button_text"`
	PrizeDescription string     `json:"prize_description"`
	WinnersCount     int        `json:"winners_count" binding:"required"`
	StartTime        *time.Time `json:"start_time"`
	EndTime          *time.Time `json:"end_time"`
	MaxParticipants  *int       `json:"max_participants"`
}

// contestView is a contest with the caller's relation to it.
type contestView struct {
	*dc.Contest
	Participants    int  `json:"participants"`
	IsParticipating bool `json:"is_participating"`
	IsOwner         bool `json:"is_owner"`
}

type joinRequest struct {
	ReferrerID *int64 `json:"referrer_id"`
}

type joinResponse struct {
	Result       string `json:"result"`
	Participants int    `json:"participants"`
}

// @Summary Create a contest
// @Description Creates a pending contest owned by the caller. It starts at start_time (default now) and ends by end_time, by max_participants, or manually.
// @Tags contests
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param input body createContestRequest true "Contest fields"
// @Success 201 {object} contest.Contest
// @Failure 400 {object} middleware.ErrorResponse
// @Router /contests [post]
func (h *handlers) createContest(c *gin.Context) {
	var req createContestRequest
	if !bindJSON(c, &req) {
		return
	}
	p := dc.CreateParams{
		OwnerID:          middleware.CurrentUserID(c),
		ChannelID:        req.ChannelID,
		Title:            req.Title,
		Description:      req.Description,
		ImageFileID:      req.ImageFileID,
		ButtonText:       req.ButtonText,
		PrizeDescription: req.PrizeDescription,
		WinnersCount:     req.WinnersCount,
		EndTime:          req.EndTime,
		MaxParticipants:  req.MaxParticipants,
	}
	if req.StartTime != nil {
		p.StartTime = *req.StartTime
	}

	created, err := h.d.Contests.Create(c.Request.Context(), p)
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// @Summary List my contests
// @Tags contests
// @Produce json
// @Security TelegramInitData
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} contest.Contest
// @Router /contests/me [get]
func (h *handlers) listMyContests(c *gin.Context) {
	limit, offset := page(c)
	out, err := h.d.Contests.ListByOwner(c.Request.Context(), middleware.CurrentUserID(c), limit, offset)
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary Trending contests
// @Description Active contests ordered by views. Cached for a few seconds.
// @Tags contests
// @Produce json
// @Security TelegramInitData
// @Success 200 {array} contest.Contest
// @Router /contests/trending [get]
func (h *handlers) trendingContests(c *gin.Context) {
	limit, _ := page(c)
	out, err := h.d.Contests.Trending(c.Request.Context(), limit)
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary Get a contest
// @Tags contests
// @Produce json
// @Security TelegramInitData
// @Param id path int true "Contest ID"
// @Success 200 {object} contestView
// @Failure 404 {object} middleware.ErrorResponse
// @Router /contests/{id} [get]
func (h *handlers) getContest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	uid := middleware.CurrentUserID(c)

	ct, err := h.d.Contests.Get(ctx, id)
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	n, err := h.d.Participation.Count(ctx, id)
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	joined, err := h.d.Participation.IsParticipating(ctx, id, uid)
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}

	if ct.OwnerID != uid {
		if err := h.d.Contests.IncrementViews(ctx, id); err != nil {
			middleware.AbortWithAppError(c, err)
			return
		}
		h.track(c, analytics.EventContestViewed, &id)
	}
	c.JSON(http.StatusOK, contestView{Contest: ct, Participants: n, IsParticipating: joined, IsOwner: ct.OwnerID == uid})
}

// @Summary Join a contest
// @Description Joining twice is not an error: the result is "already_joined".
// @Tags contests
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param id path int true "Contest ID"
// @Param input body joinRequest false "Optional referrer"
// @Success 200 {object} joinResponse
// @Failure 403 {object} middleware.ErrorResponse "Required channels missing"
// @Failure 409 {object} middleware.ErrorResponse "Contest not active"
// @Failure 410 {object} middleware.ErrorResponse "Contest full"
// @Router /contests/{id}/join [post]
func (h *handlers) joinContest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req joinRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	res, err := h.d.Participation.Join(ctx, id, middleware.CurrentUserID(c), req.ReferrerID)
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	n, err := h.d.Participation.Count(ctx, id)
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, joinResponse{Result: res.String(), Participants: n})
}

// @Summary Cancel a contest
// @Description Owner or admin only. No winners are drawn.
// @Tags contests
// @Produce json
// @Security TelegramInitData
// @Param id path int true "Contest ID"
// @Router /contests/{id}/cancel [post]
func (h *handlers) cancelContest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	changed, err := h.d.Contests.Cancel(c.Request.Context(), id, middleware.CurrentUserID(c), middleware.IsAdmin(c))
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": changed})
}

// @Summary End a contest now
// @Description Owner or admin only. Draws winners and announces them exactly like a scheduled ending.
// @Tags contests
// @Produce json
// @Security TelegramInitData
// @Param id path int true "Contest ID"
// @Router /contests/{id}/end [post]
func (h *handlers) endContest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	ct, err := h.d.Contests.Get(ctx, id)
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	if ct.OwnerID != middleware.CurrentUserID(c) && !middleware.IsAdmin(c) {
		middleware.AbortWithAppError(c, apperrors.New(apperrors.ErrCodeNotOwner, "Only the contest owner can do this").
			WithDetail("contest_id", id))
		return
	}

	ended, err := h.d.Ender.End(ctx, id)
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	winners, err := h.d.Winners.GetWinners(ctx, id)
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ended": ended, "winners": winners})
}

// @Summary Contest winners
// @Tags contests
// @Produce json
// @Security TelegramInitData
// @Param id path int true "Contest ID"
// @Success 200 {array} contest.Winner
// @Router /contests/{id}/winners [get]
func (h *handlers) contestWinners(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.d.Contests.Get(ctx, id); err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	out, err := h.d.Winners.GetWinners(ctx, id)
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	if out == nil {
		out = []dc.Winner{}
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) myWins(c *gin.Context) {
	out, err := h.d.Winners.UserWins(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	if out == nil {
		out = []dc.Winner{}
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) myStats(c *gin.Context) {
	st, err := h.d.Winners.UserStats(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

type registerChannelRequest struct {
	ChannelID int64 `json:"channel_id" binding:"required"`
}

// @Summary Register a channel
// @Description Looks the channel up in Telegram; the bot must be able to see it.
// @Tags channels
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param input body registerChannelRequest true "Channel"
// @Success 201 {object} channel.Channel
// @Router /channels [post]
func (h *handlers) registerChannel(c *gin.Context) {
	var req registerChannelRequest
	if !bindJSON(c, &req) {
		return
	}
	ch, err := h.d.Channels.Register(c.Request.Context(), middleware.CurrentUserID(c), req.ChannelID)
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ch)
}
