package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/open-builders/contest-bot/internal/common/errors"
	"github.com/open-builders/contest-bot/internal/common/middleware"
	"github.com/open-builders/contest-bot/internal/domain/broadcast"
	"github.com/open-builders/contest-bot/internal/domain/channel"
	dc "github.com/open-builders/contest-bot/internal/domain/contest"
)

func (h *handlers) registerAdmin(r *gin.RouterGroup) {
	r.GET("/overview", middleware.ResponseCache(h.d.Redis, h.d.CacheTTL), h.overview)

	contests := r.Group("/contests")
	{
		contests.GET("", h.searchContests)
		contests.GET("/counts", h.contestCounts)
		contests.GET("/:id", h.adminGetContest)
		contests.DELETE("/:id", h.deleteContest)
		contests.GET("/:id/participants", h.listParticipants)
		contests.DELETE("/:id/participants/:user_id", h.removeParticipant)
		contests.POST("/:id/winners/:user_id/claim", h.claimPrize)
	}

	users := r.Group("/users")
	{
		users.GET("", h.listUsers)
		users.GET("/:id", h.getUser)
		users.POST("/:id/ban", h.setBanned(true))
		users.POST("/:id/unban", h.setBanned(false))
	}

	broadcasts := r.Group("/broadcasts")
	{
		broadcasts.POST("", h.createBroadcast)
		broadcasts.GET("", h.listBroadcasts)
		broadcasts.GET("/:id", h.getBroadcast)
	}

	r.GET("/channels", h.listChannels)

	forceSub := r.Group("/force-sub")
	{
		forceSub.GET("", h.listForceSub)
		forceSub.POST("", h.addForceSub)
		forceSub.DELETE("/:channel_id", h.removeForceSub)
	}
}

// @Summary Dashboard overview
// @Tags admin
// @Produce json
// @Security TelegramInitData
// @Success 200 {object} analytics.Overview
// @Router /admin/overview [get]
func (h *handlers) overview(c *gin.Context) {
	if h.d.Analytics == nil {
		middleware.AbortWithAppError(c, apperrors.New(apperrors.ErrCodeInternal, "Analytics are not configured"))
		return
	}
	out, err := h.d.Analytics.Overview(c.Request.Context())
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary Search contests
// @Tags admin
// @Produce json
// @Security TelegramInitData
// @Param status query string false "pending, active, ended or cancelled"
// @Param owner_id query int false "Owner Telegram ID"
// @Param q query string false "Title substring"
// @Param order query string false "created or views"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} contest.Contest
// @Router /admin/contests [get]
func (h *handlers) searchContests(c *gin.Context) {
	limit, offset := page(c)
	f := dc.ListFilter{
		Status:  dc.Status(c.Query("status")),
		Query:   c.Query("q"),
		OrderBy: c.Query("order"),
		Limit:   limit,
		Offset:  offset,
	}
	if raw := c.Query("owner_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			middleware.AbortWithAppError(c, apperrors.NewValidationError("owner_id", "must be an integer"))
			return
		}
		f.OwnerID = id
	}
	out, err := h.d.Contests.Search(c.Request.Context(), f)
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) contestCounts(c *gin.Context) {
	out, err := h.d.Contests.CountByStatus(c.Request.Context())
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// adminGetContest does not count as a view.
func (h *handlers) adminGetContest(c *gin.Context) {
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
	n, err := h.d.Participation.Count(ctx, id)
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, contestView{Contest: ct, Participants: n})
}

func (h *handlers) deleteContest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.d.Contests.Delete(c.Request.Context(), id); err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary List participants
// @Description Participants in join order.
// @Tags admin
// @Produce json
// @Security TelegramInitData
// @Param id path int true "Contest ID"
// @Param limit query int false "Maximum rows, 0 for all"
// @Success 200 {array} contest.Participant
// @Router /admin/contests/{id}/participants [get]
func (h *handlers) listParticipants(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.d.Contests.Get(ctx, id); err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	out, err := h.d.Participation.List(ctx, id, queryInt(c, "limit", 0))
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	if out == nil {
		out = []dc.Participant{}
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) removeParticipant(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	if err := h.d.Participation.Remove(c.Request.Context(), id, userID); err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) claimPrize(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	if err := h.d.Winners.MarkPrizeClaimed(c.Request.Context(), id, userID); err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prize_claimed": true})
}

func (h *handlers) listUsers(c *gin.Context) {
	ctx := c.Request.Context()
	limit, offset := page(c)
	out, err := h.d.Users.List(ctx, limit, offset)
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	total, err := h.d.Users.Count(ctx)
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": out, "total": total})
}

func (h *handlers) getUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	u, err := h.d.Users.GetByID(ctx, id)
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	if u == nil {
		middleware.AbortWithAppError(c, apperrors.NewUserNotFoundError(id))
		return
	}
	stats, err := h.d.Winners.UserStats(ctx, id)
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "stats": stats})
}

func (h *handlers) setBanned(banned bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if err := h.d.Users.SetBanned(c.Request.Context(), id, banned); err != nil {
			middleware.AbortWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": id, "is_banned": banned})
	}
}

type createBroadcastRequest struct {
	Text string `json:"text" binding:"required"`
}

// @Summary Start a broadcast
// @Description Sends text to every known user in the background at a bounded rate.
// @Tags admin
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param input body createBroadcastRequest true "Message"
// @Success 202 {object} broadcast.Broadcast
// @Router /admin/broadcasts [post]
func (h *handlers) createBroadcast(c *gin.Context) {
	var req createBroadcastRequest
	if !bindJSON(c, &req) {
		return
	}
	b, err := h.d.Broadcasts.Start(c.Request.Context(), middleware.CurrentUserID(c), req.Text)
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, b)
}

func (h *handlers) listBroadcasts(c *gin.Context) {
	limit, _ := page(c)
	out, err := h.d.Broadcasts.List(c.Request.Context(), limit)
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	if out == nil {
		out = []broadcast.Broadcast{}
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) getBroadcast(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	b, err := h.d.Broadcasts.Get(c.Request.Context(), id)
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *handlers) listChannels(c *gin.Context) {
	out, err := h.d.Channels.ListActive(c.Request.Context())
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	if out == nil {
		out = []channel.Channel{}
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) listForceSub(c *gin.Context) {
	out, err := h.d.Channels.ListForceSub(c.Request.Context())
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	if out == nil {
		out = []channel.ForceSubChannel{}
	}
	c.JSON(http.StatusOK, out)
}

// @Summary Add a mandatory channel
// @Description Participants of every contest must be subscribed to active entries, checked in priority order.
// @Tags admin
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param input body channel.ForceSubChannel true "Channel"
// @Success 201 {object} channel.ForceSubChannel
// @Router /admin/force-sub [post]
func (h *handlers) addForceSub(c *gin.Context) {
	var req channel.ForceSubChannel
	if !bindJSON(c, &req) {
		return
	}
	out, err := h.d.Channels.AddForceSub(c.Request.Context(), req)
	if err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *handlers) removeForceSub(c *gin.Context) {
	id, ok := pathInt64(c, "channel_id")
	if !ok {
		return
	}
	if err := h.d.Channels.RemoveForceSub(c.Request.Context(), id); err != nil {
		middleware.AbortWithAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
