package subscription

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"streamhub/internal/events"
	"streamhub/internal/httpx"
	"streamhub/pkg/models"
)

type Handler struct {
	Repo   *Repo
	Events events.Publisher
}

func NewHandler(repo *Repo, pub events.Publisher) *Handler {
	return &Handler{Repo: repo, Events: pub}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, guard ...gin.HandlerFunc) {
	rg.GET("", h.list)        // GET /subscriptions?userId=&status=&expand=plan
	rg.GET("/:id", h.getByID) // GET /subscriptions/:id
	rg.POST("", append(guard, h.create)...)
	rg.PATCH("/:id", append(guard, h.update)...)
	rg.DELETE("/:id", append(guard, h.remove)...)
}

func (h *Handler) list(c *gin.Context) {
	userID, _ := httpx.ParseInt64(c.Query("userId"))
	q := ListQuery{
		UserID: userID,
		Status: c.Query("status"),
		Expand: httpx.Expand(c, "plan"),
		Limit:  httpx.ParseInt(c.Query("limit"), 20),
		Offset: httpx.ParseInt(c.Query("offset"), 0),
	}
	items, err := h.Repo.FindAll(c.Request.Context(), q)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"limit": q.Limit, "offset": q.Offset, "items": items})
}

func (h *Handler) getByID(c *gin.Context) {
	id, ok := httpx.ParseID(c)
	if !ok {
		return
	}
	s, err := h.Repo.FindOne(c.Request.Context(), id, httpx.Expand(c, "plan"))
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

type createRequest struct {
	UserID    int64                     `json:"userId"`
	PlanID    int64                     `json:"planId"`
	Status    models.SubscriptionStatus `json:"status"`
	StartedAt *time.Time                `json:"startedAt"`
	EndsAt    *time.Time                `json:"endsAt"`
	AutoRenew *bool                     `json:"autoRenew"` // defaults to true
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	sub := models.Subscription{
		UserID:    req.UserID,
		PlanID:    req.PlanID,
		Status:    req.Status,
		EndsAt:    req.EndsAt,
		AutoRenew: req.AutoRenew == nil || *req.AutoRenew,
	}
	if req.StartedAt != nil {
		sub.StartedAt = *req.StartedAt
	}
	s, err := h.Repo.Create(c.Request.Context(), sub)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	events.Publish(h.Events, entity, events.ActionCreated, s.ID)
	c.JSON(http.StatusCreated, s)
}

func (h *Handler) update(c *gin.Context) {
	id, ok := httpx.ParseID(c)
	if !ok {
		return
	}
	var patch Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	s, err := h.Repo.Update(c.Request.Context(), id, patch)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	events.Publish(h.Events, entity, events.ActionUpdated, s.ID)
	c.JSON(http.StatusOK, s)
}

func (h *Handler) remove(c *gin.Context) {
	id, ok := httpx.ParseID(c)
	if !ok {
		return
	}
	if err := h.Repo.Remove(c.Request.Context(), id); err != nil {
		httpx.RespondError(c, err)
		return
	}
	events.Publish(h.Events, entity, events.ActionDeleted, id)
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
