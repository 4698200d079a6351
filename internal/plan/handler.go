package plan

import (
	"net/http"
	"strings"

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
	rg.GET("", h.list)        // GET /plans?name=&active=true
	rg.GET("/:id", h.getByID) // GET /plans/:id
	rg.POST("", append(guard, h.create)...)
	rg.PATCH("/:id", append(guard, h.update)...)
	rg.DELETE("/:id", append(guard, h.remove)...)
}

func (h *Handler) list(c *gin.Context) {
	ctx := c.Request.Context()

	if name := strings.TrimSpace(c.Query("name")); name != "" {
		p, err := h.Repo.FindByName(ctx, name)
		if err != nil {
			httpx.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": []models.Plan{*p}})
		return
	}

	if c.Query("active") == "true" {
		items, err := h.Repo.FindActive(ctx)
		if err != nil {
			httpx.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
		return
	}

	limit := httpx.ParseInt(c.Query("limit"), 20)
	offset := httpx.ParseInt(c.Query("offset"), 0)
	items, err := h.Repo.FindAll(ctx, limit, offset)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"limit": limit, "offset": offset, "items": items})
}

func (h *Handler) getByID(c *gin.Context) {
	id, ok := httpx.ParseID(c)
	if !ok {
		return
	}
	p, err := h.Repo.FindOne(c.Request.Context(), id)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type createRequest struct {
	Name        string `json:"name"`
	PriceCents  int64  `json:"priceCents"`
	Currency    string `json:"currency"`
	MaxProfiles int    `json:"maxProfiles"`
	MaxQuality  string `json:"maxQuality"`
	IsActive    *bool  `json:"isActive"` // defaults to true
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	active := req.IsActive == nil || *req.IsActive
	p, err := h.Repo.Create(c.Request.Context(), models.Plan{
		Name:        req.Name,
		PriceCents:  req.PriceCents,
		Currency:    req.Currency,
		MaxProfiles: req.MaxProfiles,
		MaxQuality:  models.Quality(req.MaxQuality),
		IsActive:    active,
	})
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	events.Publish(h.Events, entity, events.ActionCreated, p.ID)
	c.JSON(http.StatusCreated, p)
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
	p, err := h.Repo.Update(c.Request.Context(), id, patch)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	events.Publish(h.Events, entity, events.ActionUpdated, p.ID)
	c.JSON(http.StatusOK, p)
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
