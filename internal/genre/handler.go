package genre

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

// RegisterRoutes mounts the genre endpoints; guard runs before mutations.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, guard ...gin.HandlerFunc) {
	rg.GET("", h.list)        // GET /genres?name=
	rg.GET("/:id", h.getByID) // GET /genres/:id
	rg.POST("", append(guard, h.create)...)
	rg.PATCH("/:id", append(guard, h.update)...)
	rg.DELETE("/:id", append(guard, h.remove)...)
}

func (h *Handler) list(c *gin.Context) {
	if name := strings.TrimSpace(c.Query("name")); name != "" {
		g, err := h.Repo.FindByName(c.Request.Context(), name)
		if err != nil {
			httpx.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": []models.Genre{*g}})
		return
	}

	limit := httpx.ParseInt(c.Query("limit"), 20)
	offset := httpx.ParseInt(c.Query("offset"), 0)
	items, err := h.Repo.FindAll(c.Request.Context(), limit, offset)
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
	g, err := h.Repo.FindOne(c.Request.Context(), id)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *Handler) create(c *gin.Context) {
	var req models.Genre
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	g, err := h.Repo.Create(c.Request.Context(), req)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	events.Publish(h.Events, entity, events.ActionCreated, g.ID)
	c.JSON(http.StatusCreated, g)
}

func (h *Handler) update(c *gin.Context) {
	id, ok := httpx.ParseID(c)
	if !ok {
		return
	}
	var p Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	g, err := h.Repo.Update(c.Request.Context(), id, p)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	events.Publish(h.Events, entity, events.ActionUpdated, g.ID)
	c.JSON(http.StatusOK, g)
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
