package content

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
	rg.GET("", h.list)        // GET /content?category=&genre=&q=&expand=genres
	rg.GET("/:id", h.getByID) // GET /content/:id
	rg.POST("", append(guard, h.create)...)
	rg.PATCH("/:id", append(guard, h.update)...)
	rg.DELETE("/:id", append(guard, h.remove)...)
}

func (h *Handler) list(c *gin.Context) {
	ctx := c.Request.Context()

	if ext := strings.TrimSpace(c.Query("externalId")); ext != "" {
		item, err := h.Repo.FindByExternalID(ctx, ext)
		if err != nil {
			httpx.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"total": 1, "items": []models.Content{*item}})
		return
	}

	q := ListQuery{
		Q:        c.Query("q"),
		Category: c.Query("category"),
		Genre:    c.Query("genre"),
		Expand:   httpx.Expand(c, "genres"),
		Limit:    httpx.ParseInt(c.Query("limit"), 20),
		Offset:   httpx.ParseInt(c.Query("offset"), 0),
	}

	total, err := h.Repo.Count(ctx, q)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	items, err := h.Repo.FindAll(ctx, q)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
		"items":  items,
	})
}

func (h *Handler) getByID(c *gin.Context) {
	id, ok := httpx.ParseID(c)
	if !ok {
		return
	}
	item, err := h.Repo.FindOne(c.Request.Context(), id, httpx.Expand(c, "genres"))
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) create(c *gin.Context) {
	var req models.Content
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	item, err := h.Repo.Create(c.Request.Context(), req)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	events.Publish(h.Events, entity, events.ActionCreated, item.ID)
	c.JSON(http.StatusCreated, item)
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
	item, err := h.Repo.Update(c.Request.Context(), id, p)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	events.Publish(h.Events, entity, events.ActionUpdated, item.ID)
	c.JSON(http.StatusOK, item)
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
