package discovery

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"streamhub/internal/apperr"
	"streamhub/internal/httpx"
	"streamhub/pkg/models"
)

type ProfileFinder interface {
	FindOne(ctx context.Context, id int64, expand bool) (*models.Profile, error)
}

type SubscriptionFinder interface {
	ActiveForUser(ctx context.Context, userID int64) (*models.Subscription, error)
}

type Handler struct {
	Service       *Service
	Profiles      ProfileFinder
	Subscriptions SubscriptionFinder
	DefaultPages  []int
}

func NewHandler(svc *Service, profiles ProfileFinder, subs SubscriptionFinder, defaultPages []int) *Handler {
	return &Handler{Service: svc, Profiles: profiles, Subscriptions: subs, DefaultPages: defaultPages}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, guard ...gin.HandlerFunc) {
	rg.GET("", h.discover)                            // GET /discover?pages=1,2,3&profileId=&saved=a&saved=b
	rg.POST("/import", append(guard, h.runImport)...) // POST /discover/import?pages=1,2
}

func (h *Handler) pages(c *gin.Context) ([]int, bool) {
	raw := httpx.SplitList(c.QueryArray("pages"))
	if len(raw) == 0 {
		return h.DefaultPages, true
	}
	pages := make([]int, 0, len(raw))
	for _, s := range raw {
		n, err := strconv.Atoi(s)
		if err != nil {
			httpx.RespondError(c, apperr.Invalid("discover", "pages", "numeric", "must be a comma separated list of page numbers"))
			return nil, false
		}
		pages = append(pages, n)
	}
	return pages, true
}

func (h *Handler) viewer(c *gin.Context) (Viewer, error) {
	saved := httpx.TrimList(c.QueryArray("saved"))
	profileID, _ := httpx.ParseInt64(c.Query("profileId"))
	return ResolveViewer(c.Request.Context(), h.Profiles, h.Subscriptions, profileID, saved)
}

// ResolveViewer builds the Viewer for a profile: its maturity limit, and
// premium entitlement from the owner's active subscription. A zero
// profileID, or no profile store, gives the anonymous viewer.
func ResolveViewer(ctx context.Context, profiles ProfileFinder, subs SubscriptionFinder, profileID int64, saved []string) (Viewer, error) {
	if profileID <= 0 || profiles == nil {
		return Anonymous(saved), nil
	}
	p, err := profiles.FindOne(ctx, profileID, false)
	if err != nil {
		return Viewer{}, err
	}
	v := Viewer{ProfileID: p.ID, MaxMaturity: p.MaturityLimit, SavedIDs: saved}
	if subs != nil {
		_, err := subs.ActiveForUser(ctx, p.UserID)
		switch {
		case err == nil:
			v.IncludePremium = true
		case !errors.Is(err, apperr.ErrNotFound):
			return Viewer{}, err
		}
	}
	return v, nil
}

func (h *Handler) discover(c *gin.Context) {
	pages, ok := h.pages(c)
	if !ok {
		return
	}
	viewer, err := h.viewer(c)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Service.Discover(c.Request.Context(), pages, viewer))
}

func (h *Handler) runImport(c *gin.Context) {
	pages, ok := h.pages(c)
	if !ok {
		return
	}
	report, err := h.Service.Import(c.Request.Context(), pages)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
