package main

import (
	"context"
	"database/sql"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"streamhub/internal/auth"
	"streamhub/internal/content"
	"streamhub/internal/discovery"
	"streamhub/internal/events"
	"streamhub/internal/genre"
	"streamhub/internal/httpx"
	"streamhub/internal/metrics"
	"streamhub/internal/plan"
	"streamhub/internal/profile"
	"streamhub/internal/subscription"
	"streamhub/internal/user"
	"streamhub/pkg/logger"
	"streamhub/pkg/utils"
)

type deps struct {
	cfg       utils.Config
	db        *sql.DB
	hub       *events.Hub
	discovery *discovery.Service
	log       *logger.Logger
}

func newRouter(d deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), httpx.RequestLogger(d.log), metrics.Middleware())
	router.Use(cors.New(corsConfig(d.cfg.CORSOrigins)))
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ready", func(c *gin.Context) {
		stats := d.hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := d.db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"dbError": err.Error(),
				"feedTcp": stats.TCPClients,
				"feedWs":  stats.WSClients,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "ready",
			"db":      "ok",
			"feedTcp": stats.TCPClients,
			"feedWs":  stats.WSClients,
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", events.WSHandler(d.hub))

	tokens := auth.TokenService{
		Secret:   []byte(d.cfg.Auth.JWTSecret),
		Issuer:   d.cfg.Auth.JWTIssuer,
		Duration: d.cfg.Auth.JWTDuration,
	}
	users := user.NewRepo(d.db)
	guard := auth.Guard(d.cfg.Auth.Required, tokens, users)

	auth.NewHandler(users, tokens).RegisterRoutes(router.Group("/auth"))

	me := router.Group("/me", auth.AuthMiddleware(tokens, users))
	me.GET("", func(c *gin.Context) {
		claims := auth.MustGetClaims(c)
		c.JSON(http.StatusOK, gin.H{
			"id":       claims.UserID,
			"username": claims.Username,
			"email":    claims.Email,
		})
	})

	contents := content.NewRepo(d.db)
	profiles := profile.NewRepo(d.db)
	subs := subscription.NewRepo(d.db)

	content.NewHandler(contents, d.hub).RegisterRoutes(router.Group("/content"), guard...)
	genre.NewHandler(genre.NewRepo(d.db), d.hub).RegisterRoutes(router.Group("/genres"), guard...)
	plan.NewHandler(plan.NewRepo(d.db), d.hub).RegisterRoutes(router.Group("/plans"), guard...)
	profile.NewHandler(profiles, d.hub).RegisterRoutes(router.Group("/profiles"), guard...)
	subscription.NewHandler(subs, d.hub).RegisterRoutes(router.Group("/subscriptions"), guard...)
	user.NewHandler(users, d.hub).RegisterRoutes(router.Group("/users"), guard...)

	svc := d.discovery
	if svc == nil {
		svc = discovery.FromConfig(d.cfg.Discovery, contents, d.log)
	}
	discovery.NewHandler(svc, profiles, subs, d.cfg.Discovery.DefaultPages).
		RegisterRoutes(router.Group("/discover"), guard...)

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", httpx.RequestIDHeader},
		ExposeHeaders: []string{httpx.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
