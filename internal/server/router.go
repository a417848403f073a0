package server

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"moviehub/internal/auth"
	"moviehub/internal/catalog"
	"moviehub/internal/events"
	"moviehub/internal/ingest"
)

// Deps are the components the HTTP API exposes.
type Deps struct {
	DB        *sql.DB
	Catalog   *catalog.Repo
	Scheduler *ingest.Scheduler
	Hub       *events.Hub
	Tokens    auth.TokenService
	AssetDir  string
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:3000",
			"http://localhost:5173",
			"http://127.0.0.1:3000",
			"http://127.0.0.1:5173",
		},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func NewRouter(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), corsMiddleware())
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ready", func(c *gin.Context) {
		stats := d.Hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := d.DB.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "db_error": err.Error()})
			return
		}
		body := gin.H{
			"status":      "ready",
			"db":          "ok",
			"tcp_clients":      stats.TCPClients,
			"ws_clients":       stats.WSClients,
			"events_published": stats.Published,
		}
		if last, ok := d.Scheduler.Last(); ok {
			body["last_cycle"] = last.FinishedAt
		}
		c.JSON(http.StatusOK, body)
	})

	router.GET("/ws", events.WSHandler(d.Hub))
	if d.AssetDir != "" {
		router.Static("/assets", d.AssetDir)
	}

	catalog.NewHandler(d.Catalog).RegisterRoutes(router.Group("/movies"), router.Group("/genres"))

	users := auth.NewRepo(d.DB)
	auth.NewHandler(users, d.Tokens).RegisterRoutes(router.Group("/auth"), router.Group("/users"))

	ingestGroup := router.Group("/ingest")
	admin := ingestGroup.Group("")
	admin.Use(auth.Middleware(d.Tokens, users))
	ingest.NewHandler(d.Scheduler).RegisterRoutes(ingestGroup, admin)

	return router
}
