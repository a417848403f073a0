package ingest

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Scheduler *Scheduler
}

func NewHandler(s *Scheduler) *Handler {
	return &Handler{Scheduler: s}
}

// RegisterRoutes mounts the status endpoint on rg and the trigger on admin, which
// the caller protects.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, admin *gin.RouterGroup) {
	rg.GET("/status", h.status)   // GET /ingest/status
	admin.POST("/run", h.trigger) // POST /ingest/run
}

func (h *Handler) status(c *gin.Context) {
	report, ok := h.Scheduler.Last()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"status": "idle", "last": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "last": report})
}

func (h *Handler) trigger(c *gin.Context) {
	report, joined, err := h.Scheduler.Trigger(c.Request.Context())
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			c.JSON(http.StatusAccepted, gin.H{"status": "running"})
			return
		}
		if errors.Is(err, ErrCycleLocked) {
			c.JSON(http.StatusConflict, gin.H{"error": "another process is running a cycle", "report": report})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "cycle failed", "report": report})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "done", "joined": joined, "report": report})
}
