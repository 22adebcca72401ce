// Package server exposes the daemon's read-only operational surface: health,
// current guard state, recent tick history, and Prometheus metrics. It is
// only started in daemon mode; the one-shot beat path stays non-interactive.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pondside/heartbeat/internal/guard"
	"github.com/pondside/heartbeat/internal/history"
	"github.com/pondside/heartbeat/internal/metrics"
)

type Router struct {
	guard *guard.Guard
	store history.Store // may be nil
}

func NewRouter(g *guard.Guard, store history.Store) *Router {
	return &Router{guard: g, store: store}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server/mux.
func (r *Router) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/healthz", r.handleHealthz)
	g.GET("/status", r.handleStatus)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr string, g *guard.Guard, store history.Store) *http.Server {
	r := NewRouter(g, store)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

func (r *Router) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type statusResp struct {
	Running     bool       `json:"running"`
	HolderPID   int        `json:"holder_pid,omitempty"`
	RecentTicks []tickResp `json:"recent_ticks,omitempty"`
}

type tickResp struct {
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Skipped     bool      `json:"skipped"`
	BlockingPID int       `json:"blocking_pid,omitempty"`
	ExitCode    int       `json:"exit_code"`
}

func (r *Router) handleStatus(c *gin.Context) {
	pid, alive, err := r.guard.HolderPID()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resp := statusResp{Running: alive}
	if alive {
		resp.HolderPID = pid
	}
	if r.store != nil {
		recs, err := r.store.Recent(c.Request.Context(), 10)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		for _, rec := range recs {
			resp.RecentTicks = append(resp.RecentTicks, tickResp{
				StartedAt:   rec.StartedAt,
				FinishedAt:  rec.FinishedAt,
				Skipped:     rec.Skipped,
				BlockingPID: rec.BlockingPID,
				ExitCode:    rec.ExitCode,
			})
		}
	}
	c.JSON(http.StatusOK, resp)
}
