// Package control serves the HTTP control API over a running tracker.
package control

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"VisionTracker/tracker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server wraps a gin engine around tracker operations. It never owns the
// tracker's lifecycle; stopping the server leaves the tracker running.
type Server struct {
	log *zap.Logger
	trk *tracker.Tracker
	srv *http.Server
}

func NewServer(trk *tracker.Tracker, log *zap.Logger) *Server {
	return &Server{
		log: log.Named("control"),
		trk: trk,
	}
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/ping", s.handlePing)
	api.GET("/stats", s.handleStats)
	api.GET("/backends", s.handleBackends)
	api.POST("/backends/switch/:name", s.handleSwitch)
	api.POST("/pause", s.handlePause)
	api.POST("/resume", s.handleResume)
	api.POST("/screenshot", s.handleScreenshot)
	return r
}

// Start serves the API on the given port until the context is cancelled.
func (s *Server) Start(ctx context.Context, port int) {
	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.routes(),
	}

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("control server error", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("control server shutdown error", zap.Error(err))
		}
	}()
	s.log.Info("control server started", zap.Int("port", port))
}

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
		"state":   s.trk.State().String(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.trk.Stats())
}

func (s *Server) handleBackends(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"available":        s.trk.AvailableBackends(),
		"current":          s.trk.CurrentBackend(),
		"switchingEnabled": s.trk.SwitchingEnabled(),
	})
}

func (s *Server) handleSwitch(c *gin.Context) {
	name := c.Param("name")
	if !s.trk.SwitchBackendByName(name) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     fmt.Sprintf("switch to backend %q failed", name),
			"available": s.trk.AvailableBackends(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"current": s.trk.CurrentBackend()})
}

func (s *Server) handlePause(c *gin.Context) {
	s.trk.Pause()
	c.JSON(http.StatusOK, gin.H{"state": s.trk.State().String()})
}

func (s *Server) handleResume(c *gin.Context) {
	s.trk.Resume()
	c.JSON(http.StatusOK, gin.H{"state": s.trk.State().String()})
}

func (s *Server) handleScreenshot(c *gin.Context) {
	if !s.trk.RequestScreenshot() {
		c.JSON(http.StatusConflict, gin.H{"error": "tracker is not running"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "screenshot queued"})
}
