// Package api provides the read-only dashboard HTTP API (spec.md §1:
// "a dashboard is out of scope but the daemon should expose read-only
// state over HTTP for one to be built against"; SPEC_FULL.md §4.12).
//
// Grounded on the teacher's gin-based pkg/api/handlers.go and
// websocket.go (the teacher's own earlier gin + gorilla/websocket
// phase, not its later echo + coder/websocket rewrite — the dependency
// choice recorded in go.mod follows this phase of the teacher).
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/codeready-toolchain/sysdaemon/pkg/approvalqueue"
	"github.com/codeready-toolchain/sysdaemon/pkg/contextwindow"
	"github.com/codeready-toolchain/sysdaemon/pkg/events"
	"github.com/codeready-toolchain/sysdaemon/pkg/semanticstore"
)

// Server is the read-only dashboard HTTP server.
type Server struct {
	engine *gin.Engine
	http   *http.Server

	window  *contextwindow.Window
	queue   *approvalqueue.Queue
	issues  semanticstore.Adapter
	hub     *events.Hub
	started time.Time
	health  HealthReporter
}

// HealthReporter reports LLM tiers currently skipped by the per-tier
// circuit breaker (SPEC_FULL.md §5). Implemented by *llmclient.Client.
type HealthReporter interface {
	DegradedTiers() []string
}

// WithHealthReporter attaches the LLM circuit-breaker status to the
// /health response.
func (s *Server) WithHealthReporter(h HealthReporter) *Server {
	s.health = h
	return s
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NewServer wires the dashboard routes. queue and hub may be nil in
// degraded/offline modes (e.g. the `check` single-shot CLI path) —
// handlers report 503 rather than panic when their dependency is absent.
func NewServer(window *contextwindow.Window, queue *approvalqueue.Queue, issues semanticstore.Adapter, hub *events.Hub) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:  engine,
		window:  window,
		queue:   queue,
		issues:  issues,
		hub:     hub,
		started: time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)
	s.engine.GET("/context", s.contextHandler)
	s.engine.GET("/issues", s.issuesHandler)
	s.engine.GET("/queue", s.queueHandler)
	s.engine.POST("/queue/:id/approve", s.approveHandler)
	s.engine.POST("/queue/:id/reject", s.rejectHandler)
	s.engine.GET("/ws", s.wsHandler)
}

// Start runs the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.engine}
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	var degraded []string
	if s.health != nil {
		degraded = s.health.DegradedTiers()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"uptime":             time.Since(s.started).String(),
		"degraded_llm_tiers": degraded,
	})
}

func (s *Server) contextHandler(c *gin.Context) {
	if s.window == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "context window not available"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": s.window.Snapshot()})
}

func (s *Server) issuesHandler(c *gin.Context) {
	if s.issues == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "issue store not available"})
		return
	}
	q := c.Query("q")
	issues, err := s.issues.QueryIssues(c.Request.Context(), q, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"issues": issues})
}

func (s *Server) queueHandler(c *gin.Context) {
	if s.queue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "approval queue not available"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": s.queue.List()})
}

func (s *Server) approveHandler(c *gin.Context) {
	if s.queue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "approval queue not available"})
		return
	}
	id, ok := parseQueueID(c)
	if !ok {
		return
	}
	action, err := s.queue.Approve(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.hub != nil {
		s.hub.Broadcast(events.Event{Type: "action_approved", Payload: action, Timestamp: time.Now()})
	}
	c.JSON(http.StatusOK, action)
}

func (s *Server) rejectHandler(c *gin.Context) {
	if s.queue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "approval queue not available"})
		return
	}
	id, ok := parseQueueID(c)
	if !ok {
		return
	}
	reason := c.Query("reason")
	action, err := s.queue.Reject(id, reason)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.hub != nil {
		s.hub.Broadcast(events.Event{Type: "action_rejected", Payload: action, Timestamp: time.Now()})
	}
	c.JSON(http.StatusOK, action)
}

func parseQueueID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid queue id"})
		return 0, false
	}
	return id, true
}

// wsHandler upgrades to a WebSocket and registers the connection with
// the dashboard event hub (teacher's websocket.go HandleWS, simplified
// to a single broadcast channel since this daemon has no per-session
// subscription scoping to serve).
func (s *Server) wsHandler(c *gin.Context) {
	if s.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event hub not available"})
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	id := s.hub.Register(conn)
	defer s.hub.Unregister(id)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
