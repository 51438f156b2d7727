// Package server exposes the chat engine over HTTP.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/finsolve/rbac-chat/cache"
	"github.com/finsolve/rbac-chat/common/logger"
	"github.com/finsolve/rbac-chat/config"
	"github.com/finsolve/rbac-chat/metrics"
	"github.com/finsolve/rbac-chat/orchestrator"
	"github.com/finsolve/rbac-chat/rbac"
	"github.com/finsolve/rbac-chat/schema"
	"github.com/finsolve/rbac-chat/structured"
)

const (
	defaultTopK = 4
	maxTopK     = 8
)

// Server is the HTTP gateway in front of the orchestrator.
type Server struct {
	engine  *gin.Engine
	auth    *authenticator
	store   *rbac.Store
	catalog *structured.Catalog
	orch    *orchestrator.Orchestrator
	tracker *metrics.Tracker
	cache   *cache.Retrieval
	addr    string
}

// New assembles the gateway with all routes registered.
func New(cfg *config.Config, store *rbac.Store, catalog *structured.Catalog,
	orch *orchestrator.Orchestrator, tracker *metrics.Tracker, retrievalCache *cache.Retrieval) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		engine:  gin.New(),
		auth:    newAuthenticator(cfg.Auth),
		store:   store,
		catalog: catalog,
		orch:    orch,
		tracker: tracker,
		cache:   retrievalCache,
		addr:    cfg.Server.Addr,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.Use(gin.Recovery())

	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.engine.POST("/login", s.handleLogin)

	authed := s.engine.Group("/", s.authRequired())
	authed.POST("/chat", s.handleChat)
	authed.GET("/roles", s.handleRoles)
	authed.GET("/structured-tables", s.handleStructuredTables)
	authed.GET("/analytics", s.requireRole("c_level"), s.handleAnalytics)
}

// Run blocks serving HTTP on the configured address.
func (s *Server) Run() error {
	logger.Infof("server: listening on %s", s.addr)
	return s.engine.Run(s.addr)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	token, role, err := s.auth.login(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errBadCredentials.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer", "role": role})
}

func (s *Server) handleChat(c *gin.Context) {
	var req schema.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	role := c.GetString(roleContextKey)
	resp := s.orch.Handle(c.Request.Context(), role, req.Message, topK)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRoles(c *gin.Context) {
	role := c.GetString(roleContextKey)
	c.JSON(http.StatusOK, gin.H{
		"role":        role,
		"departments": s.store.DepartmentsFor(role),
		"roles":       s.store.Roles(),
	})
}

func (s *Server) handleStructuredTables(c *gin.Context) {
	role := c.GetString(roleContextKey)
	departments := s.store.DepartmentsFor(role)
	c.JSON(http.StatusOK, gin.H{
		"role":   role,
		"tables": s.catalog.TablesFor(departments),
	})
}

func (s *Server) handleAnalytics(c *gin.Context) {
	cacheEntries := 0
	if s.cache != nil {
		cacheEntries = s.cache.Len()
	}
	c.JSON(http.StatusOK, gin.H{
		"usage":         s.tracker.Snapshot(),
		"cache_entries": cacheEntries,
	})
}
