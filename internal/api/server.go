package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"license-server/internal/admin"
	"license-server/internal/events"
	"license-server/internal/license"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimiter provides simple in-memory rate limiting per key
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// HealthChecker reports backing-store connectivity for /health
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// VaultChecker reports secret-store connectivity for /health. A
// disabled Vault client returns nil, so /health stays green without
// Vault in the deployment.
type VaultChecker interface {
	Health(ctx context.Context) error
}

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	licenses    *license.Service
	adminSvc    *admin.Service
	db          HealthChecker
	vault       VaultChecker
	config      ServerConfig
	rateLimiter *RateLimiter
	wsHub       *WSHub
	logger      zerolog.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ProductionMode  bool
	StaticFilesPath string
	RateLimit       int
	RateLimitWindow time.Duration
}

// NewServer creates a new API server
func NewServer(
	config ServerConfig,
	licenses *license.Service,
	adminSvc *admin.Service,
	db HealthChecker,
	vaultChecker VaultChecker,
	eventBus *events.EventBus,
	logger zerolog.Logger,
) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// The extension calls from arbitrary origins, so CORS stays open.
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	router.Use(cors.New(corsConfig))

	limit := config.RateLimit
	if limit <= 0 {
		limit = 60
	}
	window := config.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}

	server := &Server{
		router:      router,
		licenses:    licenses,
		adminSvc:    adminSvc,
		db:          db,
		vault:       vaultChecker,
		config:      config,
		rateLimiter: NewRateLimiter(limit, window),
		wsHub:       NewWSHub(logger),
		logger:      logger,
	}

	go server.wsHub.Run()
	eventBus.SubscribeAll(func(event events.Event) {
		server.wsHub.BroadcastEvent(event)
	})

	server.setupRoutes()

	return server
}

// rateLimitMiddleware limits requests per client IP and path. Only the
// public license endpoints go through it; the admin API is token-gated.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP() + c.FullPath()
		if !s.rateLimiter.Allow(key) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "too many requests, slow down",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	limited := s.router.Group("/", s.rateLimitMiddleware())
	limited.POST("/activate-license", s.handleActivate)
	limited.POST("/validate-license", s.handleValidate)

	s.router.POST("/admin-api", s.handleAdmin)
	s.router.GET("/ws/admin", s.handleAdminWS)

	if s.config.StaticFilesPath != "" {
		s.router.Static("/admin", s.config.StaticFilesPath)
	}
}

// Start begins listening on the configured address. It blocks until
// the server stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("http server listening")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the gin engine for tests
func (s *Server) Router() http.Handler {
	return s.router
}
