// Package api is the Admission API: a thin HTTP surface that delegates
// every request to the Store Gateway, the Durable Task Runtime, or the
// Probe Bridge. It owns no business logic of its own beyond request
// validation and response shaping.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/linkmind-dev/linkmind/internal/config"
	"github.com/linkmind-dev/linkmind/internal/models"
	"github.com/linkmind-dev/linkmind/internal/probebridge"
	"github.com/linkmind-dev/linkmind/internal/runtime"
)

// Store is the subset of the Store Gateway the Admission API depends on
// directly (link CRUD, relation bookkeeping, device listing). Device-code
// enrollment and probe event delivery go through probebridge.Manager,
// which holds its own narrower Store.
type Store interface {
	UpsertLink(ctx context.Context, userID int64, url string) (id int64, wasExisting bool, err error)
	GetLink(ctx context.Context, userID, id int64) (*models.Link, error)
	UpdateLinkFields(ctx context.Context, id int64, fields models.LinkFields) error
	ListRecent(ctx context.Context, userID int64, limit, offset int) ([]models.LinkListItem, error)
	ListByStatus(ctx context.Context, userID int64, status models.LinkStatus, limit, offset int) ([]models.LinkListItem, error)
	DeleteLink(ctx context.Context, userID, id int64) error

	GetRelations(ctx context.Context, linkID int64) ([]models.RelatedLink, error)
	RemoveLinkFromRelations(ctx context.Context, linkID int64) (int64, error)

	GetProbeDeviceByToken(ctx context.Context, token string) (*models.ProbeDevice, error)
	ListProbeDevices(ctx context.Context, userID int64) ([]models.ProbeDevice, error)
	ListPendingProbeEvents(ctx context.Context, userID int64) ([]models.ProbeEvent, error)
	TouchProbeDevice(ctx context.Context, id string) error
}

// Server wires the gin Engine to the coordinator's internal components and
// owns the Admission API's HTTP lifecycle.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server

	cfg    *config.Config
	store  Store
	tasks  runtime.TaskStore
	pool   *runtime.Pool
	bridge *probebridge.Manager
	queue  string

	limiter *perUserLimiter
}

// NewServer builds the Admission API and registers every route. queue is
// the task queue process-link/refresh-related tasks are spawned onto.
func NewServer(cfg *config.Config, store Store, tasks runtime.TaskStore, pool *runtime.Pool, bridge *probebridge.Manager, queue string) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(), securityHeaders())

	s := &Server{
		engine:  engine,
		cfg:     cfg,
		store:   store,
		tasks:   tasks,
		pool:    pool,
		bridge:  bridge,
		queue:   queue,
		limiter: newPerUserLimiter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)

	session := s.engine.Group("/api")
	session.Use(s.sessionAuth(), s.rateLimit())
	{
		session.POST("/links", s.submitLinkHandler)
		session.GET("/links", s.listLinksHandler)
		session.GET("/links/:id", s.getLinkHandler)
		session.DELETE("/links/:id", s.deleteLinkHandler)
		session.POST("/retry", s.retryAllHandler)
		session.POST("/retry/:id", s.retryOneHandler)
		session.GET("/probe/status", s.probeStatusHandler)
	}

	noAuth := s.engine.Group("/api/auth")
	{
		noAuth.POST("/device", s.initiateDeviceAuthHandler)
		noAuth.POST("/token", s.pollDeviceTokenHandler)
	}

	probe := s.engine.Group("/api/probe")
	probe.Use(s.probeAuth())
	{
		probe.GET("/subscribe_events", s.subscribeEventsHandler)
		probe.POST("/receive_result", s.receiveResultHandler)
	}

	verify := s.engine.Group("/auth/device")
	verify.Use(s.sessionAuth())
	{
		verify.GET("", s.deviceVerificationPageHandler)
		verify.POST("/authorize", s.authorizeDeviceHandler)
	}
}

// Start runs the HTTP server, blocking until it stops or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
