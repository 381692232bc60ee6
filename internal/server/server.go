package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/kode4food/swfcatalog"
	"github.com/kode4food/swfcatalog/pkg/api"
	"github.com/kode4food/swfcatalog/pkg/log"
	"github.com/kode4food/swfcatalog/pkg/util"
)

type (
	// Server implements the backend router in front of the workflow
	// runtime, the scaffolder, and the catalog provider's sinks
	Server struct {
		runtimeURL    string
		scaffolderURL string
		provider      string
		httpClient    *http.Client
		broker        EventBroker
		templates     TemplateSource
		archive       TemplateSource
		providers     ProviderSource
		logger        *slog.Logger
		sockets       util.Set[*Client]
		mu            sync.Mutex
	}

	// Options configures a Server
	Options struct {
		RuntimeURL    string
		ScaffolderURL string
		Provider      string
		HTTPClient    *http.Client
		Broker        EventBroker
		Templates     TemplateSource
		Archive       TemplateSource
		Providers     ProviderSource
		Logger        *slog.Logger
	}

	// EventBroker publishes events and manages subscribers
	EventBroker interface {
		Publish(context.Context, *api.EventParams) error
		Subscribe(...api.EventSubscriber)
		Unsubscribe(api.EventSubscriber)
	}

	// TemplateSource returns the entities a provider last submitted
	TemplateSource interface {
		Entities(context.Context, string) ([]*api.DeferredEntity, error)
	}

	// ProviderSource lists the providers that have stored a snapshot
	ProviderSource interface {
		Providers(context.Context) ([]string, error)
	}
)

const defaultUpstreamTimeout = 30 * time.Second

var (
	ErrBrokerRequired     = errors.New("event broker is required")
	ErrUpstreamFailed     = errors.New("upstream request failed")
	ErrUpstreamStatus     = errors.New("upstream returned error status")
	ErrTemplatesDisabled  = errors.New("catalog store not configured")
	ErrInvalidEventBody   = errors.New("event payload must be JSON")
	ErrListTemplates      = errors.New("failed to list templates")
	ErrListProviders      = errors.New("failed to list providers")
	ErrUnsupportedTopic   = errors.New("topic cannot be published")
	ErrPublishEvent       = errors.New("failed to publish event")
	ErrInvalidProcessList = errors.New("invalid workflow list")
)

// NewServer creates a backend router server
func NewServer(opts Options) (*Server, error) {
	if opts.Broker == nil {
		return nil, ErrBrokerRequired
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultUpstreamTimeout}
	}
	return &Server{
		runtimeURL:    strings.TrimRight(opts.RuntimeURL, "/"),
		scaffolderURL: strings.TrimRight(opts.ScaffolderURL, "/"),
		provider:      opts.Provider,
		httpClient:    client,
		broker:        opts.Broker,
		templates:     opts.Templates,
		archive:       opts.Archive,
		providers:     opts.Providers,
		logger:        logger,
		sockets:       util.Set[*Client]{},
	}, nil
}

// SetupRoutes configures and returns the HTTP router with all endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return s.logger
		}),
	))

	router.GET("/health", s.handleHealth)

	// Workflow runtime proxy
	router.GET("/items", s.listItems)
	router.GET("/items/:swfId", s.getItem)

	// Scaffolder actions
	router.GET("/actions", s.listActions)
	router.POST("/actions/:actionId", s.executeAction)

	// Catalog
	catalog := router.Group("/catalog")
	{
		catalog.GET("/templates", s.listTemplates)
		catalog.GET("/providers", s.listProviders)
		catalog.GET("/ws", s.handleWebSocket)
	}

	router.POST("/events/:topic", s.publishEvent)

	return router
}

// CloseWebSockets closes all active WebSocket connections
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := s.sockets.Items()
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Status:  api.HealthOK,
		Service: swfcatalog.Name,
		Version: swfcatalog.Version,
	})
}

func (s *Server) listTemplates(c *gin.Context) {
	if s.templates == nil && s.archive == nil {
		c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{
			Error:  ErrTemplatesDisabled.Error(),
			Status: http.StatusServiceUnavailable,
		})
		return
	}

	entities, err := s.readTemplates(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrListTemplates, err),
			Status: http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, api.TemplatesResponse{
		Provider: s.provider,
		Entities: entities,
		Count:    len(entities),
	})
}

// readTemplates consults the store first and falls back to the archive
// when the store is empty or unreachable
func (s *Server) readTemplates(
	ctx context.Context,
) ([]*api.DeferredEntity, error) {
	var res []*api.DeferredEntity
	var found bool
	var lastErr error
	for _, src := range []TemplateSource{s.templates, s.archive} {
		if src == nil {
			continue
		}
		entities, err := src.Entities(ctx, s.provider)
		if err != nil {
			s.logger.Warn("Template source failed", log.Error(err))
			lastErr = err
			continue
		}
		if len(entities) > 0 {
			return entities, nil
		}
		if !found {
			res, found = entities, true
		}
	}
	if found {
		return res, nil
	}
	return nil, lastErr
}

func (s *Server) listProviders(c *gin.Context) {
	if s.providers == nil {
		c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{
			Error:  ErrTemplatesDisabled.Error(),
			Status: http.StatusServiceUnavailable,
		})
		return
	}

	names, err := s.providers.Providers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrListProviders, err),
			Status: http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, api.ProvidersResponse{
		Providers: names,
		Count:     len(names),
	})
}

func (s *Server) fetch(
	ctx context.Context, url string,
) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrUpstreamFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrUpstreamFailed, err)
	}
	return resp.StatusCode, body, nil
}

func upstreamError(c *gin.Context, err error) {
	c.JSON(http.StatusBadGateway, api.ErrorResponse{
		Error:  err.Error(),
		Status: http.StatusBadGateway,
	})
}
