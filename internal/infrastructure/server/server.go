package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/nodegraph/internal/api/http"
	"github.com/GriffinCanCode/nodegraph/internal/api/middleware"
	"github.com/GriffinCanCode/nodegraph/internal/domain/catalog"
	"github.com/GriffinCanCode/nodegraph/internal/infrastructure/config"
	"github.com/GriffinCanCode/nodegraph/internal/infrastructure/logging"
	"github.com/GriffinCanCode/nodegraph/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/nodegraph/internal/shared/types"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and the two catalogs it serves
type Server struct {
	router     *gin.Engine
	http       *http.Server
	extensions *catalog.Service
	nodes      *catalog.Service
	logger     *logging.Logger
	config     *config.Config
	metrics    *monitoring.Metrics
}

// NewServer creates a server, building its logger from cfg
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return New(cfg, logger), nil
}

// New creates a server with an existing logger. Catalogs are not scanned
// until Start.
func New(cfg *config.Config, logger *logging.Logger) *Server {
	logger.Info("Initializing catalog server",
		zap.String("addr", cfg.Addr()),
		zap.String("extensions", cfg.Extensions.ExtensionsPath),
		zap.String("nodes", cfg.Extensions.NodesPath),
		zap.String("public_url", cfg.Extensions.PublicURL),
	)

	metrics := monitoring.NewMetrics()

	newCatalog := func(kind types.Kind, root string) *catalog.Service {
		return catalog.New(catalog.Options{
			Root:        root,
			Kind:        kind,
			BaseURL:     cfg.Extensions.PublicURL,
			AppVersion:  cfg.App.Version,
			MaxFileSize: cfg.Extensions.MaxFileBytes(),
			Watch:       cfg.Extensions.WatchEnabled,
			Debounce:    cfg.Extensions.WatchDebounce.Std(),
			Logger:      logger.Component("catalog", string(kind)),
			Metrics:     metrics,
		})
	}
	extensions := newCatalog(types.KindExtension, cfg.Extensions.ExtensionsPath)
	nodes := newCatalog(types.KindNode, cfg.Extensions.NodesPath)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	// module URLs escape nested paths as a single segment
	router.UseRawPath = true
	router.UnescapePathValues = true

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(logger.Named("http")))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	maxUpload := cfg.Extensions.MaxUploadBytes()
	apihttp.NewHandlers(extensions, metrics, logger.Component("api", string(types.KindExtension)), maxUpload).Register(router)
	apihttp.NewHandlers(nodes, metrics, logger.Component("api", string(types.KindNode)), maxUpload).Register(router)

	system := apihttp.NewSystem(cfg.App.Name, cfg.App.Version, metrics, extensions, nodes)
	router.GET("/", system.Root)
	router.GET("/health", system.Health)
	router.GET("/metrics", system.Metrics())

	logger.Info("Server initialized successfully")

	return &Server{
		router:     router,
		extensions: extensions,
		nodes:      nodes,
		logger:     logger,
		config:     cfg,
		metrics:    metrics,
		http: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the configured router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Extensions returns the extension catalog
func (s *Server) Extensions() *catalog.Service {
	return s.extensions
}

// Nodes returns the node catalog
func (s *Server) Nodes() *catalog.Service {
	return s.nodes
}

// Start creates the install roots, scans them and starts their watchers
func (s *Server) Start(ctx context.Context) error {
	if err := s.extensions.Start(ctx); err != nil {
		return fmt.Errorf("failed to start extension catalog: %w", err)
	}
	if err := s.nodes.Start(ctx); err != nil {
		s.extensions.Close()
		return fmt.Errorf("failed to start node catalog: %w", err)
	}
	return nil
}

// Run starts the catalogs and serves HTTP until ctx is canceled
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.Close()
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		return s.Close()
	}
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shut down http server: %w", err))
	}
	if err := s.extensions.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close extension catalog: %w", err))
	}
	if err := s.nodes.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close node catalog: %w", err))
	}

	// Sync logger before exit
	s.logger.Sync()

	return errors.Join(errs...)
}
