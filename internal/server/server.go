package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Dmitryqr/defect-detection-website/internal/config"
	"github.com/Dmitryqr/defect-detection-website/internal/handler"
	"github.com/Dmitryqr/defect-detection-website/internal/repository"
	"github.com/Dmitryqr/defect-detection-website/internal/service"
	"github.com/Dmitryqr/defect-detection-website/internal/session"
	"github.com/Dmitryqr/defect-detection-website/web"
)

type Server struct {
	httpServer *http.Server
	service    service.AnalysisService
	store      session.Storage
	cfg        *config.Config
	log        *zap.Logger
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Server, error) {
	store, err := NewStorage(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create session storage: %w", err)
	}

	analysisService := service.NewAnalysisService(store, cfg, log)

	h := handler.NewHandler(analysisService, cfg, log)

	router, err := NewRouter(h, cfg, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	server := &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			MaxHeaderBytes:    1 << 20, // 1 MB
		},
		service: analysisService,
		store:   store,
		cfg:     cfg,
		log:     log,
	}

	log.Info("Server created successfully",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("session_backend", cfg.Session.Backend),
		zap.Bool("demo_mode", cfg.App.DemoMode))

	return server, nil
}

// NewRouter registers every route of the site on a new gin engine.
func NewRouter(h *handler.Handler, cfg *config.Config, log *zap.Logger) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), handler.Logger(log))

	tmpl, err := template.ParseFS(web.Templates(), "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	router.GET("/health", h.HealthCheck)
	router.StaticFS("/static", http.FS(web.Static()))

	pages := router.Group("/", handler.Session(cfg.Session.CookieName, cfg.Session.CookieSecure))
	{
		pages.GET("/", h.GetUI)
		pages.GET("/upload", h.GetUpload)
		pages.GET("/results", h.GetResults)
		pages.GET("/results/chart.png", h.GetChart)
		pages.GET("/results/report.md", h.GetReport)
	}

	api := router.Group("/api", handler.Session(cfg.Session.CookieName, cfg.Session.CookieSecure))
	{
		api.POST("/select", h.SelectImage)
		api.POST("/analyze", h.StartAnalysis)
		api.GET("/state", h.GetState)
		api.GET("/events", h.Events)
	}

	return router, nil
}

// NewStorage opens the session storage backend named in the config.
func NewStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (session.Storage, error) {
	switch cfg.Session.Backend {
	case "", "memory":
		return session.NewMemoryStore(), nil

	case "sqlite":
		path := cfg.Session.SQLitePath
		if path == "" {
			var err error
			if path, err = session.DefaultSQLitePath(); err != nil {
				return nil, err
			}
		}
		store, err := session.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		log.Info("Using SQLite session storage", zap.String("path", store.Path()))
		return store, nil

	case "s3":
		repo, err := repository.NewS3Repository(ctx, &cfg.S3, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 repository: %w", err)
		}
		return session.NewS3Store(repo), nil

	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}

func (s *Server) Run() error {
	s.log.Info("Server is running",
		zap.String("host", s.cfg.Server.Host),
		zap.String("port", s.cfg.Server.Port),
		zap.String("address", s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RunJanitor expires idle pages and session payloads until ctx ends.
func (s *Server) RunJanitor(ctx context.Context) error {
	return session.RunJanitor(ctx, s.service, s.cfg.Session.TTL, s.cfg.Session.SweepEvery, s.log)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")

	err := s.httpServer.Shutdown(ctx)
	s.service.Close()
	if cerr := s.store.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("failed to close session storage: %w", cerr))
	}
	return err
}
