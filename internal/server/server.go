package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"flashcards/internal/handler"
	"flashcards/internal/middleware"
	"flashcards/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deps is everything the HTTP layer needs, built once in main.
type Deps struct {
	Auth          service.AuthService
	Flashcards    service.FlashcardService
	Study         service.StudyService
	Ingest        service.IngestService
	DB            handler.Pinger
	GeneratorInfo map[string]interface{}
	MaxUploadSize int64
	Logger        *zap.Logger
}

type Config struct {
	Port              string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

type Server struct {
	router *gin.Engine
	srv    *http.Server
	cfg    Config
	logger *zap.Logger
}

func NewServer(cfg Config, deps Deps) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(deps.Logger), cors())

	s := &Server{
		router: router,
		cfg:    cfg,
		logger: deps.Logger,
	}
	s.setupRoutes(deps)

	s.srv = &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	return s
}

func (s *Server) setupRoutes(deps Deps) {
	authHandler := handler.NewAuthHandler(deps.Auth, deps.Logger)
	flashcardHandler := handler.NewFlashcardHandler(deps.Flashcards, deps.Logger)
	studyHandler := handler.NewStudyHandler(deps.Study, deps.Logger)
	pdfHandler := handler.NewPDFHandler(deps.Ingest, deps.MaxUploadSize, deps.Logger)
	healthHandler := handler.NewHealthHandler(deps.DB, deps.GeneratorInfo, deps.Logger)

	s.router.GET("/health", healthHandler.Health)

	api := s.router.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.POST("/signup", authHandler.Signup)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/refresh", authHandler.Refresh)

	// Authenticated routes
	authRequired := api.Group("")
	authRequired.Use(middleware.AuthMiddleware(deps.Auth, deps.Logger))
	{
		authRequired.GET("/auth/me", authHandler.Me)

		authRequired.POST("/flashcards", flashcardHandler.Create)
		authRequired.GET("/flashcards", flashcardHandler.List)
		authRequired.GET("/flashcards/:id", flashcardHandler.Get)
		authRequired.PUT("/flashcards/:id", flashcardHandler.Update)
		authRequired.DELETE("/flashcards/:id", flashcardHandler.Delete)

		authRequired.POST("/study/start", studyHandler.Start)
		authRequired.POST("/study/end/:id", studyHandler.End)
		authRequired.GET("/study/sessions", studyHandler.List)
		authRequired.GET("/study/sessions/:id", studyHandler.Get)

		authRequired.POST("/pdf/upload", pdfHandler.Upload)
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "WWW-Authenticate, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", zap.String("address", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info("Server exited")
	return nil
}
