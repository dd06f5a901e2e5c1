package http

// this is entry point of the admin http request handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"gitlab.com/distbuild.net/internal/core/ports/primary"
	"gitlab.com/distbuild.net/internal/core/ports/secondary"
	"gitlab.com/distbuild.net/internal/core/services/worker"
	"gitlab.com/distbuild.net/internal/handlers"
	"gitlab.com/distbuild.net/internal/handlers/builds"
	"gitlab.com/distbuild.net/internal/handlers/status"
	"gitlab.com/distbuild.net/internal/handlers/workers"
)

type ServiceProvider struct {
	workerService worker.IWorkerRegistrationService
	queue         status.QueueStats
	results       status.ResultSource
	reportRepo    secondary.ReportRepository
}

func NewServiceProvider(
	workerService worker.IWorkerRegistrationService,
	queue status.QueueStats,
	results status.ResultSource,
	reportRepo secondary.ReportRepository,
) *ServiceProvider {
	return &ServiceProvider{
		workerService: workerService,
		queue:         queue,
		results:       results,
		reportRepo:    reportRepo,
	}
}

type Server struct {
	router          *mux.Router
	Port            int
	ServiceName     string
	ServiceProvider ServiceProvider
	logger          primary.Logger
	srv             *http.Server
}

func NewServer(port int, serviceName string, serviceProvider ServiceProvider, logger primary.Logger) *Server {
	return &Server{
		Port:            port,
		ServiceName:     serviceName,
		ServiceProvider: serviceProvider,
		logger:          logger,
	}
}

func (s *Server) Init() error {
	r := mux.NewRouter()
	r.Use(handlers.New(s.logger).LoggingMiddleware)

	workers.NewHandler(s.ServiceProvider.workerService).Register(r)
	status.NewHandler(s.ServiceProvider.queue, s.ServiceProvider.results).Register(r)
	if s.ServiceProvider.reportRepo != nil {
		builds.NewHandler(s.ServiceProvider.reportRepo, s.logger).Register(r)
	}
	s.router = r
	return nil
}

// Handler returns the configured router; Init must have been called
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the port and serves in the background. A bind failure is returned.
func (s *Server) Start(_ context.Context) error {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to start admin http server: %w", err)
	}

	// Start the server in a goroutine
	go func() {
		s.logger.Info("Admin server listening", "service", s.ServiceName, "addr", ln.Addr().String())
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Admin server error", "error", err)
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("Shutting down http server...")
	if s.srv == nil {
		return
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Error("Admin server forced to shutdown", "error", err)
	}
}
