// Package server provides an embeddable HTTP shell around the wfkernel
// engine: gin wiring, component bring-up, and graceful shutdown. The engine
// core (C1-C7) has no dependency on this package; it is runnable as a
// library on its own. This package exists so the engine is runnable
// end-to-end as a standalone process, per spec.md §1's "ambient server
// shell" carve-out.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uptrace/bun"

	"github.com/smilemakc/wfkernel/internal/admission"
	"github.com/smilemakc/wfkernel/internal/application/caseservice"
	"github.com/smilemakc/wfkernel/internal/application/importer"
	"github.com/smilemakc/wfkernel/internal/caseexec"
	"github.com/smilemakc/wfkernel/internal/config"
	"github.com/smilemakc/wfkernel/internal/domain/repository"
	"github.com/smilemakc/wfkernel/internal/infrastructure/cache"
	"github.com/smilemakc/wfkernel/internal/infrastructure/logger"
	"github.com/smilemakc/wfkernel/internal/infrastructure/storage"
	"github.com/smilemakc/wfkernel/internal/infrastructure/tracing"
	"github.com/smilemakc/wfkernel/internal/observer"
	"github.com/smilemakc/wfkernel/internal/pattern"
	"github.com/smilemakc/wfkernel/internal/receipt"
	"github.com/smilemakc/wfkernel/internal/scheduler"
	"github.com/smilemakc/wfkernel/internal/snapshot"
)

// Server is the wfkernel HTTP server: a thin shell wiring the Snapshot
// Store (C1), Admission Gate (C2), Pattern Registry (C3), Tick Scheduler
// (C4), Case Executor (C7), and their cold-path persistence behind a gin
// router.
type Server struct {
	config     *config.Config
	logger     *logger.Logger
	router     *gin.Engine
	httpServer *http.Server

	db         *bun.DB
	redisCache *cache.RedisCache
	tracer     *tracing.Provider

	promotionGate snapshot.PromotionGate

	snapshotStore *snapshot.Store
	admissionGate *admission.Gate
	patternRegistry *pattern.Registry

	guardCache   *scheduler.GuardCache
	evaluator    *scheduler.Evaluator
	timerWheel   *scheduler.TimerWheel
	timerAdapter *scheduler.TimerAdapter
	tickSched    *scheduler.Scheduler

	caseExecutor *caseexec.Executor
	verifier     *receipt.Verifier
	observers    *observer.Manager
	yamlImporter *importer.YAMLImporter
	cases        *caseservice.Service

	snapshotRepo repository.SnapshotRepository
	caseRepo     repository.CaseRepository
	foldRepo     repository.FoldRepository
}

// New creates a new server with the given options.
func New(opts ...Option) (*Server, error) {
	s := &Server{}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if s.config == nil {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		s.config = cfg
	}

	if s.logger == nil {
		s.logger = logger.New(s.config.Logging)
		logger.SetDefault(s.logger)
	}

	if err := s.initComponents(); err != nil {
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Run starts the server and blocks until a shutdown signal is received.
func (s *Server) Run() error {
	s.logger.Info("starting wfkernel server",
		"host", s.config.Server.Host,
		"port", s.config.Server.Port,
	)

	if s.timerWheel != nil {
		s.timerWheel.Start()
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- s.httpServer.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case sig := <-shutdown:
		s.logger.Info("server shutdown initiated", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		return s.Shutdown(ctx)
	}
}

// Shutdown gracefully stops the server and its collaborators.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.timerWheel != nil {
		s.logger.Info("stopping timer wheel")
		s.timerWheel.Stop()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("graceful shutdown failed", "error", err)
		if err := s.httpServer.Close(); err != nil {
			s.logger.Error("server close failed", "error", err)
		}
	}

	if s.tracer != nil {
		if err := s.tracer.Shutdown(ctx); err != nil {
			s.logger.Error("tracer shutdown failed", "error", err)
		}
	}

	if s.redisCache != nil {
		if err := s.redisCache.Close(); err != nil {
			s.logger.Error("redis cache close failed", "error", err)
		}
	}

	if s.db != nil {
		if err := storage.Close(s.db); err != nil {
			s.logger.Error("database close failed", "error", err)
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for adding custom endpoints.
func (s *Server) Router() *gin.Engine { return s.router }

// Config returns the server configuration.
func (s *Server) Config() *config.Config { return s.config }

// Logger returns the server logger.
func (s *Server) Logger() *logger.Logger { return s.logger }

// DB returns the database connection.
func (s *Server) DB() *bun.DB { return s.db }

// SnapshotStore returns the C1 Snapshot Store.
func (s *Server) SnapshotStore() *snapshot.Store { return s.snapshotStore }

// AdmissionGate returns the C2 Admission Gate.
func (s *Server) AdmissionGate() *admission.Gate { return s.admissionGate }

// PatternRegistry returns the C3 Pattern Registry.
func (s *Server) PatternRegistry() *pattern.Registry { return s.patternRegistry }

// Scheduler returns the C4 Tick Scheduler.
func (s *Server) Scheduler() *scheduler.Scheduler { return s.tickSched }

// CaseExecutor returns the C7 Case Executor.
func (s *Server) CaseExecutor() *caseexec.Executor { return s.caseExecutor }

// Cases returns the case-lifecycle orchestration service.
func (s *Server) Cases() *caseservice.Service { return s.cases }

// ObserverManager returns the lifecycle-event fan-out manager.
func (s *Server) ObserverManager() *observer.Manager { return s.observers }

// YAMLImporter returns the spec ingestion front door.
func (s *Server) YAMLImporter() *importer.YAMLImporter { return s.yamlImporter }
