package server

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/smilemakc/wfkernel/internal/admission"
	"github.com/smilemakc/wfkernel/internal/application/caseservice"
	"github.com/smilemakc/wfkernel/internal/application/importer"
	"github.com/smilemakc/wfkernel/internal/caseexec"
	"github.com/smilemakc/wfkernel/internal/infrastructure/cache"
	"github.com/smilemakc/wfkernel/internal/infrastructure/storage"
	"github.com/smilemakc/wfkernel/internal/infrastructure/tracing"
	"github.com/smilemakc/wfkernel/internal/observer"
	"github.com/smilemakc/wfkernel/internal/pattern"
	"github.com/smilemakc/wfkernel/internal/receipt"
	"github.com/smilemakc/wfkernel/internal/scheduler"
	"github.com/smilemakc/wfkernel/internal/snapshot"
)

func (s *Server) initComponents() error {
	if err := s.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := s.initRedisCache(); err != nil {
		s.logger.Warn("redis cache not available", "error", err)
	}

	if err := s.initTracing(); err != nil {
		s.logger.Warn("tracing not available", "error", err)
	}

	s.initRepositories()
	s.initSnapshotStore()
	s.initAdmissionGate()
	s.initPatternRegistry()
	s.initScheduler()
	s.initCaseExecutor()
	s.initObserverManager()
	s.initImporter()
	s.initCaseService()

	return nil
}

func (s *Server) initDatabase() error {
	dbConfig := &storage.Config{
		DSN:             s.config.Database.URL,
		MaxOpenConns:    s.config.Database.MaxConnections,
		MaxIdleConns:    s.config.Database.MinConnections,
		ConnMaxLifetime: s.config.Database.MaxConnLifetime,
		ConnMaxIdleTime: s.config.Database.MaxIdleTime,
		Debug:           s.config.Logging.Level == "debug",
	}

	db, err := storage.NewDB(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	s.db = db
	s.logger.Info("database connected", "max_conns", s.config.Database.MaxConnections)
	return nil
}

func (s *Server) initRedisCache() error {
	redisCache, err := cache.NewRedisCache(s.config.Redis)
	if err != nil {
		return fmt.Errorf("failed to create redis cache: %w", err)
	}
	s.redisCache = redisCache
	s.logger.Info("redis cache connected")
	return nil
}

// initTracing wires the optional OTel observer described in SPEC_FULL §11:
// present but never required on the hot path. OTEL_ENABLED,
// OTEL_SERVICE_NAME and OTEL_EXPORTER_OTLP_ENDPOINT are read directly from
// the environment; Insecure is fixed at true and SampleRate at 1.0, and no
// other OTEL_* variable is read. The OTLP wire export itself is an explicit
// Non-goal and does not warrant a first-class config.TracingConfig section.
func (s *Server) initTracing() error {
	enabled, _ := strconv.ParseBool(os.Getenv("OTEL_ENABLED"))
	if !enabled {
		return nil
	}

	cfg := tracing.Config{
		Enabled:     true,
		ServiceName: envOr("OTEL_SERVICE_NAME", "wfkernel"),
		Endpoint:    envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		Insecure:    true,
		SampleRate:  1.0,
	}

	provider, err := tracing.NewProvider(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to create tracing provider: %w", err)
	}
	s.tracer = provider
	s.logger.Info("tracing enabled", "service_name", cfg.ServiceName, "endpoint", cfg.Endpoint)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Server) initRepositories() {
	s.snapshotRepo = storage.NewSnapshotRepository(s.db)
	s.caseRepo = storage.NewCaseRepository(s.db)
	s.foldRepo = storage.NewFoldRepository(s.db)
	s.logger.Info("repositories initialized")
}

func (s *Server) initSnapshotStore() {
	gate := s.promotionGate
	if gate == nil {
		gate = snapshot.NoInFlightConflict{}
	}
	s.snapshotStore = snapshot.NewStore(gate)
	if s.redisCache != nil {
		s.snapshotStore.SetCache(s.redisCache, s.config.Redis.CacheTTL)
		s.logger.Info("snapshot store cache tier attached", "ttl", s.config.Redis.CacheTTL)
	}
	s.logger.Info("snapshot store initialized")
}

func (s *Server) initAdmissionGate() {
	s.admissionGate = admission.New(admission.Limits{
		MaxInputBytes: s.config.Server.MaxBodySize,
	})
	s.logger.Info("admission gate initialized", "max_input_bytes", s.config.Server.MaxBodySize)
}

func (s *Server) initPatternRegistry() {
	s.patternRegistry = pattern.NewRegistry()
	s.logger.Info("pattern registry initialized", "patterns", 43)
}

func (s *Server) initScheduler() {
	s.guardCache = scheduler.NewGuardCache(s.config.Scheduler.GuardCacheSize)
	s.evaluator = scheduler.NewEvaluator(s.guardCache)

	s.timerWheel = scheduler.NewTimerWheel(s.config.Scheduler.TimerBuffer)
	s.timerAdapter = scheduler.NewTimerAdapter(s.timerWheel)

	s.tickSched = scheduler.New(scheduler.Config{
		W1Workers:    s.config.Scheduler.W1Workers,
		W1QueueDepth: s.config.Scheduler.W1QueueDepth,
		CancelGrace:  s.config.Scheduler.CancelGrace,
	})
	s.tickSched.OnDowngrade(func(evt scheduler.DowngradeEvent) {
		s.logger.Warn("op downgraded to W1", "op", evt.Op, "ticks", evt.Ticks)
	})

	s.logger.Info("scheduler initialized",
		"w1_workers", s.config.Scheduler.W1Workers,
		"w1_queue_depth", s.config.Scheduler.W1QueueDepth,
	)
}

func (s *Server) initCaseExecutor() {
	s.verifier = receipt.NewVerifier(s.config.Promotion.FoldTableCapacity)
	s.caseExecutor = caseexec.New(s.patternRegistry, s.evaluator, s.timerAdapter, caseexec.Config{
		MaxParallel:          s.config.Scheduler.W1Workers,
		DefaultMaxIterations: 1000,
		DefaultMaxDepth:      100,
	})
	s.logger.Info("case executor initialized")
}

func (s *Server) initObserverManager() {
	s.observers = observer.NewManager(
		observer.WithLogger(s.logger),
		observer.WithBufferSize(s.config.Observer.BufferSize),
	)

	if s.tracer != nil {
		if err := s.observers.Register(observer.NewTracingObserver()); err != nil {
			s.logger.Error("failed to register tracing observer", "error", err)
		} else {
			s.logger.Info("tracing observer registered")
		}
	}

	s.logger.Info("observer manager initialized", "observer_count", s.observers.Count())
}

func (s *Server) initImporter() {
	s.yamlImporter = importer.NewYAMLImporter(s.snapshotStore)
	s.logger.Info("yaml importer initialized")
}

func (s *Server) initCaseService() {
	s.cases = caseservice.New(s.snapshotStore, s.admissionGate, s.caseExecutor, s.observers, s.caseRepo, s.foldRepo)
	s.logger.Info("case service initialized")
}
