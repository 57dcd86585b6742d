package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/wagers/internal/db"
	"github.com/nkiryanov/wagers/internal/handlers"
	"github.com/nkiryanov/wagers/internal/logger"
	"github.com/nkiryanov/wagers/internal/metrics"
	"github.com/nkiryanov/wagers/internal/repository/postgres"
	"github.com/nkiryanov/wagers/internal/service/audit"
	"github.com/nkiryanov/wagers/internal/service/auth"
	"github.com/nkiryanov/wagers/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/wagers/internal/service/bet"
	"github.com/nkiryanov/wagers/internal/service/funding"
	"github.com/nkiryanov/wagers/internal/service/settlement"
	"github.com/nkiryanov/wagers/internal/service/user"
	"github.com/nkiryanov/wagers/internal/service/wager"
	"github.com/nkiryanov/wagers/internal/session"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	auditor *audit.Auditor
	pool    *pgxpool.Pool
	cache   *redis.Client
	logger  logger.Logger
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	cache, err := session.NewRedisClient(ctx, c.RedisURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: c.SecretKey}, storage.Refresh())
	if err != nil {
		pool.Close()
		_ = cache.Close()
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}
	userService := user.NewService(user.DefaultHasher, storage)
	authService, err := auth.NewService(auth.Config{Revocations: session.NewRevocationStore(cache)}, tokenManager, userService)
	if err != nil {
		pool.Close()
		_ = cache.Close()
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	auditor := audit.New(storage, c.AuditInterval, m, logger)

	mux := handlers.NewRouter(handlers.Services{
		Auth:       authService,
		Users:      userService,
		Wagers:     wager.NewService(storage, logger),
		Bets:       bet.NewService(storage, m, logger),
		Settlement: settlement.NewService(storage, c.CommissionRate, m, logger),
		Funding:    funding.NewService(storage, m, logger),
		Audit:      auditor,
	}, handlers.Config{
		WebhookSecret: c.PaystackSecretKey,
		Cache:         cache,
		Metrics:       m.Handler(),
	}, logger)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		auditor:    auditor,
		pool:       pool,
		cache:      cache,
		logger:     logger,
	}, nil
}

// Run starts http server and ledger auditor. Both are stopped gracefully on context cancellation.
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.close()

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	auditorStopped := s.auditor.Run(srvCtx)

	idleConnsClosed := make(chan struct{})
	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-auditorStopped

	return err
}

func (s *ServerApp) close() {
	if err := s.cache.Close(); err != nil {
		s.logger.Warn("Failed to close redis client", "error", err)
	}
	s.pool.Close()
}
