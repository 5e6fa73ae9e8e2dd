package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/BuggPlayer/homeservice-iam/internal/core/port"
	"github.com/BuggPlayer/homeservice-iam/internal/infra/config"
	"github.com/BuggPlayer/homeservice-iam/internal/infra/database"
	kafkainfra "github.com/BuggPlayer/homeservice-iam/internal/infra/kafka"
	"github.com/BuggPlayer/homeservice-iam/internal/infra/logger"
	redisinfra "github.com/BuggPlayer/homeservice-iam/internal/infra/redis"
	"github.com/BuggPlayer/homeservice-iam/internal/infra/security"
	"github.com/BuggPlayer/homeservice-iam/internal/infra/telemetry"
	postgresrepo "github.com/BuggPlayer/homeservice-iam/internal/repository/postgres"
	redisrepo "github.com/BuggPlayer/homeservice-iam/internal/repository/redis"
	"github.com/BuggPlayer/homeservice-iam/internal/transport/http/middleware"
	"github.com/BuggPlayer/homeservice-iam/internal/transport/http/routes"
	"github.com/BuggPlayer/homeservice-iam/internal/usecase"
)

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	tracer   *telemetry.TracerProvider
	producer *kafkainfra.Producer
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	var tracer *telemetry.TracerProvider
	if cfg.Telemetry.OTLPEndpoint != "" {
		tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			log.Warn("failed to init tracing, continuing without it", zap.Error(err))
			tracer = nil
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	verifier, err := security.NewTokenVerifier(cfg.JWT.SigningSecret, cfg.JWT.Issuer, cfg.JWT.Audience)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init token verifier: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)

	if err := usecase.BootstrapCatalog(ctx, repos.Permissions, log); err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("bootstrap permission catalog: %w", err)
	}

	var decisionCache port.DecisionCache
	if cfg.Cache.Enabled {
		decisionCache = redisrepo.NewDecisionCache(redisClient.Client(), cfg.Cache.KeyPrefix, cfg.Cache.TTL)
	}

	var eventPublisher port.EventPublisher
	var kafkaProducer *kafkainfra.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			kafkaProducer = nil
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	accessMetrics, err := telemetry.NewAccessMetrics(nil)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		if kafkaProducer != nil {
			_ = kafkaProducer.Close()
		}
		return nil, fmt.Errorf("init access metrics: %w", err)
	}

	accessService := usecase.NewAccessService(repos.Grants).
		WithLogger(log).
		WithMetrics(accessMetrics)
	if decisionCache != nil {
		accessService = accessService.WithCache(decisionCache)
	}

	roleService := usecase.NewRoleService(repos.Roles, repos.Permissions, repos.Grants, repos.Users, accessService).
		WithLogger(log).
		WithEvents(eventPublisher)
	if decisionCache != nil {
		roleService = roleService.WithCache(decisionCache)
	}

	permissionService := usecase.NewPermissionService(repos.Permissions, accessService)

	approvalService := usecase.NewApprovalService(repos.Approvals, repos.Roles, repos.Users, repos.ApprovalTx()).
		WithLogger(log).
		WithEvents(eventPublisher)
	if decisionCache != nil {
		approvalService = approvalService.WithCache(decisionCache)
	}

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		if kafkaProducer != nil {
			_ = kafkaProducer.Close()
		}
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:   cfg,
		Logger:   log,
		Metrics:  httpMetrics,
		Verifier: verifier,
		Database: pool,
		Cache:    redisClient,
		Services: routes.ServiceSet{
			Access:      accessService,
			Roles:       roleService,
			Permissions: permissionService,
			Approvals:   approvalService,
		},
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		tracer:   tracer,
		producer: kafkaProducer,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.producer != nil {
			if err := a.producer.Close(); err != nil {
				a.logger.Warn("close kafka producer failed", zap.Error(err))
			}
		}
	}()
	defer func() {
		if a.tracer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = a.tracer.Shutdown(shutdownCtx)
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting IAM API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
