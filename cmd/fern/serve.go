package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/repositories"
	"github.com/Ramsey-B/fern/pkg/cleansing"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/redis"
	cleansingroutes "github.com/Ramsey-B/fern/pkg/routes/cleansing"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the cleansing HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(runCtx, cfg)
		},
	}
}

// components holds everything the startup sequence brings up
type components struct {
	db        database.DB
	cache     *redis.Client
	oracle    matching.Oracle
	producer  *kafka.Producer
	graph     *graph.Client
	verifier  middleware.Verifier
	notifiers []cleansing.Notifier
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, flush, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer flush()

	shutdownTracing, err := tracing.Setup(ctx, cfg.AppName, tracing.ExporterConfig{
		Enabled:  cfg.OTLPEnabled,
		Endpoint: cfg.OTLPEndpoint,
		Protocol: cfg.OTLPProtocol,
		Insecure: cfg.OTLPInsecure,
		Timeout:  cfg.OTLPTimeout,
	})
	if err != nil {
		return err
	}

	checker := health.NewChecker(cfg.Version)
	c := &components{}
	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	registerDependencies(boot, cfg, c, checker, logger)

	if err := boot.Start(ctx); err != nil {
		logger.WithError(err).Error("startup failed")
		_ = boot.Stop(context.Background())
		return err
	}

	store := repositories.NewCleansingStore(c.db, logger)
	service := cleansing.NewService(logger, store, newCascade(c.oracle, cfg, logger), c.notifiers...).
		WithDefaultThreshold(cfg.DefaultConfidenceThreshold)

	container, err := newContainer(cfg.AppName, logger)
	if err != nil {
		_ = boot.Stop(context.Background())
		return err
	}
	if err := cleansingroutes.RegisterDependencies(container, service, store, logger); err != nil {
		_ = boot.Stop(context.Background())
		return err
	}

	e := newEcho(cfg, logger, checker)
	api := e.Group("/api/v1/cleansing/jobs",
		middleware.Failure(logger),
		middleware.Authentication(logger, c.verifier),
		middleware.Container(container.GetContainerID()),
	)
	cleansingroutes.Register(api)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           e,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("HTTP server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()
	checker.SetReady(true)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err = <-serverErr:
		logger.WithError(err).Error("HTTP server stopped")
	}
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.WithError(shutdownErr).Error("failed to shut down HTTP server")
	}
	if stopErr := boot.Stop(shutdownCtx); stopErr != nil {
		logger.WithError(stopErr).Error("failed to stop dependencies")
	}
	if traceErr := shutdownTracing(shutdownCtx); traceErr != nil {
		logger.WithError(traceErr).Warn("failed to flush traces")
	}

	return err
}

func registerDependencies(boot *startup.Startup, cfg *config.Config, c *components, checker *health.Checker, logger ectologger.Logger) {
	boot.AddDependency(startup.Func{
		Name: "database",
		StartFunc: func(ctx context.Context) error {
			conn, err := openDatabase(ctx, databaseConfig(cfg), cfg, logger)
			if err != nil {
				return err
			}
			c.db = conn
			checker.Register("database", health.PingFunc(conn.PingContext), true)
			return nil
		},
		StopFunc: func(ctx context.Context) error {
			if c.db == nil {
				return nil
			}
			return c.db.Close()
		},
	})

	oracleRequires := []string{}
	if cfg.OracleCacheEnabled {
		oracleRequires = append(oracleRequires, "redis")
		boot.AddDependency(startup.Func{
			Name: "redis",
			StartFunc: func(ctx context.Context) error {
				client, err := redis.NewClient(ctx, redis.Config{
					Host:     cfg.RedisHost,
					Port:     cfg.RedisPort,
					Password: cfg.RedisPassword,
					DB:       cfg.RedisDB,
				}, logger)
				if err != nil {
					return err
				}
				c.cache = client
				checker.Register("redis", client, false)
				return nil
			},
			StopFunc: func(ctx context.Context) error {
				if c.cache == nil {
					return nil
				}
				return c.cache.Close()
			},
		})
	}

	boot.AddDependency(startup.Func{
		Name:     "oracle",
		Requires: oracleRequires,
		StartFunc: func(ctx context.Context) error {
			o, err := newOracle(ctx, cfg, c.cache, logger)
			if err != nil {
				return err
			}
			if o == nil {
				logger.Info("no oracle provider configured, semantic matching disabled")
			}
			c.oracle = o
			return nil
		},
	})

	if cfg.KafkaEnabled {
		boot.AddDependency(startup.Func{
			Name: "kafka",
			StartFunc: func(ctx context.Context) error {
				c.producer = kafka.NewProducer(kafka.ProducerConfig{
					Brokers:        cfg.KafkaBrokers,
					Topic:          cfg.KafkaOutputTopic,
					BatchSize:      cfg.KafkaBatchSize,
					BatchTimeout:   time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
					RequiredAcks:   cfg.KafkaRequiredAcks,
					Compression:    cfg.KafkaCompression,
					PublishMatches: cfg.KafkaPublishMatches,
				}, logger)
				c.notifiers = append(c.notifiers, c.producer)
				return nil
			},
			StopFunc: func(ctx context.Context) error {
				if c.producer == nil {
					return nil
				}
				return c.producer.Close()
			},
		})
	}

	if cfg.GraphEnabled {
		boot.AddDependency(startup.Func{
			Name: "graph",
			StartFunc: func(ctx context.Context) error {
				client, err := graph.NewClient(graph.Config{
					Host:     cfg.GraphDBHost,
					Port:     cfg.GraphDBPort,
					Username: cfg.GraphDBUser,
					Password: cfg.GraphDBPassword,
					Database: cfg.GraphDBName,
				}, logger)
				if err != nil {
					return err
				}
				if err := client.Ping(ctx); err != nil {
					_ = client.Close(ctx)
					return fmt.Errorf("failed to reach graph database: %w", err)
				}
				c.graph = client
				c.notifiers = append(c.notifiers, graph.NewProjector(client, logger))
				checker.Register("graph", client, false)
				return nil
			},
			StopFunc: func(ctx context.Context) error {
				if c.graph == nil {
					return nil
				}
				return c.graph.Close(ctx)
			},
		})
	}

	if cfg.AuthEnabled {
		boot.AddDependency(startup.Func{
			Name: "auth",
			StartFunc: func(ctx context.Context) error {
				verifier, err := middleware.NewOIDCVerifier(ctx, cfg.AuthIssuerURL, cfg.AuthClientID)
				if err != nil {
					return err
				}
				c.verifier = verifier
				return nil
			},
		})
	}
}

// newEcho builds the router with the shared middleware chain, health and
// metrics endpoints. API groups are mounted by the caller.
func newEcho(cfg *config.Config, logger ectologger.Logger, checker *health.Checker) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(echomiddleware.Recover())
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization, middleware.HeaderUserID},
	}))
	e.Use(echomiddleware.BodyLimit(cfg.BodyLimit))

	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}
