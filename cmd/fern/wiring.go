package main

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/Gobusters/ectoinject/loglevel"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/db"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/oracle"
	"github.com/Ramsey-B/fern/pkg/redis"
)

// newContainer creates the dependency container the API handlers resolve from,
// routing its log output through logger
func newContainer(id string, logger ectologger.Logger) (ectocontainer.DIContainer, error) {
	containerCfg := ectoinject.DefaultContainerConfig
	containerCfg.ID = id
	containerCfg.LoggerConfig = &ectocontainer.DIContainerLoggerConfig{
		Prefix:   "ectoinject",
		LogLevel: loglevel.WARN,
		Enabled:  true,
		LogFunc: func(ctx context.Context, level, msg string) {
			if level == loglevel.WARN {
				logger.WithContext(ctx).Warn(msg)
				return
			}
			logger.WithContext(ctx).Debug(msg)
		},
	}
	return ectoinject.NewDIContainer(containerCfg)
}

func databaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		Driver:          cfg.DatabaseDriver,
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		UserName:        cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		Path:            cfg.DatabasePath,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}
}

// openDatabase connects and applies the embedded migrations for the driver
func openDatabase(ctx context.Context, dbCfg database.Config, cfg *config.Config, logger ectologger.Logger) (database.DB, error) {
	conn, err := database.Connect(ctx, dbCfg, logger)
	if err != nil {
		return nil, err
	}

	ms := database.NewMigrationService(logger, db.Migrations, &database.MigrationConfig{
		Dir:          db.Dir(conn.DriverName()),
		Version:      cfg.DatabaseMigrationVersion,
		Force:        cfg.DatabaseMigrationForce,
		AutoRollback: cfg.DatabaseMigrationAutoRollback,
	})
	if err := ms.Migrate(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return conn, nil
}

// newOracle builds the configured completion client, cached in Redis when
// enabled. A nil oracle disables semantic matching.
func newOracle(ctx context.Context, cfg *config.Config, cache *redis.Client, logger ectologger.Logger) (matching.Oracle, error) {
	client, err := oracle.New(ctx, oracle.Config{
		Provider:  cfg.OracleProvider,
		APIKey:    cfg.OracleAPIKey,
		Model:     cfg.OracleModel,
		BaseURL:   cfg.OracleBaseURL,
		MaxTokens: cfg.OracleMaxTokens,
		Timeout:   cfg.OracleTimeout,
	})
	if err != nil || client == nil {
		return nil, err
	}

	if cache != nil {
		logger.Infof("Caching %s oracle completions for %s", cfg.OracleProvider, cfg.OracleCacheTTL)
		return oracle.NewCachedOracle(client, cache, cfg.OracleCacheTTL, logger), nil
	}
	return client, nil
}

func newCascade(o matching.Oracle, cfg *config.Config, logger ectologger.Logger) *matching.Cascade {
	matchCfg := matching.DefaultConfig()
	matchCfg.OracleTimeout = cfg.OracleTimeout
	return matching.DefaultCascade(o, logger, matchCfg)
}
