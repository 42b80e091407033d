// Package bootstrap wires the service components together for the API server
// and the command-line tool.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/sykell/link-health/internal/alert"
	"github.com/sykell/link-health/internal/config"
	"github.com/sykell/link-health/internal/db"
	"github.com/sykell/link-health/internal/lock"
	"github.com/sykell/link-health/internal/logger"
	"github.com/sykell/link-health/internal/metrics"
	"github.com/sykell/link-health/internal/notify"
	"github.com/sykell/link-health/internal/probe"
	"github.com/sykell/link-health/internal/scanner"
	"github.com/sykell/link-health/internal/service"
)

const (
	redisPingTimeout = 3 * time.Second
	lockKeyPrefix    = "linkhealth:"
)

// Components holds the wired service graph.
type Components struct {
	Config   *config.Config
	DB       *gorm.DB
	Links    *service.LinkStore
	Notifier notify.Notifier
	Scanner  *scanner.Scanner
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry

	redis *redis.Client
}

// CreateLogger creates the service logger from configuration.
func CreateLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Server.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(logger.String("service", "link-health")), nil
}

// Build connects to the database, picks a lock backend and assembles the
// scanner with its prober, alert engine and notifier.
func Build(cfg *config.Config, log logger.Logger) (*Components, error) {
	dbConn, err := db.InitDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database connection: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	renderer, err := notify.NewRenderer(notify.RendererConfig{
		AppURL:        cfg.Email.AppURL,
		SupportEmail:  cfg.Email.SupportEmail,
		AlertCooldown: cfg.Scanner.AlertCooldown,
	})
	if err != nil {
		return nil, err
	}
	notifier := notify.New(cfg.Email, renderer, log)

	links := service.NewLinkStore(dbConn)
	locker, redisClient := setupLocker(cfg.Redis, log)

	prober := probe.New(probe.Config{
		Timeout:   cfg.Scanner.ProbeTimeout,
		UserAgent: cfg.Scanner.UserAgent,
	})
	engine := alert.NewEngine(notifier, links, cfg.Scanner.AlertCooldown, log, alert.WithMetrics(m))
	s := scanner.New(links, prober, engine, locker, cfg.Scanner, log, scanner.WithMetrics(m))

	return &Components{
		Config:   cfg,
		DB:       dbConn,
		Links:    links,
		Notifier: notifier,
		Scanner:  s,
		Metrics:  m,
		Registry: reg,
		redis:    redisClient,
	}, nil
}

// Close releases the database and Redis connections.
func (c *Components) Close() error {
	if c.redis != nil {
		_ = c.redis.Close()
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// setupLocker returns a Redis-backed locker when Redis is configured and
// reachable, otherwise an in-process one.
func setupLocker(cfg config.RedisConfig, log logger.Logger) (lock.Locker, *redis.Client) {
	if cfg.Address == "" {
		log.Info("Redis not configured, using in-process scan locks")
		return lock.NewMemoryLocker(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis not available, using in-process scan locks",
			logger.String("redis_address", cfg.Address),
			logger.Error(err),
		)
		_ = client.Close()
		return lock.NewMemoryLocker(), nil
	}

	log.Info("Redis scan locks enabled", logger.String("redis_address", cfg.Address))
	return lock.NewRedisLocker(client, lockKeyPrefix), client
}
