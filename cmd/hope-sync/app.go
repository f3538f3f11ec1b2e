package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	_ "github.com/lib/pq"

	"github.com/unicef/hope-sub007/config"
	"github.com/unicef/hope-sub007/internal/repositories/postgres"
	"github.com/unicef/hope-sub007/pkg/events"
	"github.com/unicef/hope-sub007/pkg/graph"
	"github.com/unicef/hope-sub007/pkg/grievance"
	"github.com/unicef/hope-sub007/pkg/jobs"
	"github.com/unicef/hope-sub007/pkg/lock"
	"github.com/unicef/hope-sub007/pkg/migration"
	"github.com/unicef/hope-sub007/pkg/platform/database"
	"github.com/unicef/hope-sub007/pkg/platform/logging"
	"github.com/unicef/hope-sub007/pkg/platform/tracing"
	"github.com/unicef/hope-sub007/pkg/platform/tracing/exporters"
	"github.com/unicef/hope-sub007/pkg/programs"
	"github.com/unicef/hope-sub007/pkg/remap"
	"github.com/unicef/hope-sub007/pkg/representation"
	"github.com/unicef/hope-sub007/pkg/store"
	"github.com/unicef/hope-sub007/pkg/syncer"
)

// app holds every long-lived dependency of a command.
type app struct {
	cfg    *config.Config
	logger ectologger.Logger

	db     database.DB
	store  store.Store
	locker lock.Locker
	redis  *lock.RedisLocker
	runner *jobs.Runner

	closers []func(context.Context) error
}

func loadConfig() (*config.Config, ectologger.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, err
	}
	logger, _, err := logging.New(logging.Config{
		Level:   cfg.LogLevel,
		Pretty:  cfg.PrettyLogs,
		Service: cfg.AppName,
		Version: cfg.Version,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func connect(ctx context.Context, cfg *config.Config, logger ectologger.Logger) (database.DB, error) {
	db, err := database.Connect(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN(), cfg.DatabaseMaxOpenConns, cfg.DatabaseMaxIdleConns, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newApp connects to Postgres and the optional Redis, Kafka and graph
// backends and wires the drivers into a job runner.
func newApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		ServiceName: cfg.AppName,
		Exporter:    cfg.TracingExporter,
		OTLP: exporters.OTLPConfig{
			Endpoint: cfg.OTLPEndpoint,
			Protocol: cfg.OTLPProtocol,
			Insecure: cfg.OTLPInsecure,
		},
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, shutdownTracing)

	a.db, err = connect(ctx, cfg, logger)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return a.db.Close() })
	a.store = postgres.New(a.db, logger)

	a.locker = lock.Noop{}
	if cfg.RedisEnabled {
		a.redis, err = lock.Dial(ctx, lock.Config{
			Host:      cfg.RedisHost,
			Port:      cfg.RedisPort,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.LockKeyPrefix,
			TTL:       cfg.LockTTL,
		}, logger)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.locker = a.redis
		a.closers = append(a.closers, func(context.Context) error { return a.redis.Close() })
	}

	var emitter events.Emitter = events.Noop{}
	if cfg.KafkaEnabled {
		writer := events.NewWriter(events.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaOutputTopic,
			BatchSize:    cfg.KafkaBatchSize,
			BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
			RequiredAcks: cfg.KafkaRequiredAcks,
			Compression:  cfg.KafkaCompression,
		})
		emitter = events.NewKafkaEmitter(writer, cfg.KafkaOutputTopic, logger)
		a.closers = append(a.closers, func(context.Context) error { return emitter.Close() })
	}

	var projector *graph.Projector
	if cfg.GraphEnabled {
		client, err := graph.NewClient(graph.Config{
			Host:     cfg.GraphDBHost,
			Port:     cfg.GraphDBPort,
			Username: cfg.GraphDBUser,
			Password: cfg.GraphDBPassword,
		}, logger)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		if err := client.VerifyConnectivity(ctx); err != nil {
			_ = client.Close(ctx)
			a.Close(ctx)
			return nil, fmt.Errorf("failed to reach graph database: %w", err)
		}
		projector = graph.NewProjector(client, logger)
		a.closers = append(a.closers, client.Close)
	}

	reps := representation.New(a.store, logger)
	resolver := programs.NewResolver(a.store, logger)
	migrator := migration.New(reps, resolver, logger, migration.Config{BatchSize: cfg.HouseholdBatchSize})
	driver := grievance.New(reps, remap.New(reps, logger), resolver, logger, grievance.Config{BatchSize: cfg.TicketBatchSize})
	syncDriver := syncer.New(reps, migrator, driver, logger, syncer.Config{BatchSize: cfg.BulkInsertSize})

	a.runner = jobs.NewRunner(a.store, jobs.Drivers{
		Migrate:          migrator.Migrate,
		MigrateGrievance: driver.Migrate,
		Sync:             syncDriver.Sync,
	}, a.locker, emitter, projector, logger, jobs.Config{
		Concurrency: cfg.BusinessAreaConcurrency,
		LockTTL:     cfg.LockTTL,
	})
	return a, nil
}

// Close releases backends in reverse order of creation.
func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.WithContext(ctx).WithError(err).Warn("failed to close dependency")
		}
	}
	a.closers = nil
}
