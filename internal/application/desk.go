package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diticoms/service-desk/internal/config"
	"github.com/diticoms/service-desk/internal/database"
	"github.com/diticoms/service-desk/internal/kafka"
	"github.com/diticoms/service-desk/internal/service"
	"github.com/diticoms/service-desk/internal/sheetapi"
	"github.com/diticoms/service-desk/internal/store"
	"go.uber.org/zap"
)

// Desk is the wired service layer shared by the API server and the CLI
// commands.
type Desk struct {
	Config  *config.Config
	Log     *zap.Logger
	Service *service.DeskService
	Repo    *store.Repository
	Events  *kafka.Producer

	ping    func(ctx context.Context) error
	closers []func() error
}

type pingableKV interface {
	store.KV
	Ping(ctx context.Context) error
}

func NewDesk(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Desk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	kv, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	repo := store.NewRepository(kv)

	events := kafka.NewProducer(kafka.ParseBrokers(cfg.Kafka.Brokers), cfg.Kafka.TicketTopic, log.Named("kafka"))
	if events.Enabled() {
		log.Info("kafka: publishing ticket events", zap.String("topic", cfg.Kafka.TicketTopic))
	}

	sheet := sheetapi.NewClient(sheetapi.Options{
		Timeout:    cfg.Sheet.Timeout,
		RetryDelay: cfg.Sheet.RetryDelay,
		Logger:     log.Named("sheet"),
	})
	svc := service.NewDeskService(sheet, repo, events, service.Options{
		DefaultSheetURL: cfg.Sheet.URL,
		IdempotencyKeys: cfg.Sheet.IdempotencyKeys,
		Logger:          log.Named("desk"),
	})

	return &Desk{
		Config:  cfg,
		Log:     log,
		Service: svc,
		Repo:    repo,
		Events:  events,
		ping:    kv.Ping,
		closers: []func() error{events.Close, closeStore},
	}, nil
}

// openStore returns the configured key-value store, migrated and reachable.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (pingableKV, func() error, error) {
	if cfg.StoreDriver == "redis" {
		kv, err := store.NewRedisKV(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		log.Info("store: redis", zap.String("addr", cfg.Redis.Addr))
		return kv, kv.Close, nil
	}

	if cfg.StoreDriver == database.DriverPostgres {
		if err := database.EnsurePostgres(cfg.DatabaseURL(), log); err != nil {
			return nil, nil, err
		}
	}
	db, err := database.Open(cfg.StoreDriver, cfg.DSN(), log.Named("gorm"), cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := database.MigrateUp(mctx, db, cfg.StoreDriver); err != nil {
		sqlDB.Close()
		return nil, nil, err
	}
	log.Info("store: database", zap.String("driver", cfg.StoreDriver))
	return store.NewGormKV(db), sqlDB.Close, nil
}

// Ping checks the local store.
func (d *Desk) Ping(ctx context.Context) error {
	return d.ping(ctx)
}

func (d *Desk) Close() error {
	var errs []error
	for _, c := range d.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
