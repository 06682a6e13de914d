package cmd

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"messenger-service/internal/calls"
	"messenger-service/internal/config"
	"messenger-service/internal/db"
	"messenger-service/internal/logger"
	"messenger-service/internal/maintenance"
	"messenger-service/internal/providers"
	"messenger-service/internal/push"
	"messenger-service/internal/rabbitmq"
	"messenger-service/internal/repositories"
	"messenger-service/internal/storage"
)

// app holds the dependencies shared by every command.
type app struct {
	cfg       *config.Config
	db        *sqlx.DB
	redis     *redis.Client
	publisher rabbitmq.Publisher
	store     *storage.AttachmentStore

	threads      *repositories.ThreadRepo
	participants *repositories.ParticipantRepo
	messages     *repositories.MessageRepo
	reactions    *repositories.ReactionRepo
	calls        *repositories.CallRepo

	directory   *providers.Directory
	push        *push.Service
	lockout     *calls.Lockout
	callService *calls.Service
	runner      *maintenance.Runner
}

func bootstrap(c *cli.Context) (*app, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := logger.Init(logger.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Output:   cfg.Log.Output,
		FilePath: cfg.Log.FilePath,
	}); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	database, err := db.Connect(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewAttachmentStore(c.Context, cfg.Storage)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	a := &app{
		cfg:   cfg,
		db:    database,
		redis: redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}),
		store: store,

		threads:      repositories.NewThreadRepo(database),
		participants: repositories.NewParticipantRepo(database),
		messages:     repositories.NewMessageRepo(database),
		reactions:    repositories.NewReactionRepo(database),
		calls:        repositories.NewCallRepo(database),
	}
	a.publisher = rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	logger.Log.Info("event publisher ready",
		zap.String("mode", rabbitmq.PublisherMode(a.publisher)),
		zap.String("noop_reason", rabbitmq.PublisherNoopReason(a.publisher)))

	a.directory = providers.NewDirectory(providers.FromConfig(cfg.Providers), repositories.NewProviderRepo(database))
	logger.Log.Info("provider directory loaded", zap.Strings("aliases", a.directory.Aliases()))
	a.push = push.NewService(a.directory, push.NewAMQPBroadcaster(a.publisher), cfg.Features.PushNotifications)
	a.lockout = calls.NewLockout(a.redis)
	a.callService = calls.NewService(a.calls, a.messages, a.push)
	var dispatcher maintenance.Dispatcher
	if rabbitmq.PublisherMode(a.publisher) == "amqp" {
		dispatcher = a.publisher
	}
	a.runner = maintenance.NewRunner(cfg.Features.Calling, a.callService, a.lockout, a.threads, a.store, dispatcher)
	return a, nil
}

func (a *app) Close() {
	_ = a.publisher.Close()
	_ = a.redis.Close()
	_ = a.db.Close()
	_ = logger.Sync()
}

func (a *app) pingDatabase(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// callsAvailable fails while the call system is down.
func (a *app) callsAvailable(ctx context.Context) error {
	down, err := a.lockout.IsDown(ctx)
	if err != nil {
		return err
	}
	if down {
		return fmt.Errorf("call system is down")
	}
	return nil
}
