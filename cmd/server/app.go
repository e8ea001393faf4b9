package main

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/phrazzld/notify-api/internal/config"
	"github.com/phrazzld/notify-api/internal/platform/mongodb"
	"github.com/phrazzld/notify-api/internal/rabbit"
	"github.com/phrazzld/notify-api/internal/scheduler"
	"github.com/phrazzld/notify-api/internal/service"
	"github.com/phrazzld/notify-api/internal/service/auth"
	"github.com/phrazzld/notify-api/internal/store"
)

// application holds the wired dependency graph.
type application struct {
	config *config.Config
	logger *slog.Logger

	mongoClient *mongo.Client

	// Stores (using interfaces for proper abstraction)
	notificationStore store.NotificationStore
	taskStore         store.TaskStore
	userStore         store.UserStore

	// Services
	jwtService          auth.JWTService
	notificationService service.NotificationService
	taskService         service.TaskService

	// Messaging
	gateway  *rabbit.Gateway
	consumer *rabbit.Consumer

	// Background jobs
	scheduler *scheduler.Scheduler
}

// newApplication creates an application instance with all dependencies
// initialized: database, stores, broker topology, services, consumers, and
// the scheduler.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	app.mongoClient, err = mongodb.Connect(ctx, cfg.Database.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	db := app.mongoClient.Database(cfg.Database.Name)
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}
	logger.Info("MongoDB connection established", "database", cfg.Database.Name)

	app.notificationStore = mongodb.NewNotificationStore(db, logger)
	app.taskStore = mongodb.NewTaskStore(db, logger)
	app.userStore = mongodb.NewUserStore(db, logger)

	// Declares the exchange, queue, and dead-letter topology on connect.
	app.gateway, err = rabbit.Dial(cfg.Broker, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	logger.Info("RabbitMQ topology declared",
		"exchange", cfg.Broker.Exchange,
		"queue", cfg.Broker.Queue)

	app.notificationService, err = service.NewNotificationService(
		app.notificationStore,
		app.gateway,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification service: %w", err)
	}

	app.taskService, err = service.NewTaskService(
		app.taskStore,
		app.notificationService,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	processor, ok := app.notificationService.(rabbit.Processor)
	if !ok {
		return nil, fmt.Errorf("notification service does not implement the queue processor")
	}
	app.consumer = rabbit.NewConsumer(app.gateway, processor, logger)
	if err := app.consumer.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start queue consumer: %w", err)
	}

	app.scheduler, err = scheduler.New(
		app.notificationService,
		app.taskService,
		app.userStore,
		cfg.Scheduler,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	app.scheduler.Start()

	logger.Info("application initialized")
	return app, nil
}

// Run starts the HTTP server and blocks until shutdown.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources. Order matters:
// stop producing (scheduler) before draining (consumer) before closing the
// broker connection and the database.
func (app *application) cleanup() {
	if app.scheduler != nil {
		app.scheduler.Stop()
	}

	if app.consumer != nil {
		app.consumer.Stop()
	}

	if app.gateway != nil {
		if err := app.gateway.Close(); err != nil {
			app.logger.Error("error closing RabbitMQ connection", "error", err)
		}
	}

	if app.mongoClient != nil {
		if err := app.mongoClient.Disconnect(context.Background()); err != nil {
			app.logger.Error("error closing MongoDB connection", "error", err)
		}
	}
}
