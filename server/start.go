package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/umakantv/go-utils/httpserver"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"

	cachepackage "todo-service/cache"
	"todo-service/config"
	"todo-service/credentials"
	"todo-service/database"
	"todo-service/events"
	"todo-service/handlers"
	"todo-service/store"
	"todo-service/store/filestore"
	"todo-service/store/mongostore"
	"todo-service/todos"
	"todo-service/tokens"
)

// StartServer wires the store, services and routes from cfg and blocks
// serving HTTP.
func StartServer(cfg *config.Config) error {
	logger.Init(logger.LoggerConfig{
		CallerKey:  "file",
		TimeKey:    "timestamp",
		CallerSkip: 1,
	})

	logger.Info("Starting Todo Service...", zap.String("store", cfg.StoreBackend))

	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open store", zap.Error(err))
		return err
	}
	defer st.Close(ctx)

	userCache, err := cachepackage.InitializeCache(cfg)
	if err != nil {
		logger.Error("Failed to initialize cache", zap.Error(err))
		return fmt.Errorf("initialize cache: %w", err)
	}
	if userCache != nil {
		defer userCache.Close()
	}

	publisher := openPublisher(cfg)
	if closer, ok := publisher.(*events.NatsPublisher); ok {
		defer closer.Close()
	}

	tokenService := tokens.NewService(cfg.TokenSecret, cfg.TokenTTL)
	credentialService, err := credentials.NewService(st, userCache, publisher, cfg.BcryptCost)
	if err != nil {
		logger.Error("Failed to initialize credentials", zap.Error(err))
		return fmt.Errorf("initialize credentials: %w", err)
	}
	todoService := todos.NewService(st, publisher)

	auth := handlers.NewAuthenticator(tokenService, cfg.LegacyQueryToken)
	authHandler := handlers.NewAuthHandler(credentialService, tokenService)
	todoHandler := handlers.NewTodoHandler(todoService)

	server := httpserver.New(cfg.Port, auth.CheckAuth)
	corsHandler := newCORS(cfg.CORSOrigins)
	for _, rt := range routes(cfg, auth, authHandler, todoHandler) {
		server.Register(rt.Route, withCORS(corsHandler, rt.Handler))
	}

	logger.Info("Todo Service started on port " + cfg.Port)
	logger.Info("Health check: GET /health")
	logger.Info("API endpoints: POST /register, POST /login, GET/POST /todos, DELETE /todos/{id}")

	if err := server.Start(); err != nil {
		logger.Error("Server failed to start", zap.Error(err))
		return err
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendSQL:
		dbConn, err := database.InitializeDatabase(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("initialize database: %w", err)
		}
		return database.NewStore(dbConn), nil

	case config.BackendFile:
		if !cfg.FileStoreMinio {
			logger.Info("Using file store", zap.String("path", cfg.FileStorePath))
			return filestore.New(filestore.NewDisk(cfg.FileStorePath)), nil
		}
		blob, err := filestore.NewMinioBlob(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey,
			cfg.MinioBucket, cfg.MinioObject, cfg.MinioUseSSL)
		if err != nil {
			return nil, fmt.Errorf("connect to minio: %w", err)
		}
		logger.Info("Using file store in object storage",
			zap.String("bucket", cfg.MinioBucket), zap.String("object", cfg.MinioObject))
		return filestore.New(blob), nil

	case config.BackendMongo:
		st, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("connect to mongo: %w", err)
		}
		logger.Info("Using mongo store", zap.String("db", cfg.MongoDB))
		return st, nil
	}
	return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
}

// openPublisher falls back to dropping events when NATS is unset or
// unreachable; events never block requests.
func openPublisher(cfg *config.Config) events.Publisher {
	if cfg.NatsURL == "" {
		return events.Nop{}
	}
	p, err := events.ConnectNats(cfg.NatsURL)
	if err != nil {
		logger.Error("Failed to connect to NATS, events disabled", zap.Error(err))
		return events.Nop{}
	}
	logger.Info("Publishing events to NATS", zap.String("url", cfg.NatsURL))
	return p
}

func healthCheck(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "healthy", "service": "todo-service"}`))
}
