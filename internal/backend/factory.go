package backend

import (
	"context"
	"fmt"
	"time"

	"budget/internal/gateway/file"
	"budget/internal/gateway/memory"
	"budget/internal/gateway/mongo"
	"budget/internal/gateway/redis"
	"budget/internal/log"
	"budget/internal/storage"
)

const connectTimeout = 10 * time.Second

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentGateway)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case MemoryBackend:
		f.logger.Warn("Using in-memory backend, data is lost on restart", log.FieldBackend, config.Type.String())
		return &BackendResult{Gateway: memory.New()}, nil
	case FileBackend:
		store := file.New(config.DataDirectory)
		f.logger.Info("Initialized file backend", log.FieldBackend, config.Type.String(), "path", store.Path())
		return &BackendResult{Gateway: store}, nil
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MongoBackend:
		return f.createMongoBackend(ctx, config)
	case RedisBackend:
		return f.createRedisBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", log.FieldBackend, config.Type.String(), "db_path", config.SQLiteDBPath)
	return &BackendResult{Gateway: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createMongoBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	store, err := mongo.Connect(cctx, config.MongoURI, config.MongoDB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MongoDB backend: %w", err)
	}
	if err := store.Ping(cctx); err != nil {
		f.logger.Warn("MongoDB unreachable, continuing until it comes back",
			log.FieldBackend, config.Type.String(), log.FieldError, err.Error())
	} else {
		f.logger.Info("Initialized MongoDB backend", log.FieldBackend, config.Type.String(), "database", config.MongoDB)
	}
	return &BackendResult{
		Gateway: store,
		Cleanup: func() error {
			dctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
			defer cancel()
			return store.Close(dctx)
		},
	}, nil
}

func (f *DefaultFactory) createRedisBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	store, err := redis.Connect(cctx, config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis backend: %w", err)
	}
	if err := store.Ping(cctx); err != nil {
		f.logger.Warn("Redis unreachable, continuing until it comes back",
			log.FieldBackend, config.Type.String(), log.FieldError, err.Error())
	} else {
		f.logger.Info("Initialized Redis backend", log.FieldBackend, config.Type.String(), "key", redis.Key)
	}
	return &BackendResult{Gateway: store, Cleanup: store.Close}, nil
}
