package backend

import (
	"context"

	"budget/internal/gateway"
)

// CleanupFunc releases the resources held by a backend.
type CleanupFunc func() error

// BackendResult contains the gateway instance and optional cleanup function
type BackendResult struct {
	Gateway gateway.Gateway
	Cleanup CleanupFunc
}

// Factory creates gateways based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// file
	DataDirectory string

	// sqlite
	SQLiteDBPath string

	// mongo
	MongoURI string
	MongoDB  string

	// redis
	RedisURL string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	FileBackend   BackendType = "file"
	SQLiteBackend BackendType = "sqlite"
	MongoBackend  BackendType = "mongo"
	RedisBackend  BackendType = "redis"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, FileBackend, SQLiteBackend, MongoBackend, RedisBackend:
		return true
	default:
		return false
	}
}
