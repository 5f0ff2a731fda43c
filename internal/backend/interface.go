package backend

import (
	"context"

	"traffic/internal/amqp"
	"traffic/internal/ports"
	"traffic/internal/services"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// BackendResult is a ready store plus the optional event publisher.
type BackendResult struct {
	Store ports.Store
	// Publisher is nil when no broker is configured.
	Publisher services.EventPublisher
	// AMQP is the broker client behind Publisher, for consumers.
	AMQP    *amqp.Client
	Cleanup CleanupFunc
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	SQLiteDBPath string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
