package redisStore

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/PdfQA/pkg/logger_i"
	"github.com/redis/go-redis/v9"
)

var logger = logger_i.NewLogger("Redis Store")

type Options struct {
	Addr     string
	Password string
	DB       int
}

type Store struct {
	client *redis.Client
	DB     int
}

// Open connects and pings. The caller falls back to another store when Redis is offline.
func Open(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:                  opts.Addr,
		Password:              opts.Password,
		DB:                    opts.DB,
		ContextTimeoutEnabled: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis is offline at %s: %w", opts.Addr, err)
	}

	logger.Info("Redis store init successfully", "addr", opts.Addr, "db", opts.DB)
	return &Store{client: client, DB: opts.DB}, nil
}

// NewWithClient wraps an existing client, used with miniredis in tests.
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		logger.Error("Error closing redis client", "error", err)
		return err
	}
	logger.Info("Redis store closed successfully")
	return nil
}
