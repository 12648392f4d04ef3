// internal/history/redis.go
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list (queue) name for finished-round records.
var DefaultQueueName = "doudizhu_rounds"

// RoundRecord holds the minimal info the historian needs to persist a
// finished round.
type RoundRecord struct {
	GameID    uuid.UUID `json:"game_id"`
	Room      string    `json:"room"`
	Names     [3]string `json:"names"`
	Landlord  int       `json:"landlord"`
	Winner    string    `json:"winner"`
	BombCount int       `json:"bomb_count"`
	Timestamp int64     `json:"timestamp"`
}

// RoundRecorder is implemented by anything that can accept a finished
// round. The host session takes one so tests can substitute an in-memory
// sink for Redis.
type RoundRecorder interface {
	RecordRound(ctx context.Context, rec RoundRecord) error
}

// Publisher pushes round records onto a Redis list for asynchronous
// consumption by the historian.
type Publisher struct {
	rdb   *redis.Client
	queue string
}

// Connect initializes a Publisher from environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
//   - HISTORIAN_QUEUE_NAME (optional)
func Connect(ctx context.Context) (*Publisher, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &Publisher{rdb: rdb, queue: getEnv("HISTORIAN_QUEUE_NAME", DefaultQueueName)}, nil
}

// RecordRound serializes the record to JSON and pushes it onto the queue.
// This does not block the calling logic beyond a quick network send.
func (p *Publisher) RecordRound(ctx context.Context, rec RoundRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal RoundRecord: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}

// Queue returns the queue name the publisher writes to.
func (p *Publisher) Queue() string {
	return p.queue
}

// Client exposes the underlying Redis client for consumers that share the
// connection settings (the historian's BLPop loop).
func (p *Publisher) Client() *redis.Client {
	return p.rdb
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
