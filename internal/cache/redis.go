// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/catchphrase/internal/models"
	"github.com/redis/go-redis/v9"
)

// Connect opens a Redis client and pings it.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// HistoryQueue is the Redis list that carries finished games from the game
// server to the historian.
type HistoryQueue struct {
	rdb   *redis.Client
	queue string
}

// NewHistoryQueue wraps rdb for the named list.
func NewHistoryQueue(rdb *redis.Client, queue string) *HistoryQueue {
	return &HistoryQueue{rdb: rdb, queue: queue}
}

// PublishGame serializes rec to JSON and pushes it onto the queue.
func (q *HistoryQueue) PublishGame(ctx context.Context, rec models.GameRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal GameRecord: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.queue, err)
	}
	return nil
}

// PopGames waits up to wait for the first record, then takes whatever else
// is already queued, up to max records in total. Payloads that do not
// decode are returned as errors alongside the good records.
func (q *HistoryQueue) PopGames(ctx context.Context, max int, wait time.Duration) ([]models.GameRecord, []error, error) {
	res, err := q.rdb.BLPop(ctx, wait, q.queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("BLPop %s: %w", q.queue, err)
	}
	// res[0] is the queue name and res[1] the payload.
	payloads := res[1:]

	if max > 1 {
		more, err := q.rdb.LPopCount(ctx, q.queue, max-1).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, nil, fmt.Errorf("LPop %s: %w", q.queue, err)
		}
		payloads = append(payloads, more...)
	}

	records := make([]models.GameRecord, 0, len(payloads))
	var bad []error
	for _, p := range payloads {
		var rec models.GameRecord
		if err := json.Unmarshal([]byte(p), &rec); err != nil {
			bad = append(bad, fmt.Errorf("invalid game record: %w", err))
			continue
		}
		records = append(records, rec)
	}
	return records, bad, nil
}

// Len reports how many records are waiting.
func (q *HistoryQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.queue).Result()
}
