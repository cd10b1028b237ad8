package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"customer-segments/internal/models"

	"github.com/go-redis/redis/v8"
)

const latestRunKey = "segments:latest"

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and checks the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// NewFromRedis wraps an existing redis client
func NewFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection is alive
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func segmentsKey(runID string) string {
	return fmt.Sprintf("segments:%s", runID)
}

func summaryKey(runID string) string {
	return fmt.Sprintf("summary:%s", runID)
}

// CacheSnapshot stores every customer row in a hash keyed by customer id,
// the summary next to it, and marks the run as latest
func (c *Client) CacheSnapshot(ctx context.Context, runID string, segments []models.CustomerSegment, summary models.Summary, ttl time.Duration) error {
	fields := make(map[string]interface{}, len(segments))
	for _, seg := range segments {
		data, err := json.Marshal(seg)
		if err != nil {
			return fmt.Errorf("failed to marshal customer %s: %w", seg.CustomerID, err)
		}
		fields[seg.CustomerID] = data
	}
	summaryData, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	if len(fields) > 0 {
		pipe.HSet(ctx, segmentsKey(runID), fields)
		pipe.Expire(ctx, segmentsKey(runID), ttl)
	}
	pipe.Set(ctx, summaryKey(runID), summaryData, ttl)
	pipe.Set(ctx, latestRunKey, runID, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}
	return nil
}

// LatestRunID returns the id of the latest cached run, or "" when none
func (c *Client) LatestRunID(ctx context.Context) (string, error) {
	id, err := c.rdb.Get(ctx, latestRunKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	return id, err
}

// GetCustomerSegment returns the cached row, or nil on a cache miss
func (c *Client) GetCustomerSegment(ctx context.Context, runID, customerID string) (*models.CustomerSegment, error) {
	data, err := c.rdb.HGet(ctx, segmentsKey(runID), customerID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var seg models.CustomerSegment
	if err := json.Unmarshal(data, &seg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal customer %s: %w", customerID, err)
	}
	return &seg, nil
}

// GetSummary returns the cached summary, or nil on a cache miss
func (c *Client) GetSummary(ctx context.Context, runID string) (*models.Summary, error) {
	data, err := c.rdb.Get(ctx, summaryKey(runID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var summary models.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	return &summary, nil
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
