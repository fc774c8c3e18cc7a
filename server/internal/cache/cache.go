package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sensordash/sensordash/pkg/types"
)

const (
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second
)

// ErrMiss is returned by Load when nothing is mirrored under the key.
var ErrMiss = errors.New("cache: no mirrored list")

// Record is the mirrored form of one published list.
type Record struct {
	Sensors   []types.EvaluatedSensor `json:"sensors"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// Dial returns a go-redis client and validates the connection with PING.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("cache: redis addr is empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: ping %s: %w", addr, err)
	}
	return client, nil
}

// Cache stores one Record under a fixed key.
type Cache struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

// New returns a Cache writing to key. A zero ttl never expires the record.
func New(client redis.Cmdable, key string, ttl time.Duration) *Cache {
	return &Cache{client: client, key: key, ttl: ttl}
}

// Save overwrites the mirrored record.
func (c *Cache) Save(ctx context.Context, sensors []types.EvaluatedSensor, updatedAt time.Time) error {
	data, err := json.Marshal(Record{Sensors: sensors, UpdatedAt: updatedAt})
	if err != nil {
		return fmt.Errorf("cache: encode record: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", c.key, err)
	}
	return nil
}

// Load returns the mirrored record, or ErrMiss when there is none.
func (c *Cache) Load(ctx context.Context) (*Record, error) {
	result, err := c.client.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get %s: %w", c.key, err)
	}
	var rec Record
	if err := json.Unmarshal([]byte(result), &rec); err != nil {
		return nil, fmt.Errorf("cache: decode record: %w", err)
	}
	return &rec, nil
}
