package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Dedupe remembers delivery keys (voice webhook retries) for a TTL.
// Seen reports true when the key was already recorded; Forget drops a key so
// a failed delivery can be retried.
type Dedupe interface {
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

type redisDedupe struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDedupe(client *redis.Client, ttl time.Duration) Dedupe {
	return &redisDedupe{client: client, ttl: ttl}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

func (d *redisDedupe) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, "dedupe:"+key, 1, d.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (d *redisDedupe) Forget(ctx context.Context, key string) error {
	return d.client.Del(ctx, "dedupe:"+key).Err()
}

type memoryDedupe struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	keys map[string]time.Time
}

func NewMemoryDedupe(ttl time.Duration) Dedupe {
	return &memoryDedupe{ttl: ttl, now: time.Now, keys: map[string]time.Time{}}
}

func (d *memoryDedupe) Seen(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, exp := range d.keys {
		if !now.Before(exp) {
			delete(d.keys, k)
		}
	}
	if _, ok := d.keys[key]; ok {
		return true, nil
	}
	d.keys[key] = now.Add(d.ttl)
	return false, nil
}

func (d *memoryDedupe) Forget(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.keys, key)
	return nil
}
