package brokers

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

var _ Repo = (*CachedRepo)(nil)

// CachedRepo keeps recently resolved brokers in memory. Every authenticated
// command resolves its broker, so lookups against a SQL registry are cached
// and concurrent misses for the same name share one query. Failed lookups
// are not cached.
type CachedRepo struct {
	next  Repo
	cache *lru.LRU[string, Broker]
	group singleflight.Group
}

func NewCachedRepo(next Repo, size int, ttl time.Duration) *CachedRepo {
	if size <= 0 {
		size = 128
	}
	return &CachedRepo{
		next:  next,
		cache: lru.NewLRU[string, Broker](size, nil, ttl),
	}
}

func (c *CachedRepo) Upsert(ctx context.Context, broker *Broker) error {
	if err := c.next.Upsert(ctx, broker); err != nil {
		return err
	}
	c.cache.Remove(broker.Name)
	return nil
}

func (c *CachedRepo) Get(ctx context.Context, name string) (*Broker, error) {
	if b, ok := c.cache.Get(name); ok {
		return &b, nil
	}

	v, err, _ := c.group.Do(name, func() (interface{}, error) {
		if b, ok := c.cache.Get(name); ok {
			return b, nil
		}
		b, err := c.next.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		c.cache.Add(name, *b)
		return *b, nil
	})
	if err != nil {
		return nil, err
	}
	b, ok := v.(Broker)
	if !ok {
		return nil, fmt.Errorf("[brokers CachedRepo] unexpected cache value %T", v)
	}
	return &b, nil
}
