// Package cache holds resolved session roles in Redis so a session lookup
// does not hit the profile store on every request.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"merosamaj.org/internal/session"
)

const namespace = "samaj:role"

var _ session.Cache = (*Roles)(nil)

// Roles caches session.CachedProfile values keyed by identity id.
type Roles struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewClient connects to one address, or to a cluster when addrs holds
// several comma-separated entries.
func NewClient(addrs, password string) redis.UniversalClient {
	list := strings.Split(addrs, ",")
	for i := range list {
		list[i] = strings.TrimSpace(list[i])
	}
	if len(list) > 1 {
		return redis.NewClusterClient(&redis.ClusterOptions{Addrs: list, Password: password})
	}
	return redis.NewClient(&redis.Options{Addr: list[0], Password: password, DB: 0})
}

// NewRoles wraps client. A non-positive ttl defaults to five minutes.
func NewRoles(client redis.UniversalClient, ttl time.Duration) *Roles {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Roles{client: client, ttl: ttl}
}

func key(id string) string {
	return namespace + ":" + id
}

func (c *Roles) Get(ctx context.Context, id string) (session.CachedProfile, bool, error) {
	raw, err := c.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return session.CachedProfile{}, false, nil
	}
	if err != nil {
		return session.CachedProfile{}, false, err
	}
	var p session.CachedProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		_ = c.client.Del(ctx, key(id)).Err()
		return session.CachedProfile{}, false, nil
	}
	return p, true, nil
}

func (c *Roles) Put(ctx context.Context, id string, p session.CachedProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(id), data, c.ttl).Err()
}

func (c *Roles) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, key(id)).Err()
}

// Ping checks connectivity for readiness probes.
func (c *Roles) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *Roles) Close() error {
	return c.client.Close()
}
