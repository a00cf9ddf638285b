package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Namespace prefixes every key this client writes.
const Namespace = "campusattend"

// BlockTimeout bounds one blocking pop. The client read timeout is kept above it
// so a quiet list does not look like a dead connection.
const BlockTimeout = 5 * time.Second

// Key joins parts under Namespace, e.g. Key("credential") = "campusattend:credential".
func Key(parts ...string) string {
	return strings.Join(append([]string{Namespace}, parts...), ":")
}

// Redis holds the connection pool shared by the credential store and the event bus.
type Redis struct {
	Client *redis.Client
}

// NewRedis accepts either host:port or a redis:// / rediss:// URL carrying
// credentials and a database number. The pool connects lazily.
func NewRedis(target string) (*Redis, error) {
	opts := &redis.Options{Addr: target}
	if strings.HasPrefix(target, "redis://") || strings.HasPrefix(target, "rediss://") {
		parsed, err := redis.ParseURL(target)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		opts = parsed
	}
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = BlockTimeout + 2*time.Second
	opts.WriteTimeout = time.Second
	opts.PoolSize = 4
	return &Redis{Client: redis.NewClient(opts)}, nil
}

// Healthy pings the server.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// Close releases the pool.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
