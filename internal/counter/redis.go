// Package counter provides a Redis-backed sequential counter for
// deployments where several service instances mint IDs.
package counter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/garnizeh/evalassign/pkg/repository"
	"github.com/redis/go-redis/v9"
)

// advanceScript raises a counter to ARGV[1] without ever lowering it.
var advanceScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local want = tonumber(ARGV[1])
if want > cur then
	redis.call('SET', KEYS[1], want)
	return want
end
return cur
`)

type Redis struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

var _ repository.Counter = (*Redis)(nil)
var _ repository.CounterSetter = (*Redis)(nil)

// NewRedis wraps an existing client. Keys are prefix + counter name.
func NewRedis(client *redis.Client, prefix string, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, prefix: prefix, logger: logger}
}

// Connect dials addr and checks the connection with PING.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// Next is a single INCR; Redis executes it atomically across clients.
func (r *Redis) Next(ctx context.Context, name string) (int64, error) {
	v, err := r.client.Incr(ctx, r.prefix+name).Result()
	if err != nil {
		return 0, fmt.Errorf("incr counter %s: %w", name, err)
	}
	return v, nil
}

func (r *Redis) AdvanceTo(ctx context.Context, name string, value int64) error {
	v, err := advanceScript.Run(ctx, r.client, []string{r.prefix + name}, value).Int64()
	if err != nil {
		return fmt.Errorf("advance counter %s: %w", name, err)
	}
	r.logger.Debug("counter advanced", slog.String("name", name), slog.Int64("value", v))
	return nil
}

// Seed copies current values from another store so switching backends
// never reissues an ID.
func (r *Redis) Seed(ctx context.Context, values map[string]int64) error {
	for name, v := range values {
		if err := r.AdvanceTo(ctx, name, v); err != nil {
			return err
		}
	}
	return nil
}
