package counter_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/garnizeh/evalassign/internal/counter"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// These tests need a live Redis; set EVAL_REDIS_ADDR to run them.
func newCounter(t *testing.T) *counter.Redis {
	t.Helper()
	addr := os.Getenv("EVAL_REDIS_ADDR")
	if addr == "" {
		t.Skip("EVAL_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := counter.Connect(ctx, addr, 0)
	require.NoError(t, err)

	prefix := fmt.Sprintf("evalassign-test:%s:", uuid.NewString())
	t.Cleanup(func() {
		keys, _ := client.Keys(context.Background(), prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(context.Background(), keys...)
		}
		client.Close()
	})
	return counter.NewRedis(client, prefix, nil)
}

func TestRedis_NextIsUniqueUnderConcurrency(t *testing.T) {
	c := newCounter(t)
	ctx := context.Background()

	const workers, per = 10, 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[int64]bool{}
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				v, err := c.Next(ctx, "assignments")
				if err != nil {
					t.Errorf("next: %v", err)
					return
				}
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*per)
}

func TestRedis_AdvanceTo(t *testing.T) {
	c := newCounter(t)
	ctx := context.Background()

	require.NoError(t, c.Seed(ctx, map[string]int64{"evaluators": 30}))
	require.NoError(t, c.AdvanceTo(ctx, "evaluators", 5))

	v, err := c.Next(ctx, "evaluators")
	require.NoError(t, err)
	require.Equal(t, int64(31), v)
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := counter.Connect(ctx, "127.0.0.1:1", 0)
	require.Error(t, err)
}
