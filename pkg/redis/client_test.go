package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bedbroker-backend/pkg/config"
)

func TestIncrWithTTLStartsWindowOnce(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommands()
	client := &Client{cmd: fake}
	key := client.RateLimitKey("holds:user-1")

	for want := int64(1); want <= 3; want++ {
		got, err := client.IncrWithTTL(ctx, key, time.Minute)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	require.Equal(t, []int64{time.Minute.Milliseconds()}, fake.expiries[key])
}

func TestSetNXHonoursExistingKey(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newFakeCommands()}
	key := client.LockKey("hold-expiry")

	ok, err := client.SetNX(ctx, key, "owner-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.SetNX(ctx, key, "owner-b", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	val, err := client.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "owner-a", val)
}

func TestDeleteIfEqualsLeavesForeignValue(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newFakeCommands()}
	key := client.LockKey("hold-expiry")
	require.NoError(t, client.Set(ctx, key, "owner-b", time.Minute))

	deleted, err := client.DeleteIfEquals(ctx, key, "owner-a")
	require.NoError(t, err)
	require.False(t, deleted)

	deleted, err = client.DeleteIfEquals(ctx, key, "owner-b")
	require.NoError(t, err)
	require.True(t, deleted)

	_, err = client.Get(ctx, key)
	require.ErrorIs(t, err, redis.Nil)
}

func TestKeyBuilders(t *testing.T) {
	c := &Client{}
	require.Equal(t, "bb:idempotency:scope:id", c.IdempotencyKey("scope", "id"))
	require.Equal(t, "bb:rate_limit:scope", c.RateLimitKey("scope"))
	require.Equal(t, "bb:revoked_jti:jti-1", c.RevocationKey("jti-1"))
	require.Equal(t, "bb:lock:hold-expiry", c.LockKey("hold-expiry"))
	require.Equal(t, "bb:lock", c.LockKey("  "))
}

func TestUninitializedClientErrors(t *testing.T) {
	ctx := context.Background()
	c := &Client{}
	require.ErrorIs(t, c.Ping(ctx), errNotInitialized)
	_, err := c.IncrWithTTL(ctx, "k", time.Second)
	require.ErrorIs(t, err, errNotInitialized)
	_, err = c.DeleteIfEquals(ctx, "k", "v")
	require.ErrorIs(t, err, errNotInitialized)
	require.NoError(t, c.Close())
}

func TestOptionsFillsZeroValuesFromConfig(t *testing.T) {
	opts, err := options(configWith("redis://:secret@localhost:6380/3", 7))
	require.NoError(t, err)
	require.Equal(t, "localhost:6380", opts.Addr)
	require.Equal(t, 3, opts.DB)
	require.Equal(t, 7, opts.PoolSize)

	_, err = options(configWith("", 0))
	require.Error(t, err)
}

func configWith(url string, pool int) config.RedisConfig {
	return config.RedisConfig{URL: url, PoolSize: pool}
}

// fakeCommands keeps string values in a map and interprets the two Lua
// scripts this package sends.
type fakeCommands struct {
	values   map[string]string
	counters map[string]int64
	expiries map[string][]int64
}

func newFakeCommands() *fakeCommands {
	return &fakeCommands{
		values:   map[string]string{},
		counters: map[string]int64{},
		expiries: map[string][]int64{},
	}
}

func (f *fakeCommands) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCommands) Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.values[key] = toString(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCommands) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCommands) SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = toString(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommands) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeCommands) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	key := keys[0]
	switch script {
	case incrWindowScript:
		f.counters[key]++
		if f.counters[key] == 1 {
			f.expiries[key] = append(f.expiries[key], args[0].(int64))
		}
		return redis.NewCmdResult(f.counters[key], nil)
	case deleteIfEqualsScript:
		if v, ok := f.values[key]; ok && v == toString(args[0]) {
			delete(f.values, key)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	}
	return redis.NewCmdResult(nil, redis.Nil)
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
