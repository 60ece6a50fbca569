package redis

import (
	"context"
	"time"
)

// INCR and PEXPIRE run as one script so a counter can never outlive its
// window when the caller dies between the two commands.
const incrWindowScript = `
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n`

// Deletes KEYS[1] only while it still holds ARGV[1].
const deleteIfEqualsScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.cmd == nil {
		return errNotInitialized
	}
	return c.cmd.Set(ctx, key, value, ttl).Err()
}

// Get returns redis.Nil when the key is absent.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c.cmd == nil {
		return "", errNotInitialized
	}
	return c.cmd.Get(ctx, key).Result()
}

func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c.cmd == nil {
		return false, errNotInitialized
	}
	return c.cmd.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c.cmd == nil {
		return errNotInitialized
	}
	return c.cmd.Del(ctx, keys...).Err()
}

// IncrWithTTL bumps a fixed-window counter; the window starts with the first
// increment.
func (c *Client) IncrWithTTL(ctx context.Context, key string, window time.Duration) (int64, error) {
	if c.cmd == nil {
		return 0, errNotInitialized
	}
	return c.cmd.Eval(ctx, incrWindowScript, []string{key}, window.Milliseconds()).Int64()
}

// DeleteIfEquals removes key only when it holds value and reports whether it
// did. Lock owners use it to release without clobbering a successor.
func (c *Client) DeleteIfEquals(ctx context.Context, key, value string) (bool, error) {
	if c.cmd == nil {
		return false, errNotInitialized
	}
	n, err := c.cmd.Eval(ctx, deleteIfEqualsScript, []string{key}, value).Int64()
	return n == 1, err
}
