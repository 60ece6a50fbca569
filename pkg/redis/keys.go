package redis

import "strings"

const namespace = "bb"

const (
	idempotencyPrefix = "idempotency"
	rateLimitPrefix   = "rate_limit"
	lockPrefix        = "lock"
	revokedPrefix     = "revoked_jti"
)

func (c *Client) IdempotencyKey(scope, id string) string {
	return key(idempotencyPrefix, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return key(rateLimitPrefix, scope)
}

func (c *Client) RevocationKey(jti string) string {
	return key(revokedPrefix, jti)
}

func (c *Client) LockKey(name string) string {
	return key(lockPrefix, name)
}

// key joins the non-empty parts under the bb namespace.
func key(parts ...string) string {
	b := strings.Builder{}
	b.WriteString(namespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}
