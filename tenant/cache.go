package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const unknownMarker = "-"

// CachedProvider caches lookups of another provider in Redis. Unknown
// tenants are cached too, for a tenth of the TTL. A Redis failure falls
// through to the wrapped provider.
type CachedProvider struct {
	next   Provider
	redis  redis.UniversalClient
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// NewCachedProvider wraps next with a Redis cache under prefix (default
// "gt") holding entries for ttl (default five minutes).
func NewCachedProvider(next Provider, client redis.UniversalClient, prefix string, ttl time.Duration, logger *slog.Logger) *CachedProvider {
	if prefix == "" {
		prefix = "gt"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CachedProvider{next: next, redis: client, ttl: ttl, prefix: prefix, logger: logger}
}

func (p *CachedProvider) key(id string) string {
	return p.prefix + ":" + id
}

// Lookup implements [Provider].
func (p *CachedProvider) Lookup(ctx context.Context, id string) (*Context, error) {
	raw, err := p.redis.Get(ctx, p.key(id)).Result()
	switch {
	case err == nil:
		if raw == unknownMarker {
			return nil, ErrUnknownTenant
		}
		var t Context
		if jerr := json.Unmarshal([]byte(raw), &t); jerr == nil {
			return &t, nil
		}
		p.logger.WarnContext(ctx, "dropping corrupt tenant cache entry", slog.String("tenant_id", id))
	case errors.Is(err, redis.Nil):
	default:
		p.logger.WarnContext(ctx, "tenant cache read failed", slog.String("tenant_id", id), slog.Any("error", err))
	}

	t, err := p.next.Lookup(ctx, id)
	if errors.Is(err, ErrUnknownTenant) {
		p.store(ctx, id, unknownMarker, p.ttl/10)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if data, jerr := json.Marshal(t); jerr == nil {
		p.store(ctx, id, string(data), p.ttl)
	}
	return t, nil
}

func (p *CachedProvider) store(ctx context.Context, id, value string, ttl time.Duration) {
	if err := p.redis.Set(ctx, p.key(id), value, ttl).Err(); err != nil {
		p.logger.WarnContext(ctx, "tenant cache write failed", slog.String("tenant_id", id), slog.Any("error", err))
	}
}

// Invalidate drops the cached entry of id.
func (p *CachedProvider) Invalidate(ctx context.Context, id string) error {
	return p.redis.Del(ctx, p.key(id)).Err()
}
