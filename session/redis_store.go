package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "gs"
	defaultMaxRetries  = 64
	scanBatchSize      = 500
)

// RedisStore is a Redis-backed [Store]. Session records are JSON values
// under <prefix>:s:<sid>; a set under <prefix>:u:<tenant>:<user> indexes the
// sessions of each user. Updates and inserts are optimistic WATCH/MULTI
// transactions retried on conflict.
type RedisStore struct {
	redis      redis.UniversalClient
	prefix     string
	maxRetries int
	logger     *slog.Logger
}

// NewRedisStore creates a [RedisStore]. An empty prefix selects "gs".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{
		redis:      client,
		prefix:     prefix,
		maxRetries: defaultMaxRetries,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithLogger sets the logger reporting undecodable records.
func (s *RedisStore) WithLogger(logger *slog.Logger) *RedisStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *RedisStore) userKey(tenantID, userID string) string {
	return s.prefix + ":u:" + userIndexKey(tenantID, userID)
}

// reader is the read surface shared by the client and a WATCH transaction.
type reader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

// callbackError carries an UpdateFunc error through the WATCH callback so it
// reaches the caller unwrapped.
type callbackError struct{ err error }

func (e callbackError) Error() string { return e.err.Error() }
func (e callbackError) Unwrap() error { return e.err }

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	return s.read(ctx, s.redis, sessionID)
}

func (s *RedisStore) read(ctx context.Context, c reader, sessionID string) (*Session, error) {
	data, err := c.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return decode(data)
}

func (s *RedisStore) Insert(ctx context.Context, sess *Session, limit int, now time.Time) ([]*Session, error) {
	data, err := encode(sess)
	if err != nil {
		return nil, err
	}
	userKey := s.userKey(sess.TenantID, sess.UserID)

	var evicted []*Session
	txf := func(tx *redis.Tx) error {
		evicted = nil

		ids, err := tx.SMembers(ctx, userKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}

		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = s.key(id)
		}
		if len(keys) > 0 {
			if err := tx.Watch(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
		}

		existing, stale, err := s.readMany(ctx, tx, ids)
		if err != nil {
			return err
		}

		candidates := evictionCandidates(existing, limit, now)
		writes := make(map[string][]byte, len(candidates)+1)
		for _, c := range candidates {
			if !c.deactivate(ReasonLimitExceeded, now) {
				continue
			}
			enc, err := encode(c)
			if err != nil {
				return err
			}
			writes[s.key(c.SessionID)] = enc
			evicted = append(evicted, c)
		}
		writes[s.key(sess.SessionID)] = data

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for k, v := range writes {
				pipe.Set(ctx, k, v, 0)
			}
			pipe.SAdd(ctx, userKey, sess.SessionID)
			if len(stale) > 0 {
				pipe.SRem(ctx, userKey, stale...)
			}
			return nil
		})
		return err
	}

	if err := s.withRetry(ctx, txf, userKey); err != nil {
		return nil, err
	}
	return evicted, nil
}

// readMany loads ids through c, returning decoded sessions and the IDs whose
// records no longer exist or cannot be decoded.
func (s *RedisStore) readMany(ctx context.Context, c reader, ids []string) ([]*Session, []any, error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	values, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sessions := make([]*Session, 0, len(values))
	var stale []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		sess, err := decode([]byte(raw))
		if err != nil {
			s.logger.WarnContext(ctx, "skipping undecodable session record",
				slog.String("session_id", ids[i]),
				slog.Any("error", err))
			stale = append(stale, ids[i])
			continue
		}
		sessions = append(sessions, sess)
	}
	return sessions, stale, nil
}

func (s *RedisStore) Update(ctx context.Context, sessionID string, fn UpdateFunc) (*Session, error) {
	key := s.key(sessionID)

	var out *Session
	txf := func(tx *redis.Tx) error {
		sess, err := s.read(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		changed, err := fn(sess)
		if err != nil {
			return callbackError{err: err}
		}
		out = sess
		if !changed {
			return nil
		}
		data, err := encode(sess)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	if err := s.withRetry(ctx, txf, key); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RedisStore) withRetry(ctx context.Context, txf func(*redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.redis.Watch(ctx, txf, keys...)
		var cbErr callbackError
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			backoff(attempt)
			continue
		case errors.As(err, &cbErr):
			return cbErr.err
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrCorrupt), errors.Is(err, ErrRedisUnavailable):
			return err
		default:
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return ErrConflict
}

// backoff sleeps a short randomized interval that grows with attempt.
func backoff(attempt int) {
	ceiling := time.Duration(min(attempt+1, 10)) * 200 * time.Microsecond
	time.Sleep(time.Duration(rand.Int63n(int64(ceiling))))
}

func (s *RedisStore) ListByUser(ctx context.Context, tenantID, userID string) ([]*Session, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(tenantID, userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Session{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	sessions, _, err := s.readMany(ctx, s.redis, ids)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []*Session{}
	}
	return sessions, nil
}

// Scan walks all session keys with SCAN. It is an O(n) maintenance
// operation and must not be used in request hot paths.
func (s *RedisStore) Scan(ctx context.Context, fn func(*Session) error) error {
	pattern := s.prefix + ":s:*"
	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if len(keys) > 0 {
			values, err := s.redis.MGet(ctx, keys...).Result()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
			for i, v := range values {
				raw, ok := v.(string)
				if !ok {
					continue
				}
				sess, err := decode([]byte(raw))
				if err != nil {
					s.logger.WarnContext(ctx, "skipping undecodable session record",
						slog.String("key", keys[i]),
						slog.Any("error", err))
					continue
				}
				if err := fn(sess); err != nil {
					return err
				}
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(sessionID))
		pipe.SRem(ctx, s.userKey(sess.TenantID, sess.UserID), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping returns a point-in-time Redis availability check.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
