// Package presence tracks which identities are connected to each resume
// room, shared across server processes through Redis.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// A room is a SET of identities plus a HASH of connection id to identity.
// The hash lets one identity hold several connections (two browser tabs)
// without the first leave removing it from the set.
var addScript = redis.NewScript(`
redis.call('HSET', KEYS[2], ARGV[2], ARGV[1])
return redis.call('SADD', KEYS[1], ARGV[1])
`)

var removeScript = redis.NewScript(`
local owner = redis.call('HGET', KEYS[2], ARGV[2])
if owner then
	redis.call('HDEL', KEYS[2], ARGV[2])
end
local still = false
for _, v in ipairs(redis.call('HVALS', KEYS[2])) do
	if v == ARGV[1] then
		still = true
		break
	end
end
local removed = 0
if not still then
	removed = redis.call('SREM', KEYS[1], ARGV[1])
end
if redis.call('SCARD', KEYS[1]) == 0 then
	redis.call('DEL', KEYS[1], KEYS[2])
end
return removed
`)

// RedisStore implements room membership using Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "resume:",
	}
}

func (s *RedisStore) usersKey(resumeID string) string {
	return s.prefix + resumeID + ":users"
}

func (s *RedisStore) connsKey(resumeID string) string {
	return s.prefix + resumeID + ":conns"
}

// Add records identity as present in the room through connID. Adding the
// same pair twice is a no-op.
func (s *RedisStore) Add(ctx context.Context, resumeID, identity, connID string) error {
	keys := []string{s.usersKey(resumeID), s.connsKey(resumeID)}
	if err := addScript.Run(ctx, s.client, keys, identity, connID).Err(); err != nil {
		return fmt.Errorf("add room member: %w", err)
	}
	return nil
}

// Remove drops connID from the room. The identity leaves the set only when
// none of its connections remain, and both keys are deleted once the room
// is empty. Removing an absent member is a no-op.
func (s *RedisStore) Remove(ctx context.Context, resumeID, identity, connID string) error {
	keys := []string{s.usersKey(resumeID), s.connsKey(resumeID)}
	if err := removeScript.Run(ctx, s.client, keys, identity, connID).Err(); err != nil {
		return fmt.Errorf("remove room member: %w", err)
	}
	return nil
}

// List returns the identities present in the room, in no particular order.
func (s *RedisStore) List(ctx context.Context, resumeID string) ([]string, error) {
	members, err := s.client.SMembers(ctx, s.usersKey(resumeID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list room members: %w", err)
	}
	return members, nil
}

// Count returns how many members are present in the resume room.
func (s *RedisStore) Count(ctx context.Context, resumeID string) (int64, error) {
	n, err := s.client.SCard(ctx, s.usersKey(resumeID)).Result()
	if err != nil {
		return 0, fmt.Errorf("count room members: %w", err)
	}
	return n, nil
}

// Client exposes the underlying connection so the broadcast engine can
// share it.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
