package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string        `envconfig:"ADDR" default:"localhost:6379"`
	Password string        `envconfig:"PASSWORD"`
	DB       int           `envconfig:"DB" default:"0"`
	TTL      time.Duration `envconfig:"TTL" default:"24h"`
	Prefix   string        `envconfig:"PREFIX" default:"ordering:session:"`
}

// RedisStore persists sessions in a Redis server as JSON strings.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(cfg RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisStoreFromClient(client, cfg.Prefix, cfg.TTL)
}

func NewRedisStoreFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultStoreKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Session, error) {
	redisKey, err := sessionKey(s.prefix, key)
	if err != nil {
		return nil, err
	}
	payload, err := s.client.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return decodeSession(payload)
}

func (s *RedisStore) Create(ctx context.Context, sess *Session) error {
	payload, err := encodeSession(sess)
	if err != nil {
		return err
	}
	redisKey, err := sessionKey(s.prefix, sess.Key)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKey, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, sess *Session) error {
	payload, err := encodeSession(sess)
	if err != nil {
		return err
	}
	redisKey, err := sessionKey(s.prefix, sess.Key)
	if err != nil {
		return err
	}
	args := redis.SetArgs{Mode: "XX"}
	if s.ttl > 0 {
		args.TTL = s.ttl
	}
	err = s.client.SetArgs(ctx, redisKey, payload, args).Err()
	if errors.Is(err, redis.Nil) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("redis set xx: %w", err)
	}
	return nil
}

func (s *RedisStore) Evict(ctx context.Context, key string) error {
	redisKey, err := sessionKey(s.prefix, key)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, redisKey).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
