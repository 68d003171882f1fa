// Package redisstore persists lane cursors in Redis so that a standby
// relayer instance can take over from the stored cursors.
package redisstore

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/lane-relayer/store"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "lane-relayer:state:"

type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

var _ store.KV = (*RedisStore)(nil)

type Config struct {
	Addr      string `json:"addr" yaml:"addr"`
	Password  string `json:"password,omitempty" yaml:"password,omitempty"`
	DB        int    `json:"db,omitempty" yaml:"db,omitempty"`
	KeyPrefix string `json:"key_prefix,omitempty" yaml:"key_prefix,omitempty"`
}

func New(ctx context.Context, cfg Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to connect to redis at %s", cfg.Addr)
	}
	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}, nil
}

func (rs *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	bz, err := rs.client.Get(ctx, rs.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, errors.Wrapf(err, "failed to read state for %s", key)
	}
	return bz, true, nil
}

func (rs *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	if err := rs.client.Set(ctx, rs.keyPrefix+key, value, 0).Err(); err != nil {
		return errors.Wrapf(err, "failed to write state for %s", key)
	}
	return nil
}

func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
