package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// SetClient 设置 Redis 客户端（由 internal/initial 调用）
func SetClient(c *redis.Client) {
	client = c
}

// Close 关闭 Redis 连接
func Close() error {
	if client == nil {
		return nil
	}
	return client.Close()
}

// IsConnected 检查 Redis 是否已连接
func IsConnected() bool {
	return client != nil
}

// GetClient 获取原始 Redis 客户端（高级用法）
func GetClient() *redis.Client {
	return client
}

// checkClient 检查客户端是否可用
func checkClient() error {
	if client == nil {
		return fmt.Errorf("Redis 未连接")
	}
	return nil
}

// Get 获取字符串值
func Get(ctx context.Context, key string) (string, error) {
	if err := checkClient(); err != nil {
		return "", err
	}
	return client.Get(ctx, key).Result()
}

// Set 设置字符串值
func Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := checkClient(); err != nil {
		return err
	}
	return client.Set(ctx, key, value, expiration).Err()
}

// SetNX 仅在 key 不存在时设置值（分布式锁常用）
func SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	if err := checkClient(); err != nil {
		return false, err
	}
	return client.SetNX(ctx, key, value, expiration).Result()
}

// Del 删除 key
func Del(ctx context.Context, keys ...string) (int64, error) {
	if err := checkClient(); err != nil {
		return 0, err
	}
	return client.Del(ctx, keys...).Result()
}

// Exists 检查 key 是否存在
func Exists(ctx context.Context, keys ...string) (int64, error) {
	if err := checkClient(); err != nil {
		return 0, err
	}
	return client.Exists(ctx, keys...).Result()
}

// Expire 设置过期时间
func Expire(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	if err := checkClient(); err != nil {
		return false, err
	}
	return client.Expire(ctx, key, expiration).Result()
}

// Incr 原子自增
func Incr(ctx context.Context, key string) (int64, error) {
	if err := checkClient(); err != nil {
		return 0, err
	}
	return client.Incr(ctx, key).Result()
}

// Lock 获取分布式锁
func Lock(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	return SetNX(ctx, key, "1", expiration)
}

// Unlock 释放分布式锁
func Unlock(ctx context.Context, key string) error {
	_, err := Del(ctx, key)
	return err
}
