package main

import (
	"context"
	"fmt"

	"github.com/MrEthical07/gatekeeper/internal/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// openRedis connects to the configured Redis. An empty address returns a nil
// client; config.RedisMemory starts an embedded miniredis.
func openRedis(ctx context.Context, rc config.RedisConfig) (redis.UniversalClient, func(), error) {
	if rc.Addr == "" {
		return nil, func() {}, nil
	}

	if rc.Addr == config.RedisMemory {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start embedded redis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{rc.Addr},
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", rc.Addr, err)
	}
	return client, func() { _ = client.Close() }, nil
}
