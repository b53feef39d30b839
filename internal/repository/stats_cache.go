package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/qs3c/qrcode_go_server/internal/model/dto"
)

const statsCacheKey = "qrcode:admin:stats"

// StatsCache 管理后台统计结果的短期缓存
type StatsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStatsCache(rdb *redis.Client, ttl time.Duration) *StatsCache {
	return &StatsCache{rdb: rdb, ttl: ttl}
}

// Get 命中时返回缓存的统计，未命中返回 nil
func (c *StatsCache) Get(ctx context.Context) (*dto.AdminStats, error) {
	data, err := c.rdb.Get(ctx, statsCacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var stats dto.AdminStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *StatsCache) Set(ctx context.Context, stats *dto.AdminStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, statsCacheKey, data, c.ttl).Err()
}

// Invalidate 数据变化后清除缓存
func (c *StatsCache) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, statsCacheKey).Err()
}
