package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"exam_prep_backend/internal/model"

	"github.com/go-redis/redis/v8"
)

const quizStatsKey = "quiz:stats:%d"

// RedisStatisticsCache stores quiz statistics as JSON with a TTL.
type RedisStatisticsCache struct {
	rdb *redis.Client
}

func NewRedisStatisticsCache(rdb *redis.Client) *RedisStatisticsCache {
	return &RedisStatisticsCache{rdb: rdb}
}

// GetQuizStatistics returns nil, nil on a miss.
func (c *RedisStatisticsCache) GetQuizStatistics(ctx context.Context, quizID uint) (*model.QuizStatistics, error) {
	raw, err := c.rdb.Get(ctx, fmt.Sprintf(quizStatsKey, quizID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stats model.QuizStatistics
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *RedisStatisticsCache) SetQuizStatistics(ctx context.Context, stats *model.QuizStatistics, ttl time.Duration) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf(quizStatsKey, stats.QuizID), raw, ttl).Err()
}

func (c *RedisStatisticsCache) InvalidateQuiz(ctx context.Context, quizID uint) error {
	return c.rdb.Del(ctx, fmt.Sprintf(quizStatsKey, quizID)).Err()
}
