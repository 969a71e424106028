package questions

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"intake-service/internal/common/logger"
	"intake-service/internal/common/metrics"
	"intake-service/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	activeQuestionsKey = "intake:questions:active"
	cacheOpTimeout     = 250 * time.Millisecond
)

// RedisCache is a read-through cache of the active question list. Every
// Redis failure is treated as a miss.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration, log logger.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "question-cache"}),
	}
}

func (c *RedisCache) Get(ctx context.Context) ([]models.Question, bool) {
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	raw, err := c.client.Get(ctx, activeQuestionsKey).Bytes()
	if err != nil {
		if !stderrors.Is(err, redis.Nil) {
			c.logger.Warn("question cache read failed", map[string]interface{}{"error": err})
			metrics.QuestionCacheLookups.WithLabelValues("error").Inc()
		} else {
			metrics.QuestionCacheLookups.WithLabelValues("miss").Inc()
		}
		return nil, false
	}

	var qs []models.Question
	if err := json.Unmarshal(raw, &qs); err != nil {
		c.logger.Warn("question cache entry corrupt", map[string]interface{}{"error": err})
		metrics.QuestionCacheLookups.WithLabelValues("error").Inc()
		return nil, false
	}
	metrics.QuestionCacheLookups.WithLabelValues("hit").Inc()
	return qs, true
}

func (c *RedisCache) Set(ctx context.Context, qs []models.Question) {
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	raw, err := json.Marshal(qs)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, activeQuestionsKey, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("question cache write failed", map[string]interface{}{"error": err})
	}
}

func (c *RedisCache) Invalidate(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	if err := c.client.Del(ctx, activeQuestionsKey).Err(); err != nil {
		c.logger.Warn("question cache invalidation failed", map[string]interface{}{"error": err})
	}
}

// NoopCache disables caching.
type NoopCache struct{}

func (NoopCache) Get(context.Context) ([]models.Question, bool) { return nil, false }
func (NoopCache) Set(context.Context, []models.Question)        {}
func (NoopCache) Invalidate(context.Context)                    {}
