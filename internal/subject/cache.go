package subject

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"campaign-server/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "campaign:subject:"

// CachedResolver кеширует успешные разрешения в Redis. Ошибки Redis не ломают запуск:
// при недоступном кеше запрос уходит в нижележащий resolver.
type CachedResolver struct {
	next   Resolver
	client redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedResolver(next Resolver, client redis.Cmdable, ttl time.Duration, logger *zap.Logger) *CachedResolver {
	return &CachedResolver{next: next, client: client, ttl: ttl, logger: logger.Named("CachedSubjectResolver")}
}

func (c *CachedResolver) Resolve(ctx context.Context, ref string) (domain.Subject, error) {
	key := cacheKeyPrefix + ref

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var subj domain.Subject
		if jsonErr := json.Unmarshal(raw, &subj); jsonErr == nil {
			c.logger.Debug("Subject cache hit", zap.String("ref", ref))
			return subj, nil
		}
		c.logger.Warn("Corrupted subject cache entry, ignoring", zap.String("ref", ref))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("Subject cache read failed", zap.String("ref", ref), zap.Error(err))
	}

	subj, err := c.next.Resolve(ctx, ref)
	if err != nil {
		return domain.Subject{}, err
	}

	if payload, err := json.Marshal(subj); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.Warn("Subject cache write failed", zap.String("ref", ref), zap.Error(err))
		}
	}
	return subj, nil
}
