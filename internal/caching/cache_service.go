package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"reviewdesk/internal/logger"
	"reviewdesk/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "reviewdesk"

type CacheService interface {
	// Profile caching. A miss returns (nil, nil).
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	SetProfile(ctx context.Context, profile *models.Profile, ttl time.Duration) error
	DeleteProfile(ctx context.Context, id uuid.UUID) error

	// Tenant status caching for the route guard. A miss returns "".
	GetTenantStatus(ctx context.Context, tenantID uuid.UUID) (string, error)
	SetTenantStatus(ctx context.Context, tenantID uuid.UUID, status string, ttl time.Duration) error
	DeleteTenantStatus(ctx context.Context, tenantID uuid.UUID) error

	// Rate limiting
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client redis.UniversalClient
}

// NewRedisClient builds a client from host:port or a redis:// URL.
func NewRedisClient(addr, password string, db int) *redis.Client {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if opts, err := redis.ParseURL(addr); err == nil {
			if password != "" {
				opts.Password = password
			}
			return redis.NewClient(opts)
		}
		addr = strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		logger.L().Warn("Redis ping failed on initialization", zap.String("addr", addr), zap.Error(pingErr))
	} else {
		logger.L().Debug("Redis connection established", zap.String("addr", addr))
	}
	return client
}

func NewRedisCacheService(client redis.UniversalClient) CacheService {
	return &redisCacheService{client: client}
}

func profileKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:profile:%s", keyPrefix, id)
}

func tenantStatusKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:tenant_status:%s", keyPrefix, id)
}

func (r *redisCacheService) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	data, err := r.client.Get(ctx, profileKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var profile models.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *redisCacheService) SetProfile(ctx context.Context, profile *models.Profile, ttl time.Duration) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, profileKey(profile.ID), data, ttl).Err()
}

func (r *redisCacheService) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	return r.client.Del(ctx, profileKey(id)).Err()
}

func (r *redisCacheService) GetTenantStatus(ctx context.Context, tenantID uuid.UUID) (string, error) {
	val, err := r.client.Get(ctx, tenantStatusKey(tenantID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return val, nil
}

func (r *redisCacheService) SetTenantStatus(ctx context.Context, tenantID uuid.UUID, status string, ttl time.Duration) error {
	return r.client.Set(ctx, tenantStatusKey(tenantID), status, ttl).Err()
}

func (r *redisCacheService) DeleteTenantStatus(ctx context.Context, tenantID uuid.UUID) error {
	return r.client.Del(ctx, tenantStatusKey(tenantID)).Err()
}

// IsRateLimited counts a hit for key and reports whether the window's limit is exceeded.
func (r *redisCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	cacheKey := fmt.Sprintf("%s:ratelimit:%s", keyPrefix, key)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, cacheKey)
	pipe.ExpireNX(ctx, cacheKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() > int64(limit), nil
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
