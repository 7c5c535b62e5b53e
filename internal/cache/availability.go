// Package cache кэширует списки свободных слотов в Redis.
//
// Ключи списков включают номер поколения оператора. Любая запись в расписание
// оператора увеличивает поколение, и старые списки перестают читаться, пока не
// истечёт их TTL. При ошибках Redis кэш отключается и сервис читает из БД.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Freeeeeet/slot_scheduler/internal/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultAvailabilityTTL = 30 * time.Second

	keyGeneration   = "slots:cache:gen:"   // + operator_id
	keyAvailability = "slots:cache:avail:" // + operator_id:gen:from:to
)

type Config struct {
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	AvailabilityTTL time.Duration
}

type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger

	mu       sync.RWMutex
	disabled bool
}

// NewAvailabilityCache подключается к Redis; если он недоступен, кэш работает выключенным
func NewAvailabilityCache(ctx context.Context, cfg Config, logger *zap.Logger) *AvailabilityCache {
	if cfg.AvailabilityTTL <= 0 {
		cfg.AvailabilityTTL = DefaultAvailabilityTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return newAvailabilityCache(ctx, client, cfg.AvailabilityTTL, logger)
}

func newAvailabilityCache(ctx context.Context, client *redis.Client, ttl time.Duration, logger *zap.Logger) *AvailabilityCache {
	c := &AvailabilityCache{
		client: client,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "availability_cache")),
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		c.logger.Warn("Redis unavailable, availability cache disabled", zap.Error(err))
		c.disabled = true
		return c
	}

	c.logger.Info("Availability cache initialized", zap.Duration("ttl", ttl))
	return c
}

// Get возвращает закэшированный список и ключ текущего поколения
func (c *AvailabilityCache) Get(ctx context.Context, operatorID, dateFrom, dateTo string) ([]*model.ScheduleSlot, string, bool) {
	if !c.IsAvailable() {
		return nil, "", false
	}

	gen, err := c.client.Get(ctx, keyGeneration+operatorID).Int64()
	if err != nil && err != redis.Nil {
		c.handleError(err, "get generation")
		return nil, "", false
	}

	key := fmt.Sprintf("%s%s:%d:%s:%s", keyAvailability, operatorID, gen, dateFrom, dateTo)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, key, false
	}
	if err != nil {
		c.handleError(err, "get availability")
		return nil, "", false
	}

	var slots []*model.ScheduleSlot
	if err := json.Unmarshal(data, &slots); err != nil {
		c.logger.Debug("Failed to unmarshal cached availability", zap.String("key", key), zap.Error(err))
		return nil, key, false
	}

	return slots, key, true
}

// Set сохраняет список под ключом, полученным из Get
func (c *AvailabilityCache) Set(ctx context.Context, key string, slots []*model.ScheduleSlot) {
	if !c.IsAvailable() || key == "" {
		return
	}

	data, err := json.Marshal(slots)
	if err != nil {
		c.logger.Debug("Failed to marshal availability", zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.handleError(err, "set availability")
	}
}

// Invalidate переводит оператора на новое поколение ключей
func (c *AvailabilityCache) Invalidate(ctx context.Context, operatorID string) {
	if !c.IsAvailable() {
		return
	}

	if err := c.client.Incr(ctx, keyGeneration+operatorID).Err(); err != nil {
		c.handleError(err, "invalidate")
	}
}

// IsAvailable кэш подключён и не отключён после ошибки
func (c *AvailabilityCache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// Close закрывает соединение с Redis
func (c *AvailabilityCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// handleError отключает кэш: после потерянной инвалидации списку доверять нельзя
func (c *AvailabilityCache) handleError(err error, operation string) {
	c.logger.Warn("Availability cache operation failed, disabling cache",
		zap.String("operation", operation),
		zap.Error(err),
	)

	c.mu.Lock()
	c.disabled = true
	c.mu.Unlock()
}
