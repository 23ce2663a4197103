package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xavierau/event-platform-sub006/internal/model"
)

type AvailabilityCache interface {
	// 讀取：miss 時 ok 為 false
	Get(ctx context.Context, ticketDefinitionID, eventOccurrenceID int) (*model.Availability, bool, error)
	// 寫入：以票種為 key、場次為 field
	Set(ctx context.Context, availability *model.Availability) error
	// 失效：清掉整個票種的所有場次
	Invalidate(ctx context.Context, ticketDefinitionIDs ...int) error
}

type RedisAvailabilityCacheImpl struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAvailabilityCache(client *redis.Client, ttl time.Duration) AvailabilityCache {
	return &RedisAvailabilityCacheImpl{
		client: client,
		ttl:    ttl,
	}
}

func (c *RedisAvailabilityCacheImpl) getKey(ticketDefinitionID int) string {
	return fmt.Sprintf("availability:%d", ticketDefinitionID)
}

// HSET 與 EXPIRE 在同一個 script 內完成，避免留下沒有 TTL 的 key
var setAvailabilityScript = redis.NewScript(`
	redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
	return 1
`)

func (c *RedisAvailabilityCacheImpl) Get(ctx context.Context, ticketDefinitionID, eventOccurrenceID int) (*model.Availability, bool, error) {
	raw, err := c.client.HGet(ctx, c.getKey(ticketDefinitionID), strconv.Itoa(eventOccurrenceID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var availability model.Availability
	if err := json.Unmarshal([]byte(raw), &availability); err != nil {
		return nil, false, fmt.Errorf("invalid cached availability: %w", err)
	}

	return &availability, true, nil
}

func (c *RedisAvailabilityCacheImpl) Set(ctx context.Context, availability *model.Availability) error {
	payload, err := json.Marshal(availability)
	if err != nil {
		return err
	}

	key := c.getKey(availability.TicketDefinitionID)
	field := strconv.Itoa(availability.EventOccurrenceID)

	return setAvailabilityScript.Run(ctx, c.client, []string{key}, field, payload, c.ttl.Milliseconds()).Err()
}

func (c *RedisAvailabilityCacheImpl) Invalidate(ctx context.Context, ticketDefinitionIDs ...int) error {
	if len(ticketDefinitionIDs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(ticketDefinitionIDs))
	for _, id := range ticketDefinitionIDs {
		keys = append(keys, c.getKey(id))
	}

	return c.client.Del(ctx, keys...).Err()
}

// NoopAvailabilityCache 關閉快取時使用
type NoopAvailabilityCache struct{}

func NewNoopAvailabilityCache() AvailabilityCache {
	return NoopAvailabilityCache{}
}

func (NoopAvailabilityCache) Get(context.Context, int, int) (*model.Availability, bool, error) {
	return nil, false, nil
}

func (NoopAvailabilityCache) Set(context.Context, *model.Availability) error {
	return nil
}

func (NoopAvailabilityCache) Invalidate(context.Context, ...int) error {
	return nil
}
