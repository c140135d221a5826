package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DaySlots is a cached slot list. Closed separates a day the doctor marked
// unavailable from an open day that has no intervals.
type DaySlots struct {
	Closed bool     `json:"closed"`
	Slots  []string `json:"slots"`
}

// SlotCache stores generated slot lists per (doctor, date). All dates of a
// doctor share one hash so an availability edit clears them with one DEL.
type SlotCache interface {
	Get(ctx context.Context, doctorID uuid.UUID, date string) (DaySlots, bool, error)
	Set(ctx context.Context, doctorID uuid.UUID, date string, day DaySlots) error
	Invalidate(ctx context.Context, doctorID uuid.UUID) error
}

type redisSlotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSlotCache(client *redis.Client, ttl time.Duration) SlotCache {
	return &redisSlotCache{client: client, ttl: ttl}
}

func slotCacheKey(doctorID uuid.UUID) string {
	return "slots:doctor:" + doctorID.String()
}

func (c *redisSlotCache) Get(ctx context.Context, doctorID uuid.UUID, date string) (DaySlots, bool, error) {
	raw, err := c.client.HGet(ctx, slotCacheKey(doctorID), date).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return DaySlots{}, false, nil
		}
		return DaySlots{}, false, fmt.Errorf("read slot cache: %w", err)
	}

	var day DaySlots
	if err := json.Unmarshal(raw, &day); err != nil {
		return DaySlots{}, false, fmt.Errorf("decode slot cache: %w", err)
	}
	return day, true, nil
}

func (c *redisSlotCache) Set(ctx context.Context, doctorID uuid.UUID, date string, day DaySlots) error {
	if day.Slots == nil {
		day.Slots = []string{}
	}
	raw, err := json.Marshal(day)
	if err != nil {
		return fmt.Errorf("encode slot cache: %w", err)
	}

	key := slotCacheKey(doctorID)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, date, raw)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write slot cache: %w", err)
	}
	return nil
}

func (c *redisSlotCache) Invalidate(ctx context.Context, doctorID uuid.UUID) error {
	if err := c.client.Del(ctx, slotCacheKey(doctorID)).Err(); err != nil {
		return fmt.Errorf("invalidate slot cache: %w", err)
	}
	return nil
}
