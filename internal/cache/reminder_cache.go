package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sentRemindersKey = "sent_reminders"
)

type ReminderCache interface {
	AddSentReminder(ctx context.Context, uuid string, sentAt time.Time) error
	GetSentReminderUUIDs(ctx context.Context, page int, pageSize int) ([]string, int64, error)
}

type redisReminderCache struct {
	client *redis.Client
}

func NewReminderCache(client *redis.Client) ReminderCache {
	return &redisReminderCache{client: client}
}

func (r *redisReminderCache) AddSentReminder(ctx context.Context, uuid string, sentAt time.Time) error {
	member := redis.Z{
		Score:  float64(sentAt.Unix()),
		Member: uuid,
	}

	return r.client.ZAdd(ctx, sentRemindersKey, member).Err()
}

func (r *redisReminderCache) GetSentReminderUUIDs(ctx context.Context, page int, pageSize int) ([]string, int64, error) {
	total, err := r.client.ZCard(ctx, sentRemindersKey).Result()
	if err != nil {
		return nil, 0, err
	}

	start := (page - 1) * pageSize
	stop := start + pageSize - 1

	uuids, err := r.client.ZRevRange(ctx, sentRemindersKey, int64(start), int64(stop)).Result()
	if err != nil {
		return nil, 0, err
	}

	return uuids, total, nil
}
