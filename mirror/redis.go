package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"catalog-sync/models"
)

// MirrorKeyPrefix namespaces mirror entries in Redis.
const MirrorKeyPrefix = "images:mirror:"

// RedisMirror stores mirror entries as JSON values in Redis with no
// expiration, so the last confirmed order survives across runs and machines
// sharing the instance.
type RedisMirror struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *RedisMirror {
	return &RedisMirror{rdb: rdb}
}

func (m *RedisMirror) Get(ctx context.Context, productID string) (models.MirrorEntry, bool, error) {
	val, err := m.rdb.Get(ctx, MirrorKeyPrefix+productID).Result()
	if err == redis.Nil {
		return models.MirrorEntry{}, false, nil
	}
	if err != nil {
		return models.MirrorEntry{}, false, err
	}
	var entry models.MirrorEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return models.MirrorEntry{}, false, fmt.Errorf("decode mirror entry: %w", err)
	}
	return entry, true, nil
}

func (m *RedisMirror) Put(ctx context.Context, productID string, images []models.ImageRef) error {
	entry := models.MirrorEntry{
		ProductID: productID,
		Images:    images,
		UpdatedAt: time.Now().UTC(),
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode mirror entry: %w", err)
	}
	return m.rdb.Set(ctx, MirrorKeyPrefix+productID, b, 0).Err()
}

func (m *RedisMirror) Delete(ctx context.Context, productID string) error {
	return m.rdb.Del(ctx, MirrorKeyPrefix+productID).Err()
}
