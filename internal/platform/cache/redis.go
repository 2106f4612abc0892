package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
)

const (
	defaultTTL = 10 * time.Minute
	maxJitter  = 2 * time.Minute
	keyPrefix  = "product:snapshot:"
)

// ProductSnapshotCache stores product snapshots in Redis as JSON values with a jittered TTL.
type ProductSnapshotCache struct {
	client  redis.UniversalClient
	baseTTL time.Duration
}

// NewProductSnapshotCache wraps client. A non-positive ttl uses the default.
func NewProductSnapshotCache(client redis.UniversalClient, ttl time.Duration) *ProductSnapshotCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ProductSnapshotCache{client: client, baseTTL: ttl}
}

// GetMany returns the cached snapshots for ids. Missing or undecodable entries are omitted.
func (c *ProductSnapshotCache) GetMany(ctx context.Context, ids []string) (map[string]domain.ProductSnapshot, error) {
	out := make(map[string]domain.ProductSnapshot, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var record snapshotRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			continue
		}
		out[ids[i]] = record.toDomain()
	}
	return out, nil
}

// SetMany writes snapshots in a single pipeline.
func (c *ProductSnapshotCache) SetMany(ctx context.Context, snapshots []domain.ProductSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, snapshot := range snapshots {
		payload, err := json.Marshal(newSnapshotRecord(snapshot))
		if err != nil {
			return fmt.Errorf("marshal snapshot failed: %w", err)
		}
		pipe.Set(ctx, cacheKey(snapshot.ID), payload, c.ttl())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Invalidate drops the snapshots for ids.
func (c *ProductSnapshotCache) Invalidate(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (c *ProductSnapshotCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *ProductSnapshotCache) ttl() time.Duration {
	return c.baseTTL + rand.N(maxJitter)
}

func cacheKey(productID string) string {
	return keyPrefix + productID
}

type snapshotRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	ImageURL    string `json:"imageUrl"`
	ImageID     string `json:"imageId"`
	Category    string `json:"category"`
	IsAvailable bool   `json:"isAvailable"`
}

func newSnapshotRecord(s domain.ProductSnapshot) snapshotRecord {
	return snapshotRecord{
		ID:          s.ID,
		Name:        s.Name,
		Price:       s.Price,
		ImageURL:    s.Image.URL,
		ImageID:     s.Image.AssetID,
		Category:    string(s.Category),
		IsAvailable: s.IsAvailable,
	}
}

func (r snapshotRecord) toDomain() domain.ProductSnapshot {
	return domain.ProductSnapshot{
		ID:          r.ID,
		Name:        r.Name,
		Price:       r.Price,
		Image:       domain.MediaAsset{URL: r.ImageURL, AssetID: r.ImageID},
		Category:    domain.Category(r.Category),
		IsAvailable: r.IsAvailable,
	}
}
