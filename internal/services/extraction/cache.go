package extraction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gridline-ai/gridline-backend/internal/models"
	"github.com/redis/go-redis/v9"
)

// resultCache memoizes extraction results keyed by the exact file bytes plus
// the provider and model that produced them. A cache hit is free for the
// caller, so identical re-uploads are not charged twice for model work.
type resultCache struct {
	client *redis.Client
	ttl    time.Duration
}

func newResultCache(client *redis.Client, ttl time.Duration) *resultCache {
	return &resultCache{client: client, ttl: ttl}
}

func (c *resultCache) enabled() bool {
	return c.client != nil && c.ttl > 0
}

func (c *resultCache) key(file models.FileInput, provider, model string) string {
	digest := sha256.Sum256(file.Data)
	return fmt.Sprintf("extract:%s:%s:%s", hex.EncodeToString(digest[:]), provider, model)
}

func (c *resultCache) get(ctx context.Context, key string) ([]models.TableArtifact, bool) {
	if !c.enabled() {
		return nil, false
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			fiberlog.Warnf("extraction cache read failed: %v", err)
		}
		return nil, false
	}

	var artifacts []models.TableArtifact
	if err := json.Unmarshal(payload, &artifacts); err != nil {
		fiberlog.Warnf("extraction cache entry corrupt, dropping: %v", err)
		return nil, false
	}
	return artifacts, true
}

func (c *resultCache) set(ctx context.Context, key string, artifacts []models.TableArtifact) {
	if !c.enabled() {
		return
	}

	payload, err := json.Marshal(artifacts)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		fiberlog.Warnf("extraction cache write failed: %v", err)
	}
}
