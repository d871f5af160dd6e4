// Package cache keeps the latest fused decision and scorer outputs in
// Redis so the read path never waits on a pipeline run.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/fxviews/fx-views-go/internal/models"
)

const (
	keyLatestDecision    = "fxviews:decision:latest"
	keyLatestTechnical   = "fxviews:technical:latest"
	keyLatestPositioning = "fxviews:positioning:latest"

	// Decisions refresh weekly at most; a day of cache is safe.
	defaultTTL = 24 * time.Hour
)

// ErrCacheMiss reports an absent key.
var ErrCacheMiss = errors.New("cache miss")

// DecisionCache stores the latest pipeline outputs as JSON values.
type DecisionCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

func NewDecisionCache(client *redis.Client, logger *logrus.Logger) *DecisionCache {
	return &DecisionCache{client: client, ttl: defaultTTL, logger: logger}
}

// SetDecision stores the latest fused decision.
func (c *DecisionCache) SetDecision(ctx context.Context, record models.DecisionRecord) error {
	return c.set(ctx, keyLatestDecision, record)
}

// GetDecision returns the cached decision or ErrCacheMiss.
func (c *DecisionCache) GetDecision(ctx context.Context) (models.DecisionRecord, error) {
	var record models.DecisionRecord
	err := c.get(ctx, keyLatestDecision, &record)
	return record, err
}

// SetTechnical stores the latest technical score.
func (c *DecisionCache) SetTechnical(ctx context.Context, score models.TechnicalScore) error {
	return c.set(ctx, keyLatestTechnical, score)
}

// GetTechnical returns the cached technical score or ErrCacheMiss.
func (c *DecisionCache) GetTechnical(ctx context.Context) (models.TechnicalScore, error) {
	var score models.TechnicalScore
	err := c.get(ctx, keyLatestTechnical, &score)
	return score, err
}

// SetPositioning stores the latest positioning snapshot.
func (c *DecisionCache) SetPositioning(ctx context.Context, snapshot models.PositioningSnapshot) error {
	return c.set(ctx, keyLatestPositioning, snapshot)
}

// GetPositioning returns the cached positioning snapshot or ErrCacheMiss.
func (c *DecisionCache) GetPositioning(ctx context.Context) (models.PositioningSnapshot, error) {
	var snapshot models.PositioningSnapshot
	err := c.get(ctx, keyLatestPositioning, &snapshot)
	return snapshot, err
}

func (c *DecisionCache) set(ctx context.Context, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache %s: %w", key, err)
	}
	if c.logger != nil {
		c.logger.WithField("key", key).Debug("Cached value")
	}
	return nil
}

func (c *DecisionCache) get(ctx context.Context, key string, out interface{}) error {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}
