package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/BuggPlayer/homeservice-iam/internal/core/domain"
	"github.com/BuggPlayer/homeservice-iam/internal/core/port"
	"github.com/BuggPlayer/homeservice-iam/internal/repository"
)

const (
	defaultGrantPrefix = "iam:grants"
	defaultGrantTTL    = 60 * time.Second
)

// DecisionCache stores per-user grant snapshots in Redis. The TTL bounds the
// staleness window after a revocation that missed an explicit invalidation.
type DecisionCache struct {
	client *red.Client
	prefix string
	ttl    time.Duration
}

// NewDecisionCache constructs the grant snapshot cache.
func NewDecisionCache(client *red.Client, keyPrefix string, ttl time.Duration) *DecisionCache {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultGrantPrefix
	}
	if ttl <= 0 {
		ttl = defaultGrantTTL
	}

	return &DecisionCache{client: client, prefix: prefix, ttl: ttl}
}

// GetGrantSnapshot fetches the cached snapshot, returning ErrNotFound on miss.
func (c *DecisionCache) GetGrantSnapshot(ctx context.Context, userID string) (*domain.GrantSnapshot, error) {
	key, err := c.key(userID)
	if err != nil {
		return nil, err
	}

	value, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis get grant snapshot: %w", err)
	}

	var snapshot domain.GrantSnapshot
	if err := json.Unmarshal(value, &snapshot); err != nil {
		return nil, fmt.Errorf("decode grant snapshot: %w", err)
	}

	return &snapshot, nil
}

// SetGrantSnapshot stores the snapshot with the configured TTL.
func (c *DecisionCache) SetGrantSnapshot(ctx context.Context, snapshot domain.GrantSnapshot) error {
	key, err := c.key(snapshot.UserID)
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode grant snapshot: %w", err)
	}

	if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set grant snapshot: %w", err)
	}

	return nil
}

// Invalidate drops the cached snapshot after a grant mutation.
func (c *DecisionCache) Invalidate(ctx context.Context, userID string) error {
	key, err := c.key(userID)
	if err != nil {
		return err
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete grant snapshot: %w", err)
	}

	return nil
}

func (c *DecisionCache) key(userID string) (string, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return "", fmt.Errorf("user id is required")
	}
	return fmt.Sprintf("%s:%s", c.prefix, trimmed), nil
}

var _ port.DecisionCache = (*DecisionCache)(nil)
