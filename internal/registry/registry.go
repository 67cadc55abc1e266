package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"homehub/internal/db"
	"homehub/internal/models"

	"github.com/redis/go-redis/v9"
)

// RuleSource is the stored-rule lookup surface the registry sits on.
type RuleSource interface {
	GetRuleByID(ctx context.Context, id string) (*models.Rule, error)
	GetRulesForDevice(ctx context.Context, deviceID string) ([]models.Rule, error)
	GetAllEnabledRules(ctx context.Context) ([]models.Rule, error)
}

// AssocCache holds the device-to-rule association sets. Implemented on
// Redis in production; faked in tests.
type AssocCache interface {
	Members(ctx context.Context, deviceID string) ([]string, error)
	Add(ctx context.Context, deviceID string, ruleID string) error
	Remove(ctx context.Context, deviceID string, ruleID string) error
	Clear(ctx context.Context) error
}

// Registry answers "which rules watch this device". Associations are
// cached per device; every lookup re-reads the rules themselves, so
// registration changes show up on the next message.
type Registry struct {
	rules RuleSource
	cache AssocCache
}

// NewRegistry creates a registry over a Redis-backed association cache.
// client may be nil, in which case every lookup goes straight to the rule
// source.
func NewRegistry(rules RuleSource, client *redis.Client) *Registry {
	var cache AssocCache
	if client != nil {
		cache = &redisCache{client: client}
	}
	return &Registry{rules: rules, cache: cache}
}

// NewRegistryWithCache creates a registry over an explicit cache.
func NewRegistryWithCache(rules RuleSource, cache AssocCache) *Registry {
	return &Registry{rules: rules, cache: cache}
}

// RulesForDevice returns the enabled rules watching deviceID in stable id
// order. Cache trouble degrades to a direct query, never to a miss — and
// an empty set is itself treated as a miss, because "no associations
// cached" (mid-resync, or after a cache flush) looks exactly the same as
// "no rules exist".
func (r *Registry) RulesForDevice(ctx context.Context, deviceID string) ([]models.Rule, error) {
	if r.cache == nil {
		return r.rules.GetRulesForDevice(ctx, deviceID)
	}

	ruleIDs, err := r.cache.Members(ctx, deviceID)
	if err != nil {
		log.Printf("REGISTRY: Association cache read failed for %s, querying store: %v", deviceID, err)
		return r.rules.GetRulesForDevice(ctx, deviceID)
	}
	if len(ruleIDs) == 0 {
		return r.rules.GetRulesForDevice(ctx, deviceID)
	}
	sort.Strings(ruleIDs)

	rules := make([]models.Rule, 0, len(ruleIDs))
	for _, ruleID := range ruleIDs {
		rule, err := r.rules.GetRuleByID(ctx, ruleID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				// Stale association, drop it.
				r.cache.Remove(ctx, deviceID, ruleID)
				continue
			}
			return nil, fmt.Errorf("loading rule %s: %w", ruleID, err)
		}
		if !rule.Enabled {
			continue
		}
		rules = append(rules, *rule)
	}
	return rules, nil
}

// Resync rebuilds the association sets from the stored rules. Called at
// startup and periodically from the scheduler. Lookups racing the rebuild
// fall back to the store via the empty-set miss path.
func (r *Registry) Resync(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}

	rules, err := r.rules.GetAllEnabledRules(ctx)
	if err != nil {
		return fmt.Errorf("loading rules for resync: %w", err)
	}

	if err := r.cache.Clear(ctx); err != nil {
		return fmt.Errorf("clearing association sets: %w", err)
	}

	for _, rule := range rules {
		if err := r.cache.Add(ctx, rule.DeviceID, rule.ID); err != nil {
			return fmt.Errorf("associating rule %s with device %s: %w", rule.ID, rule.DeviceID, err)
		}
	}
	log.Printf("REGISTRY: Resynced associations for %d rules", len(rules))
	return nil
}

// RefreshRule adds a freshly registered rule's association without a full
// resync.
func (r *Registry) RefreshRule(ctx context.Context, ruleID string) error {
	if r.cache == nil {
		return nil
	}
	rule, err := r.rules.GetRuleByID(ctx, ruleID)
	if err != nil {
		return fmt.Errorf("loading rule %s: %w", ruleID, err)
	}
	if !rule.Enabled {
		return nil
	}
	return r.cache.Add(ctx, rule.DeviceID, rule.ID)
}

type redisCache struct {
	client *redis.Client
}

func assocKey(deviceID string) string {
	return fmt.Sprintf("device:%s:rules", deviceID)
}

func (c *redisCache) Members(ctx context.Context, deviceID string) ([]string, error) {
	return c.client.SMembers(ctx, assocKey(deviceID)).Result()
}

func (c *redisCache) Add(ctx context.Context, deviceID string, ruleID string) error {
	return c.client.SAdd(ctx, assocKey(deviceID), ruleID).Err()
}

func (c *redisCache) Remove(ctx context.Context, deviceID string, ruleID string) error {
	return c.client.SRem(ctx, assocKey(deviceID), ruleID).Err()
}

func (c *redisCache) Clear(ctx context.Context) error {
	keys, err := c.client.Keys(ctx, "device:*:rules").Result()
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := c.client.Del(ctx, key).Err(); err != nil {
			return err
		}
	}
	return nil
}
