package registry

import (
	"context"
	"errors"
	"testing"

	"homehub/internal/db"
	"homehub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	byID     map[string]*models.Rule
	byDevice map[string][]models.Rule
	queries  int
}

func (f *fakeSource) GetRuleByID(_ context.Context, id string) (*models.Rule, error) {
	r, ok := f.byID[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return r, nil
}

func (f *fakeSource) GetRulesForDevice(_ context.Context, deviceID string) ([]models.Rule, error) {
	f.queries++
	return f.byDevice[deviceID], nil
}

func (f *fakeSource) GetAllEnabledRules(_ context.Context) ([]models.Rule, error) {
	var all []models.Rule
	for _, rules := range f.byDevice {
		all = append(all, rules...)
	}
	return all, nil
}

func TestRulesForDeviceWithoutCache(t *testing.T) {
	src := &fakeSource{byDevice: map[string][]models.Rule{
		"dev1": {
			{ID: "r1", DeviceID: "dev1", Condition: "temp > 20", Enabled: true},
			{ID: "r2", DeviceID: "dev1", Condition: "temp < 5", Enabled: true},
		},
	}}
	reg := NewRegistry(src, nil)

	rules, err := reg.RulesForDevice(context.Background(), "dev1")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "r1", rules[0].ID)

	// Each lookup is a fresh view.
	_, err = reg.RulesForDevice(context.Background(), "dev1")
	require.NoError(t, err)
	assert.Equal(t, 2, src.queries)
}

func TestRulesForDeviceUnknownDevice(t *testing.T) {
	reg := NewRegistry(&fakeSource{byDevice: map[string][]models.Rule{}}, nil)

	rules, err := reg.RulesForDevice(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, rules)
}

type fakeCache struct {
	sets    map[string][]string
	readErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{sets: map[string][]string{}}
}

func (c *fakeCache) Members(_ context.Context, deviceID string) ([]string, error) {
	if c.readErr != nil {
		return nil, c.readErr
	}
	return c.sets[deviceID], nil
}

func (c *fakeCache) Add(_ context.Context, deviceID, ruleID string) error {
	c.sets[deviceID] = append(c.sets[deviceID], ruleID)
	return nil
}

func (c *fakeCache) Remove(_ context.Context, deviceID, ruleID string) error {
	kept := c.sets[deviceID][:0]
	for _, id := range c.sets[deviceID] {
		if id != ruleID {
			kept = append(kept, id)
		}
	}
	c.sets[deviceID] = kept
	return nil
}

func (c *fakeCache) Clear(_ context.Context) error {
	c.sets = map[string][]string{}
	return nil
}

func TestRulesForDeviceUsesCachedAssociations(t *testing.T) {
	r1 := &models.Rule{ID: "r1", DeviceID: "dev1", Condition: "temp > 20", Enabled: true}
	src := &fakeSource{
		byID:     map[string]*models.Rule{"r1": r1},
		byDevice: map[string][]models.Rule{"dev1": {*r1}},
	}
	cache := newFakeCache()
	reg := NewRegistryWithCache(src, cache)

	require.NoError(t, reg.Resync(context.Background()))

	rules, err := reg.RulesForDevice(context.Background(), "dev1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "r1", rules[0].ID)
	assert.Equal(t, 0, src.queries, "populated cache should not trigger a direct device query")
}

func TestRulesForDeviceEmptySetFallsBackToStore(t *testing.T) {
	// Stored rules exist but the association set is empty, as it is
	// mid-resync or after a cache flush. The lookup must not report
	// "no rules".
	src := &fakeSource{byDevice: map[string][]models.Rule{
		"dev1": {
			{ID: "r1", DeviceID: "dev1", Condition: "temp > 20", Enabled: true},
		},
	}}
	reg := NewRegistryWithCache(src, newFakeCache())

	rules, err := reg.RulesForDevice(context.Background(), "dev1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "r1", rules[0].ID)
	assert.Equal(t, 1, src.queries)
}

func TestRulesForDeviceCacheErrorFallsBackToStore(t *testing.T) {
	src := &fakeSource{byDevice: map[string][]models.Rule{
		"dev1": {
			{ID: "r1", DeviceID: "dev1", Condition: "temp > 20", Enabled: true},
		},
	}}
	cache := newFakeCache()
	cache.readErr = errors.New("connection refused")
	reg := NewRegistryWithCache(src, cache)

	rules, err := reg.RulesForDevice(context.Background(), "dev1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
}

func TestRulesForDeviceDropsStaleAssociations(t *testing.T) {
	r2 := &models.Rule{ID: "r2", DeviceID: "dev1", Condition: "temp < 5", Enabled: true}
	src := &fakeSource{
		byID:     map[string]*models.Rule{"r2": r2},
		byDevice: map[string][]models.Rule{"dev1": {*r2}},
	}
	cache := newFakeCache()
	cache.sets["dev1"] = []string{"gone", "r2"}
	reg := NewRegistryWithCache(src, cache)

	rules, err := reg.RulesForDevice(context.Background(), "dev1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "r2", rules[0].ID)
	assert.Equal(t, []string{"r2"}, cache.sets["dev1"])
}
