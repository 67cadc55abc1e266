package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"homehub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	devices map[string]*models.Device
	fail    error
}

func newMemStore() *memStore {
	return &memStore{devices: make(map[string]*models.Device)}
}

func (s *memStore) MergeDeviceAttributes(_ context.Context, deviceID string, delta models.Attributes, ts time.Time) (*models.Device, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dev, ok := s.devices[deviceID]
	if !ok {
		dev = &models.Device{ID: deviceID, Attributes: models.Attributes{}, CreateTime: ts}
		s.devices[deviceID] = dev
	}
	dev.Attributes = dev.Attributes.Merge(delta)
	dev.LastUpdate = ts
	out := *dev
	return &out, nil
}

type fakeRegistry struct {
	rules map[string][]models.Rule
	err   error
}

func (f *fakeRegistry) RulesForDevice(_ context.Context, deviceID string) ([]models.Rule, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rules[deviceID], nil
}

type fakeDispatcher struct {
	calls []string
	fail  map[string]error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, commandID string) error {
	f.calls = append(f.calls, commandID)
	return f.fail[commandID]
}

type published struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	messages []published
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload []byte) {
	f.messages = append(f.messages, published{topic: topic, payload: payload})
}

func newTestEngine(store StateStore, reg RuleRegistry, disp CommandDispatcher, pub *fakePublisher) *Engine {
	return NewEngine(nil, pub, store, reg, disp, nil)
}

func stateMsg(t *testing.T, deviceID string, attrs map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"device_id": deviceID, "attributes": attrs})
	require.NoError(t, err)
	return raw
}

func TestPipelineMergesAndRepublishes(t *testing.T) {
	store := newMemStore()
	pub := &fakePublisher{}
	eng := newTestEngine(store, &fakeRegistry{}, &fakeDispatcher{}, pub)

	require.NoError(t, eng.ProcessMessage(context.Background(), stateMsg(t, "dev1", map[string]any{"temp": 18, "mode": "home"})))
	require.NoError(t, eng.ProcessMessage(context.Background(), stateMsg(t, "dev1", map[string]any{"temp": 25})))

	require.Len(t, pub.messages, 2)
	assert.Equal(t, "device/state_update/dev1", pub.messages[1].topic)

	var dev models.Device
	require.NoError(t, json.Unmarshal(pub.messages[1].payload, &dev))
	assert.Equal(t, models.IntValue(25), dev.Attributes["temp"])
	// Keys absent from the delta keep their previous values.
	assert.Equal(t, models.StringValue("home"), dev.Attributes["mode"])
}

func TestPipelineDispatchesCommandsInOrder(t *testing.T) {
	store := newMemStore()
	disp := &fakeDispatcher{}
	reg := &fakeRegistry{rules: map[string][]models.Rule{
		"dev1": {{ID: "r1", DeviceID: "dev1", Condition: "temp > 20", Commands: []string{"c1", "c2"}, Enabled: true}},
	}}
	eng := newTestEngine(store, reg, disp, &fakePublisher{})

	require.NoError(t, eng.ProcessMessage(context.Background(), stateMsg(t, "dev1", map[string]any{"temp": 25})))

	assert.Equal(t, []string{"c1", "c2"}, disp.calls)
}

func TestPipelineConditionNotMet(t *testing.T) {
	store := newMemStore()
	disp := &fakeDispatcher{}
	reg := &fakeRegistry{rules: map[string][]models.Rule{
		"dev1": {{ID: "r1", DeviceID: "dev1", Condition: "temp > 20", Commands: []string{"c1"}, Enabled: true}},
	}}
	eng := newTestEngine(store, reg, disp, &fakePublisher{})

	require.NoError(t, eng.ProcessMessage(context.Background(), stateMsg(t, "dev1", map[string]any{"temp": 10})))

	assert.Empty(t, disp.calls)
}

func TestPipelineRuleFailureIsolation(t *testing.T) {
	store := newMemStore()
	disp := &fakeDispatcher{}
	reg := &fakeRegistry{rules: map[string][]models.Rule{
		"dev1": {
			// References an attribute the device does not have: skipped.
			{ID: "r1", DeviceID: "dev1", Condition: "humidity < 50", Commands: []string{"c1"}, Enabled: true},
			{ID: "r2", DeviceID: "dev1", Condition: "temp > 20", Commands: []string{"c2"}, Enabled: true},
		},
	}}
	eng := newTestEngine(store, reg, disp, &fakePublisher{})

	require.NoError(t, eng.ProcessMessage(context.Background(), stateMsg(t, "dev1", map[string]any{"temp": 25})))

	assert.Equal(t, []string{"c2"}, disp.calls)
}

func TestPipelineCommandFailureIsolation(t *testing.T) {
	store := newMemStore()
	disp := &fakeDispatcher{fail: map[string]error{"bad": errors.New("command not found")}}
	reg := &fakeRegistry{rules: map[string][]models.Rule{
		"dev1": {{ID: "r1", DeviceID: "dev1", Condition: "temp > 20", Commands: []string{"bad", "good"}, Enabled: true}},
	}}
	eng := newTestEngine(store, reg, disp, &fakePublisher{})

	require.NoError(t, eng.ProcessMessage(context.Background(), stateMsg(t, "dev1", map[string]any{"temp": 25})))

	assert.Equal(t, []string{"bad", "good"}, disp.calls)
}

func TestPipelineMalformedPayloadDropped(t *testing.T) {
	store := newMemStore()
	disp := &fakeDispatcher{}
	pub := &fakePublisher{}
	eng := newTestEngine(store, &fakeRegistry{}, disp, pub)

	// Missing device_id: dropped, not retried.
	require.NoError(t, eng.ProcessMessage(context.Background(), []byte(`{"attributes":{"temp":1}}`)))
	// Missing attributes.
	require.NoError(t, eng.ProcessMessage(context.Background(), []byte(`{"device_id":"dev1"}`)))
	// Not JSON at all.
	require.NoError(t, eng.ProcessMessage(context.Background(), []byte(`garbage`)))

	assert.Empty(t, pub.messages)
	assert.Empty(t, store.devices)

	// The pipeline keeps working afterwards.
	require.NoError(t, eng.ProcessMessage(context.Background(), stateMsg(t, "dev1", map[string]any{"temp": 1})))
	assert.Len(t, pub.messages, 1)
}

func TestPipelineMergeFailureIsRetryable(t *testing.T) {
	store := newMemStore()
	store.fail = errors.New("connection refused")
	pub := &fakePublisher{}
	eng := newTestEngine(store, &fakeRegistry{}, &fakeDispatcher{}, pub)

	err := eng.ProcessMessage(context.Background(), stateMsg(t, "dev1", map[string]any{"temp": 1}))
	assert.Error(t, err)
	assert.Empty(t, pub.messages)
}

func TestPipelineNotifiesStateListener(t *testing.T) {
	store := newMemStore()
	eng := newTestEngine(store, &fakeRegistry{}, &fakeDispatcher{}, &fakePublisher{})

	var seen []*models.Device
	eng.OnStateChange(func(d *models.Device) { seen = append(seen, d) })

	require.NoError(t, eng.ProcessMessage(context.Background(), stateMsg(t, "dev1", map[string]any{"temp": 1})))

	require.Len(t, seen, 1)
	assert.Equal(t, "dev1", seen[0].ID)
}

func TestPipelineRuleLookupFailureDoesNotRetry(t *testing.T) {
	store := newMemStore()
	pub := &fakePublisher{}
	eng := newTestEngine(store, &fakeRegistry{err: errors.New("timeout")}, &fakeDispatcher{}, pub)

	// The merge already happened, so the message must not be requeued.
	require.NoError(t, eng.ProcessMessage(context.Background(), stateMsg(t, "dev1", map[string]any{"temp": 1})))
	assert.Len(t, pub.messages, 1)
}
