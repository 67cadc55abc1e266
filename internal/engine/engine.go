package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"homehub/internal/models"
	"homehub/internal/mqtt"
	"homehub/internal/utils"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/redis/go-redis/v9"
)

// Per-run budget. A store stall must not wedge the consuming connection.
const defaultRunTimeout = 5 * time.Second

// StateStore merges inbound attribute deltas into persisted device state.
type StateStore interface {
	MergeDeviceAttributes(ctx context.Context, deviceID string, delta models.Attributes, ts time.Time) (*models.Device, error)
}

// RuleRegistry lists the rules watching a device.
type RuleRegistry interface {
	RulesForDevice(ctx context.Context, deviceID string) ([]models.Rule, error)
}

// CommandDispatcher resolves and publishes a single command.
type CommandDispatcher interface {
	Dispatch(ctx context.Context, commandID string) error
}

// Engine drives the state-update pipeline: decode, merge, republish,
// evaluate rules, dispatch commands. One pipeline run per inbound message;
// runs for distinct devices proceed concurrently, same-device merges
// serialize inside the store's atomic upsert.
type Engine struct {
	mqttClient paho.Client
	pub        mqtt.Publisher
	store      StateStore
	registry   RuleRegistry
	dispatcher CommandDispatcher
	cache      *redis.Client

	onState    func(*models.Device)
	retry      func(payload []byte) error
	runTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates an engine over its collaborators. cache may be nil.
func NewEngine(mqttClient paho.Client, pub mqtt.Publisher, store StateStore, registry RuleRegistry, dispatcher CommandDispatcher, cache *redis.Client) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		mqttClient: mqttClient,
		pub:        pub,
		store:      store,
		registry:   registry,
		dispatcher: dispatcher,
		cache:      cache,
		runTimeout: defaultRunTimeout,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// OnStateChange registers a listener invoked with every merged document.
func (e *Engine) OnStateChange(fn func(*models.Device)) {
	e.onState = fn
}

// SetRetryEnqueue installs the hook that hands a message to the retry
// queue when its merge fails. Without it the message is dropped and
// upstream at-least-once redelivery is relied on.
func (e *Engine) SetRetryEnqueue(fn func(payload []byte) error) {
	e.retry = fn
}

// Start subscribes to the device-state topic.
func (e *Engine) Start() error {
	log.Printf("ENGINE: Subscribing to MQTT topic: %s", utils.StateUpdateTopic)
	token := e.mqttClient.Subscribe(utils.StateUpdateTopic, 1, e.onStateUpdate)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Println("ENGINE: Started")
	return nil
}

// Stop unsubscribes and waits for in-flight pipeline runs.
func (e *Engine) Stop() {
	e.mqttClient.Unsubscribe(utils.StateUpdateTopic)
	e.cancel()
	e.wg.Wait()
	log.Println("ENGINE: Stopped")
}

func (e *Engine) onStateUpdate(_ paho.Client, msg paho.Message) {
	payload := make([]byte, len(msg.Payload()))
	copy(payload, msg.Payload())

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ctx, cancel := context.WithTimeout(e.ctx, e.runTimeout)
		defer cancel()

		if err := e.ProcessMessage(ctx, payload); err != nil {
			if e.retry == nil {
				log.Printf("ENGINE: Dropping message after merge failure (no retry queue): %v", err)
				return
			}
			if qerr := e.retry(payload); qerr != nil {
				log.Printf("ENGINE: Failed to queue message for retry, dropping: %v", qerr)
			}
		}
	}()
}
