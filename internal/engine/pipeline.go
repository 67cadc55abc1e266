package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"homehub/internal/models"
	"homehub/internal/rules"
	"homehub/internal/utils"
)

// ErrMalformedPayload marks an inbound message whose shape does not match
// {device_id, attributes}. Such messages are dropped, never retried.
var ErrMalformedPayload = errors.New("malformed payload")

// ProcessMessage runs one pipeline pass over a raw inbound payload.
//
// A non-nil return means the merge failed and the message is worth
// retrying; every failure after a successful merge is logged and swallowed
// so that no single rule or command aborts the rest, and a redelivered
// message re-merges idempotently.
func (e *Engine) ProcessMessage(ctx context.Context, payload []byte) error {
	upd, err := decodeStateUpdate(payload)
	if err != nil {
		log.Printf("ENGINE: %v, dropping message", err)
		return nil
	}

	device, err := e.store.MergeDeviceAttributes(ctx, upd.DeviceID, upd.Attributes, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("merging state for device %s: %w", upd.DeviceID, err)
	}

	doc, err := json.Marshal(device)
	if err != nil {
		log.Printf("ENGINE: Failed to encode merged document for %s: %v", device.ID, err)
		return nil
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, fmt.Sprintf("device:%s", device.ID), doc, time.Hour).Err(); err != nil {
			log.Printf("ENGINE: State cache write failed for %s: %v", device.ID, err)
		}
	}

	e.pub.Publish(utils.StateTopic(device.ID), 1, false, doc)

	if e.onState != nil {
		e.onState(device)
	}

	e.evaluateRules(ctx, device)
	return nil
}

// evaluateRules runs every registered rule for the device against its
// merged attributes, dispatching the commands of each rule that holds.
// Failures are isolated per rule and per command.
func (e *Engine) evaluateRules(ctx context.Context, device *models.Device) {
	deviceRules, err := e.registry.RulesForDevice(ctx, device.ID)
	if err != nil {
		log.Printf("ENGINE: Rule lookup failed for device %s: %v", device.ID, err)
		return
	}

	for _, rule := range deviceRules {
		cond, err := rules.ParseCondition(rule.Condition)
		if err != nil {
			// Registration validates conditions, so this only happens for
			// rows written before validation existed.
			log.Printf("ENGINE: Rule %s has unparseable condition %q: %v", rule.ID, rule.Condition, err)
			continue
		}

		triggered, err := cond.Evaluate(device.Attributes)
		if err != nil {
			log.Printf("ENGINE: Rule %s did not fire (condition %q): %v", rule.ID, rule.Condition, err)
			continue
		}
		if !triggered {
			continue
		}

		log.Printf("ENGINE: Rule %s triggered for device %s, dispatching %d commands", rule.ID, device.ID, len(rule.Commands))
		for _, commandID := range rule.Commands {
			if err := e.dispatcher.Dispatch(ctx, commandID); err != nil {
				log.Printf("ENGINE: Dispatch of command %s for rule %s failed: %v", commandID, rule.ID, err)
			}
		}
	}
}

func decodeStateUpdate(payload []byte) (*models.StateUpdate, error) {
	var upd models.StateUpdate
	if err := json.Unmarshal(payload, &upd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if upd.DeviceID == "" {
		return nil, fmt.Errorf("%w: missing device_id", ErrMalformedPayload)
	}
	if upd.Attributes == nil {
		return nil, fmt.Errorf("%w: missing attributes", ErrMalformedPayload)
	}
	return &upd, nil
}
