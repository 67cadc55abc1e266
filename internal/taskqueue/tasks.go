package taskqueue

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

// TypeStateProcess re-runs the pipeline on a state message whose merge
// failed while the store was unavailable.
const TypeStateProcess = "state_update:process"

// processor is installed by the main application; it points at the
// engine's ProcessMessage.
var processor func(ctx context.Context, payload []byte) error

// SetStateProcessor wires the pipeline entry point the retry worker calls.
func SetStateProcessor(fn func(ctx context.Context, payload []byte) error) {
	processor = fn
}

// EnqueueStateRetry queues a raw state message for retried processing.
// Asynq retries with exponential backoff; exhaustion drops the message and
// upstream at-least-once redelivery takes over.
func EnqueueStateRetry(payload []byte) error {
	if asynqClient == nil {
		return fmt.Errorf("taskqueue not started")
	}
	task := asynq.NewTask(TypeStateProcess, payload)
	info, err := asynqClient.Enqueue(task, asynq.MaxRetry(5), asynq.Timeout(10*time.Second))
	if err != nil {
		return fmt.Errorf("enqueueing state retry: %w", err)
	}
	log.Printf("TASKQUEUE: Queued state message for retry as task %s", info.ID)
	return nil
}

func processStateTask(ctx context.Context, t *asynq.Task) error {
	if processor == nil {
		return fmt.Errorf("no state processor installed: %w", asynq.SkipRetry)
	}
	if err := processor(ctx, t.Payload()); err != nil {
		log.Printf("TASKQUEUE: State retry still failing: %v", err)
		return err
	}
	return nil
}
