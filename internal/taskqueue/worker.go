package taskqueue

import (
	"log"

	"github.com/hibiken/asynq"
)

var (
	asynqClient *asynq.Client
	asynqMux    = asynq.NewServeMux()
	asynqSrv    *asynq.Server
)

// Init creates the Asynq client. Must run before anything can enqueue,
// so callers do this synchronously at startup rather than from the
// worker goroutine.
func Init(redisAddr string) {
	asynqClient = asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
}

// StartWorkers starts the Asynq worker pool. Blocks until the server
// stops, so callers run it in a goroutine.
func StartWorkers(redisAddr string) {
	log.Printf("TASKQUEUE: Starting workers with Redis at %s", redisAddr)
	if asynqClient == nil {
		Init(redisAddr)
	}
	asynqMux.HandleFunc(TypeStateProcess, processStateTask)
	asynqSrv = asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{Concurrency: 10})
	if err := asynqSrv.Run(asynqMux); err != nil {
		log.Fatalf("TASKQUEUE: Failed to start workers: %v", err)
	}
}

// StopWorkers stops workers
func StopWorkers() {
	if asynqSrv != nil {
		asynqSrv.Stop()
	}
	if asynqClient != nil {
		asynqClient.Close()
		asynqClient = nil
	}
	log.Println("TASKQUEUE: Workers stopped")
}
