package taskqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueStateRetryRequiresInit(t *testing.T) {
	asynqClient = nil

	err := EnqueueStateRetry([]byte(`{"device_id":"dev1"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not started")
}

func TestInitCreatesClient(t *testing.T) {
	asynqClient = nil
	t.Cleanup(func() {
		asynqClient.Close()
		asynqClient = nil
	})

	Init("localhost:6379")
	assert.NotNil(t, asynqClient)
}
