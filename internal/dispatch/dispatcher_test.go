package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"homehub/internal/db"
	"homehub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCommands map[string]*models.Command

func (f fakeCommands) GetCommandByID(_ context.Context, id string) (*models.Command, error) {
	cmd, ok := f[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return cmd, nil
}

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakePublisher struct {
	messages []published
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload []byte) {
	f.messages = append(f.messages, published{topic: topic, qos: qos, payload: payload})
}

func TestDispatchPublishesCommandPayload(t *testing.T) {
	pub := &fakePublisher{}
	d := NewDispatcher(fakeCommands{
		"c1": {ID: "c1", DeviceID: "dev-7", Code: 3, CodeMessage: "open valve"},
	}, pub)

	err := d.Dispatch(context.Background(), "c1")
	require.NoError(t, err)

	require.Len(t, pub.messages, 1)
	msg := pub.messages[0]
	assert.Equal(t, "device/command/dev-7", msg.topic)
	assert.Equal(t, byte(1), msg.qos)

	var body models.CommandMessage
	require.NoError(t, json.Unmarshal(msg.payload, &body))
	assert.Equal(t, 3, body.Command.Code)
	assert.Equal(t, "open valve", body.Command.CodeMessage)
}

func TestDispatchUnknownCommand(t *testing.T) {
	pub := &fakePublisher{}
	d := NewDispatcher(fakeCommands{}, pub)

	err := d.Dispatch(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCommandNotFound)
	assert.Empty(t, pub.messages)
}
