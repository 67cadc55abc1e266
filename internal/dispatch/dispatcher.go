package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"homehub/internal/db"
	"homehub/internal/models"
	"homehub/internal/mqtt"
	"homehub/internal/utils"
)

// ErrCommandNotFound is returned when a rule or trigger names a command id
// with no stored command behind it.
var ErrCommandNotFound = errors.New("command not found")

// CommandSource looks up stored commands.
type CommandSource interface {
	GetCommandByID(ctx context.Context, id string) (*models.Command, error)
}

// Dispatcher resolves command ids and publishes their payloads to the
// owning device's command topic.
type Dispatcher struct {
	commands CommandSource
	pub      mqtt.Publisher
}

func NewDispatcher(commands CommandSource, pub mqtt.Publisher) *Dispatcher {
	return &Dispatcher{commands: commands, pub: pub}
}

// Dispatch publishes {"command":{code,code_message}} to
// device/command/<device_id>, fire-and-forget.
func (d *Dispatcher) Dispatch(ctx context.Context, commandID string) error {
	cmd, err := d.commands.GetCommandByID(ctx, commandID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrCommandNotFound, commandID)
		}
		return fmt.Errorf("looking up command %s: %w", commandID, err)
	}

	payload, err := json.Marshal(models.CommandMessage{
		Command: models.CommandBody{Code: cmd.Code, CodeMessage: cmd.CodeMessage},
	})
	if err != nil {
		return fmt.Errorf("encoding command %s: %w", commandID, err)
	}

	topic := utils.CommandTopic(cmd.DeviceID)
	log.Printf("DISPATCH: Publishing command %s (code %d) to %s", commandID, cmd.Code, topic)
	d.pub.Publish(topic, 1, false, payload)
	return nil
}
