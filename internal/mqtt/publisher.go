package mqtt

import (
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher is the fire-and-forget publish surface the pipeline and the
// dispatcher use. The broker's qos 1 gives at-least-once delivery; no
// caller waits for confirmation.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte)
}

type pahoPublisher struct {
	client mqtt.Client
}

// NewPublisher wraps a connected paho client. Delivery failures are logged
// off the caller's path.
func NewPublisher(client mqtt.Client) Publisher {
	return &pahoPublisher{client: client}
}

func (p *pahoPublisher) Publish(topic string, qos byte, retained bool, payload []byte) {
	token := p.client.Publish(topic, qos, retained, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			log.Printf("MQTT: Publish to %s failed: %v", topic, token.Error())
		}
	}()
}
