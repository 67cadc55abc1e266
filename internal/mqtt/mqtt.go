package mqtt

import (
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// NewMQTTClient creates a connected MQTT client. Reconnects are left to
// paho's auto-reconnect so a broker restart does not kill the subscriber.
func NewMQTTClient(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetCleanSession(false)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return client, nil
}
