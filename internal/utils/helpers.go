package utils

import "fmt"

const (
	// StateUpdateTopic is the inbound device-state topic.
	StateUpdateTopic = "device/state_update"
)

// StateTopic returns the per-device topic merged state is republished to.
func StateTopic(deviceID string) string {
	return fmt.Sprintf("%s/%s", StateUpdateTopic, deviceID)
}

// CommandTopic returns the per-device command topic.
func CommandTopic(deviceID string) string {
	return fmt.Sprintf("device/command/%s", deviceID)
}
