package models

import "time"

// Device is the persisted per-device document. At most one live row per
// device id; attributes are merged key-wise on every state message.
type Device struct {
	ID         string     `json:"id"`
	HomeID     string     `json:"home_id"`
	TypeID     string     `json:"type_id"`
	Name       string     `json:"name"`
	Attributes Attributes `json:"attributes"`
	CreateTime time.Time  `json:"create_time"`
	LastUpdate time.Time  `json:"last_update"`
}

// Rule watches one device and fires its command list when the condition
// holds. The condition string is validated at registration time.
type Rule struct {
	ID         string    `json:"id"`
	DeviceID   string    `json:"device_id"`
	Name       string    `json:"name"`
	Condition  string    `json:"condition"`
	Commands   []string  `json:"commands"`
	Enabled    bool      `json:"enabled"`
	CreateTime time.Time `json:"create_time"`
}

// Command is a dispatchable opcode for a target device.
type Command struct {
	ID          string    `json:"id"`
	DeviceID    string    `json:"device_id"`
	Name        string    `json:"name"`
	Code        int       `json:"code"`
	CodeMessage string    `json:"code_message"`
	CreateTime  time.Time `json:"create_time"`
}

// Home groups devices under an owner.
type Home struct {
	ID         string    `json:"id"`
	Owner      string    `json:"owner"`
	Members    []string  `json:"members"`
	Devices    []string  `json:"devices"`
	CreateTime time.Time `json:"create_time"`
}

// DeviceType carries the attribute defaults new devices start from.
type DeviceType struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	DefaultAttributes Attributes `json:"default_attributes"`
	CreateTime        time.Time  `json:"create_time"`
}

// User is an account with an optional home association.
type User struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Password   string    `json:"-"`
	HomeID     string    `json:"home_id"`
	Role       string    `json:"role"`
	CreateTime time.Time `json:"create_time"`
}

// StateUpdate is the inbound device-state message body.
type StateUpdate struct {
	DeviceID   string     `json:"device_id"`
	Attributes Attributes `json:"attributes"`
}

// CommandMessage is the wire shape published to a device's command topic.
type CommandMessage struct {
	Command CommandBody `json:"command"`
}

type CommandBody struct {
	Code        int    `json:"code"`
	CodeMessage string `json:"code_message"`
}
