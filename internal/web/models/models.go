package models

import "homehub/internal/models"

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AddHomeRequest struct {
	Owner string `json:"owner"`
}

type AddDeviceRequest struct {
	HomeID string `json:"home_id" binding:"required"`
	TypeID string `json:"type_id" binding:"required"`
	Name   string `json:"name"`
}

type AddDeviceTypeRequest struct {
	Name              string            `json:"name" binding:"required"`
	DefaultAttributes models.Attributes `json:"default_attributes"`
}

type AddEventRequest struct {
	DeviceID  string   `json:"device_id" binding:"required"`
	Name      string   `json:"name"`
	Condition string   `json:"condition" binding:"required"`
	Commands  []string `json:"commands" binding:"required"`
	Enabled   *bool    `json:"enabled"`
}

type AddCommandRequest struct {
	DeviceID    string `json:"device_id" binding:"required"`
	Name        string `json:"name"`
	Code        int    `json:"code"`
	CodeMessage string `json:"code_message"`
}
