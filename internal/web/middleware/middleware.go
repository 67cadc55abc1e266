package middleware

import (
	"homehub/auth"
)

type MiddlewareManager struct {
	auth *auth.AuthModule
}

func NewMiddlewareManager(auth *auth.AuthModule) *MiddlewareManager {
	return &MiddlewareManager{auth: auth}
}
