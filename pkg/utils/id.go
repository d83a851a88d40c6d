package utils

import (
	"github.com/google/uuid"
)

// NewID returns a random UUIDv4 used as an entity id.
func NewID() string {
	return uuid.NewString()
}

// GenerateRequestID returns an id for correlating one HTTP request in logs.
func GenerateRequestID() string {
	return "req_" + uuid.NewString()
}
