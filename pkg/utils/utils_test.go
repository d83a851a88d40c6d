package utils

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewID(t *testing.T) {
	id1 := NewID()
	id2 := NewID()

	assert.NotEqual(t, id1, id2)
	_, err := uuid.Parse(id1)
	assert.NoError(t, err)
}

func TestGenerateRequestID(t *testing.T) {
	assert.Regexp(t, `^req_[0-9a-f-]{36}$`, GenerateRequestID())
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"normal string", "hello", "hello"},
		{"with control chars", "hello\x00world", "helloworld"},
		{"with newline", "hello\nworld", "hello\nworld"},
		{"with tabs", "hello\tworld", "hello\tworld"},
		{"with whitespace", "  hello  ", "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeString(tt.input))
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "user@example.com", NormalizeEmail("  User@Example.COM  "))
}

func TestMaskSensitive(t *testing.T) {
	assert.Equal(t, "ali***", MaskSensitive("alice@example.com", 3))
	assert.Equal(t, "***", MaskSensitive("abc", 5))
	assert.Equal(t, "żó***", MaskSensitive("żółw", 2))
}

func TestNowIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, Now().Location())
}
