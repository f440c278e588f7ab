package controller

import (
	"errors"
	"testing"

	"law-of-the-land-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestEscapeSSE(t *testing.T) {
	assert.Equal(t, "single line", escapeSSE("single line"))
	assert.Equal(t, "first\\nsecond", escapeSSE("first\nsecond"))
	assert.Equal(t, "a\\n\\nb", escapeSSE("a\n\nb"))
}

func TestMapChatError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"session not found", service.ErrSessionNotFound, fiber.StatusNotFound},
		{"turn in progress", service.ErrTurnInProgress, fiber.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapChatError(tt.err)

			var fiberErr *fiber.Error
			assert.True(t, errors.As(got, &fiberErr))
			assert.Equal(t, tt.wantCode, fiberErr.Code)
		})
	}

	// Unknown errors pass through untouched for the error middleware
	unknown := errors.New("boom")
	assert.Equal(t, unknown, mapChatError(unknown))
}
