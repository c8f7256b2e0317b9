package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserError(t *testing.T) {
	cause := errors.New("disk full")
	err := NewUserError("Could not save snapshot", cause)

	assert.Equal(t, "Could not save snapshot: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Could not save snapshot", UserMessage(fmt.Errorf("compile: %w", err)))
	assert.Equal(t, "plain", UserMessage(errors.New("plain")))
	assert.Equal(t, "bare", NewUserError("bare", nil).Error())
}
