package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// syncBuffer provides thread-safe access to a bytes.Buffer.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (s *syncBuffer) Write(p []byte) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestNewInterruptHandler(t *testing.T) {
	tests := []struct {
		writer io.Writer
		name   string
	}{
		{name: "with custom writer", writer: &bytes.Buffer{}},
		{name: "with nil writer", writer: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewInterruptHandler(tt.writer, "Compile")
			assert.NotNil(t, handler)
			assert.NotNil(t, handler.writer)
			assert.False(t, handler.WasInterrupted())
		})
	}
}

func TestInterruptHandler_StopCancels(t *testing.T) {
	handler := NewInterruptHandler(&syncBuffer{}, "Server")
	ctx := handler.HandleInterrupts(context.Background())

	select {
	case <-ctx.Done():
		t.Fatal("context should not be canceled initially")
	default:
	}

	handler.Stop()
	handler.Stop()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("Stop should cancel the context")
	}
	assert.False(t, handler.WasInterrupted())
}

func TestInterruptHandler_ParentCancel(t *testing.T) {
	handler := NewInterruptHandler(&syncBuffer{}, "Compile")
	parent, cancel := context.WithCancel(context.Background())
	ctx := handler.HandleInterrupts(parent)
	defer handler.Stop()

	cancel()
	<-ctx.Done()
	assert.False(t, handler.WasInterrupted(), "parent cancellation is not an interrupt")
}

func TestInterruptHandler_MessageShownOnce(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output, "Compile")

	handler.markInterrupted()
	handler.markInterrupted()

	assert.True(t, handler.WasInterrupted())
	assert.Equal(t, 1, strings.Count(output.String(), "Compile interrupted"))
}
