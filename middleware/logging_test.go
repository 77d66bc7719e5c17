package middleware

import (
	"context"
	"sync"
	"testing"

	"github.com/felixgeelhaar/mcp-wire/protocol"
)

// captureLogger records log calls for assertions.
type captureLogger struct {
	mu      sync.Mutex
	entries []capturedEntry
}

type capturedEntry struct {
	level  string
	msg    string
	fields []Field
}

func (c *captureLogger) log(level, msg string, fields []Field) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, capturedEntry{level: level, msg: msg, fields: fields})
}

func (c *captureLogger) Info(msg string, fields ...Field)  { c.log("info", msg, fields) }
func (c *captureLogger) Error(msg string, fields ...Field) { c.log("error", msg, fields) }
func (c *captureLogger) Debug(msg string, fields ...Field) { c.log("debug", msg, fields) }
func (c *captureLogger) Warn(msg string, fields ...Field)  { c.log("warn", msg, fields) }

func (c *captureLogger) byLevel(level string) []capturedEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []capturedEntry
	for _, e := range c.entries {
		if e.level == level {
			out = append(out, e)
		}
	}
	return out
}

func TestLogging(t *testing.T) {
	t.Run("logs successful requests at info", func(t *testing.T) {
		logger := &captureLogger{}
		handler := Logging(logger)(
			func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
				return protocol.NewResponse(req.ID, "ok"), nil
			})

		_, _ = handler(context.Background(), &protocol.Request{Method: "tools/list"})

		if len(logger.byLevel("info")) == 0 {
			t.Error("no info entry logged")
		}
		if n := len(logger.byLevel("error")); n != 0 {
			t.Errorf("got %d error entries, want 0", n)
		}
	})

	t.Run("logs failed requests at error", func(t *testing.T) {
		logger := &captureLogger{}
		handler := Logging(logger)(
			func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
				return nil, protocol.NewInternalError("boom")
			})

		_, _ = handler(context.Background(), &protocol.Request{Method: "tools/call"})

		if len(logger.byLevel("error")) == 0 {
			t.Error("no error entry logged")
		}
	})

	t.Run("nop logger swallows everything", func(t *testing.T) {
		handler := Logging(NopLogger{})(
			func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
				return nil, protocol.NewInternalError("boom")
			})

		// Only checking that nothing panics.
		_, _ = handler(context.Background(), &protocol.Request{Method: "test"})
	})
}
