package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/felixgeelhaar/mcp-wire/protocol"
	"github.com/felixgeelhaar/mcp-wire/transport"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func receive(t *testing.T, ch <-chan transport.Message) *protocol.Response {
	t.Helper()

	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("client stream closed before response")
		}
		var resp protocol.Response
		if err := json.Unmarshal(msg, &resp); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		return &resp
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for response")
		return nil
	}
}

func TestServer_Connect(t *testing.T) {
	t.Run("answers ping over an in-memory transport", func(t *testing.T) {
		srv := New(NewConfig("test", "1.0.0"), WithLogger(quietLogger()))
		tr := transport.NewInMemory()
		defer tr.Close()

		if err := srv.Connect(context.Background(), tr); err != nil {
			t.Fatalf("Connect() error: %v", err)
		}

		client := tr.Client()
		out := client.Messages()

		_ = client.Deliver(transport.Message(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))

		resp := receive(t, out)
		if resp.Error != nil {
			t.Fatalf("unexpected error: %v", resp.Error)
		}
		if string(resp.ID) != "1" {
			t.Errorf("ID = %s, want 1", resp.ID)
		}
	})

	t.Run("initialize advertises configured capabilities", func(t *testing.T) {
		cfg := NewConfig("test", "2.0.0", WithCapabilities(Capabilities{Tools: true}))
		srv := New(cfg, WithLogger(quietLogger()))
		tr := transport.NewInMemory()
		defer tr.Close()

		if err := srv.Connect(context.Background(), tr); err != nil {
			t.Fatalf("Connect() error: %v", err)
		}

		client := tr.Client()
		out := client.Messages()
		_ = client.Deliver(transport.Message(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`))

		resp := receive(t, out)
		result, ok := resp.Result.(map[string]any)
		if !ok {
			t.Fatalf("result = %T", resp.Result)
		}
		info, _ := result["serverInfo"].(map[string]any)
		if info["name"] != "test" || info["version"] != "2.0.0" {
			t.Errorf("serverInfo = %v", info)
		}
		caps, _ := result["capabilities"].(map[string]any)
		if _, ok := caps["tools"]; !ok {
			t.Errorf("capabilities = %v, want tools", caps)
		}
	})

	t.Run("unknown method yields method-not-found", func(t *testing.T) {
		srv := New(NewConfig("test", "1.0.0"), WithLogger(quietLogger()))
		tr := transport.NewInMemory()
		defer tr.Close()

		if err := srv.Connect(context.Background(), tr); err != nil {
			t.Fatalf("Connect() error: %v", err)
		}

		client := tr.Client()
		out := client.Messages()
		_ = client.Deliver(transport.Message(`{"jsonrpc":"2.0","id":2,"method":"no/such"}`))

		resp := receive(t, out)
		if resp.Error == nil || resp.Error.Code != protocol.CodeMethodNotFound {
			t.Errorf("error = %v, want method not found", resp.Error)
		}
	})

	t.Run("notification produces no response", func(t *testing.T) {
		srv := New(NewConfig("test", "1.0.0"), WithLogger(quietLogger()))
		tr := transport.NewInMemory()
		defer tr.Close()

		if err := srv.Connect(context.Background(), tr); err != nil {
			t.Fatalf("Connect() error: %v", err)
		}

		client := tr.Client()
		out := client.Messages()
		_ = client.Deliver(transport.Message(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))

		select {
		case msg := <-out:
			t.Errorf("unexpected response %s", msg)
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("malformed message yields parse error", func(t *testing.T) {
		srv := New(NewConfig("test", "1.0.0"), WithLogger(quietLogger()))
		tr := transport.NewInMemory()
		defer tr.Close()

		if err := srv.Connect(context.Background(), tr); err != nil {
			t.Fatalf("Connect() error: %v", err)
		}

		client := tr.Client()
		out := client.Messages()
		_ = client.Deliver(transport.Message(`{not json`))

		resp := receive(t, out)
		if resp.Error == nil || resp.Error.Code != protocol.CodeParseError {
			t.Errorf("error = %v, want parse error", resp.Error)
		}
	})

	t.Run("custom handler serves unknown methods", func(t *testing.T) {
		handler := HandlerFunc(func(_ context.Context, req *protocol.Request) (*protocol.Response, error) {
			return protocol.NewResponse(req.ID, "handled"), nil
		})
		srv := New(NewConfig("test", "1.0.0"), WithLogger(quietLogger()), WithHandler(handler))
		tr := transport.NewInMemory()
		defer tr.Close()

		if err := srv.Connect(context.Background(), tr); err != nil {
			t.Fatalf("Connect() error: %v", err)
		}

		client := tr.Client()
		out := client.Messages()
		_ = client.Deliver(transport.Message(`{"jsonrpc":"2.0","id":3,"method":"custom/thing"}`))

		resp := receive(t, out)
		if resp.Result != "handled" {
			t.Errorf("result = %v, want handled", resp.Result)
		}
	})

	t.Run("second connect is rejected", func(t *testing.T) {
		srv := New(NewConfig("test", "1.0.0"), WithLogger(quietLogger()))
		tr := transport.NewInMemory()
		defer tr.Close()

		if err := srv.Connect(context.Background(), tr); err != nil {
			t.Fatalf("Connect() error: %v", err)
		}
		if err := srv.Connect(context.Background(), transport.NewInMemory()); err == nil {
			t.Fatal("second Connect() = nil, want error")
		}
	})

	t.Run("close tears down the transport", func(t *testing.T) {
		srv := New(NewConfig("test", "1.0.0"), WithLogger(quietLogger()))
		tr := transport.NewInMemory()

		if err := srv.Connect(context.Background(), tr); err != nil {
			t.Fatalf("Connect() error: %v", err)
		}
		if err := srv.Close(); err != nil {
			t.Fatalf("Close() error: %v", err)
		}

		select {
		case <-tr.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("transport never closed")
		}
	})
}
