package transport

import (
	"reflect"
	"testing"
)

func TestSSEConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := NewSSEConfig()

		if cfg.Endpoint != "/sse" {
			t.Errorf("Endpoint = %q, want /sse", cfg.Endpoint)
		}
		if cfg.MessageEndpoint != "/message" {
			t.Errorf("MessageEndpoint = %q, want /message", cfg.MessageEndpoint)
		}
		if cfg.Host != "localhost" || cfg.Port != 8080 {
			t.Errorf("addr = %s:%d, want localhost:8080", cfg.Host, cfg.Port)
		}
		if len(cfg.FallbackPorts) != 0 {
			t.Errorf("FallbackPorts = %v, want empty", cfg.FallbackPorts)
		}
		if cfg.AuthToken != "" {
			t.Errorf("AuthToken = %q, want empty", cfg.AuthToken)
		}
	})

	t.Run("options override defaults", func(t *testing.T) {
		cfg := NewSSEConfig(
			WithSSEEndpoint("/events"),
			WithSSEHost("0.0.0.0"),
			WithSSEPort(9000),
			WithSSEAuthToken("secret"),
		)

		if cfg.Endpoint != "/events" || cfg.Host != "0.0.0.0" || cfg.Port != 9000 {
			t.Errorf("unexpected config %+v", cfg)
		}
		if cfg.AuthToken != "secret" {
			t.Errorf("AuthToken = %q, want secret", cfg.AuthToken)
		}
	})

	t.Run("port convenience computes fallback ports", func(t *testing.T) {
		cfg := SSEConfigForPort(3000)

		if cfg.Port != 3000 {
			t.Errorf("Port = %d, want 3000", cfg.Port)
		}
		if want := []int{3001, 3002, 3003}; !reflect.DeepEqual(cfg.FallbackPorts, want) {
			t.Errorf("FallbackPorts = %v, want %v", cfg.FallbackPorts, want)
		}
	})
}

func TestStreamableHTTPConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := NewStreamableHTTPConfig()

		if cfg.Host != "localhost" || cfg.Port != 8080 {
			t.Errorf("addr = %s:%d, want localhost:8080", cfg.Host, cfg.Port)
		}
		if cfg.Endpoint != "/messages" {
			t.Errorf("Endpoint = %q, want /messages", cfg.Endpoint)
		}
		if cfg.MessageEndpoint != "/message" {
			t.Errorf("MessageEndpoint = %q, want /message", cfg.MessageEndpoint)
		}
		if cfg.JSONResponse {
			t.Error("JSONResponse = true, want false")
		}
		if len(cfg.FallbackPorts) != 0 {
			t.Errorf("FallbackPorts = %v, want empty", cfg.FallbackPorts)
		}
	})

	t.Run("port convenience computes next three fallback ports", func(t *testing.T) {
		cfg := StreamableHTTPConfigForPort(8080)

		if want := []int{8081, 8082, 8083}; !reflect.DeepEqual(cfg.FallbackPorts, want) {
			t.Errorf("FallbackPorts = %v, want %v", cfg.FallbackPorts, want)
		}
	})

	t.Run("explicit fallback ports are preserved", func(t *testing.T) {
		cfg := StreamableHTTPConfigForPort(8080, WithStreamableFallbackPorts(9001, 9002))

		if want := []int{9001, 9002}; !reflect.DeepEqual(cfg.FallbackPorts, want) {
			t.Errorf("FallbackPorts = %v, want %v", cfg.FallbackPorts, want)
		}
	})

	t.Run("json response flag", func(t *testing.T) {
		cfg := NewStreamableHTTPConfig(WithStreamableJSONResponse(true))

		if !cfg.JSONResponse {
			t.Error("JSONResponse = false, want true")
		}
	})
}
