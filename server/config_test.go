package server

import (
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("identical fields compare equal", func(t *testing.T) {
		a := NewConfig("srv", "1.0.0", WithDebug(true), WithMaxConnections(8))
		b := NewConfig("srv", "1.0.0", WithDebug(true), WithMaxConnections(8))

		if !a.Equal(b) {
			t.Error("configs with identical fields are not equal")
		}
		if a.Hash() != b.Hash() {
			t.Error("equal configs hash differently")
		}
	})

	t.Run("different fields compare unequal", func(t *testing.T) {
		a := NewConfig("srv", "1.0.0")
		b := NewConfig("srv", "2.0.0")

		if a.Equal(b) {
			t.Error("configs with different versions compare equal")
		}
		if a.Hash() == b.Hash() {
			t.Error("distinct configs share a hash")
		}
	})

	t.Run("with derives a new value without mutating the receiver", func(t *testing.T) {
		base := NewConfig("srv", "1.0.0")
		derived := base.With(WithDebug(true), WithRequestTimeout(5*time.Second))

		if base.Debug {
			t.Error("receiver was mutated")
		}
		if !derived.Debug || derived.RequestTimeout != 5*time.Second {
			t.Errorf("derived = %+v", derived)
		}
		if derived.Name != "srv" || derived.Version != "1.0.0" {
			t.Error("derivation lost unchanged fields")
		}
	})

	t.Run("same overrides produce identical derivations", func(t *testing.T) {
		base := NewConfig("srv", "1.0.0")
		a := base.With(WithMetrics(true))
		b := base.With(WithMetrics(true))

		if !a.Equal(b) {
			t.Error("identical overrides produced different values")
		}
	})

	t.Run("defaults", func(t *testing.T) {
		cfg := NewConfig("srv", "1.0.0")

		if cfg.MaxConnections != 0 {
			t.Errorf("MaxConnections = %d, want 0 (unlimited)", cfg.MaxConnections)
		}
		if cfg.RequestTimeout != 30*time.Second {
			t.Errorf("RequestTimeout = %v, want 30s", cfg.RequestTimeout)
		}
		if cfg.Debug || cfg.Metrics {
			t.Error("debug/metrics enabled by default")
		}
	})
}
