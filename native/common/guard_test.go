package common

import (
	"errors"
	"testing"
)

func TestGuardNilPauseView(t *testing.T) {
	if err := Guard(nil, "authority_recompute"); err != nil {
		t.Fatalf("expected nil error for nil PauseView, got %v", err)
	}
}

func TestPauseRegistrySetPaused(t *testing.T) {
	reg := NewPauseRegistry()

	if err := Guard(reg, "anomaly_scan"); err != nil {
		t.Fatalf("expected unpaused module to pass guard, got %v", err)
	}

	reg.SetPaused("anomaly_scan", true)
	if err := Guard(reg, "anomaly_scan"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := Guard(reg, "sybil_recompute"); err != nil {
		t.Fatalf("expected other modules to remain unaffected, got %v", err)
	}

	reg.SetPaused("anomaly_scan", false)
	if err := Guard(reg, "anomaly_scan"); err != nil {
		t.Fatalf("expected resumed module to pass guard, got %v", err)
	}
}

func TestPauseRegistryPausedModules(t *testing.T) {
	reg := NewPauseRegistry()
	reg.SetPaused("score_recompute", true)
	reg.SetPaused("subscription_sweep", true)

	paused := reg.PausedModules()
	if len(paused) != 2 {
		t.Fatalf("expected 2 paused modules, got %d: %v", len(paused), paused)
	}
}
