package config

import "testing"

func TestManagerRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	mgr, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	// Missing file yields an empty config, not an error
	cfg, err := mgr.Load()
	if err != nil {
		t.Fatalf("Load of missing config failed: %v", err)
	}
	if *cfg != (Config{}) {
		t.Errorf("expected empty config, got %+v", cfg)
	}

	want := &Config{
		Provider: "anthropic",
		APIKey:   "sk-test",
		Model:    "claude-3-sonnet-20240229",
		Store:    "sqlite",
	}
	if err := mgr.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := mgr.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if *got != *want {
		t.Errorf("round trip mismatch: %+v != %+v", got, want)
	}
}
