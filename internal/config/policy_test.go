package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.MissPenalty != 5 {
		t.Errorf("miss penalty: want 5, got %d", p.MissPenalty)
	}
	if p.CompletionReward != 2 {
		t.Errorf("completion reward: want 2, got %d", p.CompletionReward)
	}
	if p.WebhookTimeout != 5*time.Second {
		t.Errorf("webhook timeout: want 5s, got %s", p.WebhookTimeout)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("default policy invalid: %v", err)
	}
}

func TestLoadPolicyPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("miss_penalty: 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}
	if p.MissPenalty != 10 {
		t.Errorf("miss penalty: want 10, got %d", p.MissPenalty)
	}
	// Omitted fields keep defaults.
	if p.CompletionReward != 2 {
		t.Errorf("completion reward: want default 2, got %d", p.CompletionReward)
	}
}

func TestLoadPolicyRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("miss_penalty: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadPolicy(path); err == nil {
		t.Fatal("expected error for negative miss_penalty")
	}
}
