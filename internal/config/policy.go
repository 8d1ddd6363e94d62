package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy holds the tunable discipline parameters. Defaults match the
// documented behavior: a miss costs 5 points, a completion earns 2.
type Policy struct {
	// MissPenalty is subtracted from the score for each missed action.
	MissPenalty int `yaml:"miss_penalty"`
	// CompletionReward is added to the score for each completed action.
	CompletionReward int `yaml:"completion_reward"`
	// WebhookTimeout bounds each outbound webhook delivery attempt.
	WebhookTimeout time.Duration `yaml:"webhook_timeout"`
}

// DefaultPolicy returns the policy used when no policy file is set.
func DefaultPolicy() *Policy {
	return &Policy{
		MissPenalty:      5,
		CompletionReward: 2,
		WebhookTimeout:   5 * time.Second,
	}
}

// Validate checks that the policy values are usable.
func (p *Policy) Validate() error {
	if p.MissPenalty <= 0 {
		return fmt.Errorf("miss_penalty must be positive, got %d", p.MissPenalty)
	}
	if p.CompletionReward <= 0 {
		return fmt.Errorf("completion_reward must be positive, got %d", p.CompletionReward)
	}
	if p.WebhookTimeout <= 0 {
		return fmt.Errorf("webhook_timeout must be positive, got %s", p.WebhookTimeout)
	}
	return nil
}

// LoadPolicy reads a policy from a YAML file, starting from defaults so
// omitted fields keep their documented values.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	policy := DefaultPolicy()
	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	return policy, nil
}
