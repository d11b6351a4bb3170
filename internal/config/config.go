// Package config holds the engine's tunable parameters, loadable from a
// YAML file and validated before use.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full set of tunables enumerated in the external interface spec.
type Config struct {
	DefaultSLPercent float64 `yaml:"default_sl_percent"`
	DefaultTPPercent float64 `yaml:"default_tp_percent"`

	MinSignalConfidence float64 `yaml:"min_signal_confidence"`

	AccountEquity        float64 `yaml:"account_equity"`
	RiskPerTradePercent  float64 `yaml:"risk_per_trade_percent"`

	BatchSizeScreener  int `yaml:"batch_size_screener"`
	BatchSizeRegime    int `yaml:"batch_size_regime"`
	BatchInterDelayMs  int `yaml:"batch_inter_delay_ms"`

	RequestTimeoutMs int `yaml:"request_timeout_ms"`

	CircuitBreakerThreshold  int `yaml:"circuit_breaker_threshold"`
	CircuitBreakerCooldownMs int `yaml:"circuit_breaker_cooldown_ms"`

	PatternLearningVelocity    float64 `yaml:"pattern_learning_velocity"`
	MinFeedbackThreshold       int     `yaml:"min_feedback_threshold"`
	SentimentNegativeThreshold float64 `yaml:"sentiment_negative_threshold"`
	SentimentPositiveThreshold float64 `yaml:"sentiment_positive_threshold"`

	DefaultRiskReward float64 `yaml:"default_risk_reward"`
}

// Default returns the engine's out-of-the-box configuration.
func Default() *Config {
	return &Config{
		DefaultSLPercent: 0.003,
		DefaultTPPercent: 0.007,

		MinSignalConfidence: 0.6,

		AccountEquity:       10000,
		RiskPerTradePercent: 1.0,

		BatchSizeScreener: 15,
		BatchSizeRegime:   10,
		BatchInterDelayMs: 250,

		RequestTimeoutMs: 30000,

		CircuitBreakerThreshold:  3,
		CircuitBreakerCooldownMs: 60000,

		PatternLearningVelocity:    0.15,
		MinFeedbackThreshold:       3,
		SentimentNegativeThreshold: -0.25,
		SentimentPositiveThreshold: 0.40,

		DefaultRiskReward: 2.0,
	}
}

// RequestTimeout returns RequestTimeoutMs as a time.Duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// CircuitBreakerCooldown returns CircuitBreakerCooldownMs as a time.Duration.
func (c *Config) CircuitBreakerCooldown() time.Duration {
	return time.Duration(c.CircuitBreakerCooldownMs) * time.Millisecond

}

// LoadFromFile reads and validates a YAML config file, falling back to
// Default() for any zero-valued field left unset by the file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate enforces the numeric bounds each tunable must stay within.
func (c *Config) Validate() error {
	if c.MinSignalConfidence < 0 || c.MinSignalConfidence > 1 {
		return fmt.Errorf("min_signal_confidence must be in [0,1], got %v", c.MinSignalConfidence)
	}
	if c.BatchSizeScreener <= 0 || c.BatchSizeRegime <= 0 {
		return fmt.Errorf("batch sizes must be positive")
	}
	if c.CircuitBreakerThreshold <= 0 {
		return fmt.Errorf("circuit_breaker_threshold must be positive")
	}
	if c.BatchInterDelayMs < 100 || c.BatchInterDelayMs > 1000 {
		return fmt.Errorf("batch_inter_delay_ms must be in [100,1000], got %v", c.BatchInterDelayMs)
	}
	return nil
}
