package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadCoalesceConfigDefaults(t *testing.T) {
	cfg, err := LoadCoalesceConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.MessageDelay != 5*time.Second {
		t.Errorf("expected default message delay 5s, got %v", cfg.MessageDelay)
	}
	if cfg.MaxBatchSize != 10 {
		t.Errorf("expected default max batch size 10, got %d", cfg.MaxBatchSize)
	}
	if cfg.MaxWaitTime != 30*time.Second {
		t.Errorf("expected default max wait time 30s, got %v", cfg.MaxWaitTime)
	}
	if cfg.ProcessingTimeout != 60*time.Second {
		t.Errorf("expected default processing timeout 60s, got %v", cfg.ProcessingTimeout)
	}
	if cfg.ResponseTTL != 10*time.Minute {
		t.Errorf("expected default response TTL 10m, got %v", cfg.ResponseTTL)
	}
	if cfg.TimerMarkerMargin != 2*time.Second {
		t.Errorf("expected default timer marker margin 2s, got %v", cfg.TimerMarkerMargin)
	}
}

func TestLoadCoalesceConfigFromEnv(t *testing.T) {
	t.Setenv(messageDelayEnv, "1500")
	t.Setenv(maxBatchSizeEnv, "5")
	t.Setenv(maxWaitTimeEnv, "20000")

	cfg, err := LoadCoalesceConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.MessageDelay != 1500*time.Millisecond {
		t.Errorf("expected message delay 1.5s, got %v", cfg.MessageDelay)
	}
	if cfg.MaxBatchSize != 5 {
		t.Errorf("expected max batch size 5, got %d", cfg.MaxBatchSize)
	}
	if cfg.MaxWaitTime != 20*time.Second {
		t.Errorf("expected max wait time 20s, got %v", cfg.MaxWaitTime)
	}
}

func TestLoadCoalesceConfigInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		value   string
		wantErr error
	}{
		{name: "non-numeric delay", env: messageDelayEnv, value: "abc", wantErr: ErrInvalidCoalesceDuration},
		{name: "zero delay", env: messageDelayEnv, value: "0", wantErr: ErrInvalidCoalesceDuration},
		{name: "negative wait time", env: maxWaitTimeEnv, value: "-100", wantErr: ErrInvalidCoalesceDuration},
		{name: "non-numeric batch size", env: maxBatchSizeEnv, value: "many", wantErr: ErrInvalidMaxBatchSize},
		{name: "zero batch size", env: maxBatchSizeEnv, value: "0", wantErr: ErrInvalidMaxBatchSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)

			_, err := LoadCoalesceConfig()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCoalesceConfigValidate(t *testing.T) {
	cfg := &CoalesceConfig{
		MessageDelay: 10 * time.Second,
		MaxWaitTime:  5 * time.Second,
	}
	if err := cfg.Validate(); !errors.Is(err, ErrDelayExceedsWindow) {
		t.Errorf("expected ErrDelayExceedsWindow, got %v", err)
	}

	cfg.MaxWaitTime = 30 * time.Second
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}
