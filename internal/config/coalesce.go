package config

import (
	"os"
	"strconv"
	"time"
)

const (
	messageDelayEnv      = "MESSAGE_DELAY_MS"
	maxBatchSizeEnv      = "MAX_BATCH_SIZE"
	maxWaitTimeEnv       = "MAX_WAIT_TIME_MS"
	processingTimeoutEnv = "PROCESSING_TIMEOUT_MS"
	responseTTLEnv       = "RESPONSE_TTL_MS"
	timerMarginEnv       = "TIMER_MARKER_MARGIN_MS"

	defaultMessageDelay      = 5 * time.Second
	defaultMaxBatchSize      = 10
	defaultMaxWaitTime       = 30 * time.Second
	defaultProcessingTimeout = 60 * time.Second
	defaultResponseTTL       = 10 * time.Minute
	defaultTimerMargin       = 2 * time.Second
)

// CoalesceConfig carries the five timing/size knobs of the batching engine.
type CoalesceConfig struct {
	// MessageDelay is the sliding debounce interval; every arrival pushes
	// the drain forward by this much.
	MessageDelay time.Duration
	// MaxBatchSize triggers a synchronous drain when the queue reaches it.
	MaxBatchSize int
	// MaxWaitTime is the outer ceiling: a flow drains no later than this
	// after its first message, regardless of continued arrivals.
	MaxWaitTime time.Duration
	// ProcessingTimeout is the processing lock TTL.
	ProcessingTimeout time.Duration
	// ResponseTTL is how long drain results remain queryable.
	ResponseTTL time.Duration
	// TimerMarkerMargin is added to MessageDelay for the advisory timer
	// marker's TTL.
	TimerMarkerMargin time.Duration
}

func LoadCoalesceConfig() (*CoalesceConfig, error) {
	cfg := &CoalesceConfig{
		MessageDelay:      defaultMessageDelay,
		MaxBatchSize:      defaultMaxBatchSize,
		MaxWaitTime:       defaultMaxWaitTime,
		ProcessingTimeout: defaultProcessingTimeout,
		ResponseTTL:       defaultResponseTTL,
		TimerMarkerMargin: defaultTimerMargin,
	}

	for _, f := range []struct {
		env string
		dst *time.Duration
	}{
		{messageDelayEnv, &cfg.MessageDelay},
		{maxWaitTimeEnv, &cfg.MaxWaitTime},
		{processingTimeoutEnv, &cfg.ProcessingTimeout},
		{responseTTLEnv, &cfg.ResponseTTL},
		{timerMarginEnv, &cfg.TimerMarkerMargin},
	} {
		if v := os.Getenv(f.env); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil || parsed <= 0 {
				return nil, ErrInvalidCoalesceDuration
			}
			*f.dst = time.Duration(parsed) * time.Millisecond
		}
	}

	if v := os.Getenv(maxBatchSizeEnv); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return nil, ErrInvalidMaxBatchSize
		}
		cfg.MaxBatchSize = parsed
	}

	return cfg, nil
}

func (c *CoalesceConfig) Validate() error {
	if c.MessageDelay > c.MaxWaitTime {
		return ErrDelayExceedsWindow
	}
	return nil
}
