package config

import "errors"

var (
	ErrRedisAddrMissing        = errors.New("REDIS_ADDR is required")
	ErrInvalidRedisDB          = errors.New("REDIS_DB must be a valid integer")
	ErrInvalidCoalesceDuration = errors.New("coalesce durations must be positive millisecond integers")
	ErrInvalidMaxBatchSize     = errors.New("MAX_BATCH_SIZE must be a positive integer")
	ErrDelayExceedsWindow      = errors.New("MESSAGE_DELAY_MS must not exceed MAX_WAIT_TIME_MS")
)
