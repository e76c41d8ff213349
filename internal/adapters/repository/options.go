package repository

import "time"

// Default store configuration constants.
const (
	defaultMaxScore    = 30
	defaultLockShards  = 64
	defaultKeyPrefix   = "duelist"
	defaultBusyTimeout = 5 * time.Second
	defaultTxRetries   = 16
)

type options struct {
	maxScore    int
	lockShards  int
	keyPrefix   string
	busyTimeout time.Duration
	txRetries   int
}

func defaultOptions() options {
	return options{
		maxScore:    defaultMaxScore,
		lockShards:  defaultLockShards,
		keyPrefix:   defaultKeyPrefix,
		busyTimeout: defaultBusyTimeout,
		txRetries:   defaultTxRetries,
	}
}

// Option applies a configuration option to a store backend.
type Option func(*options)

// WithMaxScore sets the upper clamp bound for scores.
func WithMaxScore(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxScore = n
		}
	}
}

// WithLockShards sets the number of lock-table shards of the memory store.
func WithLockShards(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.lockShards = n
		}
	}
}

// WithKeyPrefix sets the Redis key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.keyPrefix = prefix
		}
	}
}

// WithBusyTimeout sets the SQLite busy timeout.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.busyTimeout = d
		}
	}
}

// WithTxRetries sets how often an optimistic Redis transaction is retried.
func WithTxRetries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.txRetries = n
		}
	}
}
