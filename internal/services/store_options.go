package services

import "time"

type storeOptions struct {
	now         func() time.Time
	idleTimeout time.Duration
}

type StoreOption func(*storeOptions)

// WithClock overrides the time source used for day keys and idle checks.
func WithClock(now func() time.Time) StoreOption {
	return func(o *storeOptions) {
		o.now = now
	}
}

// WithIdleTimeout sets how long a session may sit unused before eviction.
func WithIdleTimeout(d time.Duration) StoreOption {
	return func(o *storeOptions) {
		o.idleTimeout = d
	}
}

func applyStoreOptions(opts []StoreOption) storeOptions {
	o := storeOptions{
		now:         time.Now,
		idleTimeout: DefaultSessionIdleTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
