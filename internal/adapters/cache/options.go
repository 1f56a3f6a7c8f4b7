// Package cache implements the mtime-validated directory and file caches.
package cache

import "sync/atomic"

// Option configures a cache.
type Option func(*options)

type options struct {
	trustMtime bool
}

func defaultOptions() options {
	return options{trustMtime: true}
}

// WithTrustMtime controls whether an unchanged modification time is taken as
// proof that a cached entry is still valid. It defaults to true.
func WithTrustMtime(trust bool) Option {
	return func(o *options) {
		o.trustMtime = trust
	}
}

func newTrust(opts []Option) *atomic.Bool {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	trust := &atomic.Bool{}
	trust.Store(o.trustMtime)
	return trust
}
