package distcache

import "time"

// Option applies a configuration option to the Cache.
type Option func(*Cache)

// WithTTL sets how long an entry stays valid after being set.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithSweepInterval sets how often expired entries are reclaimed.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.sweepInterval = d
		}
	}
}
