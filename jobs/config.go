package jobs

import "time"

// Config holds the queue limits shared by the sweeper, dispatcher and
// processor.
type Config struct {
	// BatchSize caps how many records one claim takes.
	BatchSize int
	// MaxAttempts is the number of claims a record gets before it fails.
	MaxAttempts int
	// LeaseTimeout is how long a claim may stay unfinished before the
	// sweeper releases it.
	LeaseTimeout time.Duration
	// ClaimTimeout bounds the claim transaction.
	ClaimTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BatchSize:    10,
		MaxAttempts:  3,
		LeaseTimeout: 5 * time.Minute,
		ClaimTimeout: 10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.LeaseTimeout <= 0 {
		c.LeaseTimeout = d.LeaseTimeout
	}
	if c.ClaimTimeout <= 0 {
		c.ClaimTimeout = d.ClaimTimeout
	}
	return c
}
