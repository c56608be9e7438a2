package bulkload

import (
	"time"

	"github.com/dd0wney/widegraph/pkg/logging"
	"github.com/dd0wney/widegraph/pkg/metrics"
	"github.com/dd0wney/widegraph/pkg/table"
	"github.com/dd0wney/widegraph/pkg/validation"
)

// Default batcher sizing, shared by all four tables.
const (
	DefaultMaxBuffered   = table.DefaultMaxBuffered
	DefaultFlushInterval = table.DefaultFlushInterval
)

// Config configures a Loader. The zero value is usable: default sizing,
// full durability, no listeners.
type Config struct {
	// SkipWAL applies the relaxed durability level to all four batchers.
	// Flushed rows survive a crash only once the store has synced them.
	SkipWAL bool `yaml:"skip_wal"`

	// MaxBuffered is the per-batcher buffer size that triggers a flush.
	MaxBuffered int `yaml:"max_buffered"`

	// FlushInterval bounds how long a mutation waits in a batcher.
	FlushInterval time.Duration `yaml:"flush_interval"`

	// OnFailure receives batches whose flush failed, with the flush error.
	// Invoked from flusher goroutines; must not block for long.
	OnFailure table.FailureListener `yaml:"-"`

	// OnFlush receives successfully flushed batches. Used to feed the
	// mutation feed publisher.
	OnFlush func(tableName string, muts []table.Mutation) `yaml:"-"`

	Logger  logging.Logger    `yaml:"-"`
	Metrics *metrics.Registry `yaml:"-"`
}

// Validate checks the sizing fields.
func (c Config) Validate() error {
	return validation.NewConfigValidator("bulkload.Config").
		NonNegative("MaxBuffered", c.MaxBuffered).
		When(c.MaxBuffered > 0, func(cv *validation.ConfigValidator) {
			cv.Custom("MaxBuffered", func() error {
				return validation.ValidateBatchSize(c.MaxBuffered)
			})
		}).
		MinDuration("FlushInterval", c.FlushInterval, 0).
		Validate()
}

// withDefaults fills zero fields with usable values.
func (c Config) withDefaults() Config {
	c.MaxBuffered = validation.DefaultOrInt(c.MaxBuffered, DefaultMaxBuffered)
	c.FlushInterval = validation.DefaultOrDuration(c.FlushInterval, DefaultFlushInterval)
	if c.Logger == nil {
		c.Logger = logging.DefaultLogger()
	}
	if c.Metrics == nil {
		c.Metrics = metrics.NewRegistry()
	}
	return c
}

// batcherConfig translates the loader config for one table batcher.
func (c Config) batcherConfig() table.BatcherConfig {
	durability := table.UseDefault
	if c.SkipWAL {
		durability = table.SkipWAL
	}
	return table.BatcherConfig{
		MaxBuffered:   c.MaxBuffered,
		FlushInterval: c.FlushInterval,
		Durability:    durability,
		OnFailure:     c.OnFailure,
		OnFlush:       c.OnFlush,
		Logger:        c.Logger,
		Metrics:       c.Metrics,
	}
}
