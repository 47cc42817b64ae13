package engine

import "time"

// Config holds the engine-wide tunables of spec.md §6's configuration
// surface. All fields have sane defaults via DefaultConfig; callers only
// need to override the ones that matter for their deployment.
type Config struct {
	// ChannelSize is the default stage-2 mailbox capacity for an actor
	// that doesn't override it at registration.
	ChannelSize int `yaml:"channel_size"`

	// MaxEventsPerTick bounds how many consecutive mailbox envelopes an
	// actor drains before a forced yield, so one busy actor cannot starve
	// its peers on the same scheduler.
	MaxEventsPerTick int `yaml:"max_events_per_tick"`

	// MaintenanceInterval is the period between broker sweeps that
	// remove subscribers whose mailbox has closed.
	MaintenanceInterval time.Duration `yaml:"maintenance_interval"`

	// MonitoringChannelSize bounds the internal channel feeding the
	// monitor dispatcher task.
	MonitoringChannelSize int `yaml:"monitoring_channel_size"`

	// Stage1Capacity is the ingress channel's buffer size. Zero means
	// "default to the sum of all registered actors' mailbox capacities at
	// Supervisor.Start time" (spec.md §4.2).
	Stage1Capacity int `yaml:"stage1_capacity"`
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{
		ChannelSize:           128,
		MaxEventsPerTick:      10,
		MaintenanceInterval:   10 * time.Second,
		MonitoringChannelSize: 1024,
		Stage1Capacity:        0,
	}
}

// withDefaults fills any zero-valued field with DefaultConfig's value,
// leaving explicit overrides untouched.
func (c Config) withDefaults() Config {
	d := DefaultConfig()

	if c.ChannelSize <= 0 {
		c.ChannelSize = d.ChannelSize
	}
	if c.MaxEventsPerTick <= 0 {
		c.MaxEventsPerTick = d.MaxEventsPerTick
	}
	if c.MaintenanceInterval <= 0 {
		c.MaintenanceInterval = d.MaintenanceInterval
	}
	if c.MonitoringChannelSize <= 0 {
		c.MonitoringChannelSize = d.MonitoringChannelSize
	}
	// Stage1Capacity is intentionally left at 0 here; the Supervisor
	// resolves "0 means sum of mailbox capacities" at Start time, once it
	// knows every registered actor's mailbox size.

	return c
}
