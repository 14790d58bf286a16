package rotation

import "time"

// Config carries rotation tuning, loaded from the environment.
type Config struct {
	// TransitionPeriod is the default dual-active window when the
	// initiation request does not set one.
	TransitionPeriod time.Duration `env:"ROTATION_TRANSITION_PERIOD" envDefault:"1h"`
	// MonitorInterval is how often the scheduler checks rotations for due
	// advancement.
	MonitorInterval time.Duration `env:"ROTATION_MONITOR_INTERVAL" envDefault:"30s"`
	// MaxRetries bounds vault retry attempts during scheduled advancement
	// before the rotation is marked failed.
	MaxRetries int `env:"ROTATION_MAX_RETRIES" envDefault:"3"`
}
