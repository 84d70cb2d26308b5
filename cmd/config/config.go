package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/onkernel/aibridge/lib/logger"
)

// Config holds all configuration for the bridge
type Config struct {
	// Desktop app relay
	RelayURL          string        `envconfig:"RELAY_URL" default:"ws://127.0.0.1:9333"`
	HeartbeatInterval time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"20s"`
	ReconnectDelay    time.Duration `envconfig:"RECONNECT_DELAY" default:"5s"`
	WatchdogInterval  time.Duration `envconfig:"WATCHDOG_INTERVAL" default:"30s"`
	DialTimeout       time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`

	// Browser. Either an http(s) DevTools endpoint or a browser ws(s) URL.
	CDPEndpoint    string        `envconfig:"CDP_ENDPOINT" default:"http://127.0.0.1:9222"`
	PollInterval   time.Duration `envconfig:"POLL_INTERVAL" default:"500ms"`
	ScanInterval   time.Duration `envconfig:"SCAN_INTERVAL" default:"2s"`
	SubmitDelay    time.Duration `envconfig:"SUBMIT_DELAY" default:"200ms"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`

	// Optional YAML file with site overrides, reloaded on change.
	SitesFile string `envconfig:"SITES_FILE"`

	// Status endpoint; empty disables it.
	StatusAddr    string `envconfig:"STATUS_ADDR" default:"127.0.0.1:9334"`
	Notifications bool   `envconfig:"NOTIFICATIONS" default:"true"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, err
	}
	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(config *Config) error {
	if err := checkScheme("RELAY_URL", config.RelayURL, "ws", "wss"); err != nil {
		return err
	}
	if err := checkScheme("CDP_ENDPOINT", config.CDPEndpoint, "http", "https", "ws", "wss"); err != nil {
		return err
	}
	for name, d := range map[string]time.Duration{
		"HEARTBEAT_INTERVAL": config.HeartbeatInterval,
		"RECONNECT_DELAY":    config.ReconnectDelay,
		"WATCHDOG_INTERVAL":  config.WatchdogInterval,
		"DIAL_TIMEOUT":       config.DialTimeout,
		"POLL_INTERVAL":      config.PollInterval,
		"SCAN_INTERVAL":      config.ScanInterval,
		"REQUEST_TIMEOUT":    config.RequestTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be greater than 0", name)
		}
	}
	if config.SubmitDelay < 0 {
		return fmt.Errorf("SUBMIT_DELAY must not be negative")
	}
	if config.WatchdogInterval < config.ReconnectDelay {
		return fmt.Errorf("WATCHDOG_INTERVAL must be at least RECONNECT_DELAY")
	}
	if _, ok := logger.ParseLevel(config.LogLevel); !ok {
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", config.LogLevel)
	}

	return nil
}

func checkScheme(name, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", name)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s scheme must be one of %v", name, schemes)
}
