// Package config loads the dashboard settings from configs/config.yml,
// DASHBOARD_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"telemetry_dashboard/internal/logger"
	"telemetry_dashboard/internal/service"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Live transport names.
const (
	TransportWebSocket = "websocket"
	TransportMQTT      = "mqtt"
	TransportNone      = "none"
)

const envPrefix = "DASHBOARD"

type Config struct {
	Port      string          `mapstructure:"port"`
	LogLevel  string          `mapstructure:"log_level"`
	Collector CollectorConfig `mapstructure:"collector"`
	Auth      AuthConfig      `mapstructure:"auth"`
	API       APIConfig       `mapstructure:"api"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Live      LiveConfig      `mapstructure:"live"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`

	// IssueToken, when set, asks the process to print an API token for this
	// subject and exit.
	IssueToken string `mapstructure:"-"`
}

// CollectorConfig points at the REST collaborator.
type CollectorConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AuthConfig carries the credential presented to the collaborator.
type AuthConfig struct {
	Token string `mapstructure:"token"`
}

// APIConfig secures the dashboard's own HTTP API. An empty key disables
// bearer checks.
type APIConfig struct {
	SigningKey string `mapstructure:"signing_key"`
}

type DashboardConfig struct {
	DefaultDevice string `mapstructure:"default_device"`
	Capacity      int    `mapstructure:"capacity"`
	Room          string `mapstructure:"room"`
}

type LiveConfig struct {
	Transport    string        `mapstructure:"transport"`
	URL          string        `mapstructure:"url"`
	ReconnectMin time.Duration `mapstructure:"reconnect_min"`
	ReconnectMax time.Duration `mapstructure:"reconnect_max"`
	MQTT         MQTTConfig    `mapstructure:"mqtt"`
}

type MQTTConfig struct {
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	QoS         int    `mapstructure:"qos"`
}

type RefreshConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", logger.InfoLevel)
	v.SetDefault("collector.base_url", "http://localhost:5000")
	v.SetDefault("collector.timeout", "10s")
	v.SetDefault("auth.token", "")
	v.SetDefault("api.signing_key", "")
	v.SetDefault("dashboard.default_device", "PC-001")
	v.SetDefault("dashboard.capacity", 100)
	v.SetDefault("dashboard.room", "dashboard")
	v.SetDefault("live.transport", TransportWebSocket)
	v.SetDefault("live.url", "ws://localhost:5000/ws")
	v.SetDefault("live.reconnect_min", "1s")
	v.SetDefault("live.reconnect_max", "30s")
	v.SetDefault("live.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("live.mqtt.client_id", "telemetry-dashboard")
	v.SetDefault("live.mqtt.topic_prefix", "telemetry")
	v.SetDefault("live.mqtt.qos", 1)
	v.SetDefault("refresh.enabled", false)
	v.SetDefault("refresh.interval", "30s")
}

// flagBindings maps command-line flags to configuration keys.
var flagBindings = map[string]string{
	"port":          "port",
	"log-level":     "log_level",
	"collector-url": "collector.base_url",
	"device":        "dashboard.default_device",
	"live":          "live.transport",
}

// NewFlagSet declares the command-line flags.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "path to the config file (default configs/config.yml)")
	fs.String("port", "", "HTTP listen port")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.String("collector-url", "", "base URL of the telemetry collector")
	fs.String("device", "", "device fetched while no device is selected")
	fs.String("live", "", "live transport: websocket, mqtt or none")
	fs.String("issue-token", "", "print an API token for the given subject and exit")
	return fs
}

// Load parses args and resolves the configuration. pflag.ErrHelp is
// returned unchanged when -h is given.
func Load(args []string) (*Config, error) {
	fs := NewFlagSet("telemetry-dashboard")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return FromFlags(fs)
}

// FromFlags resolves the configuration for an already parsed flag set.
func FromFlags(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit, _ := fs.GetString("config")
	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.AddConfigPath("configs") // configs/config.yml
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	for flagName, key := range flagBindings {
		f := fs.Lookup(flagName)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flagName, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.IssueToken, _ = fs.GetString("issue-token")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Port) == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if !logger.ValidLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if u, err := url.Parse(c.Collector.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("collector.base_url %q must be an http(s) URL", c.Collector.BaseURL))
	}
	if c.Dashboard.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("dashboard.capacity must be positive, got %d", c.Dashboard.Capacity))
	}
	if c.Refresh.Interval != 0 && !service.ValidInterval(c.Refresh.Interval) {
		errs = append(errs, fmt.Errorf("refresh.interval %s is not one of 10s, 30s, 60s, 300s", c.Refresh.Interval))
	}
	switch c.Live.Transport {
	case TransportWebSocket:
		if c.Live.URL == "" {
			errs = append(errs, errors.New("live.url is required for the websocket transport"))
		}
	case TransportMQTT:
		if c.Live.MQTT.Broker == "" {
			errs = append(errs, errors.New("live.mqtt.broker is required for the mqtt transport"))
		}
		if c.Live.MQTT.QoS < 0 || c.Live.MQTT.QoS > 2 {
			errs = append(errs, fmt.Errorf("live.mqtt.qos must be 0, 1 or 2, got %d", c.Live.MQTT.QoS))
		}
	case TransportNone:
	default:
		errs = append(errs, fmt.Errorf("live.transport %q is not one of websocket, mqtt, none", c.Live.Transport))
	}
	return errors.Join(errs...)
}
