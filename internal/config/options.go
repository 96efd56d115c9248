package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// BEACON_BRIDGE_MQTT_BROKER for the "mqtt.broker" key.
const EnvPrefix = "BEACON_BRIDGE"

// Options is the runtime configuration of the bridge process.
type Options struct {
	AppEnv   string
	LogLevel slog.Level
	LogFile  string // empty: stderr (serve) or discarded (watch)

	Adapter    string
	Demo       bool
	AutoBind   bool
	Background bool

	Listen string

	RegionID   string
	RegionUUID string

	ForegroundScanPeriod        time.Duration
	ForegroundBetweenScanPeriod time.Duration
	BackgroundScanPeriod        time.Duration
	BackgroundBetweenScanPeriod time.Duration

	MQTT MQTTOptions
}

// MQTTOptions configures the optional MQTT event publisher.
type MQTTOptions struct {
	Broker      string // empty disables MQTT
	Port        int
	ClientID    string
	TopicPrefix string
}

// Enabled reports whether an MQTT broker was configured.
func (o MQTTOptions) Enabled() bool {
	return o.Broker != ""
}

// NewViper returns a viper instance with defaults and environment binding
// applied. If file is not empty it is read as the configuration file.
func NewViper(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	return v, nil
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")

	v.SetDefault("adapter", "hci0")
	v.SetDefault("demo", false)
	v.SetDefault("auto_bind", true)
	v.SetDefault("background", false)

	v.SetDefault("listen", "127.0.0.1:8787")

	v.SetDefault("region.id", "all-beacons")
	v.SetDefault("region.uuid", "")

	v.SetDefault("scan.foreground_period", ForegroundScanPeriod)
	v.SetDefault("scan.foreground_between_period", ForegroundBetweenScanPeriod)
	v.SetDefault("scan.background_period", BackgroundScanPeriod)
	v.SetDefault("scan.background_between_period", BackgroundBetweenScanPeriod)

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "beacon-bridge")
	v.SetDefault("mqtt.topic_prefix", "beacons")
}

// Load reads and validates Options from v.
func Load(v *viper.Viper) (Options, error) {
	appEnv := strings.TrimSpace(v.GetString("app_env"))
	switch appEnv {
	case "dev", "prod":
	default:
		return Options{}, fmt.Errorf("invalid app_env %q (allowed: dev, prod)", appEnv)
	}

	level, err := ParseLogLevel(v.GetString("log_level"))
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		AppEnv:     appEnv,
		LogLevel:   level,
		LogFile:    strings.TrimSpace(v.GetString("log_file")),
		Adapter:    strings.TrimSpace(v.GetString("adapter")),
		Demo:       v.GetBool("demo"),
		AutoBind:   v.GetBool("auto_bind"),
		Background: v.GetBool("background"),
		Listen:     strings.TrimSpace(v.GetString("listen")),
		RegionID:   strings.TrimSpace(v.GetString("region.id")),
		RegionUUID: strings.TrimSpace(v.GetString("region.uuid")),

		ForegroundScanPeriod:        v.GetDuration("scan.foreground_period"),
		ForegroundBetweenScanPeriod: v.GetDuration("scan.foreground_between_period"),
		BackgroundScanPeriod:        v.GetDuration("scan.background_period"),
		BackgroundBetweenScanPeriod: v.GetDuration("scan.background_between_period"),

		MQTT: MQTTOptions{
			Broker:      strings.TrimSpace(v.GetString("mqtt.broker")),
			Port:        v.GetInt("mqtt.port"),
			ClientID:    strings.TrimSpace(v.GetString("mqtt.client_id")),
			TopicPrefix: strings.Trim(strings.TrimSpace(v.GetString("mqtt.topic_prefix")), "/"),
		},
	}

	if err := opts.validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func (o Options) validate() error {
	if o.RegionID == "" {
		return errors.New("region.id must not be empty")
	}
	if o.Listen == "" {
		return errors.New("listen must not be empty")
	}
	if o.ForegroundScanPeriod <= 0 {
		return fmt.Errorf("scan.foreground_period must be positive, got %v", o.ForegroundScanPeriod)
	}
	if o.BackgroundScanPeriod <= 0 {
		return fmt.Errorf("scan.background_period must be positive, got %v", o.BackgroundScanPeriod)
	}
	if o.ForegroundBetweenScanPeriod < 0 {
		return fmt.Errorf("scan.foreground_between_period must not be negative, got %v", o.ForegroundBetweenScanPeriod)
	}
	if o.BackgroundBetweenScanPeriod < 0 {
		return fmt.Errorf("scan.background_between_period must not be negative, got %v", o.BackgroundBetweenScanPeriod)
	}
	if o.MQTT.Enabled() {
		if o.MQTT.Port <= 0 || o.MQTT.Port > 65535 {
			return fmt.Errorf("invalid mqtt.port %d", o.MQTT.Port)
		}
		if o.MQTT.ClientID == "" {
			return errors.New("mqtt.client_id must not be empty")
		}
	}
	return nil
}

// ParseLogLevel maps a level name to its slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q (allowed: debug, info, warn, error)", s)
	}
}
