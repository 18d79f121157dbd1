package config

import (
	"errors"
	"fmt"
	"strings"
)

// Fallback phase lengths used when the config file does not set its own.
const (
	DefaultWorkMinutes  = 25
	DefaultBreakMinutes = 5
)

type Config struct {
	Defaults  DefaultsConfig   `json:"defaults"`
	Logging   LoggingConfig    `json:"logging"`
	Delivery  DeliveryConfig   `json:"delivery"`
	IPC       IPCConfig        `json:"ipc"`
	Schedules []ScheduleConfig `json:"schedules,omitempty"`
	Debug     DebugConfig      `json:"debug"`
	Store     StoreConfig      `json:"store"`
}

// DefaultsConfig supplies minutes for create/queue requests that omit -w or -b.
type DefaultsConfig struct {
	WorkMinutes  uint16 `json:"work_minutes"`
	BreakMinutes uint16 `json:"break_minutes"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// DeliveryConfig lists every alert sink. A sink with empty credentials stays
// registered and reports "not configured" so the test command shows it.
//
// Secret fields accept "keyring:NAME" to read the value from the OS keyring.
type DeliveryConfig struct {
	// Timeout bounds a single channel attempt (Go duration string).
	Timeout  string         `json:"timeout,omitempty"`
	Desktop  DesktopConfig  `json:"desktop"`
	Slack    SlackConfig    `json:"slack"`
	Discord  DiscordConfig  `json:"discord"`
	Telegram TelegramConfig `json:"telegram"`
	SNS      SNSConfig      `json:"sns"`
	SES      SESConfig      `json:"ses"`
}

type DesktopConfig struct {
	Enabled bool   `json:"enabled"`
	AppName string `json:"app_name,omitempty"`
	Expire  string `json:"expire,omitempty"`
}

type SlackConfig struct {
	Token      string `json:"token"`
	Channel    string `json:"channel"`
	APIURL     string `json:"api_url,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

type DiscordConfig struct {
	WebhookURL string `json:"webhook_url"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

type TelegramConfig struct {
	Token      string `json:"token"`
	ChatID     int64  `json:"chat_id"`
	APIURL     string `json:"api_url,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

type SNSConfig struct {
	Region   string `json:"region,omitempty"`
	TopicARN string `json:"topic_arn"`
}

type SESConfig struct {
	Region string   `json:"region,omitempty"`
	From   string   `json:"from"`
	To     []string `json:"to,omitempty"`
}

type IPCConfig struct {
	// Dir holds both socket files. Empty means os.TempDir().
	Dir              string `json:"dir,omitempty"`
	HandshakeTimeout string `json:"handshake_timeout,omitempty"`
}

// ScheduleConfig queues or creates a notification on a cron spec.
type ScheduleConfig struct {
	Name         string `json:"name"`
	Cron         string `json:"cron"`
	WorkMinutes  uint16 `json:"work_minutes"`
	BreakMinutes uint16 `json:"break_minutes"`
	Queue        bool   `json:"queue,omitempty"`
}

// DebugConfig controls the optional HTTP server exposing /healthz, /metrics
// and the profiler under /debug.
//
// Prefer a loopback address; a non-loopback bind requires Token.
type DebugConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Token   string `json:"token,omitempty"`
}

type StoreConfig struct {
	// Path is ":memory:" unless a file is wanted for inspection.
	Path string `json:"path,omitempty"`
}

// Default returns the configuration used when no file is given.
// Parse decodes files on top of it, so omitted keys keep these values.
func Default() *Config {
	return &Config{
		Defaults: DefaultsConfig{WorkMinutes: DefaultWorkMinutes, BreakMinutes: DefaultBreakMinutes},
		Logging:  LoggingConfig{Level: "info", Console: true, File: LoggingFile{Path: "./pomodoro.log"}},
		Delivery: DeliveryConfig{
			Timeout: "10s",
			Desktop: DesktopConfig{Enabled: true, AppName: "pomodoro", Expire: "5s"},
		},
		IPC:   IPCConfig{HandshakeTimeout: "500ms"},
		Debug: DebugConfig{Addr: "127.0.0.1:6061"},
		Store: StoreConfig{Path: ":memory:"},
	}
}

// Validate reports every problem found in cfg, joined.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if cfg.Defaults.WorkMinutes == 0 && cfg.Defaults.BreakMinutes == 0 {
		errs = append(errs, errors.New("defaults: work_minutes and break_minutes can not both be zero"))
	}
	if _, err := ParseDurationField("delivery.timeout", cfg.Delivery.Timeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("delivery.desktop.expire", cfg.Delivery.Desktop.Expire); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("ipc.handshake_timeout", cfg.IPC.HandshakeTimeout); err != nil {
		errs = append(errs, err)
	}
	for _, r := range []struct {
		path string
		v    int
	}{
		{"delivery.slack.rate_per_sec", cfg.Delivery.Slack.RatePerSec},
		{"delivery.discord.rate_per_sec", cfg.Delivery.Discord.RatePerSec},
		{"delivery.telegram.rate_per_sec", cfg.Delivery.Telegram.RatePerSec},
	} {
		if r.v < 0 {
			errs = append(errs, fmt.Errorf("%s: must be >= 0", r.path))
		}
	}
	seen := map[string]bool{}
	for i, s := range cfg.Schedules {
		p := fmt.Sprintf("schedules[%d]", i)
		name := strings.TrimSpace(s.Name)
		switch {
		case name == "":
			errs = append(errs, fmt.Errorf("%s: name is required", p))
		case seen[name]:
			errs = append(errs, fmt.Errorf("%s: duplicate name %q", p, name))
		}
		seen[name] = true
		if strings.TrimSpace(s.Cron) == "" {
			errs = append(errs, fmt.Errorf("%s: cron is required", p))
		}
		if s.WorkMinutes == 0 && s.BreakMinutes == 0 {
			errs = append(errs, fmt.Errorf("%s: work_minutes and break_minutes can not both be zero", p))
		}
	}
	return errors.Join(errs...)
}
