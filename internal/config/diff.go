package config

import (
	"reflect"
	"strings"

	logx "pomodoro/pkg/logx"
)

// SummarizeChange returns the names of changed top-level sections and safe
// log fields describing them. Secrets are reported only as "set" booleans.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	changed := make([]string, 0, 7)
	fields := make([]logx.Field, 0, 12)

	if oldCfg.Defaults != newCfg.Defaults {
		changed = append(changed, "defaults")
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		fields = append(fields, logx.String("logging.level", newCfg.Logging.Level), logx.Bool("logging.file", newCfg.Logging.File.Enabled))
	}
	if !reflect.DeepEqual(oldCfg.Delivery, newCfg.Delivery) {
		changed = append(changed, "delivery")
		d := newCfg.Delivery
		fields = append(fields,
			logx.Bool("delivery.desktop", d.Desktop.Enabled),
			logx.Bool("delivery.slack_set", strings.TrimSpace(d.Slack.Token) != ""),
			logx.Bool("delivery.discord_set", strings.TrimSpace(d.Discord.WebhookURL) != ""),
			logx.Bool("delivery.telegram_set", strings.TrimSpace(d.Telegram.Token) != ""),
			logx.Bool("delivery.sns_set", strings.TrimSpace(d.SNS.TopicARN) != ""),
			logx.Bool("delivery.ses_set", strings.TrimSpace(d.SES.From) != ""),
		)
	}
	if oldCfg.IPC != newCfg.IPC {
		changed = append(changed, "ipc")
	}
	if !reflect.DeepEqual(oldCfg.Schedules, newCfg.Schedules) {
		changed = append(changed, "schedules")
		fields = append(fields, logx.Int("schedules.count", len(newCfg.Schedules)))
	}
	if oldCfg.Debug != newCfg.Debug {
		changed = append(changed, "debug")
		fields = append(fields, logx.Bool("debug.enabled", newCfg.Debug.Enabled), logx.String("debug.addr", newCfg.Debug.Addr))
	}
	if oldCfg.Store != newCfg.Store {
		changed = append(changed, "store")
	}
	return changed, fields
}
