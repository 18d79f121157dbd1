package delivery

import (
	"strings"

	"pomodoro/internal/config"
)

// CheckConfig reports, per credential or target, whether cfg sets it.
// Nothing is dialed or resolved; keyring references count as set.
func CheckConfig(cfg config.DeliveryConfig, loadErr error) Report {
	var rep Report
	add := func(name string, set bool) {
		var err error
		if !set {
			err = ErrNotConfigured
		}
		rep.Outcomes = append(rep.Outcomes, Outcome{Channel: name, Err: err})
	}
	present := func(v string) bool { return strings.TrimSpace(v) != "" }

	rep.Outcomes = append(rep.Outcomes, Outcome{Channel: "config", Err: loadErr})
	add("desktop", cfg.Desktop.Enabled)
	add("slack_token", present(cfg.Slack.Token))
	add("slack_channel", present(cfg.Slack.Channel))
	add("discord_webhook_url", present(cfg.Discord.WebhookURL))
	add("telegram_token", present(cfg.Telegram.Token))
	add("telegram_chat_id", cfg.Telegram.ChatID != 0)
	add("sns_topic_arn", present(cfg.SNS.TopicARN))
	add("ses_from", present(cfg.SES.From))
	add("ses_to", len(cfg.SES.To) > 0)
	return rep
}
