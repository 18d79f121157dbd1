package delivery

import (
	"context"
	"net/http"
	"time"

	"pomodoro/internal/config"
	"pomodoro/internal/credential"
	logx "pomodoro/pkg/logx"
)

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// Build assembles the channel set described by cfg. Secrets go through
// secrets; a channel whose setup fails stays in the set and reports the
// failure on every attempt, so Test shows it.
func Build(ctx context.Context, cfg config.DeliveryConfig, secrets *credential.Resolver, log logx.Logger) []Channel {
	if secrets == nil {
		secrets = credential.NewResolver()
	}
	log = log.With(logx.String("comp", "delivery"))
	client := newHTTPClient(10 * time.Second)

	var out []Channel
	add := func(name string, build func() (Channel, error)) {
		ch, err := build()
		if err != nil {
			log.Warn("channel setup failed", logx.String("channel", name), logx.Err(err))
			out = append(out, failedChannel{name: name, err: err})
			return
		}
		out = append(out, ch)
	}

	if cfg.Desktop.Enabled {
		add("desktop", func() (Channel, error) {
			expire, err := config.ParseDurationOrDefault("delivery.desktop.expire", cfg.Desktop.Expire, 5*time.Second)
			if err != nil {
				return nil, err
			}
			return NewDesktop(cfg.Desktop.AppName, expire), nil
		})
	}
	add("slack", func() (Channel, error) {
		token, err := secrets.Resolve(cfg.Slack.Token)
		if err != nil {
			return nil, err
		}
		return Limited(NewSlack(token, cfg.Slack.Channel, cfg.Slack.APIURL, client), cfg.Slack.RatePerSec), nil
	})
	add("discord", func() (Channel, error) {
		url, err := secrets.Resolve(cfg.Discord.WebhookURL)
		if err != nil {
			return nil, err
		}
		return Limited(NewDiscord(url, client), cfg.Discord.RatePerSec), nil
	})
	add("telegram", func() (Channel, error) {
		token, err := secrets.Resolve(cfg.Telegram.Token)
		if err != nil {
			return nil, err
		}
		return Limited(NewTelegram(token, cfg.Telegram.ChatID, cfg.Telegram.APIURL), cfg.Telegram.RatePerSec), nil
	})
	add("sns", func() (Channel, error) {
		return NewSNS(ctx, cfg.SNS.Region, cfg.SNS.TopicARN)
	})
	add("ses", func() (Channel, error) {
		return NewSES(ctx, cfg.SES.Region, cfg.SES.From, cfg.SES.To)
	})
	return out
}

// Timeout returns the per-attempt timeout from cfg, defaulting to ten seconds.
func Timeout(cfg config.DeliveryConfig) time.Duration {
	d, err := config.ParseDurationOrDefault("delivery.timeout", cfg.Timeout, 10*time.Second)
	if err != nil {
		return 10 * time.Second
	}
	return d
}
