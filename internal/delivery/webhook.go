package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"pomodoro/internal/notification"
)

const defaultSlackAPI = "https://slack.com/api"

func postJSON(ctx context.Context, client *http.Client, url string, header http.Header, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}

// Slack posts the chat text through chat.postMessage.
type Slack struct {
	token   string
	channel string
	apiURL  string
	client  *http.Client
}

func NewSlack(token, channel, apiURL string, client *http.Client) *Slack {
	if strings.TrimSpace(apiURL) == "" {
		apiURL = defaultSlackAPI
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Slack{token: token, channel: channel, apiURL: strings.TrimRight(apiURL, "/"), client: client}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Deliver(ctx context.Context, a notification.Alert) error {
	if s.token == "" || s.channel == "" {
		return ErrNotConfigured
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+s.token)
	body, err := postJSON(ctx, s.client, s.apiURL+"/chat.postMessage", h, map[string]string{
		"channel": s.channel,
		"text":    a.Text,
	})
	if err != nil {
		return transportErr(s.Name(), err)
	}
	var res struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return transportErr(s.Name(), fmt.Errorf("decode response: %w", err))
	}
	if !res.OK {
		return transportErr(s.Name(), fmt.Errorf("slack api: %s", res.Error))
	}
	return nil
}

// Discord posts the chat text to an incoming webhook.
type Discord struct {
	webhookURL string
	client     *http.Client
}

func NewDiscord(webhookURL string, client *http.Client) *Discord {
	if client == nil {
		client = http.DefaultClient
	}
	return &Discord{webhookURL: strings.TrimSpace(webhookURL), client: client}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Deliver(ctx context.Context, a notification.Alert) error {
	if d.webhookURL == "" {
		return ErrNotConfigured
	}
	_, err := postJSON(ctx, d.client, d.webhookURL, nil, map[string]string{"content": a.Text})
	return transportErr(d.Name(), err)
}
