package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/netwarden/netwarden/internal/models"
)

// NotificationPayload содержимое уведомления об алерте
type NotificationPayload struct {
	AlertID       string          `json:"alert_id"`
	RuleName      string          `json:"rule_name"`
	HostID        string          `json:"host_id"`
	Severity      models.Severity `json:"severity"`
	ValueObserved float64         `json:"value_observed"`
	OpenedAt      time.Time       `json:"opened_at"`
	Message       string          `json:"message"`
}

// Notifier канал доставки уведомлений
type Notifier interface {
	Send(ctx context.Context, payload NotificationPayload) error
	Type() models.ChannelType
}

// NewNotifier создает notifier по типу канала
func NewNotifier(channel *models.NotificationChannel) (Notifier, error) {
	switch channel.ChannelType {
	case models.ChannelTypeEmail:
		var cfg models.EmailConfig
		if err := channel.DecodeConfig(&cfg); err != nil {
			return nil, fmt.Errorf("invalid email config: %w", err)
		}
		return &EmailNotifier{cfg: cfg}, nil
	case models.ChannelTypeSlack:
		var cfg models.WebhookConfig
		if err := channel.DecodeConfig(&cfg); err != nil {
			return nil, fmt.Errorf("invalid slack config: %w", err)
		}
		return &SlackNotifier{webhookURL: cfg.WebhookURL, client: newHTTPClient()}, nil
	case models.ChannelTypeDiscord:
		var cfg models.WebhookConfig
		if err := channel.DecodeConfig(&cfg); err != nil {
			return nil, fmt.Errorf("invalid discord config: %w", err)
		}
		return &DiscordNotifier{webhookURL: cfg.WebhookURL, client: newHTTPClient()}, nil
	case models.ChannelTypeWebhook:
		var cfg models.WebhookConfig
		if err := channel.DecodeConfig(&cfg); err != nil {
			return nil, fmt.Errorf("invalid webhook config: %w", err)
		}
		if cfg.Method == "" {
			cfg.Method = http.MethodPost
		}
		return &WebhookNotifier{cfg: cfg, client: newHTTPClient()}, nil
	default:
		return nil, fmt.Errorf("unsupported channel type %q", channel.ChannelType)
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// EmailNotifier отправляет уведомления по SMTP
type EmailNotifier struct {
	cfg models.EmailConfig
}

func (n *EmailNotifier) Type() models.ChannelType { return models.ChannelTypeEmail }

func (n *EmailNotifier) Send(ctx context.Context, payload NotificationPayload) error {
	subject := fmt.Sprintf("[%s] %s on %s", strings.ToUpper(string(payload.Severity)), payload.RuleName, payload.HostID)

	body := fmt.Sprintf(
		"Alert: %s\r\nHost: %s\r\nSeverity: %s\r\nObserved value: %g\r\nOpened at: %s\r\n\r\n%s\r\n",
		payload.RuleName,
		payload.HostID,
		payload.Severity,
		payload.ValueObserved,
		payload.OpenedAt.Format(time.RFC3339),
		payload.Message,
	)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		n.cfg.FromEmail,
		strings.Join(n.cfg.ToEmails, ", "),
		subject,
		body,
	)

	addr := fmt.Sprintf("%s:%d", n.cfg.SMTPHost, n.cfg.SMTPPort)

	var auth smtp.Auth
	if n.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", n.cfg.SMTPUser, n.cfg.SMTPPassword, n.cfg.SMTPHost)
	}

	done := make(chan error, 1)
	go func() {
		if n.cfg.UseTLS {
			done <- n.sendTLS(addr, auth, []byte(msg))
			return
		}
		done <- smtp.SendMail(addr, auth, n.cfg.FromEmail, n.cfg.ToEmails, []byte(msg))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sendTLS отправляет письмо через установленное заранее TLS-соединение
func (n *EmailNotifier) sendTLS(addr string, auth smtp.Auth, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: n.cfg.SMTPHost})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, n.cfg.SMTPHost)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(n.cfg.FromEmail); err != nil {
		return err
	}
	for _, to := range n.cfg.ToEmails {
		if err := client.Rcpt(to); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// SlackNotifier отправляет уведомления в Slack через входящий webhook
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

func (n *SlackNotifier) Type() models.ChannelType { return models.ChannelTypeSlack }

func (n *SlackNotifier) Send(ctx context.Context, payload NotificationPayload) error {
	body := map[string]interface{}{
		"attachments": []map[string]interface{}{
			{
				"color": slackColor(payload.Severity),
				"title": fmt.Sprintf("%s on %s", payload.RuleName, payload.HostID),
				"text":  payload.Message,
				"fields": []map[string]interface{}{
					{"title": "Severity", "value": string(payload.Severity), "short": true},
					{"title": "Host", "value": payload.HostID, "short": true},
					{"title": "Value", "value": fmt.Sprintf("%g", payload.ValueObserved), "short": true},
					{"title": "Opened", "value": payload.OpenedAt.Format(time.RFC3339), "short": true},
				},
			},
		},
	}
	return postJSON(ctx, n.client, http.MethodPost, n.webhookURL, nil, body)
}

func slackColor(severity models.Severity) string {
	switch severity {
	case models.SeverityCritical:
		return "danger"
	case models.SeverityWarning:
		return "warning"
	default:
		return "good"
	}
}

// DiscordNotifier отправляет уведомления в Discord через webhook
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
}

func (n *DiscordNotifier) Type() models.ChannelType { return models.ChannelTypeDiscord }

func (n *DiscordNotifier) Send(ctx context.Context, payload NotificationPayload) error {
	body := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       fmt.Sprintf("%s on %s", payload.RuleName, payload.HostID),
				"description": payload.Message,
				"color":       discordColor(payload.Severity),
				"timestamp":   payload.OpenedAt.Format(time.RFC3339),
				"fields": []map[string]interface{}{
					{"name": "Severity", "value": string(payload.Severity), "inline": true},
					{"name": "Host", "value": payload.HostID, "inline": true},
					{"name": "Value", "value": fmt.Sprintf("%g", payload.ValueObserved), "inline": true},
				},
			},
		},
	}
	return postJSON(ctx, n.client, http.MethodPost, n.webhookURL, nil, body)
}

func discordColor(severity models.Severity) int {
	switch severity {
	case models.SeverityCritical:
		return 0xe74c3c
	case models.SeverityWarning:
		return 0xf39c12
	default:
		return 0x2ecc71
	}
}

// WebhookNotifier отправляет уведомления на произвольный HTTP endpoint
type WebhookNotifier struct {
	cfg    models.WebhookConfig
	client *http.Client
}

func (n *WebhookNotifier) Type() models.ChannelType { return models.ChannelTypeWebhook }

func (n *WebhookNotifier) Send(ctx context.Context, payload NotificationPayload) error {
	return postJSON(ctx, n.client, n.cfg.Method, n.cfg.URL, n.cfg.Headers, payload)
}

func postJSON(ctx context.Context, client *http.Client, method, url string, headers map[string]string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	return nil
}
