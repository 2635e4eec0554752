package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvalidChannel канал не прошел валидацию
var ErrInvalidChannel = errors.New("invalid notification channel")

// ChannelType тип канала уведомлений (закрытое множество)
type ChannelType string

const (
	ChannelTypeEmail   ChannelType = "email"
	ChannelTypeSlack   ChannelType = "slack"
	ChannelTypeDiscord ChannelType = "discord"
	ChannelTypeWebhook ChannelType = "webhook"
)

// NotificationChannel сконфигурированный получатель уведомлений
type NotificationChannel struct {
	ID          primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	Name        string                 `bson:"name" json:"name"`
	ChannelType ChannelType            `bson:"channel_type" json:"channel_type"`
	Config      map[string]interface{} `bson:"config" json:"config"`
	Enabled     bool                   `bson:"enabled" json:"enabled"`
	MinSeverity Severity               `bson:"min_severity" json:"min_severity"`
	CreatedAt   time.Time              `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time              `bson:"updated_at" json:"updated_at"`
}

// EmailConfig конфигурация SMTP-канала
type EmailConfig struct {
	SMTPHost     string   `json:"smtp_host"`
	SMTPPort     int      `json:"smtp_port"`
	SMTPUser     string   `json:"smtp_user"`
	SMTPPassword string   `json:"smtp_password"`
	FromEmail    string   `json:"from_email"`
	ToEmails     []string `json:"to_emails"`
	UseTLS       bool     `json:"use_tls"`
}

// WebhookConfig конфигурация slack/discord/webhook каналов
type WebhookConfig struct {
	WebhookURL string            `json:"webhook_url"` // slack/discord
	URL        string            `json:"url"`         // generic webhook
	Method     string            `json:"method"`      // POST или PUT
	Headers    map[string]string `json:"headers,omitempty"`
}

// DecodeConfig декодирует нетипизированный config в типизированную структуру
func (c *NotificationChannel) DecodeConfig(dest interface{}) error {
	data, err := json.Marshal(c.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal channel config: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode channel config: %w", err)
	}
	return nil
}

// Validate проверяет канал при создании
func (c *NotificationChannel) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: channel name is required", ErrInvalidChannel)
	}
	if SeverityRank(c.MinSeverity) < 0 {
		return fmt.Errorf("%w: invalid min_severity %q", ErrInvalidChannel, c.MinSeverity)
	}

	switch c.ChannelType {
	case ChannelTypeEmail:
		var cfg EmailConfig
		if err := c.DecodeConfig(&cfg); err != nil {
			return err
		}
		if cfg.SMTPHost == "" || cfg.SMTPPort == 0 {
			return fmt.Errorf("%w: email channel requires smtp_host and smtp_port", ErrInvalidChannel)
		}
		if cfg.FromEmail == "" || len(cfg.ToEmails) == 0 {
			return fmt.Errorf("%w: email channel requires from_email and to_emails", ErrInvalidChannel)
		}
	case ChannelTypeSlack, ChannelTypeDiscord:
		var cfg WebhookConfig
		if err := c.DecodeConfig(&cfg); err != nil {
			return err
		}
		if cfg.WebhookURL == "" {
			return fmt.Errorf("%w: %s channel requires webhook_url", ErrInvalidChannel, c.ChannelType)
		}
	case ChannelTypeWebhook:
		var cfg WebhookConfig
		if err := c.DecodeConfig(&cfg); err != nil {
			return err
		}
		if cfg.URL == "" {
			return fmt.Errorf("%w: webhook channel requires url", ErrInvalidChannel)
		}
		if cfg.Method != "" && cfg.Method != "POST" && cfg.Method != "PUT" {
			return fmt.Errorf("%w: webhook method must be POST or PUT, got %q", ErrInvalidChannel, cfg.Method)
		}
	default:
		return fmt.Errorf("%w: invalid channel_type %q", ErrInvalidChannel, c.ChannelType)
	}

	return nil
}
