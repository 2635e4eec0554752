package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netwarden/netwarden/internal/models"
	"github.com/netwarden/netwarden/pkg/testutil"
)

func testPayload() NotificationPayload {
	return NotificationPayload{
		AlertID:       "665f1c00aa00bb00cc00dd00",
		RuleName:      "cpu high",
		HostID:        "host-1",
		Severity:      models.SeverityCritical,
		ValueObserved: 97.5,
		OpenedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Message:       "Alert cpu high triggered on host host-1 (observed 97.5)",
	}
}

func TestNewNotifierFactory(t *testing.T) {
	tests := []struct {
		name    string
		channel models.NotificationChannel
		wantErr bool
	}{
		{
			name: "email",
			channel: models.NotificationChannel{
				ChannelType: models.ChannelTypeEmail,
				Config: map[string]interface{}{
					"smtp_host":  "smtp.example.com",
					"smtp_port":  587,
					"from_email": "alerts@example.com",
					"to_emails":  []string{"ops@example.com"},
				},
			},
		},
		{
			name: "slack",
			channel: models.NotificationChannel{
				ChannelType: models.ChannelTypeSlack,
				Config:      map[string]interface{}{"webhook_url": "https://hooks.slack.com/services/x"},
			},
		},
		{
			name: "discord",
			channel: models.NotificationChannel{
				ChannelType: models.ChannelTypeDiscord,
				Config:      map[string]interface{}{"webhook_url": "https://discord.com/api/webhooks/x"},
			},
		},
		{
			name: "webhook",
			channel: models.NotificationChannel{
				ChannelType: models.ChannelTypeWebhook,
				Config:      map[string]interface{}{"url": "https://example.com/hook"},
			},
		},
		{
			name:    "unsupported type",
			channel: models.NotificationChannel{ChannelType: "sms"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier, err := NewNotifier(&tt.channel)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.channel.ChannelType, notifier.Type())
		})
	}
}

func TestWebhookNotifierSendsPayload(t *testing.T) {
	server := testutil.NewMockWebhookServer()
	defer server.Close()

	channel := &models.NotificationChannel{
		ChannelType: models.ChannelTypeWebhook,
		Config: map[string]interface{}{
			"url":     server.URL(),
			"headers": map[string]string{"X-Token": "secret"},
		},
	}
	notifier, err := NewNotifier(channel)
	require.NoError(t, err)

	require.NoError(t, notifier.Send(context.Background(), testPayload()))

	require.Equal(t, 1, server.RequestCount())
	req := server.LastRequest()
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "secret", req.Headers.Get("X-Token"))
	assert.Equal(t, "cpu high", req.Body["rule_name"])
	assert.Equal(t, "host-1", req.Body["host_id"])
	assert.Equal(t, "critical", req.Body["severity"])
	assert.Equal(t, 97.5, req.Body["value_observed"])
}

func TestWebhookNotifierPutMethod(t *testing.T) {
	server := testutil.NewMockWebhookServer()
	defer server.Close()

	channel := &models.NotificationChannel{
		ChannelType: models.ChannelTypeWebhook,
		Config:      map[string]interface{}{"url": server.URL(), "method": "PUT"},
	}
	notifier, err := NewNotifier(channel)
	require.NoError(t, err)

	require.NoError(t, notifier.Send(context.Background(), testPayload()))
	assert.Equal(t, "PUT", server.LastRequest().Method)
}

func TestWebhookNotifierNon2xxFails(t *testing.T) {
	server := testutil.NewMockWebhookServer()
	defer server.Close()
	server.SetStatusCode(500)

	channel := &models.NotificationChannel{
		ChannelType: models.ChannelTypeWebhook,
		Config:      map[string]interface{}{"url": server.URL()},
	}
	notifier, err := NewNotifier(channel)
	require.NoError(t, err)

	err = notifier.Send(context.Background(), testPayload())
	assert.ErrorContains(t, err, "unexpected status code 500")
}

func TestSlackNotifierAttachmentShape(t *testing.T) {
	server := testutil.NewMockWebhookServer()
	defer server.Close()

	channel := &models.NotificationChannel{
		ChannelType: models.ChannelTypeSlack,
		Config:      map[string]interface{}{"webhook_url": server.URL()},
	}
	notifier, err := NewNotifier(channel)
	require.NoError(t, err)

	require.NoError(t, notifier.Send(context.Background(), testPayload()))

	body := server.LastRequest().Body
	attachments, ok := body["attachments"].([]interface{})
	require.True(t, ok)
	require.Len(t, attachments, 1)

	attachment := attachments[0].(map[string]interface{})
	assert.Equal(t, "danger", attachment["color"])
	assert.Equal(t, "cpu high on host-1", attachment["title"])
}

func TestDiscordNotifierEmbedShape(t *testing.T) {
	server := testutil.NewMockWebhookServer()
	defer server.Close()

	channel := &models.NotificationChannel{
		ChannelType: models.ChannelTypeDiscord,
		Config:      map[string]interface{}{"webhook_url": server.URL()},
	}
	notifier, err := NewNotifier(channel)
	require.NoError(t, err)

	require.NoError(t, notifier.Send(context.Background(), testPayload()))

	body := server.LastRequest().Body
	embeds, ok := body["embeds"].([]interface{})
	require.True(t, ok)
	require.Len(t, embeds, 1)

	embed := embeds[0].(map[string]interface{})
	assert.Equal(t, "cpu high on host-1", embed["title"])
	assert.Equal(t, float64(0xe74c3c), embed["color"])
}

func TestNotifierRespectsContextCancel(t *testing.T) {
	server := testutil.NewMockWebhookServer()
	defer server.Close()
	server.SetDelay(time.Second)

	channel := &models.NotificationChannel{
		ChannelType: models.ChannelTypeWebhook,
		Config:      map[string]interface{}{"url": server.URL()},
	}
	notifier, err := NewNotifier(channel)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = notifier.Send(ctx, testPayload())
	assert.Error(t, err)
}
