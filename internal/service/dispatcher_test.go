package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/netwarden/netwarden/internal/models"
	"github.com/netwarden/netwarden/pkg/logger"
)

func dispatchChannels(n int) []models.NotificationChannel {
	channels := make([]models.NotificationChannel, n)
	for i := range channels {
		channels[i] = models.NotificationChannel{
			ID:          primitive.NewObjectID(),
			Name:        "ch",
			ChannelType: models.ChannelTypeWebhook,
			Enabled:     true,
		}
	}
	return channels
}

func dispatchAlert() *models.Alert {
	return &models.Alert{
		ID:            primitive.NewObjectID(),
		RuleName:      "cpu high",
		HostID:        "host-1",
		Severity:      models.SeverityCritical,
		ValueObserved: 97.5,
		OpenedAt:      time.Now().UTC(),
	}
}

func TestDispatchIsolatesFailures(t *testing.T) {
	notifiers := []*fakeNotifier{
		{channelType: models.ChannelTypeWebhook},
		{channelType: models.ChannelTypeWebhook, failWith: errors.New("connection refused")},
		{channelType: models.ChannelTypeWebhook},
	}

	d := NewChannelDispatcher(5, time.Second, logger.NewNop())
	channels := dispatchChannels(3)
	idx := map[primitive.ObjectID]*fakeNotifier{
		channels[0].ID: notifiers[0],
		channels[1].ID: notifiers[1],
		channels[2].ID: notifiers[2],
	}
	d.newNotifier = func(channel *models.NotificationChannel) (Notifier, error) {
		return idx[channel.ID], nil
	}

	results := d.Dispatch(context.Background(), dispatchAlert(), channels)
	require.Len(t, results, 3)

	assert.True(t, results[0].Success)
	assert.Empty(t, results[0].Error)

	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "connection refused")

	assert.True(t, results[2].Success)

	// the two healthy channels actually received the payload
	assert.Equal(t, 1, notifiers[0].sentCount())
	assert.Equal(t, 0, notifiers[1].sentCount())
	assert.Equal(t, 1, notifiers[2].sentCount())
}

func TestDispatchResultsKeepChannelOrder(t *testing.T) {
	d := NewChannelDispatcher(2, time.Second, logger.NewNop())
	d.newNotifier = func(channel *models.NotificationChannel) (Notifier, error) {
		return &fakeNotifier{channelType: channel.ChannelType}, nil
	}

	channels := dispatchChannels(8)
	results := d.Dispatch(context.Background(), dispatchAlert(), channels)
	require.Len(t, results, 8)
	for i := range results {
		assert.Equal(t, channels[i].ID, results[i].ChannelID)
		assert.True(t, results[i].Success)
		assert.NotEmpty(t, results[i].AttemptID)
	}
}

func TestDispatchTimeout(t *testing.T) {
	d := NewChannelDispatcher(5, 50*time.Millisecond, logger.NewNop())
	d.newNotifier = func(channel *models.NotificationChannel) (Notifier, error) {
		return &fakeNotifier{channelType: channel.ChannelType, delay: time.Second}, nil
	}

	channels := dispatchChannels(1)
	start := time.Now()
	results := d.Dispatch(context.Background(), dispatchAlert(), channels)
	elapsed := time.Since(start)

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "context deadline exceeded")
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestDispatchNotifierConstructionFailure(t *testing.T) {
	d := NewChannelDispatcher(5, time.Second, logger.NewNop())
	d.newNotifier = func(channel *models.NotificationChannel) (Notifier, error) {
		return nil, errors.New("unsupported channel type \"sms\"")
	}

	results := d.Dispatch(context.Background(), dispatchAlert(), dispatchChannels(1))
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "unsupported channel type")
}

func TestDispatchEmptyChannelList(t *testing.T) {
	d := NewChannelDispatcher(5, time.Second, logger.NewNop())
	results := d.Dispatch(context.Background(), dispatchAlert(), nil)
	assert.Empty(t, results)
}
