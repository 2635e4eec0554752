package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netwarden/netwarden/internal/models"
)

func TestStatsSnapshot(t *testing.T) {
	collector := NewDispatchStatsCollector()

	collector.Observe([]models.DispatchResult{
		{ChannelType: models.ChannelTypeSlack, Success: true, Duration: 100 * time.Millisecond},
		{ChannelType: models.ChannelTypeSlack, Success: true, Duration: 200 * time.Millisecond},
		{ChannelType: models.ChannelTypeSlack, Success: false, Duration: 300 * time.Millisecond},
		{ChannelType: models.ChannelTypeEmail, Success: true, Duration: 2 * time.Second},
	})

	snapshot := collector.Snapshot()
	require.Len(t, snapshot, 2)

	// sorted by channel type: email before slack
	email := snapshot[0]
	assert.Equal(t, models.ChannelTypeEmail, email.ChannelType)
	assert.Equal(t, 1, email.Attempts)
	assert.Equal(t, 1, email.Successes)
	assert.InDelta(t, 2.0, email.MeanSeconds, 1e-9)

	slack := snapshot[1]
	assert.Equal(t, models.ChannelTypeSlack, slack.ChannelType)
	assert.Equal(t, 3, slack.Attempts)
	assert.Equal(t, 2, slack.Successes)
	assert.InDelta(t, 0.2, slack.MeanSeconds, 1e-9)
	assert.Greater(t, slack.StdDev, 0.0)
	assert.GreaterOrEqual(t, slack.P95Seconds, slack.MeanSeconds)
}

func TestStatsEmptySnapshot(t *testing.T) {
	collector := NewDispatchStatsCollector()
	assert.Empty(t, collector.Snapshot())
}

func TestStatsSampleCap(t *testing.T) {
	collector := NewDispatchStatsCollector()

	results := make([]models.DispatchResult, 1000)
	for i := range results {
		results[i] = models.DispatchResult{ChannelType: models.ChannelTypeWebhook, Success: true, Duration: time.Millisecond}
	}
	for i := 0; i < 15; i++ {
		collector.Observe(results)
	}

	snapshot := collector.Snapshot()
	require.Len(t, snapshot, 1)
	// attempts keep counting past the sample cap
	assert.Equal(t, 15000, snapshot[0].Attempts)
	assert.LessOrEqual(t, len(collector.samples[models.ChannelTypeWebhook]), maxSamplesPerChannel)
}
