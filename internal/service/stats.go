package service

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/netwarden/netwarden/internal/models"
)

// maxSamplesPerChannel ограничивает память под выборку задержек
const maxSamplesPerChannel = 10000

// ChannelStats агрегированная статистика доставки по типу канала
type ChannelStats struct {
	ChannelType models.ChannelType `json:"channel_type"`
	Attempts    int                `json:"attempts"`
	Successes   int                `json:"successes"`
	MeanSeconds float64            `json:"mean_seconds"`
	StdDev      float64            `json:"stddev_seconds"`
	P95Seconds  float64            `json:"p95_seconds"`
}

// DispatchStatsCollector накапливает задержки доставки по типам каналов
type DispatchStatsCollector struct {
	mu        sync.Mutex
	samples   map[models.ChannelType][]float64
	successes map[models.ChannelType]int
	attempts  map[models.ChannelType]int
}

// NewDispatchStatsCollector создает новый коллектор статистики
func NewDispatchStatsCollector() *DispatchStatsCollector {
	return &DispatchStatsCollector{
		samples:   make(map[models.ChannelType][]float64),
		successes: make(map[models.ChannelType]int),
		attempts:  make(map[models.ChannelType]int),
	}
}

// Observe фиксирует результаты одной рассылки
func (c *DispatchStatsCollector) Observe(results []models.DispatchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range results {
		ct := results[i].ChannelType
		c.attempts[ct]++
		if results[i].Success {
			c.successes[ct]++
		}

		s := append(c.samples[ct], results[i].Duration.Seconds())
		if len(s) > maxSamplesPerChannel {
			s = s[len(s)-maxSamplesPerChannel:]
		}
		c.samples[ct] = s
	}
}

// Snapshot возвращает текущую статистику по всем типам каналов
func (c *DispatchStatsCollector) Snapshot() []ChannelStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ChannelStats, 0, len(c.samples))
	for ct, samples := range c.samples {
		sorted := make([]float64, len(samples))
		copy(sorted, samples)
		sort.Float64s(sorted)

		cs := ChannelStats{
			ChannelType: ct,
			Attempts:    c.attempts[ct],
			Successes:   c.successes[ct],
		}
		if len(sorted) > 0 {
			cs.MeanSeconds = stat.Mean(sorted, nil)
			cs.P95Seconds = stat.Quantile(0.95, stat.Empirical, sorted, nil)
		}
		if len(sorted) > 1 {
			cs.StdDev = stat.StdDev(sorted, nil)
		}
		out = append(out, cs)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ChannelType < out[j].ChannelType })
	return out
}
