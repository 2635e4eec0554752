package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/netwarden/netwarden/internal/models"
	"github.com/netwarden/netwarden/pkg/logger"
)

// MetricSource источник показаний метрик и статусов хостов
type MetricSource interface {
	// LatestReading возвращает последнее значение метрики хоста.
	// Второй результат false, если показание отсутствует.
	LatestReading(ctx context.Context, hostID, metricName string) (float64, bool, error)
	// LatestStatus возвращает текущий статус хоста
	LatestStatus(ctx context.Context, hostID string) (models.HostStatus, error)
	// Hosts возвращает список известных хостов
	Hosts(ctx context.Context) ([]string, error)
}

// PrometheusSource источник метрик на базе Prometheus
type PrometheusSource struct {
	api       v1.API
	hostLabel string
	log       *logger.Logger
}

// NewPrometheusSource создает источник метрик из Prometheus
func NewPrometheusSource(url string, log *logger.Logger) (*PrometheusSource, error) {
	client, err := api.NewClient(api.Config{Address: url})
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus client: %w", err)
	}
	return &PrometheusSource{
		api:       v1.NewAPI(client),
		hostLabel: "host_id",
		log:       log,
	}, nil
}

// LatestReading возвращает последнее значение метрики хоста
func (s *PrometheusSource) LatestReading(ctx context.Context, hostID, metricName string) (float64, bool, error) {
	query := fmt.Sprintf(`last_over_time(%s{%s=%q}[5m])`, metricName, s.hostLabel, hostID)

	sample, err := s.queryInstant(ctx, query)
	if err != nil {
		return 0, false, err
	}
	if sample == nil {
		return 0, false, nil
	}
	return float64(sample.Value), true, nil
}

// LatestStatus возвращает статус хоста по метрике up
func (s *PrometheusSource) LatestStatus(ctx context.Context, hostID string) (models.HostStatus, error) {
	query := fmt.Sprintf(`up{%s=%q}`, s.hostLabel, hostID)

	sample, err := s.queryInstant(ctx, query)
	if err != nil {
		return models.HostStatusUnknown, err
	}
	if sample == nil {
		return models.HostStatusUnknown, nil
	}
	if sample.Value > 0 {
		return models.HostStatusOnline, nil
	}
	return models.HostStatusOffline, nil
}

// Hosts возвращает все значения лейбла хоста
func (s *PrometheusSource) Hosts(ctx context.Context) ([]string, error) {
	values, warnings, err := s.api.LabelValues(ctx, s.hostLabel, nil, time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	if len(warnings) > 0 {
		s.log.WithField("warnings", warnings).Warn("Prometheus label values query returned warnings")
	}

	hosts := make([]string, 0, len(values))
	for _, v := range values {
		hosts = append(hosts, string(v))
	}
	return hosts, nil
}

// queryInstant выполняет мгновенный запрос и возвращает первый сэмпл
func (s *PrometheusSource) queryInstant(ctx context.Context, query string) (*model.Sample, error) {
	result, warnings, err := s.api.Query(ctx, query, time.Now())
	if err != nil {
		return nil, fmt.Errorf("prometheus query failed: %w", err)
	}
	if len(warnings) > 0 {
		s.log.WithField("warnings", warnings).Warn("Prometheus query returned warnings")
	}

	switch v := result.(type) {
	case model.Vector:
		if len(v) == 0 {
			return nil, nil
		}
		return v[0], nil
	case *model.Scalar:
		return &model.Sample{Value: v.Value, Timestamp: v.Timestamp}, nil
	default:
		return nil, fmt.Errorf("unexpected prometheus result type %s", result.Type())
	}
}
