package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HostStatus состояние сетевого устройства
type HostStatus string

const (
	HostStatusOnline  HostStatus = "online"
	HostStatusOffline HostStatus = "offline"
	HostStatusUnknown HostStatus = "unknown"
)

// Reading последнее показание метрики для хоста
type Reading struct {
	HostID     string    `json:"host_id"`
	MetricName string    `json:"metric_name"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
}

// DispatchResult результат одной попытки доставки в канал
type DispatchResult struct {
	AttemptID   string             `json:"attempt_id"`
	ChannelID   primitive.ObjectID `json:"channel_id"`
	ChannelType ChannelType        `json:"channel_type"`
	Success     bool               `json:"success"`
	Error       string             `json:"error,omitempty"`
	Duration    time.Duration      `json:"duration"`
}
