package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/netwarden/netwarden/internal/models"
	"github.com/netwarden/netwarden/internal/service"
	"github.com/netwarden/netwarden/pkg/database"
	"github.com/netwarden/netwarden/pkg/logger"
)

// AlertingHandler HTTP обработчики сервиса алертинга
type AlertingHandler struct {
	engine *service.AlertEngine
	logger *logger.Logger
}

// NewAlertingHandler создает новый обработчик
func NewAlertingHandler(engine *service.AlertEngine, log *logger.Logger) *AlertingHandler {
	return &AlertingHandler{engine: engine, logger: log}
}

// RegisterRoutes регистрирует маршруты API
func (h *AlertingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/evaluate", h.TriggerEvaluation)

	rg.GET("/alerts", h.GetAlerts)
	rg.GET("/alerts/summary", h.GetSummary)
	rg.POST("/alerts/:id/acknowledge", h.AcknowledgeAlert)
	rg.POST("/alerts/:id/resolve", h.ResolveAlert)

	rg.POST("/rules", h.CreateRule)
	rg.GET("/rules", h.ListRules)
	rg.GET("/rules/:id", h.GetRule)
	rg.PUT("/rules/:id", h.UpdateRule)
	rg.POST("/rules/:id/enable", h.EnableRule)
	rg.POST("/rules/:id/disable", h.DisableRule)
	rg.DELETE("/rules/:id", h.DeleteRule)

	rg.POST("/channels", h.CreateChannel)
	rg.GET("/channels", h.ListChannels)
	rg.GET("/channels/:id", h.GetChannel)
	rg.PUT("/channels/:id", h.UpdateChannel)
	rg.DELETE("/channels/:id", h.DeleteChannel)

	rg.POST("/mutes", h.CreateMute)
	rg.GET("/mutes", h.ListMutes)
	rg.DELETE("/mutes/:id", h.DeleteMute)

	rg.GET("/stats/dispatch", h.GetDispatchStats)
}

func parseObjectID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return primitive.NilObjectID, false
	}
	return id, true
}

// TriggerEvaluation запускает внеочередной проход оценки правил
func (h *AlertingHandler) TriggerEvaluation(c *gin.Context) {
	start := time.Now()
	defer func() {
		service.RecordHTTPRequest("POST", "/evaluate", time.Since(start).Seconds(), c.Writer.Status())
	}()

	fired, err := h.engine.EvaluatePass(c)
	if err != nil {
		h.logger.WithError(err).Error("Manual evaluation pass failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Evaluation failed"})
		return
	}
	if fired == nil {
		fired = []models.Alert{}
	}

	c.JSON(http.StatusOK, gin.H{"status": "completed", "fired": fired})
}

// GetAlerts возвращает алерты с фильтрами open и severity
func (h *AlertingHandler) GetAlerts(c *gin.Context) {
	start := time.Now()
	defer func() {
		service.RecordHTTPRequest("GET", "/alerts", time.Since(start).Seconds(), c.Writer.Status())
	}()

	openOnly := c.Query("open") == "true"
	severity := models.Severity(c.Query("severity"))
	if severity != "" && models.SeverityRank(severity) < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid severity"})
		return
	}

	limit := int64(100)
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	alerts, err := h.engine.GetAlerts(c, openOnly, severity, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get alerts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

// GetSummary возвращает сводку по алертам
func (h *AlertingHandler) GetSummary(c *gin.Context) {
	start := time.Now()
	defer func() {
		service.RecordHTTPRequest("GET", "/alerts/summary", time.Since(start).Seconds(), c.Writer.Status())
	}()

	summary, err := h.engine.GetSummary(c)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get alert summary")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get summary"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// AcknowledgeAlert подтверждает алерт
func (h *AlertingHandler) AcknowledgeAlert(c *gin.Context) {
	start := time.Now()
	defer func() {
		service.RecordHTTPRequest("POST", "/alerts/:id/acknowledge", time.Since(start).Seconds(), c.Writer.Status())
	}()

	id, ok := parseObjectID(c)
	if !ok {
		return
	}

	alert, err := h.engine.Acknowledge(c, id)
	if err != nil {
		h.respondLifecycleError(c, err, "Failed to acknowledge alert")
		return
	}

	c.JSON(http.StatusOK, alert)
}

// ResolveAlert закрывает алерт
func (h *AlertingHandler) ResolveAlert(c *gin.Context) {
	start := time.Now()
	defer func() {
		service.RecordHTTPRequest("POST", "/alerts/:id/resolve", time.Since(start).Seconds(), c.Writer.Status())
	}()

	id, ok := parseObjectID(c)
	if !ok {
		return
	}

	alert, err := h.engine.Resolve(c, id)
	if err != nil {
		h.respondLifecycleError(c, err, "Failed to resolve alert")
		return
	}

	c.JSON(http.StatusOK, alert)
}

// respondLifecycleError переводит ошибки жизненного цикла в HTTP статусы
func (h *AlertingHandler) respondLifecycleError(c *gin.Context, err error, logMsg string) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.WithError(err).Error(logMsg)
		c.JSON(http.StatusInternalServerError, gin.H{"error": logMsg})
	}
}

// CreateRule создает правило алертинга
func (h *AlertingHandler) CreateRule(c *gin.Context) {
	start := time.Now()
	defer func() {
		service.RecordHTTPRequest("POST", "/rules", time.Since(start).Seconds(), c.Writer.Status())
	}()

	var rule models.AlertRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.engine.CreateRule(c, &rule); err != nil {
		if errors.Is(err, models.ErrInvalidRule) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.WithError(err).Error("Failed to create rule")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create rule"})
		return
	}

	c.JSON(http.StatusCreated, rule)
}

// ListRules возвращает все правила
func (h *AlertingHandler) ListRules(c *gin.Context) {
	start := time.Now()
	defer func() {
		service.RecordHTTPRequest("GET", "/rules", time.Since(start).Seconds(), c.Writer.Status())
	}()

	rules, err := h.engine.ListRules(c)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list rules")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list rules"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rules": rules, "count": len(rules)})
}

// GetRule возвращает правило по идентификатору
func (h *AlertingHandler) GetRule(c *gin.Context) {
	start := time.Now()
	defer func() {
		service.RecordHTTPRequest("GET", "/rules/:id", time.Since(start).Seconds(), c.Writer.Status())
	}()

	id, ok := parseObjectID(c)
	if !ok {
		return
	}

	rule, err := h.engine.GetRule(c, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
			return
		}
		h.logger.WithError(err).Error("Failed to get rule")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get rule"})
		return
	}

	c.JSON(http.StatusOK, rule)
}

// UpdateRule обновляет правило
func (h *AlertingHandler) UpdateRule(c *gin.Context) {
	start := time.Now()
	defer func() {
		service.RecordHTTPRequest("PUT", "/rules/:id", time.Since(start).Seconds(), c.Writer.Status())
	}()

	id, ok := parseObjectID(c)
	if !ok {
		return
	}

	var rule models.AlertRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	rule.ID = id

	if err := h.engine.UpdateRule(c, &rule); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidRule):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, database.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
		default:
			h.logger.WithError(err).Error("Failed to update rule")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update rule"})
		}
		return
	}

	c.JSON(http.StatusOK, rule)
}

// EnableRule включает правило
func (h *AlertingHandler) EnableRule(c *gin.Context) {
	h.setRuleEnabled(c, true, "/rules/:id/enable")
}

// DisableRule выключает правило
func (h *AlertingHandler) DisableRule(c *gin.Context) {
	h.setRuleEnabled(c, false, "/rules/:id/disable")
}

func (h *AlertingHandler) setRuleEnabled(c *gin.Context, enabled bool, endpoint string) {
	start := time.Now()
	defer func() {
		service.RecordHTTPRequest("POST", endpoint, time.Since(start).Seconds(), c.Writer.Status())
	}()

	id, ok := parseObjectID(c)
	if !ok {
		return
	}

	if err := h.engine.SetRuleEnabled(c, id, enabled); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
			return
		}
		h.logger.WithError(err).Error("Failed to toggle rule")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to toggle rule"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"enabled": enabled})
}

// DeleteRule удаляет правило
func (h *AlertingHandler) DeleteRule(c *gin.Context) {
	start := time.Now()
	defer func() {
		service.RecordHTTPRequest("DELETE", "/rules/:id", time.Since(start).Seconds(), c.Writer.Status())
	}()

	id, ok := parseObjectID(c)
	if !ok {
		return
	}

	if err := h.engine.DeleteRule(c, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
			return
		}
		h.logger.WithError(err).Error("Failed to delete rule")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete rule"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// CreateChannel создает канал уведомлений
func (h *AlertingHandler) CreateChannel(c *gin.Context) {
	start := time.Now()
	defer func() {
		service.RecordHTTPRequest("POST", "/channels", time.Since(start).Seconds(), c.Writer.Status())
	}()

	var channel models.NotificationChannel
	if err := c.ShouldBindJSON(&channel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.engine.CreateChannel(c, &channel); err != nil {
		if errors.Is(err, models.ErrInvalidChannel) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.WithError(err).Error("Failed to create channel")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create channel"})
		return
	}

	c.JSON(http.StatusCreated, channel)
}

// ListChannels возвращает все каналы
func (h *AlertingHandler) ListChannels(c *gin.Context) {
	start := time.Now()
	defer func() {
		service.RecordHTTPRequest("GET", "/channels", time.Since(start).Seconds(), c.Writer.Status())
	}()

	channels, err := h.engine.ListChannels(c)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list channels")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list channels"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"channels": channels, "count": len(channels)})
}

// GetChannel возвращает канал по идентификатору
func (h *AlertingHandler) GetChannel(c *gin.Context) {
	start := time.Now()
	defer func() {
		service.RecordHTTPRequest("GET", "/channels/:id", time.Since(start).Seconds(), c.Writer.Status())
	}()

	id, ok := parseObjectID(c)
	if !ok {
		return
	}

	channel, err := h.engine.GetChannel(c, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
			return
		}
		h.logger.WithError(err).Error("Failed to get channel")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get channel"})
		return
	}

	c.JSON(http.StatusOK, channel)
}

// UpdateChannel обновляет канал
func (h *AlertingHandler) UpdateChannel(c *gin.Context) {
	start := time.Now()
	defer func() {
		service.RecordHTTPRequest("PUT", "/channels/:id", time.Since(start).Seconds(), c.Writer.Status())
	}()

	id, ok := parseObjectID(c)
	if !ok {
		return
	}

	var channel models.NotificationChannel
	if err := c.ShouldBindJSON(&channel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	channel.ID = id

	if err := h.engine.UpdateChannel(c, &channel); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidChannel):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, database.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
		default:
			h.logger.WithError(err).Error("Failed to update channel")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update channel"})
		}
		return
	}

	c.JSON(http.StatusOK, channel)
}

// DeleteChannel удаляет канал
func (h *AlertingHandler) DeleteChannel(c *gin.Context) {
	start := time.Now()
	defer func() {
		service.RecordHTTPRequest("DELETE", "/channels/:id", time.Since(start).Seconds(), c.Writer.Status())
	}()

	id, ok := parseObjectID(c)
	if !ok {
		return
	}

	if err := h.engine.DeleteChannel(c, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
			return
		}
		h.logger.WithError(err).Error("Failed to delete channel")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete channel"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// muteRequest тело запроса на создание заглушки
type muteRequest struct {
	RuleID          string `json:"rule_id"`
	HostID          string `json:"host_id"`
	Reason          string `json:"reason"`
	MutedBy         string `json:"muted_by"`
	DurationMinutes int    `json:"duration_minutes"`
}

// CreateMute создает заглушку уведомлений
func (h *AlertingHandler) CreateMute(c *gin.Context) {
	start := time.Now()
	defer func() {
		service.RecordHTTPRequest("POST", "/mutes", time.Since(start).Seconds(), c.Writer.Status())
	}()

	var req muteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	var ruleID *primitive.ObjectID
	if req.RuleID != "" {
		id, err := primitive.ObjectIDFromHex(req.RuleID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid rule_id"})
			return
		}
		ruleID = &id
	}

	duration := time.Duration(req.DurationMinutes) * time.Minute

	mute, err := h.engine.Mute(c, ruleID, req.HostID, req.Reason, req.MutedBy, duration)
	if err != nil {
		if errors.Is(err, models.ErrInvalidMute) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.WithError(err).Error("Failed to create mute")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create mute"})
		return
	}

	c.JSON(http.StatusCreated, mute)
}

// ListMutes возвращает все заглушки
func (h *AlertingHandler) ListMutes(c *gin.Context) {
	start := time.Now()
	defer func() {
		service.RecordHTTPRequest("GET", "/mutes", time.Since(start).Seconds(), c.Writer.Status())
	}()

	mutes, err := h.engine.ListMutes(c)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list mutes")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list mutes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"mutes": mutes, "count": len(mutes)})
}

// DeleteMute удаляет заглушку
func (h *AlertingHandler) DeleteMute(c *gin.Context) {
	start := time.Now()
	defer func() {
		service.RecordHTTPRequest("DELETE", "/mutes/:id", time.Since(start).Seconds(), c.Writer.Status())
	}()

	id, ok := parseObjectID(c)
	if !ok {
		return
	}

	if err := h.engine.Unmute(c, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Mute not found"})
			return
		}
		h.logger.WithError(err).Error("Failed to delete mute")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete mute"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// GetDispatchStats возвращает статистику доставки
func (h *AlertingHandler) GetDispatchStats(c *gin.Context) {
	start := time.Now()
	defer func() {
		service.RecordHTTPRequest("GET", "/stats/dispatch", time.Since(start).Seconds(), c.Writer.Status())
	}()

	c.JSON(http.StatusOK, gin.H{"channels": h.engine.DispatchStats()})
}
