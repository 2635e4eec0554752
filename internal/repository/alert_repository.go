package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/netwarden/netwarden/internal/models"
	"github.com/netwarden/netwarden/pkg/database"
)

// AlertRepository репозиторий экземпляров алертов
type AlertRepository struct {
	collection *mongo.Collection
}

// NewAlertRepository создает новый репозиторий алертов
func NewAlertRepository(db *mongo.Database) *AlertRepository {
	return &AlertRepository{
		collection: db.Collection("alerts"),
	}
}

var openStatuses = bson.A{models.AlertStatusTriggered, models.AlertStatusAcknowledged}

// Insert сохраняет новый алерт
func (r *AlertRepository) Insert(ctx context.Context, alert *models.Alert) error {
	alert.ID = primitive.NewObjectID()
	_, err := r.collection.InsertOne(ctx, alert)
	return err
}

// GetByID получает алерт по ID
func (r *AlertRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Alert, error) {
	var alert models.Alert
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&alert)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return &alert, nil
}

// FindOpen ищет открытый алерт для пары (rule, host)
func (r *AlertRepository) FindOpen(ctx context.Context, ruleID primitive.ObjectID, hostID string) (*models.Alert, error) {
	filter := bson.M{
		"rule_id": ruleID,
		"host_id": hostID,
		"status":  bson.M{"$in": openStatuses},
	}

	var alert models.Alert
	err := r.collection.FindOne(ctx, filter).Decode(&alert)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return &alert, nil
}

// Refresh обновляет last_seen_at и наблюдаемое значение открытого алерта
func (r *AlertRepository) Refresh(ctx context.Context, id primitive.ObjectID, lastSeen time.Time, value float64) error {
	res, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"last_seen_at":   lastSeen,
			"value_observed": value,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}

// UpdateStatus переводит алерт в новый статус с отметкой времени
func (r *AlertRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.AlertStatus, at time.Time) error {
	set := bson.M{"status": status}
	switch status {
	case models.AlertStatusAcknowledged:
		set["acknowledged_at"] = at
	case models.AlertStatusResolved:
		set["resolved_at"] = at
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}

// GetOpen получает все открытые алерты
func (r *AlertRepository) GetOpen(ctx context.Context) ([]models.Alert, error) {
	filter := bson.M{"status": bson.M{"$in": openStatuses}}

	opts := options.Find().SetSort(bson.D{{Key: "opened_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var alerts []models.Alert
	if err := cursor.All(ctx, &alerts); err != nil {
		return nil, err
	}

	return alerts, nil
}

// GetOpenStale получает открытые алерты, не подтверждавшиеся показаниями после olderThan
func (r *AlertRepository) GetOpenStale(ctx context.Context, olderThan time.Time) ([]models.Alert, error) {
	filter := bson.M{
		"status":       bson.M{"$in": openStatuses},
		"last_seen_at": bson.M{"$lt": olderThan},
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var alerts []models.Alert
	if err := cursor.All(ctx, &alerts); err != nil {
		return nil, err
	}

	return alerts, nil
}

// GetAlerts получает алерты с фильтрами
func (r *AlertRepository) GetAlerts(ctx context.Context, openOnly bool, severity models.Severity, limit int64) ([]models.Alert, error) {
	filter := bson.M{}
	if openOnly {
		filter["status"] = bson.M{"$in": openStatuses}
	}
	if severity != "" {
		filter["severity"] = severity
	}

	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "opened_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var alerts []models.Alert
	if err := cursor.All(ctx, &alerts); err != nil {
		return nil, err
	}

	return alerts, nil
}

// GetRecent получает алерты за последние hours часов
func (r *AlertRepository) GetRecent(ctx context.Context, hours int) ([]models.Alert, error) {
	filter := bson.M{
		"opened_at": bson.M{"$gte": time.Now().Add(-time.Duration(hours) * time.Hour)},
	}

	opts := options.Find().SetSort(bson.D{{Key: "opened_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var alerts []models.Alert
	if err := cursor.All(ctx, &alerts); err != nil {
		return nil, err
	}

	return alerts, nil
}

// GetSummary получает сводку по алертам
func (r *AlertRepository) GetSummary(ctx context.Context) (*models.AlertSummary, error) {
	totalCount, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}

	openCount, err := r.collection.CountDocuments(ctx, bson.M{"status": bson.M{"$in": openStatuses}})
	if err != nil {
		return nil, err
	}

	bySeverity, err := r.countBy(ctx, "$severity")
	if err != nil {
		return nil, err
	}

	byStatus, err := r.countBy(ctx, "$status")
	if err != nil {
		return nil, err
	}

	recentAlerts, _ := r.GetRecent(ctx, 24)

	return &models.AlertSummary{
		TotalAlerts:  totalCount,
		OpenCount:    openCount,
		BySeverity:   bySeverity,
		ByStatus:     byStatus,
		RecentAlerts: recentAlerts,
	}, nil
}

func (r *AlertRepository) countBy(ctx context.Context, field string) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   field,
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := make(map[string]int64)
	for cursor.Next(ctx) {
		var result struct {
			ID    string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cursor.Decode(&result); err != nil {
			continue
		}
		counts[result.ID] = result.Count
	}

	return counts, nil
}

// DeleteResolvedBefore удаляет решенные алерты старше olderThan
func (r *AlertRepository) DeleteResolvedBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{
		"status":      models.AlertStatusResolved,
		"resolved_at": bson.M{"$lt": olderThan},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
