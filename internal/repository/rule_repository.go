package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/netwarden/netwarden/internal/models"
	"github.com/netwarden/netwarden/pkg/database"
)

// RuleRepository репозиторий правил алертов
type RuleRepository struct {
	collection *mongo.Collection
}

// NewRuleRepository создает новый репозиторий правил
func NewRuleRepository(db *mongo.Database) *RuleRepository {
	return &RuleRepository{
		collection: db.Collection("alert_rules"),
	}
}

// Create создает новое правило
func (r *RuleRepository) Create(ctx context.Context, rule *models.AlertRule) error {
	rule.ID = primitive.NewObjectID()
	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, rule)
	return err
}

// GetByID получает правило по ID
func (r *RuleRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.AlertRule, error) {
	var rule models.AlertRule
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rule)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// GetEnabled получает включенные правила
func (r *RuleRepository) GetEnabled(ctx context.Context) ([]models.AlertRule, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"enabled": true})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rules []models.AlertRule
	if err := cursor.All(ctx, &rules); err != nil {
		return nil, err
	}

	return rules, nil
}

// GetAll получает все правила
func (r *RuleRepository) GetAll(ctx context.Context) ([]models.AlertRule, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rules []models.AlertRule
	if err := cursor.All(ctx, &rules); err != nil {
		return nil, err
	}

	return rules, nil
}

// Update обновляет правило целиком
func (r *RuleRepository) Update(ctx context.Context, rule *models.AlertRule) error {
	rule.UpdatedAt = time.Now()
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": rule.ID}, rule)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}

// SetEnabled включает или выключает правило
func (r *RuleRepository) SetEnabled(ctx context.Context, id primitive.ObjectID, enabled bool) error {
	res, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"enabled": enabled, "updated_at": time.Now()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}

// Delete удаляет правило
func (r *RuleRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}
