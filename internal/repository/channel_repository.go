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

// ChannelRepository репозиторий каналов уведомлений
type ChannelRepository struct {
	collection *mongo.Collection
}

// NewChannelRepository создает новый репозиторий каналов
func NewChannelRepository(db *mongo.Database) *ChannelRepository {
	return &ChannelRepository{
		collection: db.Collection("notification_channels"),
	}
}

// Create создает новый канал
func (r *ChannelRepository) Create(ctx context.Context, channel *models.NotificationChannel) error {
	channel.ID = primitive.NewObjectID()
	now := time.Now()
	channel.CreatedAt = now
	channel.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, channel)
	return err
}

// GetByID получает канал по ID
func (r *ChannelRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.NotificationChannel, error) {
	var channel models.NotificationChannel
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&channel)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return &channel, nil
}

// GetAll получает все каналы
func (r *ChannelRepository) GetAll(ctx context.Context) ([]models.NotificationChannel, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var channels []models.NotificationChannel
	if err := cursor.All(ctx, &channels); err != nil {
		return nil, err
	}

	return channels, nil
}

// Update обновляет канал целиком
func (r *ChannelRepository) Update(ctx context.Context, channel *models.NotificationChannel) error {
	channel.UpdatedAt = time.Now()
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": channel.ID}, channel)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}

// Delete удаляет канал
func (r *ChannelRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}
