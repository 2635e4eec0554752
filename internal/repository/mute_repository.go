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

// MuteRepository репозиторий мьютов
type MuteRepository struct {
	collection *mongo.Collection
}

// NewMuteRepository создает новый репозиторий мьютов
func NewMuteRepository(db *mongo.Database) *MuteRepository {
	return &MuteRepository{
		collection: db.Collection("alert_mutes"),
	}
}

// Create создает новый мьют
func (r *MuteRepository) Create(ctx context.Context, mute *models.AlertMute) error {
	mute.ID = primitive.NewObjectID()
	mute.CreatedAt = time.Now()
	_, err := r.collection.InsertOne(ctx, mute)
	return err
}

// GetByID получает мьют по ID
func (r *MuteRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.AlertMute, error) {
	var mute models.AlertMute
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&mute)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return &mute, nil
}

// GetActive получает мьюты, активные в момент now
func (r *MuteRepository) GetActive(ctx context.Context, now time.Time) ([]models.AlertMute, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"expires_at": nil},
		bson.M{"expires_at": bson.M{"$exists": false}},
		bson.M{"expires_at": bson.M{"$gt": now}},
	}}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var mutes []models.AlertMute
	if err := cursor.All(ctx, &mutes); err != nil {
		return nil, err
	}

	return mutes, nil
}

// GetAll получает все мьюты
func (r *MuteRepository) GetAll(ctx context.Context) ([]models.AlertMute, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var mutes []models.AlertMute
	if err := cursor.All(ctx, &mutes); err != nil {
		return nil, err
	}

	return mutes, nil
}

// Delete удаляет мьют
func (r *MuteRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}

// DeleteExpired удаляет мьюты с истекшим expires_at, чтобы коллекция не росла
func (r *MuteRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{
		"expires_at": bson.M{"$ne": nil, "$lt": now},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
