package carRepo

import (
	"context"
	"fmt"
	"time"

	"fleetrent/database/repository"
	"fleetrent/models"
	"fleetrent/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoCarRepo implements CarRepository using MongoDB.
type MongoCarRepo struct {
	coll *mongo.Collection
}

func NewMongoCarRepo(db *mongo.Database) CarRepository {
	repo := &MongoCarRepo{coll: db.Collection("cars")}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := repo.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		utils.GetLogger().Error("failed to create car indexes", zap.Error(err))
	}
	return repo
}

func (r *MongoCarRepo) GetByID(ctx context.Context, id string) (*models.Car, error) {
	ctx, cancel := repository.NewContext(ctx)
	defer cancel()

	var car models.Car
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&car); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.NewNotFoundError("car %s not found", id)
		}
		return nil, fmt.Errorf("error fetching car %s: %w", id, err)
	}
	return &car, nil
}

func (r *MongoCarRepo) SetStatusIf(ctx context.Context, id string, expected, next models.CarStatus) (bool, error) {
	ctx, cancel := repository.NewContext(ctx)
	defer cancel()

	filter := bson.M{"id": id, "status": expected}
	update := bson.M{"$set": bson.M{"status": next, "updated_at": time.Now().UTC()}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("error updating car %s status: %w", id, err)
	}
	return res.MatchedCount == 1, nil
}
