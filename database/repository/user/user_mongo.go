package userRepo

import (
	"context"
	"fmt"

	"fleetrent/database/repository"
	"fleetrent/models"
	"fleetrent/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoUserRepo implements UserRepository using MongoDB.
type MongoUserRepo struct {
	coll *mongo.Collection
}

func NewMongoUserRepo(db *mongo.Database) UserRepository {
	return &MongoUserRepo{coll: db.Collection("users")}
}

func (r *MongoUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := repository.NewContext(ctx)
	defer cancel()

	// Only the billing and contact fields are read.
	projection := bson.M{"id": 1, "email": 1, "first_name": 1, "last_name": 1, "phone": 1}
	var user models.User
	err := r.coll.FindOne(ctx, bson.M{"id": id}, options.FindOne().SetProjection(projection)).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.NewNotFoundError("user %s not found", id)
		}
		return nil, fmt.Errorf("error fetching user %s: %w", id, err)
	}
	return &user, nil
}
