package bookingRepo

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

// MongoBookingRepo implements BookingRepository using MongoDB.
type MongoBookingRepo struct {
	coll *mongo.Collection
}

// NewMongoBookingRepo constructs the repository and makes sure its indexes exist.
func NewMongoBookingRepo(db *mongo.Database) BookingRepository {
	repo := &MongoBookingRepo{coll: db.Collection("bookings")}
	if err := repo.ensureIndexes(); err != nil {
		utils.GetLogger().Error("failed to create booking indexes", zap.Error(err))
	}
	return repo
}

func (r *MongoBookingRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "booking_number", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "car_id", Value: 1}, {Key: "status", Value: 1}, {Key: "pickup_date", Value: 1}}},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (r *MongoBookingRepo) Create(ctx context.Context, booking *models.Booking) error {
	ctx, cancel := repository.NewContext(ctx)
	defer cancel()

	_, err := r.coll.InsertOne(ctx, booking)
	return repository.TranslateWriteError(err, "booking "+booking.BookingNumber)
}

func (r *MongoBookingRepo) findOne(ctx context.Context, filter bson.M, what string) (*models.Booking, error) {
	ctx, cancel := repository.NewContext(ctx)
	defer cancel()

	var booking models.Booking
	if err := r.coll.FindOne(ctx, filter).Decode(&booking); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.NewNotFoundError("booking %s not found", what)
		}
		return nil, fmt.Errorf("error fetching booking %s: %w", what, err)
	}
	return &booking, nil
}

func (r *MongoBookingRepo) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	return r.findOne(ctx, bson.M{"id": id}, id)
}

func (r *MongoBookingRepo) GetByNumber(ctx context.Context, number string) (*models.Booking, error) {
	return r.findOne(ctx, bson.M{"booking_number": number}, number)
}

func (r *MongoBookingRepo) List(ctx context.Context, filter BookingFilter) ([]models.Booking, error) {
	ctx, cancel := repository.NewContext(ctx)
	defer cancel()

	query := bson.M{}
	if filter.CustomerID != "" {
		query["customer_id"] = filter.CustomerID
	}
	if filter.CarID != "" {
		query["car_id"] = filter.CarID
	}
	if len(filter.Statuses) > 0 {
		query["status"] = bson.M{"$in": filter.Statuses}
	}
	if filter.NeedsCarReassignment {
		query["needs_car_reassignment"] = true
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []models.Booking{}
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("error decoding bookings: %w", err)
	}
	return bookings, nil
}

func (r *MongoBookingRepo) FindOverlapping(ctx context.Context, carID string, from, to time.Time, statuses []models.BookingStatus, excludeID string) ([]models.Booking, error) {
	ctx, cancel := repository.NewContext(ctx)
	defer cancel()

	query := bson.M{
		"car_id":      carID,
		"status":      bson.M{"$in": statuses},
		"pickup_date": bson.M{"$lt": to},
		"return_date": bson.M{"$gt": from},
	}
	if excludeID != "" {
		query["id"] = bson.M{"$ne": excludeID}
	}

	cursor, err := r.coll.Find(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error finding overlapping bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []models.Booking{}
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("error decoding overlapping bookings: %w", err)
	}
	return bookings, nil
}

func (r *MongoBookingRepo) Update(ctx context.Context, booking *models.Booking) error {
	ctx, cancel := repository.NewContext(ctx)
	defer cancel()

	res, err := r.coll.ReplaceOne(ctx, bson.M{"id": booking.ID}, booking)
	if err != nil {
		return repository.TranslateWriteError(err, "booking "+booking.ID)
	}
	if res.MatchedCount == 0 {
		return utils.NewNotFoundError("booking %s not found", booking.ID)
	}
	return nil
}

func (r *MongoBookingRepo) UpdateIfStatus(ctx context.Context, booking *models.Booking, expected models.BookingStatus) (bool, error) {
	ctx, cancel := repository.NewContext(ctx)
	defer cancel()

	res, err := r.coll.ReplaceOne(ctx, bson.M{"id": booking.ID, "status": expected}, booking)
	if err != nil {
		return false, repository.TranslateWriteError(err, "booking "+booking.ID)
	}
	return res.MatchedCount == 1, nil
}

func (r *MongoBookingRepo) SetDirectDebitSchedule(ctx context.Context, bookingID, scheduleID string) error {
	ctx, cancel := repository.NewContext(ctx)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"direct_debit_schedule_id": scheduleID,
		"updated_at":               time.Now().UTC(),
	}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"id": bookingID}, update)
	if err != nil {
		return fmt.Errorf("error linking schedule to booking %s: %w", bookingID, err)
	}
	if res.MatchedCount == 0 {
		return utils.NewNotFoundError("booking %s not found", bookingID)
	}
	return nil
}
