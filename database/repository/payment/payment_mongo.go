package paymentRepo

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

// MongoPaymentRepo implements PaymentRepository using MongoDB.
type MongoPaymentRepo struct {
	coll *mongo.Collection
}

func NewMongoPaymentRepo(db *mongo.Database) PaymentRepository {
	repo := &MongoPaymentRepo{coll: db.Collection("payments")}
	if err := repo.ensureIndexes(); err != nil {
		utils.GetLogger().Error("failed to create payment indexes", zap.Error(err))
	}
	return repo
}

// ensureIndexes creates the uniqueness backstop for reconciliation. The gateway transaction
// index is partial so payments without a gateway reference never collide.
func (r *MongoPaymentRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "transaction_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys: bson.D{
				{Key: "booking_id", Value: 1},
				{Key: "gateway", Value: 1},
				{Key: "gateway_transaction_id", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetName("uniq_booking_gateway_txn").
				SetPartialFilterExpression(bson.M{"gateway_transaction_id": bson.M{"$type": "string"}}),
		},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (r *MongoPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	ctx, cancel := repository.NewContext(ctx)
	defer cancel()

	_, err := r.coll.InsertOne(ctx, payment)
	return repository.TranslateWriteError(err, "payment "+payment.TransactionID)
}

func (r *MongoPaymentRepo) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	ctx, cancel := repository.NewContext(ctx)
	defer cancel()

	var payment models.Payment
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&payment); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.NewNotFoundError("payment %s not found", id)
		}
		return nil, fmt.Errorf("error fetching payment %s: %w", id, err)
	}
	return &payment, nil
}

func (r *MongoPaymentRepo) FindByGatewayTransaction(ctx context.Context, bookingID, gateway, gatewayTxnID string) (*models.Payment, error) {
	ctx, cancel := repository.NewContext(ctx)
	defer cancel()

	filter := bson.M{
		"booking_id":             bookingID,
		"gateway":                gateway,
		"gateway_transaction_id": gatewayTxnID,
	}
	var payment models.Payment
	if err := r.coll.FindOne(ctx, filter).Decode(&payment); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("error looking up gateway transaction %s: %w", gatewayTxnID, err)
	}
	return &payment, nil
}

func (r *MongoPaymentRepo) ListByBooking(ctx context.Context, bookingID string) ([]models.Payment, error) {
	ctx, cancel := repository.NewContext(ctx)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"booking_id": bookingID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing payments for booking %s: %w", bookingID, err)
	}
	defer cursor.Close(ctx)

	payments := []models.Payment{}
	if err := cursor.All(ctx, &payments); err != nil {
		return nil, fmt.Errorf("error decoding payments: %w", err)
	}
	return payments, nil
}

func (r *MongoPaymentRepo) Update(ctx context.Context, payment *models.Payment) error {
	ctx, cancel := repository.NewContext(ctx)
	defer cancel()

	res, err := r.coll.ReplaceOne(ctx, bson.M{"id": payment.ID}, payment)
	if err != nil {
		return repository.TranslateWriteError(err, "payment "+payment.ID)
	}
	if res.MatchedCount == 0 {
		return utils.NewNotFoundError("payment %s not found", payment.ID)
	}
	return nil
}
