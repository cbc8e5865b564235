package directDebitRepo

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

// MongoScheduleRepo implements ScheduleRepository using MongoDB.
type MongoScheduleRepo struct {
	coll *mongo.Collection
}

func NewMongoScheduleRepo(db *mongo.Database) ScheduleRepository {
	repo := &MongoScheduleRepo{coll: db.Collection("direct_debit_schedules")}
	if err := createIndexes(repo.coll, scheduleIndexes()); err != nil {
		utils.GetLogger().Error("schedule indexes", zap.Error(err))
	}
	return repo
}

func (r *MongoScheduleRepo) Create(ctx context.Context, schedule *models.DirectDebitSchedule) error {
	ctx, cancel := repository.NewContext(ctx)
	defer cancel()

	_, err := r.coll.InsertOne(ctx, schedule)
	return repository.TranslateWriteError(err, "schedule "+schedule.ScheduleID)
}

func (r *MongoScheduleRepo) GetByScheduleID(ctx context.Context, scheduleID string) (*models.DirectDebitSchedule, error) {
	ctx, cancel := repository.NewContext(ctx)
	defer cancel()

	var schedule models.DirectDebitSchedule
	if err := r.coll.FindOne(ctx, bson.M{"schedule_id": scheduleID}).Decode(&schedule); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.NewNotFoundError("schedule %s not found", scheduleID)
		}
		return nil, fmt.Errorf("error fetching schedule %s: %w", scheduleID, err)
	}
	return &schedule, nil
}

func (r *MongoScheduleRepo) GetByBookingID(ctx context.Context, bookingID string) (*models.DirectDebitSchedule, error) {
	ctx, cancel := repository.NewContext(ctx)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var schedule models.DirectDebitSchedule
	if err := r.coll.FindOne(ctx, bson.M{"booking_id": bookingID}, opts).Decode(&schedule); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.NewNotFoundError("no schedule for booking %s", bookingID)
		}
		return nil, fmt.Errorf("error fetching schedule for booking %s: %w", bookingID, err)
	}
	return &schedule, nil
}

func (r *MongoScheduleRepo) UpdateStatus(ctx context.Context, scheduleID string, status models.ScheduleStatus) error {
	ctx, cancel := repository.NewContext(ctx)
	defer cancel()

	update := bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"schedule_id": scheduleID}, update)
	if err != nil {
		return fmt.Errorf("error updating schedule %s: %w", scheduleID, err)
	}
	if res.MatchedCount == 0 {
		return utils.NewNotFoundError("schedule %s not found", scheduleID)
	}
	return nil
}

// MongoInstallmentRepo implements InstallmentRepository using MongoDB.
type MongoInstallmentRepo struct {
	coll *mongo.Collection
}

func NewMongoInstallmentRepo(db *mongo.Database) InstallmentRepository {
	repo := &MongoInstallmentRepo{coll: db.Collection("direct_debit_installments")}
	if err := createIndexes(repo.coll, installmentIndexes()); err != nil {
		utils.GetLogger().Error("installment indexes", zap.Error(err))
	}
	return repo
}

func (r *MongoInstallmentRepo) findOne(ctx context.Context, filter bson.M) (*models.DirectDebitInstallment, error) {
	ctx, cancel := repository.NewContext(ctx)
	defer cancel()

	var installment models.DirectDebitInstallment
	if err := r.coll.FindOne(ctx, filter).Decode(&installment); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("error fetching installment: %w", err)
	}
	return &installment, nil
}

func (r *MongoInstallmentRepo) FindByExternalPaymentID(ctx context.Context, externalPaymentID string) (*models.DirectDebitInstallment, error) {
	return r.findOne(ctx, bson.M{"external_payment_id": externalPaymentID})
}

func (r *MongoInstallmentRepo) FindByScheduleDue(ctx context.Context, scheduleID, bookingID string, dueDate time.Time) (*models.DirectDebitInstallment, error) {
	return r.findOne(ctx, bson.M{"schedule_id": scheduleID, "booking_id": bookingID, "due_date": dueDate})
}

func (r *MongoInstallmentRepo) Create(ctx context.Context, installment *models.DirectDebitInstallment) error {
	ctx, cancel := repository.NewContext(ctx)
	defer cancel()

	_, err := r.coll.InsertOne(ctx, installment)
	return repository.TranslateWriteError(err, "installment "+installment.ExternalPaymentID)
}

func (r *MongoInstallmentRepo) Update(ctx context.Context, installment *models.DirectDebitInstallment) error {
	ctx, cancel := repository.NewContext(ctx)
	defer cancel()

	res, err := r.coll.ReplaceOne(ctx, bson.M{"id": installment.ID}, installment)
	if err != nil {
		return repository.TranslateWriteError(err, "installment "+installment.ID)
	}
	if res.MatchedCount == 0 {
		return utils.NewNotFoundError("installment %s not found", installment.ID)
	}
	return nil
}

func (r *MongoInstallmentRepo) ListBySchedule(ctx context.Context, scheduleID string) ([]models.DirectDebitInstallment, error) {
	ctx, cancel := repository.NewContext(ctx)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "due_date", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"schedule_id": scheduleID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing installments for %s: %w", scheduleID, err)
	}
	defer cursor.Close(ctx)

	installments := []models.DirectDebitInstallment{}
	if err := cursor.All(ctx, &installments); err != nil {
		return nil, fmt.Errorf("error decoding installments: %w", err)
	}
	return installments, nil
}

// MongoCustomerRepo implements CustomerRepository using MongoDB.
type MongoCustomerRepo struct {
	coll *mongo.Collection
}

func NewMongoCustomerRepo(db *mongo.Database) CustomerRepository {
	repo := &MongoCustomerRepo{coll: db.Collection("direct_debit_customers")}
	if err := createIndexes(repo.coll, customerIndexes()); err != nil {
		utils.GetLogger().Error("customer indexes", zap.Error(err))
	}
	return repo
}

func (r *MongoCustomerRepo) GetByUserID(ctx context.Context, userID string) (*models.DirectDebitCustomer, error) {
	ctx, cancel := repository.NewContext(ctx)
	defer cancel()

	var customer models.DirectDebitCustomer
	if err := r.coll.FindOne(ctx, bson.M{"user_id": userID}).Decode(&customer); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("error fetching customer for user %s: %w", userID, err)
	}
	return &customer, nil
}

func (r *MongoCustomerRepo) Create(ctx context.Context, customer *models.DirectDebitCustomer) error {
	ctx, cancel := repository.NewContext(ctx)
	defer cancel()

	_, err := r.coll.InsertOne(ctx, customer)
	return repository.TranslateWriteError(err, "customer for user "+customer.UserID)
}

func (r *MongoCustomerRepo) Delete(ctx context.Context, userID string) error {
	ctx, cancel := repository.NewContext(ctx)
	defer cancel()

	if _, err := r.coll.DeleteOne(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("error deleting customer for user %s: %w", userID, err)
	}
	return nil
}
