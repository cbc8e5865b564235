package repository

import (
	"context"
	"fmt"
	"time"

	"fleetrent/utils"

	"go.mongodb.org/mongo-driver/mongo"
)

// DefaultTimeout bounds every single repository call.
const DefaultTimeout = 5 * time.Second

// TxRunner is the unit of work. fn runs against the ctx it is given; returning an error rolls
// everything fn wrote back, returning nil commits it.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// MongoTxRunner runs units of work inside a MongoDB session transaction.
type MongoTxRunner struct {
	client *mongo.Client
}

func NewMongoTxRunner(client *mongo.Client) *MongoTxRunner {
	return &MongoTxRunner{client: client}
}

// WithTransaction starts a session and runs fn in a transaction. The driver retries fn on
// transient transaction errors (write conflicts), so fn must re-read whatever it decides on.
func (r *MongoTxRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// NewContext derives a bounded context for one repository call. Session values on parent
// are preserved, so calls made inside WithTransaction stay in the transaction.
func NewContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, DefaultTimeout)
}

// TranslateWriteError turns a duplicate key violation into a ConflictError and wraps anything else.
func TranslateWriteError(err error, what string) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return utils.NewConflictError(what+" already exists", err)
	}
	return fmt.Errorf("error writing %s: %w", what, err)
}
