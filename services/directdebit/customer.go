package directdebit

import (
	"context"
	"net/http"
	"net/url"
	"time"

	directDebitRepo "fleetrent/database/repository/directdebit"
	"fleetrent/models"
	"fleetrent/utils"

	"go.uber.org/zap"
)

const customerLookupAttempts = 3

// CustomerService keeps a local cache of gateway customer codes, validated against the gateway
// every time it is used.
type CustomerService struct {
	Client    *Client
	Customers directDebitRepo.CustomerRepository
	Logger    *zap.Logger
}

func NewCustomerService(client *Client, customers directDebitRepo.CustomerRepository, logger *zap.Logger) *CustomerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerService{Client: client, Customers: customers, Logger: logger}
}

func customerPath(code string) string {
	return "/v3/customers/" + url.PathEscape(code)
}

// GetOrCreateCustomer returns the user's gateway customer. A cached code the gateway no longer
// recognises is dropped and a new customer is created. A lookup that fails for transient reasons
// after retries is returned as an error, so an outage never spawns duplicate customers.
func (s *CustomerService) GetOrCreateCustomer(ctx context.Context, user *models.User) (*models.DirectDebitCustomer, error) {
	cached, err := s.Customers.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	if cached != nil {
		remote, err := s.Client.GetWithRetry(ctx, customerPath(cached.CustomerCode), customerLookupAttempts)
		if err == nil {
			s.refreshMobile(ctx, cached.CustomerCode, user, remote)
			return cached, nil
		}
		if utils.IsRetryable(err) {
			return nil, err
		}
		s.Logger.Info("cached gateway customer is stale, recreating",
			zap.String("userID", user.ID),
			zap.String("customerCode", cached.CustomerCode),
			zap.Error(err))
		if err := s.Customers.Delete(ctx, user.ID); err != nil {
			return nil, err
		}
	}

	return s.createCustomer(ctx, user)
}

func (s *CustomerService) createCustomer(ctx context.Context, user *models.User) (*models.DirectDebitCustomer, error) {
	payload := map[string]interface{}{
		"Name":   user.FullName(),
		"Email":  user.Email,
		"Mobile": NormalizeMobile(user.Phone),
	}
	resp, err := s.Client.Do(ctx, http.MethodPost, "/v3/customers", payload)
	if err != nil {
		return nil, err
	}
	code := utils.FirstString(resp, customerCodeKeys...)
	if code == "" {
		return nil, utils.NewGatewayError(0, false, "gateway customer response carried no customer code", nil)
	}

	now := time.Now().UTC()
	customer := &models.DirectDebitCustomer{
		UserID:       user.ID,
		CustomerCode: code,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Customers.Create(ctx, customer); err != nil {
		if utils.IsKind(err, utils.KindConflict) {
			// a concurrent request cached one first
			if existing, getErr := s.Customers.GetByUserID(ctx, user.ID); getErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}
	s.Logger.Info("gateway customer created", zap.String("userID", user.ID), zap.String("customerCode", code))
	return customer, nil
}

// refreshMobile pushes the user's current mobile to the gateway when it differs. Failures are
// logged only.
func (s *CustomerService) refreshMobile(ctx context.Context, code string, user *models.User, remote map[string]interface{}) {
	local := NormalizeMobile(user.Phone)
	if local == "" || NormalizeMobile(utils.FirstString(remote, mobileKeys...)) == local {
		return
	}
	if _, err := s.Client.Do(ctx, http.MethodPut, customerPath(code), map[string]string{"Mobile": local}); err != nil {
		s.Logger.Warn("failed to update gateway customer mobile", zap.String("customerCode", code), zap.Error(err))
	}
}
