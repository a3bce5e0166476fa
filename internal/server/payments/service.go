package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/trainingpay/internal/common"
	"github.com/dmitrijs2005/trainingpay/internal/logging"
	"github.com/dmitrijs2005/trainingpay/internal/server/models"
	"github.com/dmitrijs2005/trainingpay/internal/server/repositories/transactions"
	"github.com/dmitrijs2005/trainingpay/internal/server/repositories/users"
)

var ErrInvalidAmount = errors.New("amount must be positive and fit the gateway's minor units")

type PaymentRequest struct {
	Amount int64
	// MobileNumber defaults to the identity's phone when empty.
	MobileNumber string
	CourseID     string
	// PaymentMode defaults to models.PaymentModeOnline.
	PaymentMode string
	Membership  bool
}

type PaymentResult struct {
	MerchantTransactionID string
	RedirectURL           string
}

// Signing holds the gateway's shared secret and endpoint path.
type Signing struct {
	EndpointPath string
	SaltKey      string
	SaltIndex    int
}

type Submitter interface {
	Submit(ctx context.Context, payload, checksum string) (string, error)
}

type Service struct {
	users    users.Repository
	ledger   transactions.Repository
	merchant Merchant
	signing  Signing
	gateway  Submitter
	logger   logging.Logger
	now      func() time.Time
}

func NewService(repo users.Repository, ledger transactions.Repository, merchant Merchant, signing Signing, gateway Submitter, logger logging.Logger) *Service {
	return &Service{
		users:    repo,
		ledger:   ledger,
		merchant: merchant,
		signing:  signing,
		gateway:  gateway,
		logger:   logger.With("module", "payments"),
		now:      time.Now,
	}
}

// Initiate builds and signs a payment for the identity and returns the
// gateway's redirect URL. The ledger row is written only after the gateway
// accepts the request, so a rejected or failed submission leaves no record.
func (s *Service) Initiate(ctx context.Context, email string, req PaymentRequest) (*PaymentResult, error) {
	if req.Amount <= 0 || req.Amount > maxAmount(s.merchant.AmountMultiplier) {
		return nil, ErrInvalidAmount
	}

	user, err := s.activeUser(ctx, email)
	if err != nil {
		return nil, err
	}

	mobile := req.MobileNumber
	if mobile == "" {
		mobile = user.Phone
	}

	env := models.PaymentEnvelope{
		MerchantTransactionID: NewMerchantTransactionID(),
		MerchantUserID:        user.UniqueID,
		Name:                  user.DisplayName(),
		Amount:                req.Amount,
		MobileNumber:          mobile,
		InstrumentType:        models.InstrumentPayPage,
	}

	payload, err := BuildPayload(s.merchant, env)
	if err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}
	checksum := Sign(payload, s.signing.EndpointPath, s.signing.SaltKey, s.signing.SaltIndex)

	url, err := s.gateway.Submit(ctx, payload, checksum)
	if err != nil {
		s.logger.Error(ctx, "payment initiation failed", "email", email,
			"merchant_transaction_id", env.MerchantTransactionID, "error", err)
		return nil, err
	}

	mode := req.PaymentMode
	if mode == "" {
		mode = models.PaymentModeOnline
	}
	record := &models.PaymentTransaction{
		TransactionID:   env.MerchantTransactionID,
		Email:           user.Email,
		UserID:          user.UniqueID,
		CourseID:        req.CourseID,
		Amount:          req.Amount,
		PaymentMode:     mode,
		Membership:      req.Membership,
		TransactionDate: s.now().UTC(),
	}
	if err := s.ledger.Create(ctx, record); err != nil {
		s.logger.Error(ctx, "payment accepted but not recorded", "email", email,
			"merchant_transaction_id", env.MerchantTransactionID, "error", err)
		return nil, fmt.Errorf("record transaction: %w", err)
	}

	s.logger.Info(ctx, "payment initiated", "email", email, "merchant_transaction_id", env.MerchantTransactionID)
	return &PaymentResult{MerchantTransactionID: env.MerchantTransactionID, RedirectURL: url}, nil
}

// History returns the identity's payments, newest first, optionally
// filtered by search.
func (s *Service) History(ctx context.Context, email, search string) ([]models.PaymentTransaction, error) {
	if _, err := s.activeUser(ctx, email); err != nil {
		return nil, err
	}
	return s.ledger.List(ctx, email, search)
}

// HistoryForUser is History addressed by user id. The id may be the
// caller's email or unique id; anything else is common.ErrorUnauthorized.
// An empty id means the caller.
func (s *Service) HistoryForUser(ctx context.Context, email, userID string) ([]models.PaymentTransaction, error) {
	user, err := s.activeUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if userID != "" && userID != user.Email && userID != user.UniqueID {
		return nil, common.ErrorUnauthorized
	}
	return s.ledger.List(ctx, user.Email, "")
}

func (s *Service) activeUser(ctx context.Context, email string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUnknownIdentity
		}
		return nil, err
	}
	if user.Status == common.StatusDeleted {
		return nil, common.ErrUnknownIdentity
	}
	return user, nil
}
