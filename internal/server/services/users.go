package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/trainingpay/internal/common"
	"github.com/dmitrijs2005/trainingpay/internal/logging"
	"github.com/dmitrijs2005/trainingpay/internal/server/auth"
	"github.com/dmitrijs2005/trainingpay/internal/server/locks"
	"github.com/dmitrijs2005/trainingpay/internal/server/metrics"
	"github.com/dmitrijs2005/trainingpay/internal/server/models"
	"github.com/dmitrijs2005/trainingpay/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/trainingpay/internal/server/vault"
	"github.com/google/uuid"
)

type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Address   string
}

// ProfileUpdate carries optional changes; nil fields are left as they are.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Phone     *string
	Address   *string
	Password  *string
}

type UserService struct {
	repomanager repomanager.RepositoryManager
	tokens      *auth.TokenService
	locker      locks.Locker
	metrics     *metrics.Metrics
	logger      logging.Logger
}

func NewUserService(m repomanager.RepositoryManager, tokens *auth.TokenService, locker locks.Locker,
	mtr *metrics.Metrics, logger logging.Logger) *UserService {
	return &UserService{
		repomanager: m,
		tokens:      tokens,
		locker:      locker,
		metrics:     mtr,
		logger:      logger.With("module", "users"),
	}
}

// Login checks the credentials and returns the identity with a usable
// token. The stored token is kept while it is unexpired; otherwise a new
// one is issued and persisted together with its expiry. Every rejection
// path is read-only.
func (s *UserService) Login(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" || password == "" {
		s.metrics.ObserveLogin(metrics.LoginRejected)
		return nil, common.ErrBlankCredentials
	}

	usersRepo := s.repomanager.Users()
	user, err := s.findActive(ctx, usersRepo.GetByEmail, username)
	if err != nil {
		s.observeLoginError(err)
		return nil, err
	}

	v := vault.New(s.repomanager.Keys(), s.logger)
	key, err := v.GetKey(ctx, user.Email)
	if err != nil {
		if errors.Is(err, common.ErrKeyNotFound) {
			s.logger.Error(ctx, "identity has no key", "email", user.Email)
		}
		s.observeLoginError(err)
		return nil, err
	}
	defer common.WipeByteArray(key)

	stored, err := v.Decrypt(user.Password, key)
	if err != nil {
		s.logger.Error(ctx, "stored password cannot be decrypted", "email", user.Email)
		s.metrics.ObserveLogin(metrics.LoginInternalFail)
		return nil, err
	}

	if !strings.EqualFold(stored, password) {
		s.metrics.ObserveLogin(metrics.LoginRejected)
		return nil, common.ErrInvalidCredentials
	}

	reissue, err := s.needsNewToken(user.Token)
	if err != nil {
		s.metrics.ObserveLogin(metrics.LoginInternalFail)
		return nil, err
	}

	if reissue {
		token, expiresAt, err := s.tokens.Issue(user.Email)
		if err != nil {
			s.metrics.ObserveLogin(metrics.LoginInternalFail)
			return nil, fmt.Errorf("issue token: %w", err)
		}
		if err := usersRepo.UpdateToken(ctx, user.Email, token, expiresAt); err != nil {
			s.metrics.ObserveLogin(metrics.LoginInternalFail)
			return nil, fmt.Errorf("store token: %w", err)
		}
		user.Token = token
		user.TokenExpiry = &expiresAt
		s.metrics.IncrementTokensIssued()
		s.logger.Info(ctx, "token issued", "email", user.Email, "expires_at", expiresAt)
	}

	s.metrics.ObserveLogin(metrics.LoginSuccess)
	return user, nil
}

// needsNewToken treats a stored token that no longer verifies (for example
// after the signing secret changed) like an expired one.
func (s *UserService) needsNewToken(token string) (bool, error) {
	if token == "" {
		return true, nil
	}
	expired, err := s.tokens.IsExpired(token)
	if err != nil {
		if errors.Is(err, common.ErrMalformedToken) {
			return true, nil
		}
		return false, err
	}
	return expired, nil
}

func (s *UserService) observeLoginError(err error) {
	switch {
	case errors.Is(err, common.ErrKeyNotFound):
		s.metrics.ObserveLogin(metrics.LoginMissingKey)
	case errors.Is(err, common.ErrUnknownIdentity):
		s.metrics.ObserveLogin(metrics.LoginRejected)
	default:
		s.metrics.ObserveLogin(metrics.LoginInternalFail)
	}
}

// Register creates an active identity with a fresh key. The key record is
// written before the identity, inside the same transaction.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	if req.Email == "" || req.Password == "" {
		return nil, common.ErrBlankCredentials
	}

	unlock, err := s.locker.Lock(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", req.Email, err)
	}
	defer unlock()

	user := &models.User{
		Email:     req.Email,
		UniqueID:  uuid.NewString(),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Address:   req.Address,
		Role:      common.RoleUser,
		Status:    common.StatusActive,
	}

	var created bool
	err = s.repomanager.WithTx(ctx, func(ctx context.Context, m repomanager.RepositoryManager) error {
		_, err := m.Users().GetByEmail(ctx, req.Email)
		if err == nil {
			return common.ErrorAlreadyExists
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		var encrypted string
		encrypted, created, err = s.encryptPassword(ctx, m, req.Email, req.Password)
		if err != nil {
			return err
		}
		user.Password = encrypted

		return m.Users().Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.metrics.IncrementKeysCreated()
	}
	s.logger.Info(ctx, "user registered", "email", user.Email)
	return user, nil
}

// UpdatePassword re-encrypts the password under the identity's key,
// creating the key first if it is missing.
func (s *UserService) UpdatePassword(ctx context.Context, email, newPassword string) error {
	if newPassword == "" {
		return common.ErrBlankCredentials
	}
	_, err := s.UpdateProfile(ctx, email, ProfileUpdate{Password: &newPassword})
	return err
}

func (s *UserService) UpdateProfile(ctx context.Context, email string, upd ProfileUpdate) (*models.User, error) {
	if upd.Password != nil {
		if *upd.Password == "" {
			return nil, common.ErrBlankCredentials
		}
		unlock, err := s.locker.Lock(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", email, err)
		}
		defer unlock()
	}

	var (
		user    *models.User
		created bool
	)
	err := s.repomanager.WithTx(ctx, func(ctx context.Context, m repomanager.RepositoryManager) error {
		var err error
		user, err = s.findActive(ctx, m.Users().GetByEmail, email)
		if err != nil {
			return err
		}

		if upd.hasProfileFields() {
			upd.apply(user)
			if err := m.Users().UpdateProfile(ctx, user); err != nil {
				return err
			}
		}

		if upd.Password != nil {
			var encrypted string
			encrypted, created, err = s.encryptPassword(ctx, m, email, *upd.Password)
			if err != nil {
				return err
			}
			if err := m.Users().UpdatePassword(ctx, email, encrypted); err != nil {
				return err
			}
			user.Password = encrypted
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.metrics.IncrementKeysCreated()
	}
	if upd.Password != nil {
		s.logger.Info(ctx, "password updated", "email", email)
	}
	return user, nil
}

// Delete marks the identity DELETED and removes its key. The record itself
// is retained.
func (s *UserService) Delete(ctx context.Context, email string) error {
	unlock, err := s.locker.Lock(ctx, email)
	if err != nil {
		return fmt.Errorf("lock %s: %w", email, err)
	}
	defer unlock()

	err = s.repomanager.WithTx(ctx, func(ctx context.Context, m repomanager.RepositoryManager) error {
		if _, err := s.findActive(ctx, m.Users().GetByEmail, email); err != nil {
			return err
		}
		if err := m.Users().SetStatus(ctx, email, common.StatusDeleted); err != nil {
			return err
		}
		return vault.New(m.Keys(), s.logger).Remove(ctx, email)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "user deleted", "email", email)
	return nil
}

func (s *UserService) GetUser(ctx context.Context, email string) (*models.User, error) {
	return s.findActive(ctx, s.repomanager.Users().GetByEmail, email)
}

// encryptPassword must run inside a transaction and under the identity's
// lock, since it may create the key record.
func (s *UserService) encryptPassword(ctx context.Context, m repomanager.RepositoryManager, email, password string) (string, bool, error) {
	v := vault.New(m.Keys(), s.logger)
	key, created, err := v.GetOrCreateKey(ctx, email)
	if err != nil {
		return "", false, err
	}
	defer common.WipeByteArray(key)

	encrypted, err := v.Encrypt(password, key)
	if err != nil {
		return "", false, fmt.Errorf("encrypt password: %w", err)
	}
	return encrypted, created, nil
}

// findActive maps missing and soft-deleted identities to
// common.ErrUnknownIdentity.
func (s *UserService) findActive(ctx context.Context, get func(context.Context, string) (*models.User, error), email string) (*models.User, error) {
	user, err := get(ctx, email)
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

func (u ProfileUpdate) hasProfileFields() bool {
	return u.FirstName != nil || u.LastName != nil || u.Phone != nil || u.Address != nil
}

func (u ProfileUpdate) apply(user *models.User) {
	if u.FirstName != nil {
		user.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		user.LastName = *u.LastName
	}
	if u.Phone != nil {
		user.Phone = *u.Phone
	}
	if u.Address != nil {
		user.Address = *u.Address
	}
}
