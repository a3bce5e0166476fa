package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/trainingpay/internal/common"
	"github.com/dmitrijs2005/trainingpay/internal/cryptox"
	"github.com/dmitrijs2005/trainingpay/internal/logging"
	"github.com/dmitrijs2005/trainingpay/internal/server/auth"
	"github.com/dmitrijs2005/trainingpay/internal/server/locks"
	"github.com/dmitrijs2005/trainingpay/internal/server/metrics"
	"github.com/dmitrijs2005/trainingpay/internal/server/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc     *UserService
	store   *memStore
	mgr     *fakeManager
	tokens  *auth.TokenService
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tokens, err := auth.NewTokenService("secretKey", 10*time.Hour)
	require.NoError(t, err)

	store := newMemStore()
	mgr := &fakeManager{s: store}
	m := metrics.New()
	return &fixture{
		svc:     NewUserService(mgr, tokens, locks.NewLocalLocker(), m, logging.Nop{}),
		store:   store,
		mgr:     mgr,
		tokens:  tokens,
		metrics: m,
	}
}

func (f *fixture) register(t *testing.T, email, password string) *models.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterRequest{
		Email: email, Password: password, FirstName: "Alice", LastName: "Smith", Phone: "9999999999",
	})
	require.NoError(t, err)
	return u
}

func TestRegister_StoresKeyAndEncryptedPassword(t *testing.T) {
	f := newFixture(t)

	u := f.register(t, "alice@example.com", "Secret1")
	assert.Equal(t, common.RoleUser, u.Role)
	assert.Equal(t, common.StatusActive, u.Status)
	assert.NotEmpty(t, u.UniqueID)
	assert.NotEqual(t, "Secret1", u.Password)

	encoded, ok := f.store.keys["alice@example.com"]
	require.True(t, ok)
	key, err := cryptox.DecodeKey(encoded)
	require.NoError(t, err)
	pt, err := cryptox.Decrypt(f.store.users["alice@example.com"].Password, key)
	require.NoError(t, err)
	assert.Equal(t, "Secret1", pt)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.KeysCreated))
}

func TestRegister_Duplicate(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "Secret1")

	_, err := f.svc.Register(context.Background(), RegisterRequest{Email: "alice@example.com", Password: "x"})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestRegister_FailedIdentityWriteLeavesNoKey(t *testing.T) {
	f := newFixture(t)
	f.store.failUserWrite = errors.New("disk full")

	_, err := f.svc.Register(context.Background(), RegisterRequest{Email: "alice@example.com", Password: "x"})
	require.Error(t, err)
	assert.Empty(t, f.store.keys)
	assert.Empty(t, f.store.users)
}

func TestLogin_Blank(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Login(context.Background(), "", "x")
	assert.ErrorIs(t, err, common.ErrBlankCredentials)
	_, err = f.svc.Login(context.Background(), "a@b.c", "")
	assert.ErrorIs(t, err, common.ErrBlankCredentials)
}

func TestLogin_UnknownIdentity(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Login(context.Background(), "ghost@example.com", "x")
	assert.ErrorIs(t, err, common.ErrUnknownIdentity)
}

func TestLogin_IssuesThenReusesToken(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "Secret1")
	ctx := context.Background()

	first, err := f.svc.Login(ctx, "alice@example.com", "Secret1")
	require.NoError(t, err)
	require.NotEmpty(t, first.Token)
	require.NotNil(t, first.TokenExpiry)

	stored := f.store.users["alice@example.com"]
	assert.Equal(t, first.Token, stored.Token)
	assert.True(t, first.TokenExpiry.Equal(*stored.TokenExpiry))

	sub, err := f.tokens.Validate(first.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", sub)

	writes := f.store.writes
	second, err := f.svc.Login(ctx, "alice@example.com", "Secret1")
	require.NoError(t, err)
	assert.Equal(t, first.Token, second.Token)
	assert.Equal(t, writes, f.store.writes)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TokensIssued))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Logins.WithLabelValues(metrics.LoginSuccess)))
}

func TestLogin_PasswordComparisonIgnoresCase(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "Secret1")

	_, err := f.svc.Login(context.Background(), "alice@example.com", "SECRET1")
	assert.NoError(t, err)
}

func TestLogin_WrongPasswordDoesNotMutate(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "Secret1")
	before := f.store.users["alice@example.com"]
	writes := f.store.writes

	_, err := f.svc.Login(context.Background(), "alice@example.com", "nope")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.Equal(t, writes, f.store.writes)
	assert.Equal(t, before, f.store.users["alice@example.com"])
}

func TestLogin_ExpiredTokenIsReissued(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "Secret1")

	short, err := auth.NewTokenService("secretKey", time.Second)
	require.NoError(t, err)
	old, exp, err := short.Issue("alice@example.com")
	require.NoError(t, err)
	f.store.setToken("alice@example.com", old, exp)

	time.Sleep(1100 * time.Millisecond)

	u, err := f.svc.Login(context.Background(), "alice@example.com", "Secret1")
	require.NoError(t, err)
	assert.NotEqual(t, old, u.Token)
	assert.Equal(t, u.Token, f.store.users["alice@example.com"].Token)
}

func TestLogin_ForeignTokenIsReissued(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "Secret1")

	other, err := auth.NewTokenService("rotated", time.Hour)
	require.NoError(t, err)
	foreign, exp, err := other.Issue("alice@example.com")
	require.NoError(t, err)
	f.store.setToken("alice@example.com", foreign, exp)

	u, err := f.svc.Login(context.Background(), "alice@example.com", "Secret1")
	require.NoError(t, err)
	assert.NotEqual(t, foreign, u.Token)
}

func TestLogin_MissingKey(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "Secret1")
	delete(f.store.keys, "alice@example.com")

	_, err := f.svc.Login(context.Background(), "alice@example.com", "Secret1")
	assert.ErrorIs(t, err, common.ErrKeyNotFound)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Logins.WithLabelValues(metrics.LoginMissingKey)))
}

func TestLogin_UndecryptablePassword(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "Secret1")
	u := f.store.users["alice@example.com"]
	u.Password = "garbage"
	f.store.users["alice@example.com"] = u

	_, err := f.svc.Login(context.Background(), "alice@example.com", "Secret1")
	assert.ErrorIs(t, err, common.ErrDecryptionFailed)
}

func TestUpdatePassword_CreatesMissingKey(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "Secret1")
	delete(f.store.keys, "alice@example.com")

	require.NoError(t, f.svc.UpdatePassword(context.Background(), "alice@example.com", "NewPass"))
	_, ok := f.store.keys["alice@example.com"]
	assert.True(t, ok)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.KeysCreated))

	_, err := f.svc.Login(context.Background(), "alice@example.com", "NewPass")
	assert.NoError(t, err)
}

func TestUpdatePassword_ReusesExistingKey(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "Secret1")
	keyBefore := f.store.keys["alice@example.com"]

	require.NoError(t, f.svc.UpdatePassword(context.Background(), "alice@example.com", "NewPass"))
	assert.Equal(t, keyBefore, f.store.keys["alice@example.com"])

	_, err := f.svc.Login(context.Background(), "alice@example.com", "Secret1")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestUpdatePassword_FailedWriteRollsBackNewKey(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "Secret1")
	delete(f.store.keys, "alice@example.com")
	f.store.failUserWrite = errors.New("boom")

	err := f.svc.UpdatePassword(context.Background(), "alice@example.com", "NewPass")
	require.Error(t, err)
	_, ok := f.store.keys["alice@example.com"]
	assert.False(t, ok)
}

func TestUpdatePassword_Errors(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.svc.UpdatePassword(context.Background(), "a@b.c", ""), common.ErrBlankCredentials)
	assert.ErrorIs(t, f.svc.UpdatePassword(context.Background(), "ghost@b.c", "x"), common.ErrUnknownIdentity)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "Secret1")

	first, phone := "Alicia", "1234567890"
	u, err := f.svc.UpdateProfile(context.Background(), "alice@example.com", ProfileUpdate{FirstName: &first, Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "Alicia", u.FirstName)
	assert.Equal(t, "Smith", u.LastName)

	stored := f.store.users["alice@example.com"]
	assert.Equal(t, "Alicia", stored.FirstName)
	assert.Equal(t, "1234567890", stored.Phone)
}

func TestDelete_SoftDeletesAndRemovesKey(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "Secret1")
	ctx := context.Background()

	require.NoError(t, f.svc.Delete(ctx, "alice@example.com"))

	stored, ok := f.store.users["alice@example.com"]
	require.True(t, ok)
	assert.Equal(t, common.StatusDeleted, stored.Status)
	_, ok = f.store.keys["alice@example.com"]
	assert.False(t, ok)

	_, err := f.svc.Login(ctx, "alice@example.com", "Secret1")
	assert.ErrorIs(t, err, common.ErrUnknownIdentity)
	_, err = f.svc.GetUser(ctx, "alice@example.com")
	assert.ErrorIs(t, err, common.ErrUnknownIdentity)
	assert.ErrorIs(t, f.svc.Delete(ctx, "alice@example.com"), common.ErrUnknownIdentity)
}
