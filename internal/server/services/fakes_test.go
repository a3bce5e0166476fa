package services

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/trainingpay/internal/common"
	"github.com/dmitrijs2005/trainingpay/internal/server/models"
	"github.com/dmitrijs2005/trainingpay/internal/server/repositories/keys"
	"github.com/dmitrijs2005/trainingpay/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/trainingpay/internal/server/repositories/transactions"
	"github.com/dmitrijs2005/trainingpay/internal/server/repositories/users"
)

// memStore backs both fake repositories. Writes are counted so tests can
// assert that a path was read-only.
type memStore struct {
	mu     sync.Mutex
	users  map[string]models.User
	keys   map[string]string
	writes int

	// failUserWrite makes the next user write fail, after earlier writes in
	// the same transaction were applied.
	failUserWrite error
}

func newMemStore() *memStore {
	return &memStore{users: map[string]models.User{}, keys: map[string]string{}}
}

func (s *memStore) snapshot() (map[string]models.User, map[string]string) {
	u := make(map[string]models.User, len(s.users))
	for k, v := range s.users {
		u[k] = v
	}
	k := make(map[string]string, len(s.keys))
	for a, b := range s.keys {
		k[a] = b
	}
	return u, k
}

func (s *memStore) setToken(email, token string, exp time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[email]
	u.Token, u.TokenExpiry = token, &exp
	s.users[email] = u
}

type fakeUsers struct{ s *memStore }

func (f fakeUsers) Create(_ context.Context, u *models.User) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failUserWrite != nil {
		return f.s.failUserWrite
	}
	if _, ok := f.s.users[u.Email]; ok {
		return common.ErrorAlreadyExists
	}
	u.CreatedAt = time.Now()
	f.s.users[u.Email] = *u
	f.s.writes++
	return nil
}

func (f fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (f fakeUsers) update(email string, fn func(u *models.User)) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failUserWrite != nil {
		return f.s.failUserWrite
	}
	u, ok := f.s.users[email]
	if !ok {
		return common.ErrorNotFound
	}
	fn(&u)
	f.s.users[email] = u
	f.s.writes++
	return nil
}

func (f fakeUsers) UpdatePassword(_ context.Context, email, enc string) error {
	return f.update(email, func(u *models.User) { u.Password = enc })
}

func (f fakeUsers) UpdateToken(_ context.Context, email, token string, exp time.Time) error {
	return f.update(email, func(u *models.User) { u.Token = token; u.TokenExpiry = &exp })
}

func (f fakeUsers) UpdateProfile(_ context.Context, in *models.User) error {
	return f.update(in.Email, func(u *models.User) {
		u.FirstName, u.LastName, u.Phone, u.Address = in.FirstName, in.LastName, in.Phone, in.Address
	})
}

func (f fakeUsers) SetStatus(_ context.Context, email, status string) error {
	return f.update(email, func(u *models.User) { u.Status = status })
}

type fakeKeys struct{ s *memStore }

func (f fakeKeys) Find(_ context.Context, email string) (*models.KeyRecord, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	k, ok := f.s.keys[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &models.KeyRecord{Email: email, SecretKey: k}, nil
}

func (f fakeKeys) Save(_ context.Context, rec *models.KeyRecord) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.keys[rec.Email]; ok {
		return common.ErrorAlreadyExists
	}
	f.s.keys[rec.Email] = rec.SecretKey
	f.s.writes++
	return nil
}

func (f fakeKeys) Delete(_ context.Context, email string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	delete(f.s.keys, email)
	f.s.writes++
	return nil
}

// fakeManager restores the store snapshot when a transaction fails.
type fakeManager struct {
	s   *memStore
	txs int
}

var _ repomanager.RepositoryManager = (*fakeManager)(nil)

func (m *fakeManager) Users() users.Repository { return fakeUsers{m.s} }
func (m *fakeManager) Keys() keys.Repository   { return fakeKeys{m.s} }

func (m *fakeManager) WithTx(ctx context.Context, fn repomanager.TxFunc) error {
	m.txs++
	m.s.mu.Lock()
	u, k := m.s.snapshot()
	m.s.mu.Unlock()

	if err := fn(ctx, m); err != nil {
		m.s.mu.Lock()
		m.s.users, m.s.keys = u, k
		m.s.mu.Unlock()
		return err
	}
	return nil
}

func (m *fakeManager) RunMigrations(context.Context) error { return nil }
func (m *fakeManager) Close(context.Context) error         { return nil }

// Transactions is never reached from the identity services.
func (m *fakeManager) Transactions() transactions.Repository { return nil }
