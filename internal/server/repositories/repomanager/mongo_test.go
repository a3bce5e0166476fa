package repomanager

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoRepositoryManager(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("repositories", func(mt *mtest.T) {
		var m RepositoryManager = NewMongoRepositoryManager(mt.Client, mt.DB.Name())
		assert.NotNil(mt, m.Users())
		assert.NotNil(mt, m.Keys())
		assert.NotNil(mt, m.Transactions())
	})

	mt.Run("run migrations creates every collection's indexes", func(mt *mtest.T) {
		m := NewMongoRepositoryManager(mt.Client, mt.DB.Name())
		mt.AddMockResponses(mtest.CreateSuccessResponse(), mtest.CreateSuccessResponse(), mtest.CreateSuccessResponse())

		require.NoError(mt, m.RunMigrations(context.Background()))
	})

	mt.Run("run migrations error", func(mt *mtest.T) {
		m := NewMongoRepositoryManager(mt.Client, mt.DB.Name())
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 85, Message: "index options conflict", Name: "IndexOptionsConflict",
		}))

		assert.Error(mt, m.RunMigrations(context.Background()))
	})

	mt.Run("with tx binds manager", func(mt *mtest.T) {
		orig := runInSession
		defer func() { runInSession = orig }()

		sessions := 0
		runInSession = func(ctx context.Context, _ *mongo.Client, fn func(sc mongo.SessionContext) error) error {
			sessions++
			return fn(mongo.NewSessionContext(ctx, nil))
		}

		m := NewMongoRepositoryManager(mt.Client, mt.DB.Name())
		boom := errors.New("boom")
		err := m.WithTx(context.Background(), func(ctx context.Context, tm RepositoryManager) error {
			return tm.WithTx(ctx, func(ctx context.Context, inner RepositoryManager) error {
				assert.Same(mt, tm, inner)
				return boom
			})
		})
		assert.ErrorIs(mt, err, boom)
		assert.Equal(mt, 1, sessions)
	})
}
