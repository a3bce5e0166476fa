package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/trainingpay/internal/server/repositories/keys"
	"github.com/dmitrijs2005/trainingpay/internal/server/repositories/transactions"
	"github.com/dmitrijs2005/trainingpay/internal/server/repositories/users"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepositoryManager vends MongoDB-backed repositories. Transactions need
// a replica set or sharded deployment.
type MongoRepositoryManager struct {
	client *mongo.Client
	db     *mongo.Database
	inTx   bool
}

// OpenMongo connects to uri and pings the primary.
func OpenMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect error: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping error: %w", err)
	}
	return client, nil
}

func NewMongoRepositoryManager(client *mongo.Client, database string) *MongoRepositoryManager {
	return &MongoRepositoryManager{client: client, db: client.Database(database)}
}

func (m *MongoRepositoryManager) Users() users.Repository {
	return users.NewMongoRepository(m.db)
}

func (m *MongoRepositoryManager) Keys() keys.Repository {
	return keys.NewMongoRepository(m.db)
}

func (m *MongoRepositoryManager) Transactions() transactions.Repository {
	return transactions.NewMongoRepository(m.db)
}

// runInSession is a seam for testing session transactions.
var runInSession = func(ctx context.Context, client *mongo.Client, fn func(sc mongo.SessionContext) error) error {
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("mongo session error: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (m *MongoRepositoryManager) WithTx(ctx context.Context, fn TxFunc) error {
	if m.inTx {
		return fn(ctx, m)
	}
	return runInSession(ctx, m.client, func(sc mongo.SessionContext) error {
		return fn(sc, &MongoRepositoryManager{client: m.client, db: m.db, inTx: true})
	})
}

// RunMigrations creates the unique indexes the repositories rely on.
func (m *MongoRepositoryManager) RunMigrations(ctx context.Context) error {
	if err := users.NewMongoRepository(m.db).EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := keys.NewMongoRepository(m.db).EnsureIndexes(ctx); err != nil {
		return err
	}
	return transactions.NewMongoRepository(m.db).EnsureIndexes(ctx)
}

func (m *MongoRepositoryManager) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
