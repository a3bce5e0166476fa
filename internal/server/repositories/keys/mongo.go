package keys

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/trainingpay/internal/common"
	"github.com/dmitrijs2005/trainingpay/internal/server/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "key_storage"

type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(CollectionName)}
}

// EnsureIndexes creates the unique email index that backs Save's
// insert-only guarantee.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo error: %w", err)
	}
	return nil
}

func (r *MongoRepository) Find(ctx context.Context, email string) (*models.KeyRecord, error) {
	var rec models.KeyRecord
	if err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("mongo error: %w", err)
	}
	return &rec, nil
}

func (r *MongoRepository) Save(ctx context.Context, rec *models.KeyRecord) error {
	if _, err := r.coll.InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("mongo error: %w", err)
	}
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, email string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"email": email}); err != nil {
		return fmt.Errorf("mongo error: %w", err)
	}
	return nil
}
