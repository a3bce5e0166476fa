package transactions

import (
	"context"
	"fmt"
	"regexp"

	"github.com/dmitrijs2005/trainingpay/internal/common"
	"github.com/dmitrijs2005/trainingpay/internal/server/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "payment_transactions"

type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(CollectionName)}
}

// EnsureIndexes creates the unique transaction id index and the per-identity
// listing index.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "transactionId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "email", Value: 1}, {Key: "transactionDate", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("mongo error: %w", err)
	}
	return nil
}

func (r *MongoRepository) Create(ctx context.Context, tx *models.PaymentTransaction) error {
	if _, err := r.coll.InsertOne(ctx, tx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("mongo error: %w", err)
	}
	return nil
}

func (r *MongoRepository) List(ctx context.Context, email, search string) ([]models.PaymentTransaction, error) {
	filter := bson.M{"email": email}
	if search != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"courseId": re},
			bson.M{"paymentMode": re},
			bson.M{"transactionId": re},
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "transactionDate", Value: -1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo error: %w", err)
	}

	out := []models.PaymentTransaction{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongo error: %w", err)
	}
	return out, nil
}
