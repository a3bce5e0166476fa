package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/trainingpay/internal/common"
	"github.com/dmitrijs2005/trainingpay/internal/server/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the Mongo collection holding identities.
const CollectionName = "users"

type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(CollectionName)}
}

// EnsureIndexes creates the unique email index. Safe to call repeatedly.
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

func (r *MongoRepository) Create(ctx context.Context, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("mongo error: %w", err)
	}
	return nil
}

func (r *MongoRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("mongo error: %w", err)
	}
	return &user, nil
}

func (r *MongoRepository) UpdatePassword(ctx context.Context, email string, encryptedPassword string) error {
	return r.set(ctx, email, bson.M{"password": encryptedPassword})
}

func (r *MongoRepository) UpdateToken(ctx context.Context, email string, token string, expiresAt time.Time) error {
	return r.set(ctx, email, bson.M{"token": token, "tokenExpiry": expiresAt})
}

func (r *MongoRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	return r.set(ctx, user.Email, bson.M{
		"firstName": user.FirstName,
		"lastName":  user.LastName,
		"phone":     user.Phone,
		"address":   user.Address,
	})
}

func (r *MongoRepository) SetStatus(ctx context.Context, email string, status string) error {
	return r.set(ctx, email, bson.M{"status": status})
}

func (r *MongoRepository) set(ctx context.Context, email string, fields bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"email": email}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("mongo error: %w", err)
	}
	if res.MatchedCount == 0 {
		return common.ErrorNotFound
	}
	return nil
}
