package repository

import (
	"context"
	"errors"
	"time"

	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	FindByUserID(ctx context.Context, userID string) (*models.User, error)
	FindByCompositeHash(ctx context.Context, compositeHash string) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
	UpdateFields(ctx context.Context, userID string, fields bson.M) error
	Delete(ctx context.Context, userID string) error
}

type mongoUserRepo struct {
	col *mongo.Collection
}

func NewMongoUserRepo(db *mongo.Database, collection string) UserRepository {
	col := db.Collection(collection)
	// indexes
	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "composite_hash", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
	})
	return &mongoUserRepo{col: col}
}

func (r *mongoUserRepo) Create(ctx context.Context, u *models.User) error {
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	_, err := r.col.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateKey
	}
	return err
}

func (r *mongoUserRepo) FindByUserID(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	err := r.col.FindOne(ctx, bson.M{"user_id": userID}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, ErrUserNotFound
	}
	return &u, err
}

func (r *mongoUserRepo) FindByCompositeHash(ctx context.Context, compositeHash string) (*models.User, error) {
	var u models.User
	err := r.col.FindOne(ctx, bson.M{"composite_hash": compositeHash}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, ErrUserNotFound
	}
	return &u, err
}

func (r *mongoUserRepo) Update(ctx context.Context, u *models.User) error {
	u.UpdatedAt = time.Now().UTC()
	res, err := r.col.UpdateOne(ctx, bson.M{"user_id": u.UserID}, bson.M{"$set": u})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *mongoUserRepo) UpdateFields(ctx context.Context, userID string, fields bson.M) error {
	fields["updated_at"] = time.Now().UTC()
	res, err := r.col.UpdateOne(ctx, bson.M{"user_id": userID}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *mongoUserRepo) Delete(ctx context.Context, userID string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}
