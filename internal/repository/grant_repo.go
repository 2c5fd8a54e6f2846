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

var ErrGrantNotFound = errors.New("grant not found")

type GrantRepository interface {
	// Upsert stores the grant for its (user_id, platform_id) pair,
	// replacing any existing one. Last writer wins; the unique compound
	// index keeps the pair to a single document under concurrency.
	Upsert(ctx context.Context, g *models.Grant) error
	Find(ctx context.Context, userID, platformID string) (*models.Grant, error)
	FindAll(ctx context.Context, userID string) ([]models.Grant, error)
	Delete(ctx context.Context, userID, platformID string) error
}

type mongoGrantRepo struct {
	col *mongo.Collection
}

func NewMongoGrantRepo(db *mongo.Database, collection string) GrantRepository {
	col := db.Collection(collection)
	// one live grant per (user, platform)
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "platform_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return &mongoGrantRepo{col: col}
}

func (r *mongoGrantRepo) Upsert(ctx context.Context, g *models.Grant) error {
	now := time.Now().UTC()
	g.UpdatedAt = now
	_, err := r.col.UpdateOne(ctx,
		bson.M{"user_id": g.UserID, "platform_id": g.PlatformID},
		bson.M{
			"$set": bson.M{
				"token":      g.Token,
				"protocol":   g.Protocol,
				"identifier": g.Identifier,
				"updated_at": now,
			},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *mongoGrantRepo) Find(ctx context.Context, userID, platformID string) (*models.Grant, error) {
	var g models.Grant
	err := r.col.FindOne(ctx, bson.M{"user_id": userID, "platform_id": platformID}).Decode(&g)
	if err == mongo.ErrNoDocuments {
		return nil, ErrGrantNotFound
	}
	return &g, err
}

func (r *mongoGrantRepo) FindAll(ctx context.Context, userID string) ([]models.Grant, error) {
	cur, err := r.col.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var grants []models.Grant
	if err := cur.All(ctx, &grants); err != nil {
		return nil, err
	}
	return grants, nil
}

func (r *mongoGrantRepo) Delete(ctx context.Context, userID, platformID string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"user_id": userID, "platform_id": platformID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrGrantNotFound
	}
	return nil
}
