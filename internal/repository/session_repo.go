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

var ErrSessionNotFound = errors.New("session not found")

// SessionUpdate is the set of mutations applied when a session advances a
// step. Token is always replaced; Status/Type only when non-nil.
type SessionUpdate struct {
	Token  string
	Status *string
	Type   *string
}

type SessionRepository interface {
	Create(ctx context.Context, s *models.Session) error
	FindBySID(ctx context.Context, sid string) (*models.Session, error)
	// Rotate atomically applies upd to the session matching both sid and
	// unique identifier, returning the post-update document. Concurrent
	// rotations on the same sid serialize inside Mongo; a caller holding a
	// stale token loses the race and fails on its next Find.
	Rotate(ctx context.Context, sid, uniqueIdentifier string, upd SessionUpdate) (*models.Session, error)
}

type mongoSessionRepo struct {
	col *mongo.Collection
}

func NewMongoSessionRepo(db *mongo.Database, collection string) SessionRepository {
	col := db.Collection(collection)
	// indexes
	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "sid", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "unique_identifier", Value: 1}}},
	})
	return &mongoSessionRepo{col: col}
}

func (r *mongoSessionRepo) Create(ctx context.Context, s *models.Session) error {
	s.CreatedAt = time.Now().UTC()
	s.UpdatedAt = s.CreatedAt
	_, err := r.col.InsertOne(ctx, s)
	return err
}

func (r *mongoSessionRepo) FindBySID(ctx context.Context, sid string) (*models.Session, error) {
	var s models.Session
	err := r.col.FindOne(ctx, bson.M{"sid": sid}).Decode(&s)
	if err == mongo.ErrNoDocuments {
		return nil, ErrSessionNotFound
	}
	return &s, err
}

func (r *mongoSessionRepo) Rotate(ctx context.Context, sid, uniqueIdentifier string, upd SessionUpdate) (*models.Session, error) {
	set := bson.M{
		"data.token": upd.Token,
		"updated_at": time.Now().UTC(),
	}
	if upd.Status != nil {
		set["status"] = *upd.Status
	}
	if upd.Type != nil {
		set["type"] = *upd.Type
	}

	var s models.Session
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"sid": sid, "unique_identifier": uniqueIdentifier},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&s)
	if err == mongo.ErrNoDocuments {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
