package mongo

import (
	"context"
	"time"

	"learnhub/bounty-pipeline/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const upvoteCollectionName = "submission_upvotes"

type upvoteDoc struct {
	ID           primitive.ObjectID `bson:"_id"`
	SubmissionID primitive.ObjectID `bson:"submissionId"`
	Wallet       string             `bson:"wallet"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

// mongoUpvoteRepository implements repository.UpvoteRepository
type mongoUpvoteRepository struct {
	collection *mongo.Collection
}

// NewMongoUpvoteRepository creates a new upvote repository backed by MongoDB.
func NewMongoUpvoteRepository(db *mongo.Database) repository.UpvoteRepository {
	return &mongoUpvoteRepository{collection: db.Collection(upvoteCollectionName)}
}

// Add records an upvote; the unique index rejects a second one from the same wallet.
func (r *mongoUpvoteRepository) Add(ctx context.Context, submissionID primitive.ObjectID, wallet string) error {
	doc := upvoteDoc{
		ID:           primitive.NewObjectID(),
		SubmissionID: submissionID,
		Wallet:       wallet,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicateKey
		}
		return err
	}
	return nil
}

// EnsureUpvoteIndexes creates necessary indexes for the upvotes collection.
func EnsureUpvoteIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "submissionId", Value: 1}, {Key: "wallet", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
