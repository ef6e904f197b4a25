package mongo

import (
	"context"
	"errors"

	"learnhub/bounty-pipeline/internal/domain"
	"learnhub/bounty-pipeline/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const bountyCollectionName = "bounties"

// mongoBountyCatalog reads bounties written by the admin catalog and keeps
// their best-effort submission counter.
type mongoBountyCatalog struct {
	collection *mongo.Collection
}

// MongoBountyCatalog is both the catalog lookup and the Mongo-side counter.
type MongoBountyCatalog interface {
	repository.BountyCatalog
	repository.SubmissionCounter
}

// NewMongoBountyCatalog creates a bounty catalog backed by MongoDB.
func NewMongoBountyCatalog(db *mongo.Database) MongoBountyCatalog {
	return &mongoBountyCatalog{
		collection: db.Collection(bountyCollectionName),
	}
}

// GetBounty retrieves a bounty by its catalog ID.
func (r *mongoBountyCatalog) GetBounty(ctx context.Context, id string) (*domain.Bounty, error) {
	var bounty domain.Bounty
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&bounty)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &bounty, nil
}

// IncrementSubmissionCount bumps the cosmetic counter on the bounty document.
func (r *mongoBountyCatalog) IncrementSubmissionCount(ctx context.Context, id string) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"submissionsCount": 1}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
