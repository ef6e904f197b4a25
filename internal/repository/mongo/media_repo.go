package mongo

import (
	"context"
	"errors"
	"time"

	"learnhub/bounty-pipeline/internal/domain"
	"learnhub/bounty-pipeline/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mediaCollectionName = "media_assets"

// mongoMediaAssetRepository implements repository.MediaAssetRepository
type mongoMediaAssetRepository struct {
	collection *mongo.Collection
}

// NewMongoMediaAssetRepository creates a new media asset repository backed by MongoDB.
func NewMongoMediaAssetRepository(db *mongo.Database) repository.MediaAssetRepository {
	return &mongoMediaAssetRepository{
		collection: db.Collection(mediaCollectionName),
	}
}

// Create inserts new media metadata into the database.
func (r *mongoMediaAssetRepository) Create(ctx context.Context, asset *domain.MediaAsset) (primitive.ObjectID, error) {
	if asset.OwnerWallet == "" || asset.BountyID == "" || asset.ObjectKey == "" {
		return primitive.NilObjectID, errors.New("media asset requires ownerWallet, bountyId and objectKey")
	}

	asset.ID = primitive.NewObjectID()
	asset.UploadedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, asset)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByID retrieves media metadata by its ID.
func (r *mongoMediaAssetRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.MediaAsset, error) {
	var asset domain.MediaAsset
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&asset)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &asset, nil
}

// MarkAttached records which submission the asset belongs to. Re-attaching to
// the same submission is a no-op.
func (r *mongoMediaAssetRepository) MarkAttached(ctx context.Context, assetID, submissionID primitive.ObjectID) error {
	filter := bson.M{
		"_id": assetID,
		"$or": bson.A{
			bson.M{"submissionId": bson.M{"$exists": false}},
			bson.M{"submissionId": submissionID},
		},
	}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"submissionId": submissionID}})
	if err != nil {
		return err
	}
	if result.MatchedCount > 0 {
		return nil
	}

	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": assetID}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrDuplicateKey
}

// EnsureMediaIndexes creates necessary indexes for the media collection.
func EnsureMediaIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "ownerWallet", Value: 1}, {Key: "bountyId", Value: 1}},
		},
		{
			// Object keys are random, but two records must never share one
			Keys:    bson.D{{Key: "objectKey", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
