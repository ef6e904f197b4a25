package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"learnhub/bounty-pipeline/internal/domain"
	"learnhub/bounty-pipeline/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const submissionCollectionName = "submissions"

// mongoSubmissionRepository implements repository.SubmissionRepository
type mongoSubmissionRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewMongoSubmissionRepository creates a new Submission repository backed by MongoDB.
// EnsureSubmissionIndexes must have succeeded before the repository is used:
// the unique (bountyId, wallet) index is what makes InsertPending race-safe.
func NewMongoSubmissionRepository(db *mongo.Database) repository.SubmissionRepository {
	return &mongoSubmissionRepository{
		collection: db.Collection(submissionCollectionName),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Exists checks whether the wallet already has a submission for the bounty.
func (r *mongoSubmissionRepository) Exists(ctx context.Context, bountyID, wallet string) (bool, error) {
	filter := bson.M{"bountyId": bountyID, "wallet": wallet}
	n, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertPending inserts a new pending submission.
func (r *mongoSubmissionRepository) InsertPending(ctx context.Context, sub *domain.Submission) (*domain.Submission, error) {
	if sub.BountyID == "" || sub.Wallet == "" {
		return nil, errors.New("submission requires bountyId and wallet")
	}

	sub.ID = primitive.NewObjectID()
	sub.Status = domain.StatusPending
	sub.AwardedXP = 0
	sub.Upvotes = 0
	sub.DecidedAt = nil
	sub.CreatedAt = r.now()

	if _, err := r.collection.InsertOne(ctx, sub); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, repository.ErrDuplicateKey
		}
		return nil, err
	}
	return sub, nil
}

// GetByID retrieves a submission by its ID.
func (r *mongoSubmissionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Submission, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByBountyAndWallet retrieves the wallet's submission for a bounty.
func (r *mongoSubmissionRepository) GetByBountyAndWallet(ctx context.Context, bountyID, wallet string) (*domain.Submission, error) {
	return r.findOne(ctx, bson.M{"bountyId": bountyID, "wallet": wallet})
}

func (r *mongoSubmissionRepository) findOne(ctx context.Context, filter bson.M) (*domain.Submission, error) {
	var sub domain.Submission
	err := r.collection.FindOne(ctx, filter).Decode(&sub)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// ListForWallet returns the wallet's submissions keyed by bounty ID.
// Bounties without a submission are simply absent from the map.
func (r *mongoSubmissionRepository) ListForWallet(ctx context.Context, wallet string, bountyIDs []string) (map[string]domain.Submission, error) {
	out := make(map[string]domain.Submission, len(bountyIDs))
	if len(bountyIDs) == 0 {
		return out, nil
	}

	filter := bson.M{"wallet": wallet, "bountyId": bson.M{"$in": bountyIDs}}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var subs []domain.Submission
	if err = cursor.All(ctx, &subs); err != nil {
		return nil, err
	}
	for _, s := range subs {
		out[s.BountyID] = s
	}
	return out, nil
}

// ListForReview returns one page of submissions plus the total match count.
func (r *mongoSubmissionRepository) ListForReview(ctx context.Context, f repository.SubmissionFilter, sort repository.SortOrder, page repository.Page) ([]domain.Submission, int64, error) {
	filter := buildReviewFilter(f)

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	findOptions := options.Find().
		SetSort(sortDocument(sort)).
		SetSkip(page.Skip()).
		SetLimit(int64(page.Size))

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	subs := []domain.Submission{}
	if err = cursor.All(ctx, &subs); err != nil {
		return nil, 0, err
	}
	return subs, total, nil
}

// ListAfter returns the next keyset batch ordered by _id.
func (r *mongoSubmissionRepository) ListAfter(ctx context.Context, f repository.SubmissionFilter, after *primitive.ObjectID, descending bool, limit int) ([]domain.Submission, error) {
	filter := buildReviewFilter(f)
	dir := 1
	if descending {
		dir = -1
	}
	if after != nil {
		op := "$gt"
		if descending {
			op = "$lt"
		}
		filter["_id"] = bson.M{op: *after}
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "_id", Value: dir}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	subs := []domain.Submission{}
	if err = cursor.All(ctx, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func buildReviewFilter(f repository.SubmissionFilter) bson.M {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Squad != "" {
		filter["squad"] = f.Squad
	}
	if f.BountyID != "" {
		filter["bountyId"] = f.BountyID
	}
	if f.Text != "" {
		// QuoteMeta so reviewer input is matched literally
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(f.Text), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"text": pattern},
			bson.M{"wallet": pattern},
		}
	}
	if f.CreatedFrom != nil || f.CreatedTo != nil {
		created := bson.M{}
		if f.CreatedFrom != nil {
			created["$gte"] = f.CreatedFrom.UTC()
		}
		if f.CreatedTo != nil {
			created["$lte"] = f.CreatedTo.UTC()
		}
		filter["createdAt"] = created
	}
	return filter
}

func sortDocument(sort repository.SortOrder) bson.D {
	switch sort {
	case repository.SortOldest:
		return bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}
	case repository.SortMostUpvoted:
		return bson.D{{Key: "upvotes", Value: -1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	case repository.SortLeastUpvoted:
		return bson.D{{Key: "upvotes", Value: 1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	default:
		return bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	}
}

// Transition moves a pending submission to a terminal status in a single
// conditional update, so two reviewers racing on the same row cannot both win.
func (r *mongoSubmissionRepository) Transition(ctx context.Context, id primitive.ObjectID, t domain.Transition) (*domain.Submission, error) {
	if !domain.CanTransition(domain.StatusPending, t.To) {
		return nil, fmt.Errorf("transition to %q: %w", t.To, repository.ErrUpdateFailed)
	}

	set := bson.M{
		"status":    t.To,
		"decidedAt": t.DecidedAt.UTC(),
	}
	if t.To == domain.StatusApproved {
		set["awardedXp"] = t.AwardedXP
	}
	if t.ReviewedBy != "" {
		set["reviewedBy"] = t.ReviewedBy
	}
	if t.Note != "" {
		set["reviewNote"] = t.Note
	}

	filter := bson.M{"_id": id, "status": domain.StatusPending}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated domain.Submission
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	// Nothing pending matched: tell "already decided" apart from "absent".
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, repository.ErrNotFound
	}
	return nil, repository.ErrNotPending
}

// IncrementUpvotes bumps the denormalised upvote count.
func (r *mongoSubmissionRepository) IncrementUpvotes(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"upvotes": 1}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureSubmissionIndexes creates necessary indexes for the submissions collection.
// Unlike the secondary indexes, a failure on the unique pair is fatal.
func EnsureSubmissionIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// One submission per participant per bounty
			Keys:    bson.D{{Key: "bountyId", Value: 1}, {Key: "wallet", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_bounty_wallet"),
		},
		{
			// Reviewer queue
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "squad", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "upvotes", Value: -1}, {Key: "createdAt", Value: -1}},
		},
		{
			// Participant batch lookup
			Keys: bson.D{{Key: "wallet", Value: 1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
