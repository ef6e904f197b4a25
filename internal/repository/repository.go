package repository

import (
	"context"
	"time"

	"learnhub/bounty-pipeline/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicateKey = RepositoryError("duplicate key")
	ErrNotPending   = RepositoryError("submission is not pending")
	ErrUpdateFailed = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// SortOrder for reviewer listings.
type SortOrder string

const (
	SortNewest       SortOrder = "newest"
	SortOldest       SortOrder = "oldest"
	SortMostUpvoted  SortOrder = "mostUpvoted"
	SortLeastUpvoted SortOrder = "leastUpvoted"
)

// Valid reports whether s is a known sort order.
func (s SortOrder) Valid() bool {
	switch s {
	case SortNewest, SortOldest, SortMostUpvoted, SortLeastUpvoted:
		return true
	}
	return false
}

// SubmissionFilter narrows a reviewer listing. Zero values mean "any".
type SubmissionFilter struct {
	Status      domain.SubmissionStatus
	Squad       string
	BountyID    string
	Text        string // case-insensitive substring of body or wallet
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// Page is 1-based.
type Page struct {
	Number int
	Size   int
}

// Skip returns how many rows precede this page.
func (p Page) Skip() int64 {
	if p.Number < 1 {
		return 0
	}
	return int64(p.Number-1) * int64(p.Size)
}

// SubmissionRepository is the authoritative record of submissions.
type SubmissionRepository interface {
	// Exists is an optimisation only; InsertPending is the guarantee.
	Exists(ctx context.Context, bountyID, wallet string) (bool, error)
	// InsertPending stores a new pending submission. Returns ErrDuplicateKey
	// when one already exists for (bountyID, wallet).
	InsertPending(ctx context.Context, sub *domain.Submission) (*domain.Submission, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Submission, error)
	GetByBountyAndWallet(ctx context.Context, bountyID, wallet string) (*domain.Submission, error)
	ListForWallet(ctx context.Context, wallet string, bountyIDs []string) (map[string]domain.Submission, error)
	ListForReview(ctx context.Context, filter SubmissionFilter, sort SortOrder, page Page) ([]domain.Submission, int64, error)
	// ListAfter walks matches by id, starting strictly after `after` (nil for
	// the first batch). Rows that change or leave the filter between calls do
	// not shift later batches.
	ListAfter(ctx context.Context, filter SubmissionFilter, after *primitive.ObjectID, descending bool, limit int) ([]domain.Submission, error)
	// Transition applies t only if the submission is still pending. Returns
	// ErrNotPending when it was already decided and ErrNotFound when absent.
	Transition(ctx context.Context, id primitive.ObjectID, t domain.Transition) (*domain.Submission, error)
	IncrementUpvotes(ctx context.Context, id primitive.ObjectID) error
}

// MediaAssetRepository stores metadata for ingested media.
type MediaAssetRepository interface {
	Create(ctx context.Context, asset *domain.MediaAsset) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.MediaAsset, error)
	// MarkAttached binds the asset to a submission; ErrDuplicateKey if it is
	// already bound to a different one.
	MarkAttached(ctx context.Context, assetID, submissionID primitive.ObjectID) error
}

// BountyCatalog is the read side of the external bounty catalog.
type BountyCatalog interface {
	GetBounty(ctx context.Context, id string) (*domain.Bounty, error)
}

// SubmissionCounter is the best-effort per-bounty submission counter.
type SubmissionCounter interface {
	IncrementSubmissionCount(ctx context.Context, bountyID string) error
}

// UpvoteRepository records one upvote per (submission, wallet).
type UpvoteRepository interface {
	// Add returns ErrDuplicateKey when the wallet already upvoted.
	Add(ctx context.Context, submissionID primitive.ObjectID, wallet string) error
}
