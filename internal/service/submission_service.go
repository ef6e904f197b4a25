package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"learnhub/bounty-pipeline/internal/auth"
	"learnhub/bounty-pipeline/internal/domain"
	"learnhub/bounty-pipeline/internal/metrics"
	"learnhub/bounty-pipeline/internal/repository"
	"learnhub/bounty-pipeline/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxBulkReview caps the number of ids accepted by one BulkReview call.
const MaxBulkReview = 100

// XPAwarder is the external reward ledger.
type XPAwarder interface {
	AwardXP(ctx context.Context, wallet string, amount int64, reason string) error
}

// CreateSubmissionInput is what a participant sends to create a submission.
type CreateSubmissionInput struct {
	BountyID     string
	Text         string
	MediaAssetID *primitive.ObjectID
}

// ReviewInput is the reviewer's decision. XPOverride only applies to approvals.
type ReviewInput struct {
	Action     domain.ReviewAction
	XPOverride *int64
	Note       string
}

// BulkFailure is one id a bulk review could not apply.
type BulkFailure struct {
	ID     primitive.ObjectID `json:"id"`
	Reason string             `json:"reason"`
	Err    error              `json:"-"`
}

// BulkResult reports partial success of a bulk review.
type BulkResult struct {
	Succeeded []primitive.ObjectID `json:"succeeded"`
	Failed    []BulkFailure        `json:"failed"`
}

// SubmissionWorkflow creates submissions and applies review decisions.
type SubmissionWorkflow interface {
	Create(ctx context.Context, participant domain.Identity, in CreateSubmissionInput) (*domain.Submission, error)
	Review(ctx context.Context, reviewer domain.Identity, id primitive.ObjectID, in ReviewInput) (*domain.Submission, error)
	BulkReview(ctx context.Context, reviewer domain.Identity, ids []primitive.ObjectID, in ReviewInput) (*BulkResult, error)
	Upvote(ctx context.Context, voter domain.Identity, id primitive.ObjectID) (*domain.Submission, error)
}

// WorkflowDeps groups the collaborators of the submission workflow.
type WorkflowDeps struct {
	Submissions   repository.SubmissionRepository
	Assets        repository.MediaAssetRepository
	Bounties      repository.BountyCatalog
	Counter       repository.SubmissionCounter // optional
	Upvotes       repository.UpvoteRepository
	Storage       storage.FileStorage // resolves media links on returned submissions
	Authorizer    auth.Authorizer
	Ledger        XPAwarder
	LedgerTimeout time.Duration
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
}

type submissionWorkflow struct {
	subs          repository.SubmissionRepository
	assets        repository.MediaAssetRepository
	bounties      repository.BountyCatalog
	counter       repository.SubmissionCounter
	upvotes       repository.UpvoteRepository
	links         mediaLinks
	authz         auth.Authorizer
	ledger        XPAwarder
	ledgerTimeout time.Duration
	logger        *slog.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

// NewSubmissionWorkflow creates a new SubmissionWorkflow.
func NewSubmissionWorkflow(d WorkflowDeps) SubmissionWorkflow {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.LedgerTimeout <= 0 {
		d.LedgerTimeout = 5 * time.Second
	}
	return &submissionWorkflow{
		subs:          d.Submissions,
		assets:        d.Assets,
		bounties:      d.Bounties,
		counter:       d.Counter,
		upvotes:       d.Upvotes,
		links:         mediaLinks{store: d.Storage, logger: d.Logger},
		authz:         d.Authorizer,
		ledger:        d.Ledger,
		ledgerTimeout: d.LedgerTimeout,
		logger:        d.Logger,
		metrics:       d.Metrics,
		now:           time.Now,
	}
}

// Create validates the bounty and media, then inserts a pending submission.
// The store's unique (bounty, wallet) constraint decides concurrent races.
func (s *submissionWorkflow) Create(ctx context.Context, participant domain.Identity, in CreateSubmissionInput) (*domain.Submission, error) {
	if participant.Wallet == "" {
		return nil, domain.ErrInvalidWallet
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, domain.ErrEmptySubmission
	}

	bounty, err := s.bounties.GetBounty(ctx, in.BountyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrBountyNotFound
		}
		return nil, err
	}
	if !bounty.AcceptsSubmissions(s.now()) {
		return nil, domain.ErrBountyNotActive
	}

	var asset *domain.MediaAsset
	if in.MediaAssetID != nil {
		asset, err = s.resolveAsset(ctx, participant.Wallet, bounty, *in.MediaAssetID)
		if err != nil {
			return nil, err
		}
	} else if bounty.MediaRequired {
		return nil, domain.ErrMediaRequired
	}

	exists, err := s.subs.Exists(ctx, bounty.ID, participant.Wallet)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, s.duplicate(ctx, bounty.ID, participant.Wallet)
	}

	sub := &domain.Submission{
		BountyID: bounty.ID,
		Wallet:   participant.Wallet,
		Squad:    bounty.Squad,
		Text:     text,
	}
	if asset != nil {
		sub.Media = asset.Ref()
	}

	created, err := s.subs.InsertPending(ctx, sub)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, s.duplicate(ctx, bounty.ID, participant.Wallet)
		}
		return nil, err
	}

	if asset != nil {
		if err := s.assets.MarkAttached(ctx, asset.ID, created.ID); err != nil {
			s.logger.Error("failed to mark media attached", "asset_id", asset.ID.Hex(), "submission_id", created.ID.Hex(), "error", err)
		}
	}
	s.bumpCounter(ctx, bounty.ID)

	s.metrics.SubmissionCreated()
	s.logger.Info("submission created", "submission_id", created.ID.Hex(), "bounty_id", bounty.ID, "wallet", participant.Wallet)
	s.links.submission(ctx, created)
	return created, nil
}

func (s *submissionWorkflow) resolveAsset(ctx context.Context, wallet string, bounty *domain.Bounty, id primitive.ObjectID) (*domain.MediaAsset, error) {
	asset, err := s.assets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrMediaNotFound
		}
		return nil, err
	}
	if asset.OwnerWallet != wallet || asset.BountyID != bounty.ID {
		return nil, domain.ErrMediaOwnership
	}
	if asset.SubmissionID != nil {
		return nil, domain.ErrMediaAttached
	}
	if !bounty.AllowedMedia.Allows(asset.Kind) {
		return nil, domain.ErrMediaKindNotAllowed
	}
	return asset, nil
}

func (s *submissionWorkflow) duplicate(ctx context.Context, bountyID, wallet string) error {
	s.metrics.DuplicateSubmission()
	dup := &domain.DuplicateSubmissionError{BountyID: bountyID}
	if existing, err := s.subs.GetByBountyAndWallet(ctx, bountyID, wallet); err == nil {
		dup.Existing = existing
	}
	return dup
}

// bumpCounter never fails the submission path.
func (s *submissionWorkflow) bumpCounter(ctx context.Context, bountyID string) {
	if s.counter == nil {
		return
	}
	if err := s.counter.IncrementSubmissionCount(ctx, bountyID); err != nil {
		s.metrics.CounterFailed()
		s.logger.Warn("submission counter increment failed", "bounty_id", bountyID, "error", err)
	}
}

// Review applies one decision. Approvals issue an XP award whose failure is
// logged for reconciliation and never undoes the approval.
func (s *submissionWorkflow) Review(ctx context.Context, reviewer domain.Identity, id primitive.ObjectID, in ReviewInput) (*domain.Submission, error) {
	if !s.authz.IsReviewer(ctx, reviewer) {
		return nil, domain.ErrUnauthorized
	}
	if err := validateReviewInput(in); err != nil {
		return nil, err
	}
	sub, err := s.review(ctx, reviewer, id, in)
	s.metrics.Review(string(in.Action), outcome(err))
	if err != nil {
		return nil, err
	}
	s.links.submission(ctx, sub)
	return sub, nil
}

func (s *submissionWorkflow) review(ctx context.Context, reviewer domain.Identity, id primitive.ObjectID, in ReviewInput) (*domain.Submission, error) {
	current, err := s.subs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrSubmissionNotFound
		}
		return nil, err
	}
	if !domain.CanTransition(current.Status, in.Action.TargetStatus()) {
		return nil, domain.ErrAlreadyDecided
	}

	t := domain.Transition{
		To:         in.Action.TargetStatus(),
		ReviewedBy: reviewer.Actor(),
		Note:       strings.TrimSpace(in.Note),
		DecidedAt:  s.now().UTC(),
	}

	var bounty *domain.Bounty
	if in.Action == domain.ActionApprove {
		if in.XPOverride != nil {
			t.AwardedXP = *in.XPOverride
		} else {
			bounty, err = s.bounties.GetBounty(ctx, current.BountyID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return nil, domain.ErrBountyNotFound
				}
				return nil, err
			}
			t.AwardedXP = bounty.RewardAmount
		}
		if t.AwardedXP <= 0 {
			return nil, domain.ErrInvalidXPOverride
		}
	}

	decided, err := s.subs.Transition(ctx, id, t)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotPending):
			return nil, domain.ErrAlreadyDecided
		case errors.Is(err, repository.ErrNotFound):
			return nil, domain.ErrSubmissionNotFound
		}
		return nil, err
	}

	s.logger.Info("submission reviewed", "submission_id", id.Hex(), "status", decided.Status, "reviewed_by", t.ReviewedBy, "awarded_xp", decided.AwardedXP)

	if decided.Status == domain.StatusApproved {
		s.award(ctx, decided, bounty)
	}
	return decided, nil
}

// award runs detached from the request so a client hang-up cannot cancel it.
func (s *submissionWorkflow) award(ctx context.Context, sub *domain.Submission, bounty *domain.Bounty) {
	if s.ledger == nil {
		return
	}
	reason := fmt.Sprintf("bounty %s approved (submission %s)", sub.BountyID, sub.ID.Hex())
	if bounty != nil && bounty.Title != "" {
		reason = fmt.Sprintf("bounty %q approved (submission %s)", bounty.Title, sub.ID.Hex())
	}

	awardCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.ledgerTimeout)
	defer cancel()
	if err := s.ledger.AwardXP(awardCtx, sub.Wallet, sub.AwardedXP, reason); err != nil {
		s.metrics.XPAwardFailed()
		s.logger.Error("xp award failed; needs reconciliation",
			"submission_id", sub.ID.Hex(), "wallet", sub.Wallet, "amount", sub.AwardedXP, "error", err)
	}
}

// BulkReview applies Review to each id independently. Only authorization,
// input and batch-size problems fail the whole call.
func (s *submissionWorkflow) BulkReview(ctx context.Context, reviewer domain.Identity, ids []primitive.ObjectID, in ReviewInput) (*BulkResult, error) {
	if !s.authz.IsReviewer(ctx, reviewer) {
		return nil, domain.ErrUnauthorized
	}
	if len(ids) > MaxBulkReview {
		return nil, domain.ErrBatchTooLarge
	}
	if err := validateReviewInput(in); err != nil {
		return nil, err
	}

	res := &BulkResult{
		Succeeded: make([]primitive.ObjectID, 0, len(ids)),
		Failed:    []BulkFailure{},
	}
	for _, id := range ids {
		_, err := s.review(ctx, reviewer, id, in)
		s.metrics.Review(string(in.Action), outcome(err))
		if err != nil {
			res.Failed = append(res.Failed, BulkFailure{ID: id, Reason: err.Error(), Err: err})
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
	}

	s.logger.Info("bulk review finished", "action", in.Action, "reviewed_by", reviewer.Actor(),
		"succeeded", len(res.Succeeded), "failed", len(res.Failed))
	return res, nil
}

// Upvote records one community upvote per wallet.
func (s *submissionWorkflow) Upvote(ctx context.Context, voter domain.Identity, id primitive.ObjectID) (*domain.Submission, error) {
	if voter.Wallet == "" {
		return nil, domain.ErrInvalidWallet
	}
	sub, err := s.subs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrSubmissionNotFound
		}
		return nil, err
	}
	if sub.Wallet == voter.Wallet {
		return nil, domain.ErrSelfUpvote
	}

	if err := s.upvotes.Add(ctx, id, voter.Wallet); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, domain.ErrAlreadyUpvoted
		}
		return nil, err
	}
	// The upvote row is the record; the count is denormalised and a retry
	// would only hit AlreadyUpvoted, so a failed bump is not the caller's error.
	if err := s.subs.IncrementUpvotes(ctx, id); err != nil {
		s.metrics.CounterFailed()
		s.logger.Error("upvote count increment failed", "submission_id", id.Hex(), "wallet", voter.Wallet, "error", err)
	} else {
		sub.Upvotes++
	}
	s.links.submission(ctx, sub)
	return sub, nil
}

func validateReviewInput(in ReviewInput) error {
	if _, err := domain.ParseReviewAction(string(in.Action)); err != nil {
		return err
	}
	if in.Action == domain.ActionApprove && in.XPOverride != nil && *in.XPOverride <= 0 {
		return domain.ErrInvalidXPOverride
	}
	return nil
}

// outcome is the metrics label for a review result.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrAlreadyDecided):
		return "already_decided"
	case errors.Is(err, domain.ErrSubmissionNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidXPOverride):
		return "invalid_xp"
	}
	return "error"
}
