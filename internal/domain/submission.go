package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SubmissionStatus type for the submission lifecycle
type SubmissionStatus string

const (
	StatusPending  SubmissionStatus = "pending"
	StatusApproved SubmissionStatus = "approved" // terminal
	StatusRejected SubmissionStatus = "rejected" // terminal
)

// Valid reports whether s is one of the known statuses.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s SubmissionStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransition is the whole state machine: pending -> approved | rejected.
// Nothing leaves a terminal state and there is no pending -> pending edge.
func CanTransition(from, to SubmissionStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusApproved || to == StatusRejected
	case StatusApproved, StatusRejected:
		return false
	default:
		return false
	}
}

// ParseSubmissionStatus converts a query/form value into a status.
func ParseSubmissionStatus(raw string) (SubmissionStatus, error) {
	s := SubmissionStatus(raw)
	if !s.Valid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

// ReviewAction is what a reviewer does to a pending submission.
type ReviewAction string

const (
	ActionApprove ReviewAction = "approve"
	ActionReject  ReviewAction = "reject"
)

// ParseReviewAction converts a request value into a ReviewAction.
func ParseReviewAction(raw string) (ReviewAction, error) {
	switch ReviewAction(raw) {
	case ActionApprove, ActionReject:
		return ReviewAction(raw), nil
	}
	return "", ErrInvalidAction
}

// TargetStatus maps an action onto the status it transitions to.
func (a ReviewAction) TargetStatus() SubmissionStatus {
	switch a {
	case ActionApprove:
		return StatusApproved
	case ActionReject:
		return StatusRejected
	}
	return ""
}

// MediaRef is the media attached to a submission, copied from the MediaAsset
// that was ingested for it. URL is filled from ObjectKey each time the
// submission is read.
type MediaRef struct {
	AssetID   primitive.ObjectID `bson:"assetId" json:"assetId"`
	ObjectKey string             `bson:"objectKey" json:"-"`
	URL       string             `bson:"-" json:"url"`
	Kind      MediaKind          `bson:"kind" json:"kind"`
}

// Submission is one participant's single attempt at a bounty.
// At most one exists per (BountyID, Wallet); the unique index on that pair is
// the source of truth.
type Submission struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	BountyID   string             `bson:"bountyId" json:"bountyId"`
	Wallet     string             `bson:"wallet" json:"wallet"` // lower-case 0x address
	Squad      string             `bson:"squad,omitempty" json:"squad,omitempty"`
	Text       string             `bson:"text" json:"text"`
	Media      *MediaRef          `bson:"media,omitempty" json:"media,omitempty"`
	Status     SubmissionStatus   `bson:"status" json:"status"`
	AwardedXP  int64              `bson:"awardedXp" json:"awardedXp"` // 0 until approved, then immutable
	Upvotes    int64              `bson:"upvotes" json:"upvotes"`
	ReviewedBy string             `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	ReviewNote string             `bson:"reviewNote,omitempty" json:"reviewNote,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	DecidedAt  *time.Time         `bson:"decidedAt,omitempty" json:"decidedAt,omitempty"`
}

// Transition describes a status change applied by the store in one atomic
// update. AwardedXP is only meaningful for approvals.
type Transition struct {
	To         SubmissionStatus
	AwardedXP  int64
	ReviewedBy string
	Note       string
	DecidedAt  time.Time
}
