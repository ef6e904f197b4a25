package domain

import "time"

// RewardKind says what a bounty pays out.
type RewardKind string

const (
	RewardXP    RewardKind = "xp"
	RewardToken RewardKind = "token"
)

// BountyStatus as stored by the catalog. Expiry is derived on read, see
// EffectiveStatus.
type BountyStatus string

const (
	BountyActive    BountyStatus = "active"
	BountyCompleted BountyStatus = "completed"
	BountyExpired   BountyStatus = "expired"
)

// Visibility of a bounty to participants.
type Visibility string

const (
	VisibilityHidden  Visibility = "hidden"
	VisibilityVisible Visibility = "visible"
)

// AllowedMedia restricts which media kind a bounty accepts.
type AllowedMedia string

const (
	AllowImage  AllowedMedia = "image"
	AllowVideo  AllowedMedia = "video"
	AllowEither AllowedMedia = "either"
)

// Allows reports whether kind satisfies the restriction. An empty value is
// treated as "either".
func (a AllowedMedia) Allows(kind MediaKind) bool {
	switch a {
	case AllowImage:
		return kind == MediaImage
	case AllowVideo:
		return kind == MediaVideo
	case AllowEither, "":
		return kind == MediaImage || kind == MediaVideo
	}
	return false
}

// Bounty is a unit of rewardable work, owned by the external catalog.
type Bounty struct {
	ID               string       `bson:"_id" json:"id"`
	Title            string       `bson:"title" json:"title"`
	Description      string       `bson:"description,omitempty" json:"description,omitempty"`
	RewardAmount     int64        `bson:"rewardAmount" json:"rewardAmount"`
	RewardKind       RewardKind   `bson:"rewardKind" json:"rewardKind"`
	Status           BountyStatus `bson:"status" json:"status"`
	Visibility       Visibility   `bson:"visibility" json:"visibility"`
	Squad            string       `bson:"squad,omitempty" json:"squad,omitempty"`
	Deadline         *time.Time   `bson:"deadline,omitempty" json:"deadline,omitempty"`
	MediaRequired    bool         `bson:"mediaRequired" json:"mediaRequired"`
	AllowedMedia     AllowedMedia `bson:"allowedMedia" json:"allowedMedia"`
	SubmissionsCount int64        `bson:"submissionsCount" json:"submissionsCount"` // best-effort
}

// EffectiveStatus applies read-side expiry: an active bounty whose deadline
// has passed is reported as expired.
func (b *Bounty) EffectiveStatus(now time.Time) BountyStatus {
	if b.Status == BountyActive && b.Deadline != nil && !now.Before(*b.Deadline) {
		return BountyExpired
	}
	return b.Status
}

// AcceptsSubmissions reports whether participants may submit right now.
func (b *Bounty) AcceptsSubmissions(now time.Time) bool {
	return b.Visibility != VisibilityHidden && b.EffectiveStatus(now) == BountyActive
}
