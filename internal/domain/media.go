package domain

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MediaKind is the coarse class of an uploaded asset.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// MediaKindFromContentType returns the kind for an image/* or video/* MIME
// type, or false for anything else.
func MediaKindFromContentType(contentType string) (MediaKind, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return MediaImage, true
	case strings.HasPrefix(ct, "video/"):
		return MediaVideo, true
	}
	return "", false
}

// MediaAsset stores metadata about a file uploaded as evidence for a bounty.
// The bytes live in object storage; this record binds them to the wallet and
// bounty they were uploaded for.
type MediaAsset struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	OwnerWallet  string              `bson:"ownerWallet" json:"ownerWallet"`
	BountyID     string              `bson:"bountyId" json:"bountyId"`
	ObjectKey    string              `bson:"objectKey" json:"-"` // internal use
	URL          string              `bson:"-" json:"url"`       // resolved on read, never stored
	Kind         MediaKind           `bson:"kind" json:"kind"`
	ContentType  string              `bson:"contentType" json:"contentType"`
	Size         int64               `bson:"size" json:"size"`
	FileName     string              `bson:"fileName" json:"fileName"`
	SubmissionID *primitive.ObjectID `bson:"submissionId,omitempty" json:"submissionId,omitempty"` // set once attached
	UploadedAt   time.Time           `bson:"uploadedAt" json:"uploadedAt"`
}

// Ref returns the reference that gets embedded in a Submission. Only the
// object key is persisted; the URL is resolved whenever the submission is read.
func (m *MediaAsset) Ref() *MediaRef {
	return &MediaRef{AssetID: m.ID, ObjectKey: m.ObjectKey, URL: m.URL, Kind: m.Kind}
}
