package domain

import (
	"errors"
	"fmt"
)

// ErrorClass groups sentinels by how a caller should react to them.
type ErrorClass int

const (
	ClassInternal      ErrorClass = iota
	ClassValidation               // caller-correctable input
	ClassConflict                 // state race or stale client view
	ClassAuthorization            // caller lacks the capability
	ClassNotFound
	ClassUnavailable // retryable by the caller
)

var (
	// Media ingestion
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrMediaTooLarge        = errors.New("media exceeds size limit")
	ErrMissingOwner         = errors.New("media owner is required")
	ErrStorageWriteFailed   = errors.New("storing media failed")
	ErrMissingBounty        = errors.New("bounty id is required")

	// Submission creation
	ErrBountyNotFound      = errors.New("bounty not found")
	ErrBountyNotActive     = errors.New("bounty is not accepting submissions")
	ErrMediaRequired       = errors.New("this bounty requires media")
	ErrMediaKindNotAllowed = errors.New("media kind not allowed for this bounty")
	ErrMediaOwnership      = errors.New("media asset was not uploaded for this wallet and bounty")
	ErrMediaNotFound       = errors.New("media asset not found")
	ErrMediaAttached       = errors.New("media asset is already attached to a submission")
	ErrEmptySubmission     = errors.New("submission text is empty")
	ErrDuplicateSubmission = errors.New("a submission already exists for this bounty")

	// Review
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrAlreadyDecided     = fmt.Errorf("submission already decided: %w", ErrInvalidTransition)
	ErrUnauthorized       = errors.New("not authorized to review submissions")
	ErrInvalidAction      = errors.New("invalid review action")
	ErrInvalidStatus      = errors.New("invalid submission status")
	ErrInvalidSort        = errors.New("invalid sort order")
	ErrInvalidXPOverride  = errors.New("xp override must be positive")
	ErrBatchTooLarge      = errors.New("too many submissions in one batch")

	// Upvotes
	ErrAlreadyUpvoted = errors.New("already upvoted this submission")
	ErrSelfUpvote     = errors.New("cannot upvote your own submission")

	ErrInvalidWallet = errors.New("invalid wallet address")
)

var errorClasses = []struct {
	err   error
	class ErrorClass
}{
	{ErrUnsupportedMediaType, ClassValidation},
	{ErrMediaTooLarge, ClassValidation},
	{ErrMissingOwner, ClassValidation},
	{ErrMissingBounty, ClassValidation},
	{ErrBountyNotActive, ClassValidation},
	{ErrMediaRequired, ClassValidation},
	{ErrMediaKindNotAllowed, ClassValidation},
	{ErrMediaOwnership, ClassValidation},
	{ErrEmptySubmission, ClassValidation},
	{ErrInvalidAction, ClassValidation},
	{ErrInvalidStatus, ClassValidation},
	{ErrInvalidSort, ClassValidation},
	{ErrInvalidXPOverride, ClassValidation},
	{ErrBatchTooLarge, ClassValidation},
	{ErrSelfUpvote, ClassValidation},
	{ErrInvalidWallet, ClassValidation},
	{ErrDuplicateSubmission, ClassConflict},
	{ErrAlreadyDecided, ClassConflict},
	{ErrInvalidTransition, ClassConflict},
	{ErrAlreadyUpvoted, ClassConflict},
	{ErrMediaAttached, ClassConflict},
	{ErrUnauthorized, ClassAuthorization},
	{ErrBountyNotFound, ClassNotFound},
	{ErrMediaNotFound, ClassNotFound},
	{ErrSubmissionNotFound, ClassNotFound},
	{ErrStorageWriteFailed, ClassUnavailable},
}

// DuplicateSubmissionError reports the submission that already occupies the
// (bounty, wallet) slot. It unwraps to ErrDuplicateSubmission.
type DuplicateSubmissionError struct {
	BountyID string
	Existing *Submission // nil when the existing row could not be read back
}

func (e *DuplicateSubmissionError) Error() string {
	if e.Existing == nil {
		return ErrDuplicateSubmission.Error()
	}
	if e.Existing.Status == StatusRejected {
		return "this submission was rejected; resubmission is not possible for this bounty"
	}
	return fmt.Sprintf("%s (status: %s)", ErrDuplicateSubmission, e.Existing.Status)
}

func (e *DuplicateSubmissionError) Unwrap() error { return ErrDuplicateSubmission }

// Classify returns the class of the first known sentinel err wraps.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassInternal
	}
	for _, ec := range errorClasses {
		if errors.Is(err, ec.err) {
			return ec.class
		}
	}
	return ClassInternal
}
