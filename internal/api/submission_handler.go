package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"learnhub/bounty-pipeline/internal/domain"
	"learnhub/bounty-pipeline/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SubmissionHandler serves the participant-facing submission routes.
type SubmissionHandler struct {
	workflow service.SubmissionWorkflow
	query    service.ReviewQuery
	logger   *slog.Logger
}

// NewSubmissionHandler creates a new SubmissionHandler.
func NewSubmissionHandler(workflow service.SubmissionWorkflow, query service.ReviewQuery, logger *slog.Logger) *SubmissionHandler {
	return &SubmissionHandler{workflow: workflow, query: query, logger: logger}
}

// --- DTOs ---

// CreateSubmissionRequest is the body of POST /submissions.
type CreateSubmissionRequest struct {
	BountyID     string `json:"bountyId" binding:"required"`
	Text         string `json:"text"`
	MediaAssetID string `json:"mediaAssetId" binding:"omitempty"`
}

// MediaResponse describes attached media.
type MediaResponse struct {
	AssetID string `json:"assetId"`
	URL     string `json:"url"`
	Kind    string `json:"kind"`
}

// SubmissionResponse is the DTO for returning a submission.
type SubmissionResponse struct {
	ID         string         `json:"id"`
	BountyID   string         `json:"bountyId"`
	Wallet     string         `json:"wallet"`
	Squad      string         `json:"squad,omitempty"`
	Text       string         `json:"text"`
	Media      *MediaResponse `json:"media,omitempty"`
	Status     string         `json:"status"`
	AwardedXP  int64          `json:"awardedXp"`
	Upvotes    int64          `json:"upvotes"`
	ReviewedBy string         `json:"reviewedBy,omitempty"`
	ReviewNote string         `json:"reviewNote,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	DecidedAt  *time.Time     `json:"decidedAt,omitempty"`
	// Notice is user-facing copy for terminal states.
	Notice string `json:"notice,omitempty"`
}

const rejectedNotice = "This submission was rejected. Resubmission is not possible for this bounty."

// MapSubmissionToResponse converts a domain.Submission to its DTO.
func MapSubmissionToResponse(s *domain.Submission) SubmissionResponse {
	if s == nil {
		return SubmissionResponse{}
	}
	resp := SubmissionResponse{
		ID:         s.ID.Hex(),
		BountyID:   s.BountyID,
		Wallet:     s.Wallet,
		Squad:      s.Squad,
		Text:       s.Text,
		Status:     string(s.Status),
		AwardedXP:  s.AwardedXP,
		Upvotes:    s.Upvotes,
		ReviewedBy: s.ReviewedBy,
		ReviewNote: s.ReviewNote,
		CreatedAt:  s.CreatedAt,
		DecidedAt:  s.DecidedAt,
	}
	if s.Media != nil {
		resp.Media = &MediaResponse{AssetID: s.Media.AssetID.Hex(), URL: s.Media.URL, Kind: string(s.Media.Kind)}
	}
	if s.Status == domain.StatusRejected {
		resp.Notice = rejectedNotice
	}
	return resp
}

// MapSubmissionsToResponse converts a slice of submissions.
func MapSubmissionsToResponse(subs []domain.Submission) []SubmissionResponse {
	out := make([]SubmissionResponse, len(subs))
	for i := range subs {
		out[i] = MapSubmissionToResponse(&subs[i])
	}
	return out
}

// --- Handler Methods ---

// CreateSubmission godoc
// @Summary Submit work for a bounty
// @Description Creates the caller's single pending submission for a bounty.
// @Tags Submissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param submission body CreateSubmissionRequest true "Submission"
// @Success 201 {object} SubmissionResponse
// @Failure 400 {object} gin.H "Validation error (inactive bounty, missing media, empty text)"
// @Failure 404 {object} gin.H "Bounty or media asset not found"
// @Failure 409 {object} gin.H "A submission already exists for this bounty"
// @Router /submissions [post]
func (h *SubmissionHandler) CreateSubmission(c *gin.Context) {
	var req CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	id, err := getIdentityFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify caller from token.")
		return
	}

	in := service.CreateSubmissionInput{BountyID: req.BountyID, Text: req.Text}
	if req.MediaAssetID != "" {
		assetID, err := primitive.ObjectIDFromHex(req.MediaAssetID)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid media asset ID format.")
			return
		}
		in.MediaAssetID = &assetID
	}

	sub, err := h.workflow.Create(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, MapSubmissionToResponse(sub))
}

// GetMySubmissions godoc
// @Summary Look up the caller's submissions for a set of bounties
// @Tags Submissions
// @Produce json
// @Security BearerAuth
// @Param bountyIds query string true "Comma separated bounty ids"
// @Success 200 {object} map[string]SubmissionResponse "Keyed by bounty id; bounties without a submission are absent"
// @Router /submissions/mine [get]
func (h *SubmissionHandler) GetMySubmissions(c *gin.Context) {
	id, err := getIdentityFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify caller from token.")
		return
	}
	var bountyIDs []string
	for _, raw := range c.QueryArray("bountyIds") {
		bountyIDs = append(bountyIDs, strings.Split(raw, ",")...)
	}

	found, err := h.query.BatchLookup(c.Request.Context(), id, bountyIDs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	resp := make(map[string]SubmissionResponse, len(found))
	for bountyID, sub := range found {
		sub := sub
		resp[bountyID] = MapSubmissionToResponse(&sub)
	}
	c.JSON(http.StatusOK, resp)
}

// UpvoteSubmission godoc
// @Summary Upvote another participant's submission
// @Tags Submissions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission ID"
// @Success 200 {object} SubmissionResponse
// @Failure 400 {object} gin.H "Own submission"
// @Failure 404 {object} gin.H "Submission not found"
// @Failure 409 {object} gin.H "Already upvoted"
// @Router /submissions/{id}/upvote [post]
func (h *SubmissionHandler) UpvoteSubmission(c *gin.Context) {
	subID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid submission ID format.")
		return
	}
	id, err := getIdentityFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify caller from token.")
		return
	}

	sub, err := h.workflow.Upvote(c.Request.Context(), id, subID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, MapSubmissionToResponse(sub))
}
