package api

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"learnhub/bounty-pipeline/internal/domain"
	"learnhub/bounty-pipeline/internal/repository"
	"learnhub/bounty-pipeline/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReviewHandler serves the moderation routes. Every route sits behind
// RequireReviewer.
type ReviewHandler struct {
	workflow service.SubmissionWorkflow
	query    service.ReviewQuery
	exporter *service.Exporter
	logger   *slog.Logger
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(workflow service.SubmissionWorkflow, query service.ReviewQuery, exporter *service.Exporter, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{workflow: workflow, query: query, exporter: exporter, logger: logger}
}

// ReviewDecisionRequest is the body of a single decision.
type ReviewDecisionRequest struct {
	Action     string `json:"action" binding:"required"`
	XPOverride *int64 `json:"xpOverride"`
	Note       string `json:"note"`
}

// BulkDecisionRequest applies one decision to many submissions.
type BulkDecisionRequest struct {
	IDs        []string `json:"ids" binding:"required"`
	Action     string   `json:"action" binding:"required"`
	XPOverride *int64   `json:"xpOverride"`
	Note       string   `json:"note"`
}

// SearchResponse is one page of the reviewer listing.
type SearchResponse struct {
	Items    []SubmissionResponse `json:"items"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"pageSize"`
}

// BulkFailureResponse is one id that could not be reviewed.
type BulkFailureResponse struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// BulkDecisionResponse reports partial success.
type BulkDecisionResponse struct {
	Succeeded []string              `json:"succeeded"`
	Failed    []BulkFailureResponse `json:"failed"`
}

func (r ReviewDecisionRequest) toInput() (service.ReviewInput, error) {
	action, err := domain.ParseReviewAction(r.Action)
	if err != nil {
		return service.ReviewInput{}, err
	}
	return service.ReviewInput{Action: action, XPOverride: r.XPOverride, Note: r.Note}, nil
}

// ListSubmissions godoc
// @Summary Search submissions for review
// @Tags Review
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending | approved | rejected"
// @Param squad query string false "Squad"
// @Param bountyId query string false "Bounty ID"
// @Param q query string false "Case-insensitive text or wallet substring"
// @Param createdFrom query string false "RFC3339 or YYYY-MM-DD"
// @Param createdTo query string false "RFC3339 or YYYY-MM-DD"
// @Param sort query string false "newest | oldest | mostUpvoted | leastUpvoted"
// @Param page query int false "1-based page"
// @Param pageSize query int false "Page size (max 100)"
// @Success 200 {object} SearchResponse
// @Failure 400 {object} gin.H "Invalid filter"
// @Failure 403 {object} gin.H "Not a reviewer"
// @Router /review/submissions [get]
func (h *ReviewHandler) ListSubmissions(c *gin.Context) {
	id, _ := getIdentityFromContext(c)
	filter, sort, err := parseFilter(c)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))

	res, err := h.query.Search(c.Request.Context(), id, service.SearchQuery{
		Filter:   filter,
		Sort:     sort,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SearchResponse{
		Items:    MapSubmissionsToResponse(res.Items),
		Total:    res.Total,
		Page:     res.Page,
		PageSize: res.PageSize,
	})
}

// ExportSubmissions godoc
// @Summary Export matching submissions as CSV
// @Tags Review
// @Produce text/csv
// @Security BearerAuth
// @Success 200 {file} file "CSV with one row per submission"
// @Failure 403 {object} gin.H "Not a reviewer"
// @Router /review/submissions/export [get]
func (h *ReviewHandler) ExportSubmissions(c *gin.Context) {
	id, _ := getIdentityFromContext(c)
	filter, sort, err := parseFilter(c)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	// Buffered so a store failure can still be reported as JSON.
	var buf bytes.Buffer
	if err := h.exporter.Export(c.Request.Context(), id, filter, sort, &buf); err != nil {
		respondError(c, h.logger, err)
		return
	}
	name := fmt.Sprintf("submissions-%s.csv", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// DecideSubmission godoc
// @Summary Approve or reject a pending submission
// @Tags Review
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission ID"
// @Param decision body ReviewDecisionRequest true "Decision"
// @Success 200 {object} SubmissionResponse
// @Failure 400 {object} gin.H "Invalid action or xp override"
// @Failure 403 {object} gin.H "Not a reviewer"
// @Failure 404 {object} gin.H "Submission not found"
// @Failure 409 {object} gin.H "Already decided"
// @Router /review/submissions/{id}/decision [post]
func (h *ReviewHandler) DecideSubmission(c *gin.Context) {
	subID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid submission ID format.")
		return
	}
	var req ReviewDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	in, err := req.toInput()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	id, _ := getIdentityFromContext(c)

	sub, err := h.workflow.Review(c.Request.Context(), id, subID, in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, MapSubmissionToResponse(sub))
}

// BulkDecide godoc
// @Summary Apply one decision to many submissions
// @Description Each id is reviewed independently; failures are reported per id.
// @Tags Review
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param decision body BulkDecisionRequest true "Decision and ids (max 100)"
// @Success 200 {object} BulkDecisionResponse
// @Failure 400 {object} gin.H "Invalid action, id or batch too large"
// @Failure 403 {object} gin.H "Not a reviewer"
// @Router /review/submissions/bulk-decision [post]
func (h *ReviewHandler) BulkDecide(c *gin.Context) {
	var req BulkDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	in, err := ReviewDecisionRequest{Action: req.Action, XPOverride: req.XPOverride, Note: req.Note}.toInput()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if len(req.IDs) > service.MaxBulkReview {
		respondError(c, h.logger, domain.ErrBatchTooLarge)
		return
	}
	ids := make([]primitive.ObjectID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		oid, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid submission ID format: "+raw)
			return
		}
		ids = append(ids, oid)
	}
	id, _ := getIdentityFromContext(c)

	res, err := h.workflow.BulkReview(c.Request.Context(), id, ids, in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := BulkDecisionResponse{
		Succeeded: make([]string, len(res.Succeeded)),
		Failed:    make([]BulkFailureResponse, len(res.Failed)),
	}
	for i, oid := range res.Succeeded {
		resp.Succeeded[i] = oid.Hex()
	}
	for i, f := range res.Failed {
		resp.Failed[i] = BulkFailureResponse{ID: f.ID.Hex(), Reason: f.Reason}
	}
	c.JSON(http.StatusOK, resp)
}

func parseFilter(c *gin.Context) (repository.SubmissionFilter, repository.SortOrder, error) {
	f := repository.SubmissionFilter{
		Squad:    c.Query("squad"),
		BountyID: c.Query("bountyId"),
		Text:     c.Query("q"),
	}
	if raw := c.Query("status"); raw != "" {
		status, err := domain.ParseSubmissionStatus(raw)
		if err != nil {
			return f, "", err
		}
		f.Status = status
	}
	var err error
	if f.CreatedFrom, err = parseTimeParam(c.Query("createdFrom"), false); err != nil {
		return f, "", fmt.Errorf("invalid createdFrom: %w", err)
	}
	if f.CreatedTo, err = parseTimeParam(c.Query("createdTo"), true); err != nil {
		return f, "", fmt.Errorf("invalid createdTo: %w", err)
	}
	return f, repository.SortOrder(c.Query("sort")), nil
}

// parseTimeParam accepts RFC3339 or a bare date. A bare upper bound covers the
// whole day.
func parseTimeParam(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
