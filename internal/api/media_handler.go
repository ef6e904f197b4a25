package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"learnhub/bounty-pipeline/internal/domain"
	"learnhub/bounty-pipeline/internal/service"

	"github.com/gin-gonic/gin"
)

// multipart framing allowance on top of the largest accepted file
const multipartOverhead = 1 << 20

// MediaHandler accepts evidence uploads.
type MediaHandler struct {
	ingestor service.MediaIngestor
	maxBody  int64
	logger   *slog.Logger
}

// NewMediaHandler creates a new MediaHandler. maxFileBytes is the largest
// ceiling of any media kind.
func NewMediaHandler(ingestor service.MediaIngestor, maxFileBytes int64, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{ingestor: ingestor, maxBody: maxFileBytes + multipartOverhead, logger: logger}
}

// MediaAssetResponse is returned after a successful upload.
type MediaAssetResponse struct {
	ID          string    `json:"id"`
	BountyID    string    `json:"bountyId"`
	URL         string    `json:"url"`
	Kind        string    `json:"kind"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// UploadMedia godoc
// @Summary Upload evidence for a bounty
// @Description Validates type and size, stores the file and returns an asset id to attach to a submission.
// @Tags Media
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Image or video"
// @Param bountyId formData string true "Bounty the evidence is for"
// @Success 201 {object} MediaAssetResponse
// @Failure 400 {object} gin.H "Unsupported type or too large"
// @Failure 503 {object} gin.H "Storage unavailable, retry"
// @Router /media [post]
func (h *MediaHandler) UploadMedia(c *gin.Context) {
	id, err := getIdentityFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify caller from token.")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, h.logger, domain.ErrMediaTooLarge)
			return
		}
		abortWithError(c, http.StatusBadRequest, "Multipart field 'file' is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}
	defer file.Close()

	asset, err := h.ingestor.Ingest(c.Request.Context(), id, c.PostForm("bountyId"), service.MediaUpload{
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Body:        file,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, MediaAssetResponse{
		ID:          asset.ID.Hex(),
		BountyID:    asset.BountyID,
		URL:         asset.URL,
		Kind:        string(asset.Kind),
		ContentType: asset.ContentType,
		Size:        asset.Size,
		UploadedAt:  asset.UploadedAt,
	})
}
