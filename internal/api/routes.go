package api

import (
	"log/slog"
	"net/http"

	"learnhub/bounty-pipeline/internal/auth"
	"learnhub/bounty-pipeline/internal/service"

	"github.com/gin-gonic/gin"
)

// RouteDeps is everything SetupRoutes wires into handlers.
type RouteDeps struct {
	JWTSecret          string
	Authorizer         auth.Authorizer
	Workflow           service.SubmissionWorkflow
	Query              service.ReviewQuery
	Exporter           *service.Exporter
	Ingestor           service.MediaIngestor
	MaxUploadBytes     int64
	RateLimitPerMinute int
	RateLimitBurst     int
	MetricsHandler     http.Handler // optional
	Logger             *slog.Logger
}

func SetupRoutes(router *gin.Engine, d RouteDeps) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	submissionHandler := NewSubmissionHandler(d.Workflow, d.Query, d.Logger)
	reviewHandler := NewReviewHandler(d.Workflow, d.Query, d.Exporter, d.Logger)
	mediaHandler := NewMediaHandler(d.Ingestor, d.MaxUploadBytes, d.Logger)

	authMiddleware := AuthMiddleware(d.JWTSecret)
	rateLimit := RateLimitMiddleware(d.RateLimitPerMinute, d.RateLimitBurst)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if d.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(d.MetricsHandler))
	}

	apiV1 := router.Group("/api/v1")
	apiV1.Use(authMiddleware)
	{
		// --- Participant routes ---
		participant := apiV1.Group("")
		participant.Use(RequireWallet())
		{
			// POST /api/v1/media (multipart: file, bountyId)
			participant.POST("/media", rateLimit, mediaHandler.UploadMedia)

			// POST /api/v1/submissions
			participant.POST("/submissions", rateLimit, submissionHandler.CreateSubmission)
			// GET /api/v1/submissions/mine?bountyIds=a,b
			participant.GET("/submissions/mine", submissionHandler.GetMySubmissions)
			// POST /api/v1/submissions/{id}/upvote
			participant.POST("/submissions/:id/upvote", submissionHandler.UpvoteSubmission)
		}

		// --- Reviewer routes ---
		// Authorization runs before any lookup so non-reviewers learn nothing
		// about which submissions exist.
		review := apiV1.Group("/review")
		review.Use(RequireReviewer(d.Authorizer))
		{
			review.GET("/submissions", reviewHandler.ListSubmissions)
			review.GET("/submissions/export", reviewHandler.ExportSubmissions)
			review.POST("/submissions/:id/decision", reviewHandler.DecideSubmission)
			review.POST("/submissions/bulk-decision", reviewHandler.BulkDecide)
		}
	}
}
