package service

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"strconv"
	"time"

	"learnhub/bounty-pipeline/internal/auth"
	"learnhub/bounty-pipeline/internal/domain"
	"learnhub/bounty-pipeline/internal/repository"
	"learnhub/bounty-pipeline/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var exportHeader = []string{
	"id", "bounty_id", "wallet", "squad", "status", "awarded_xp", "upvotes",
	"text", "media_url", "media_kind", "created_at", "decided_at", "reviewed_by",
}

// Exporter streams a reviewer query as CSV.
type Exporter struct {
	subs      repository.SubmissionRepository
	authz     auth.Authorizer
	links     mediaLinks
	batchSize int
}

func NewExporter(subs repository.SubmissionRepository, authz auth.Authorizer, store storage.FileStorage, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{subs: subs, authz: authz, links: mediaLinks{store: store, logger: logger}, batchSize: MaxPageSize}
}

// Export writes every submission matching filter exactly once. Rows are
// walked by id, newest first unless sort is oldest, so reviews landing while
// the export runs cannot shift or repeat rows. Upvote orders are mutable and
// are exported newest first.
func (e *Exporter) Export(ctx context.Context, reviewer domain.Identity, filter repository.SubmissionFilter, sort repository.SortOrder, w io.Writer) error {
	if !e.authz.IsReviewer(ctx, reviewer) {
		return domain.ErrUnauthorized
	}
	sq, err := normalizeSearch(SearchQuery{Filter: filter, Sort: sort})
	if err != nil {
		return err
	}
	descending := sq.Sort != repository.SortOldest

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	var after *primitive.ObjectID
	for {
		items, err := e.subs.ListAfter(ctx, sq.Filter, after, descending, e.batchSize)
		if err != nil {
			return err
		}
		e.links.submissions(ctx, items)
		for i := range items {
			if err := cw.Write(csvRow(&items[i])); err != nil {
				return err
			}
		}
		if len(items) < e.batchSize {
			break
		}
		last := items[len(items)-1].ID
		after = &last
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(s *domain.Submission) []string {
	var mediaURL, mediaKind, decided string
	if s.Media != nil {
		mediaURL = s.Media.URL
		mediaKind = string(s.Media.Kind)
	}
	if s.DecidedAt != nil {
		decided = s.DecidedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		s.ID.Hex(),
		s.BountyID,
		s.Wallet,
		s.Squad,
		string(s.Status),
		strconv.FormatInt(s.AwardedXP, 10),
		strconv.FormatInt(s.Upvotes, 10),
		s.Text,
		mediaURL,
		mediaKind,
		s.CreatedAt.UTC().Format(time.RFC3339),
		decided,
		s.ReviewedBy,
	}
}
