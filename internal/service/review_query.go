package service

import (
	"context"
	"log/slog"
	"strings"

	"learnhub/bounty-pipeline/internal/auth"
	"learnhub/bounty-pipeline/internal/domain"
	"learnhub/bounty-pipeline/internal/repository"
	"learnhub/bounty-pipeline/internal/storage"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxLookupBounties caps one participant batch lookup.
	MaxLookupBounties = 100
)

// SearchQuery is a reviewer listing request.
type SearchQuery struct {
	Filter   repository.SubmissionFilter
	Sort     repository.SortOrder
	Page     int
	PageSize int
}

// SearchResult is one page plus the total number of matches.
type SearchResult struct {
	Items    []domain.Submission `json:"items"`
	Total    int64               `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"pageSize"`
}

// ReviewQuery is the read side. It always goes to the store; there is no
// cache that could show a decided submission as pending.
type ReviewQuery interface {
	Search(ctx context.Context, reviewer domain.Identity, q SearchQuery) (*SearchResult, error)
	BatchLookup(ctx context.Context, participant domain.Identity, bountyIDs []string) (map[string]domain.Submission, error)
}

type reviewQuery struct {
	subs  repository.SubmissionRepository
	authz auth.Authorizer
	links mediaLinks
}

// NewReviewQuery creates a new ReviewQuery. store resolves media links on
// every result; nil leaves them empty.
func NewReviewQuery(subs repository.SubmissionRepository, authz auth.Authorizer, store storage.FileStorage, logger *slog.Logger) ReviewQuery {
	if logger == nil {
		logger = slog.Default()
	}
	return &reviewQuery{subs: subs, authz: authz, links: mediaLinks{store: store, logger: logger}}
}

func (q *reviewQuery) Search(ctx context.Context, reviewer domain.Identity, sq SearchQuery) (*SearchResult, error) {
	if !q.authz.IsReviewer(ctx, reviewer) {
		return nil, domain.ErrUnauthorized
	}
	sq, err := normalizeSearch(sq)
	if err != nil {
		return nil, err
	}

	items, total, err := q.subs.ListForReview(ctx, sq.Filter, sq.Sort, repository.Page{Number: sq.Page, Size: sq.PageSize})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Submission{}
	}
	q.links.submissions(ctx, items)
	return &SearchResult{Items: items, Total: total, Page: sq.Page, PageSize: sq.PageSize}, nil
}

// BatchLookup returns the caller's own submissions keyed by bounty id.
// Bounties without a submission are absent from the map.
func (q *reviewQuery) BatchLookup(ctx context.Context, participant domain.Identity, bountyIDs []string) (map[string]domain.Submission, error) {
	if participant.Wallet == "" {
		return nil, domain.ErrInvalidWallet
	}
	ids := dedupe(bountyIDs)
	if len(ids) > MaxLookupBounties {
		return nil, domain.ErrBatchTooLarge
	}
	if len(ids) == 0 {
		return map[string]domain.Submission{}, nil
	}
	found, err := q.subs.ListForWallet(ctx, participant.Wallet, ids)
	if err != nil {
		return nil, err
	}
	for id, sub := range found {
		q.links.submission(ctx, &sub)
		found[id] = sub
	}
	return found, nil
}

func normalizeSearch(sq SearchQuery) (SearchQuery, error) {
	if sq.Filter.Status != "" && !sq.Filter.Status.Valid() {
		return sq, domain.ErrInvalidStatus
	}
	if sq.Sort == "" {
		sq.Sort = repository.SortNewest
	}
	if !sq.Sort.Valid() {
		return sq, domain.ErrInvalidSort
	}
	if sq.Page < 1 {
		sq.Page = 1
	}
	switch {
	case sq.PageSize <= 0:
		sq.PageSize = DefaultPageSize
	case sq.PageSize > MaxPageSize:
		sq.PageSize = MaxPageSize
	}
	sq.Filter.Squad = strings.TrimSpace(sq.Filter.Squad)
	sq.Filter.Text = strings.TrimSpace(sq.Filter.Text)
	return sq, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
