package service

import (
	"context"
	"log/slog"

	"learnhub/bounty-pipeline/internal/domain"
	"learnhub/bounty-pipeline/internal/storage"
)

// mediaLinks turns stored object keys into retrievable URLs on every read.
// Links are never persisted, so a presigned URL is always minted fresh.
type mediaLinks struct {
	store  storage.FileStorage
	logger *slog.Logger
}

func (l mediaLinks) ref(ctx context.Context, m *domain.MediaRef) {
	if l.store == nil || m == nil || m.ObjectKey == "" {
		return
	}
	url, err := l.store.ObjectURL(ctx, m.ObjectKey)
	if err != nil {
		// The rest of the submission is still worth showing.
		l.logger.Warn("media url unavailable", "key", m.ObjectKey, "error", err)
		m.URL = ""
		return
	}
	m.URL = url
}

func (l mediaLinks) submission(ctx context.Context, s *domain.Submission) {
	if s != nil {
		l.ref(ctx, s.Media)
	}
}

func (l mediaLinks) submissions(ctx context.Context, subs []domain.Submission) {
	for i := range subs {
		l.ref(ctx, subs[i].Media)
	}
}
