package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"learnhub/bounty-pipeline/internal/domain"
	"learnhub/bounty-pipeline/internal/metrics"
	"learnhub/bounty-pipeline/internal/repository"
	"learnhub/bounty-pipeline/internal/storage"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// MediaUpload is one file as received from the client. ContentType and Size
// are what the client declared; neither is trusted on its own.
type MediaUpload struct {
	FileName    string
	ContentType string
	Size        int64 // -1 when unknown
	Body        io.Reader
}

// MediaLimits are the per-kind size ceilings and the storage write timeout.
type MediaLimits struct {
	ImageMaxBytes int64
	VideoMaxBytes int64
	UploadTimeout time.Duration
}

func (l MediaLimits) ceiling(kind domain.MediaKind) int64 {
	if kind == domain.MediaVideo {
		return l.VideoMaxBytes
	}
	return l.ImageMaxBytes
}

// MediaIngestor validates and stores evidence files.
type MediaIngestor interface {
	Ingest(ctx context.Context, owner domain.Identity, bountyID string, upload MediaUpload) (*domain.MediaAsset, error)
}

type mediaIngestor struct {
	store   storage.FileStorage
	assets  repository.MediaAssetRepository
	limits  MediaLimits
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewMediaIngestor creates a new MediaIngestor.
func NewMediaIngestor(store storage.FileStorage, assets repository.MediaAssetRepository, limits MediaLimits, logger *slog.Logger, m *metrics.Metrics) MediaIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	if limits.UploadTimeout <= 0 {
		limits.UploadTimeout = 60 * time.Second
	}
	return &mediaIngestor{
		store:   store,
		assets:  assets,
		limits:  limits,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Ingest checks owner, declared type, size and sniffed type, then writes the
// bytes under a random key and records the asset against (wallet, bounty).
func (s *mediaIngestor) Ingest(ctx context.Context, owner domain.Identity, bountyID string, upload MediaUpload) (*domain.MediaAsset, error) {
	started := s.now()

	if owner.Wallet == "" {
		s.metrics.MediaRefused("missing_owner")
		return nil, domain.ErrMissingOwner
	}
	bountyID = strings.TrimSpace(bountyID)
	if bountyID == "" {
		s.metrics.MediaRefused("missing_bounty")
		return nil, domain.ErrMissingBounty
	}

	declared, ok := domain.MediaKindFromContentType(upload.ContentType)
	if !ok {
		s.metrics.MediaRefused("unsupported_type")
		return nil, domain.ErrUnsupportedMediaType
	}
	limit := s.limits.ceiling(declared)
	if upload.Size > limit {
		s.metrics.MediaRefused("too_large")
		return nil, domain.ErrMediaTooLarge
	}
	if upload.Body == nil {
		s.metrics.MediaRefused("unsupported_type")
		return nil, domain.ErrUnsupportedMediaType
	}

	// One byte past the ceiling is enough to know the declared size lied.
	head, err := io.ReadAll(io.LimitReader(upload.Body, min(sniffLen, limit+1)))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(head)) > limit {
		s.metrics.MediaRefused("too_large")
		return nil, domain.ErrMediaTooLarge
	}

	sniffed := mimetype.Detect(head)
	contentType := baseMIME(sniffed.String())
	kind, ok := domain.MediaKindFromContentType(contentType)
	if !ok || kind != declared || contentType == "image/svg+xml" {
		s.logger.Warn("media type mismatch", "declared", upload.ContentType, "sniffed", contentType, "wallet", owner.Wallet)
		s.metrics.MediaRefused("unsupported_type")
		return nil, domain.ErrUnsupportedMediaType
	}

	rest := io.LimitReader(upload.Body, limit+1-int64(len(head)))
	var guard *sizeGuard
	var body io.Reader
	n := upload.Size
	if n >= 0 {
		guard = &sizeGuard{r: io.MultiReader(bytes.NewReader(head), rest), want: n}
		body = guard
	} else {
		// Without a declared length the store needs the size up front.
		buf := bytes.NewBuffer(head)
		if _, err := io.Copy(buf, rest); err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		if n = int64(buf.Len()); n > limit {
			s.metrics.MediaRefused("too_large")
			return nil, domain.ErrMediaTooLarge
		}
		body = bytes.NewReader(buf.Bytes())
	}

	key := objectKey(owner.Wallet, bountyID, upload.FileName, sniffed.Extension())

	writeCtx, cancel := context.WithTimeout(ctx, s.limits.UploadTimeout)
	defer cancel()
	if err := s.store.PutObject(writeCtx, key, contentType, body, n); err != nil {
		if guard != nil && guard.err != nil {
			s.discard(key)
			s.logger.Warn("upload length differs from declared size", "declared", upload.Size, "read", guard.n, "wallet", owner.Wallet)
			if errors.Is(guard.err, domain.ErrMediaTooLarge) {
				s.metrics.MediaRefused("too_large")
			} else {
				s.metrics.MediaRefused("unsupported_type")
			}
			return nil, guard.err
		}
		s.logger.Error("media write failed", "key", key, "error", err)
		s.metrics.MediaRefused("storage")
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageWriteFailed, err)
	}

	url, err := s.store.ObjectURL(writeCtx, key)
	if err != nil {
		s.discard(key)
		s.metrics.MediaRefused("storage")
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageWriteFailed, err)
	}

	asset := &domain.MediaAsset{
		OwnerWallet: owner.Wallet,
		BountyID:    bountyID,
		ObjectKey:   key,
		URL:         url,
		Kind:        kind,
		ContentType: contentType,
		Size:        n,
		FileName:    upload.FileName,
		UploadedAt:  s.now().UTC(),
	}
	id, err := s.assets.Create(ctx, asset)
	if err != nil {
		s.discard(key)
		return nil, fmt.Errorf("record media asset: %w", err)
	}
	asset.ID = id

	s.metrics.MediaStored(string(kind), s.now().Sub(started))
	s.logger.Info("media ingested", "asset_id", id.Hex(), "wallet", owner.Wallet, "bounty_id", bountyID, "kind", kind, "size", n)
	return asset, nil
}

// sniffLen is how much of an upload mimetype inspects.
const sniffLen = 3072

// sizeGuard passes the upload through to storage and fails the read that
// shows the body is longer or shorter than declared. The error is sticky.
type sizeGuard struct {
	r    io.Reader
	want int64
	n    int64
	err  error
}

func (g *sizeGuard) Read(p []byte) (int, error) {
	if g.err != nil {
		return 0, g.err
	}
	n, err := g.r.Read(p)
	g.n += int64(n)
	switch {
	case g.n > g.want:
		g.err = domain.ErrMediaTooLarge
		return 0, g.err
	case err == io.EOF && g.n < g.want:
		g.err = fmt.Errorf("%w: upload ended after %d of %d declared bytes", domain.ErrUnsupportedMediaType, g.n, g.want)
		return n, g.err
	}
	return n, err
}

// discard removes an orphaned object; failures only leave garbage behind.
func (s *mediaIngestor) discard(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.DeleteObject(ctx, key); err != nil {
		s.logger.Warn("orphaned media object", "key", key, "error", err)
	}
}

// objectKey builds submissions/<wallet>/<bounty>/<uuid>-<name><ext>.
func objectKey(wallet, bountyID, fileName, ext string) string {
	base := strings.TrimSuffix(path.Base(fileName), path.Ext(fileName))
	name := slug.Make(base)
	if name == "" || name == "." {
		name = "upload"
	}
	return fmt.Sprintf("submissions/%s/%s/%s-%s%s", wallet, slug.Make(bountyID), uuid.NewString(), name, ext)
}

func baseMIME(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
