package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"learnhub/bounty-pipeline/internal/domain"
	"learnhub/bounty-pipeline/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeSubmissions enforces the (bounty, wallet) uniqueness the way the
// unique index does: under one lock, at insert time.
type fakeSubmissions struct {
	mu      sync.Mutex
	byID    map[primitive.ObjectID]*domain.Submission
	gets    int
	listErr error
	incErr  error
	// afterBatch runs outside the lock after each ListAfter call.
	afterBatch func()
}

func newFakeSubmissions() *fakeSubmissions {
	return &fakeSubmissions{byID: map[primitive.ObjectID]*domain.Submission{}}
}

func (f *fakeSubmissions) find(bountyID, wallet string) *domain.Submission {
	for _, s := range f.byID {
		if s.BountyID == bountyID && s.Wallet == wallet {
			return s
		}
	}
	return nil
}

func (f *fakeSubmissions) Exists(_ context.Context, bountyID, wallet string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find(bountyID, wallet) != nil, nil
}

func (f *fakeSubmissions) InsertPending(_ context.Context, sub *domain.Submission) (*domain.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.find(sub.BountyID, sub.Wallet) != nil {
		return nil, repository.ErrDuplicateKey
	}
	cp := *sub
	cp.ID = primitive.NewObjectID()
	cp.Status = domain.StatusPending
	cp.AwardedXP = 0
	cp.CreatedAt = time.Now().UTC()
	f.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeSubmissions) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	s, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *s
	return &out, nil
}

func (f *fakeSubmissions) GetByBountyAndWallet(_ context.Context, bountyID, wallet string) (*domain.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.find(bountyID, wallet)
	if s == nil {
		return nil, repository.ErrNotFound
	}
	out := *s
	return &out, nil
}

func (f *fakeSubmissions) ListForWallet(_ context.Context, wallet string, bountyIDs []string) (map[string]domain.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]domain.Submission{}
	for _, id := range bountyIDs {
		if s := f.find(id, wallet); s != nil {
			out[id] = *s
		}
	}
	return out, nil
}

func (f *fakeSubmissions) ListForReview(_ context.Context, filter repository.SubmissionFilter, _ repository.SortOrder, page repository.Page) ([]domain.Submission, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	all := f.matching(filter)
	total := int64(len(all))
	start := int(page.Skip())
	if start > len(all) {
		start = len(all)
	}
	end := start + page.Size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (f *fakeSubmissions) ListAfter(_ context.Context, filter repository.SubmissionFilter, after *primitive.ObjectID, descending bool, limit int) ([]domain.Submission, error) {
	f.mu.Lock()
	if f.listErr != nil {
		f.mu.Unlock()
		return nil, f.listErr
	}
	all := f.matching(filter)
	if descending {
		sort.Slice(all, func(i, j int) bool { return all[i].ID.Hex() > all[j].ID.Hex() })
	}
	var out []domain.Submission
	for _, s := range all {
		if after != nil {
			if descending && s.ID.Hex() >= after.Hex() || !descending && s.ID.Hex() <= after.Hex() {
				continue
			}
		}
		if len(out) == limit {
			break
		}
		out = append(out, s)
	}
	hook := f.afterBatch
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return out, nil
}

// matching returns the submissions passing filter in id order. Callers hold mu.
func (f *fakeSubmissions) matching(filter repository.SubmissionFilter) []domain.Submission {
	var all []domain.Submission
	for _, s := range f.byID {
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		if filter.Squad != "" && s.Squad != filter.Squad {
			continue
		}
		if filter.BountyID != "" && s.BountyID != filter.BountyID {
			continue
		}
		if filter.Text != "" && !strings.Contains(strings.ToLower(s.Text+" "+s.Wallet), strings.ToLower(filter.Text)) {
			continue
		}
		all = append(all, *s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID.Hex() < all[j].ID.Hex() })
	return all
}

func (f *fakeSubmissions) Transition(_ context.Context, id primitive.ObjectID, t domain.Transition) (*domain.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if s.Status != domain.StatusPending {
		return nil, repository.ErrNotPending
	}
	s.Status = t.To
	if t.To == domain.StatusApproved {
		s.AwardedXP = t.AwardedXP
	}
	s.ReviewedBy = t.ReviewedBy
	s.ReviewNote = t.Note
	decided := t.DecidedAt
	s.DecidedAt = &decided
	out := *s
	return &out, nil
}

func (f *fakeSubmissions) IncrementUpvotes(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incErr != nil {
		return f.incErr
	}
	s, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.Upvotes++
	return nil
}

func (f *fakeSubmissions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

type fakeAssets struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]*domain.MediaAsset
}

func newFakeAssets() *fakeAssets {
	return &fakeAssets{byID: map[primitive.ObjectID]*domain.MediaAsset{}}
}

func (f *fakeAssets) Create(_ context.Context, a *domain.MediaAsset) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	cp.ID = primitive.NewObjectID()
	f.byID[cp.ID] = &cp
	return cp.ID, nil
}

func (f *fakeAssets) GetByID(_ context.Context, id primitive.ObjectID) (*domain.MediaAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *a
	return &out, nil
}

func (f *fakeAssets) MarkAttached(_ context.Context, assetID, submissionID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[assetID]
	if !ok {
		return repository.ErrNotFound
	}
	if a.SubmissionID != nil && *a.SubmissionID != submissionID {
		return repository.ErrDuplicateKey
	}
	a.SubmissionID = &submissionID
	return nil
}

func (f *fakeAssets) put(a domain.MediaAsset) primitive.ObjectID {
	id, _ := f.Create(context.Background(), &a)
	return id
}

type fakeBounties map[string]*domain.Bounty

func (f fakeBounties) GetBounty(_ context.Context, id string) (*domain.Bounty, error) {
	b, ok := f[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *b
	return &out, nil
}

type fakeCounter struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (f *fakeCounter) IncrementSubmissionCount(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[id]++
	return f.err
}

type fakeUpvotes struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (f *fakeUpvotes) Add(_ context.Context, id primitive.ObjectID, wallet string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	k := id.Hex() + "|" + wallet
	if f.seen[k] {
		return repository.ErrDuplicateKey
	}
	f.seen[k] = true
	return nil
}

type award struct {
	Wallet string
	Amount int64
	Reason string
}

type fakeLedger struct {
	mu     sync.Mutex
	awards []award
	err    error
}

func (f *fakeLedger) AwardXP(_ context.Context, wallet string, amount int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.awards = append(f.awards, award{wallet, amount, reason})
	return f.err
}

func (f *fakeLedger) calls() []award {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]award(nil), f.awards...)
}

// reviewerAuthz treats any identity with the reviewer role as a reviewer.
type reviewerAuthz struct{}

func (reviewerAuthz) IsReviewer(_ context.Context, id domain.Identity) bool {
	return id.HasRole(domain.RoleReviewer)
}

// fakeStorage keeps objects in memory and serves them over HTTP so URLs
// returned by ObjectURL can actually be fetched. With a ttl set, URLs behave
// like presigned links: they carry an expiry and the server refuses them
// once the fake clock passes it.
type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	onPut   func()
	ttl     time.Duration
	skew    time.Duration
	srv     *httptest.Server
}

func newFakeStorage() *fakeStorage {
	f := &fakeStorage{objects: map[string][]byte{}}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exp := r.URL.Query().Get("expires"); exp != "" {
			at, err := strconv.ParseInt(exp, 10, 64)
			if err != nil || f.now().Unix() > at {
				http.Error(w, "Request has expired", http.StatusForbidden)
				return
			}
		}
		f.mu.Lock()
		b, ok := f.objects[strings.TrimPrefix(r.URL.Path, "/")]
		f.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(b)
	}))
	return f
}

func (f *fakeStorage) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return time.Now().Add(f.skew)
}

// advance moves the fake clock forward.
func (f *fakeStorage) advance(d time.Duration) {
	f.mu.Lock()
	f.skew += d
	f.mu.Unlock()
}

func (f *fakeStorage) PutObject(ctx context.Context, key, _ string, body io.Reader, size int64) error {
	if f.onPut != nil {
		f.onPut()
	}
	if f.putErr != nil {
		return f.putErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, body)
	if err != nil {
		return err
	}
	if n != size {
		return errors.New("short write")
	}
	f.mu.Lock()
	f.objects[key] = buf.Bytes()
	f.mu.Unlock()
	return nil
}

func (f *fakeStorage) ObjectURL(_ context.Context, key string) (string, error) {
	u := f.srv.URL + "/" + key
	f.mu.Lock()
	ttl := f.ttl
	f.mu.Unlock()
	if ttl > 0 {
		u += "?expires=" + strconv.FormatInt(f.now().Add(ttl).Unix(), 10)
	}
	return u, nil
}

func (f *fakeStorage) DeleteObject(_ context.Context, key string) error {
	f.mu.Lock()
	delete(f.objects, key)
	f.mu.Unlock()
	return nil
}

func (f *fakeStorage) Close() { f.srv.Close() }

// cdnStorage resolves every key under a fixed public base URL.
type cdnStorage struct{}

func (cdnStorage) PutObject(context.Context, string, string, io.Reader, int64) error { return nil }
func (cdnStorage) ObjectURL(_ context.Context, key string) (string, error) {
	return "https://cdn.example/" + key, nil
}
func (cdnStorage) DeleteObject(context.Context, string) error { return nil }
