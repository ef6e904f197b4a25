package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"learnhub/bounty-pipeline/internal/domain"
	"learnhub/bounty-pipeline/internal/metrics"
	"learnhub/bounty-pipeline/internal/repository"
	"learnhub/bounty-pipeline/internal/storage"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	walletW1 = "0x00000000000000000000000000000000000000w1"
	walletW2 = "0x00000000000000000000000000000000000000w2"
	walletW3 = "0x00000000000000000000000000000000000000w3"
)

var (
	participantW1 = domain.Identity{Subject: "p1", Wallet: walletW1, Roles: []domain.Role{domain.RoleParticipant}}
	participantW2 = domain.Identity{Subject: "p2", Wallet: walletW2, Roles: []domain.Role{domain.RoleParticipant}}
	participantW3 = domain.Identity{Subject: "p3", Wallet: walletW3, Roles: []domain.Role{domain.RoleParticipant}}
	reviewer      = domain.Identity{Subject: "mod-1", Roles: []domain.Role{domain.RoleReviewer}}
)

type harness struct {
	subs     *fakeSubmissions
	assets   *fakeAssets
	bounties fakeBounties
	counter  *fakeCounter
	upvotes  *fakeUpvotes
	ledger   *fakeLedger
	store    storage.FileStorage
	wf       *submissionWorkflow
}

func newHarness() *harness {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(24 * time.Hour)
	h := &harness{
		subs:   newFakeSubmissions(),
		assets: newFakeAssets(),
		bounties: fakeBounties{
			"B1": {ID: "B1", Title: "Ship a video", RewardAmount: 100, RewardKind: domain.RewardXP, Status: domain.BountyActive,
				Visibility: domain.VisibilityVisible, Squad: "red", Deadline: &future, MediaRequired: true, AllowedMedia: domain.AllowImage},
			"B2": {ID: "B2", RewardAmount: 50, RewardKind: domain.RewardXP, Status: domain.BountyActive, Visibility: domain.VisibilityVisible},
			"B3": {ID: "B3", RewardAmount: 0, RewardKind: domain.RewardXP, Status: domain.BountyActive, Visibility: domain.VisibilityVisible},
			"hidden":    {ID: "hidden", RewardAmount: 10, Status: domain.BountyActive, Visibility: domain.VisibilityHidden},
			"expired":   {ID: "expired", RewardAmount: 10, Status: domain.BountyActive, Visibility: domain.VisibilityVisible, Deadline: &past},
			"completed": {ID: "completed", RewardAmount: 10, Status: domain.BountyCompleted, Visibility: domain.VisibilityVisible},
		},
		counter: &fakeCounter{},
		upvotes: &fakeUpvotes{},
		ledger:  &fakeLedger{},
		store:   cdnStorage{},
	}
	h.wf = NewSubmissionWorkflow(WorkflowDeps{
		Storage:     h.store,
		Submissions: h.subs,
		Assets:      h.assets,
		Bounties:    h.bounties,
		Counter:     h.counter,
		Upvotes:     h.upvotes,
		Authorizer:  reviewerAuthz{},
		Ledger:      h.ledger,
	}).(*submissionWorkflow)
	return h
}

// useStorage points every read path at store.
func (h *harness) useStorage(store storage.FileStorage) {
	h.store = store
	h.wf.links = mediaLinks{store: store, logger: h.wf.logger}
}

func (h *harness) query() ReviewQuery { return NewReviewQuery(h.subs, reviewerAuthz{}, h.store, nil) }

func (h *harness) exporter() *Exporter { return NewExporter(h.subs, reviewerAuthz{}, h.store, nil) }

func (h *harness) imageAsset(wallet, bountyID string) primitive.ObjectID {
	return h.assets.put(domain.MediaAsset{
		OwnerWallet: wallet,
		BountyID:    bountyID,
		ObjectKey:   "submissions/" + wallet + "/" + bountyID + "/x.png",
		Kind:        domain.MediaImage,
		ContentType: "image/png",
		Size:        10,
	})
}

func (h *harness) pending(t *testing.T, who domain.Identity, bountyID string) *domain.Submission {
	t.Helper()
	sub, err := h.wf.Create(context.Background(), who, CreateSubmissionInput{BountyID: bountyID, Text: "done"})
	require.NoError(t, err)
	return sub
}

func approve() ReviewInput { return ReviewInput{Action: domain.ActionApprove} }
func reject() ReviewInput  { return ReviewInput{Action: domain.ActionReject} }

func TestParticipantW1ApprovedFlow(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	assetID := h.imageAsset(walletW1, "B1")

	sub, err := h.wf.Create(ctx, participantW1, CreateSubmissionInput{BountyID: "B1", Text: "done", MediaAssetID: &assetID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, sub.Status)
	assert.Zero(t, sub.AwardedXP)
	assert.Equal(t, "red", sub.Squad)
	require.NotNil(t, sub.Media)
	assert.Equal(t, domain.MediaImage, sub.Media.Kind)
	assert.Equal(t, 1, h.counter.calls["B1"])

	attached, err := h.assets.GetByID(ctx, assetID)
	require.NoError(t, err)
	require.NotNil(t, attached.SubmissionID)
	assert.Equal(t, sub.ID, *attached.SubmissionID)

	approved, err := h.wf.Review(ctx, reviewer, sub.ID, approve())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Status)
	assert.Equal(t, int64(100), approved.AwardedXP)
	assert.Equal(t, "mod-1", approved.ReviewedBy)
	require.NotNil(t, approved.DecidedAt)

	awards := h.ledger.calls()
	require.Len(t, awards, 1)
	assert.Equal(t, walletW1, awards[0].Wallet)
	assert.Equal(t, int64(100), awards[0].Amount)

	again := h.imageAsset(walletW1, "B1")
	_, err = h.wf.Create(ctx, participantW1, CreateSubmissionInput{BountyID: "B1", Text: "again", MediaAssetID: &again})
	require.ErrorIs(t, err, domain.ErrDuplicateSubmission)
	var dup *domain.DuplicateSubmissionError
	require.True(t, errors.As(err, &dup))
	require.NotNil(t, dup.Existing)
	assert.Equal(t, domain.StatusApproved, dup.Existing.Status)
	assert.Equal(t, 1, h.subs.count())
}

func TestParticipantW2EmptyText(t *testing.T) {
	h := newHarness()
	_, err := h.wf.Create(context.Background(), participantW2, CreateSubmissionInput{BountyID: "B2", Text: "   "})
	assert.ErrorIs(t, err, domain.ErrEmptySubmission)
	assert.Zero(t, h.subs.count())
	assert.Zero(t, h.counter.calls["B2"])
}

func TestConcurrentCreatesYieldOneSubmission(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("n concurrent creates: one success, n-1 duplicates", prop.ForAll(
		func(n int) bool {
			h := newHarness()
			var (
				wg         sync.WaitGroup
				mu         sync.Mutex
				ok, dups   int
				unexpected error
			)
			start := make(chan struct{})
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					_, err := h.wf.Create(context.Background(), participantW2, CreateSubmissionInput{BountyID: "B2", Text: "done"})
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						ok++
					case errors.Is(err, domain.ErrDuplicateSubmission):
						dups++
					default:
						unexpected = err
					}
				}()
			}
			close(start)
			wg.Wait()
			return unexpected == nil && ok == 1 && dups == n-1 && h.subs.count() == 1
		},
		gen.IntRange(2, 16),
	))

	properties.TestingRun(t)
}

func TestDecidedSubmissionsNeverChange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("every later review fails AlreadyDecided", prop.ForAll(
		func(firstApprove bool, later []bool) bool {
			h := newHarness()
			ctx := context.Background()
			sub, err := h.wf.Create(ctx, participantW2, CreateSubmissionInput{BountyID: "B2", Text: "done"})
			if err != nil {
				return false
			}
			first := reject()
			if firstApprove {
				first = approve()
			}
			decided, err := h.wf.Review(ctx, reviewer, sub.ID, first)
			if err != nil {
				return false
			}
			for _, a := range later {
				in := reject()
				if a {
					in = approve()
				}
				if _, err := h.wf.Review(ctx, reviewer, sub.ID, in); !errors.Is(err, domain.ErrAlreadyDecided) {
					return false
				}
			}
			final, _ := h.subs.GetByID(ctx, sub.ID)
			awardsWanted := 0
			if firstApprove {
				awardsWanted = 1
			}
			return final.Status == decided.Status &&
				final.AwardedXP == decided.AwardedXP &&
				len(h.ledger.calls()) == awardsWanted
		},
		gen.Bool(),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

func TestRejectLeavesZeroXP(t *testing.T) {
	h := newHarness()
	sub := h.pending(t, participantW2, "B2")

	got, err := h.wf.Review(context.Background(), reviewer, sub.ID, ReviewInput{Action: domain.ActionReject, Note: " blurry "})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, got.Status)
	assert.Zero(t, got.AwardedXP)
	assert.Equal(t, "blurry", got.ReviewNote)
	assert.NotNil(t, got.DecidedAt)
	assert.Empty(t, h.ledger.calls())

	_, err = h.wf.Create(context.Background(), participantW2, CreateSubmissionInput{BountyID: "B2", Text: "retry"})
	require.ErrorIs(t, err, domain.ErrDuplicateSubmission)
	assert.Contains(t, err.Error(), "resubmission is not possible")
}

func TestReviewXPOverride(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	sub := h.pending(t, participantW2, "B2")
	xp := int64(250)
	got, err := h.wf.Review(ctx, reviewer, sub.ID, ReviewInput{Action: domain.ActionApprove, XPOverride: &xp})
	require.NoError(t, err)
	assert.Equal(t, int64(250), got.AwardedXP)

	other := h.pending(t, participantW3, "B2")
	zero := int64(0)
	_, err = h.wf.Review(ctx, reviewer, other.ID, ReviewInput{Action: domain.ActionApprove, XPOverride: &zero})
	assert.ErrorIs(t, err, domain.ErrInvalidXPOverride)

	// a bounty without a reward needs an override to be approved
	free := h.pending(t, participantW2, "B3")
	_, err = h.wf.Review(ctx, reviewer, free.ID, approve())
	assert.ErrorIs(t, err, domain.ErrInvalidXPOverride)
	still, _ := h.subs.GetByID(ctx, free.ID)
	assert.Equal(t, domain.StatusPending, still.Status)
}

func TestReviewErrors(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	sub := h.pending(t, participantW2, "B2")

	_, err := h.wf.Review(ctx, participantW3, sub.ID, approve())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, 0, h.subs.gets, "non-reviewers must not trigger a lookup")

	_, err = h.wf.Review(ctx, reviewer, primitive.NewObjectID(), approve())
	assert.ErrorIs(t, err, domain.ErrSubmissionNotFound)

	_, err = h.wf.Review(ctx, reviewer, sub.ID, ReviewInput{Action: "archive"})
	assert.ErrorIs(t, err, domain.ErrInvalidAction)
}

func TestLedgerFailureKeepsApproval(t *testing.T) {
	h := newHarness()
	h.ledger.err = errors.New("ledger unavailable")
	sub := h.pending(t, participantW2, "B2")

	got, err := h.wf.Review(context.Background(), reviewer, sub.ID, approve())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, got.Status)
	assert.Equal(t, int64(50), got.AwardedXP)
	assert.Len(t, h.ledger.calls(), 1)

	stored, _ := h.subs.GetByID(context.Background(), sub.ID)
	assert.Equal(t, domain.StatusApproved, stored.Status)
}

func TestLedgerIgnoresRequestCancellation(t *testing.T) {
	h := newHarness()
	sub := h.pending(t, participantW2, "B2")

	var seen error
	h.wf.ledger = ledgerFunc(func(ctx context.Context, _ string, _ int64, _ string) error {
		seen = ctx.Err()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	// The fakes ignore cancellation, so only the award sees the context.
	cancel()
	_, err := h.wf.Review(ctx, reviewer, sub.ID, approve())
	require.NoError(t, err)
	assert.NoError(t, seen)
}

type ledgerFunc func(ctx context.Context, wallet string, amount int64, reason string) error

func (f ledgerFunc) AwardXP(ctx context.Context, wallet string, amount int64, reason string) error {
	return f(ctx, wallet, amount, reason)
}

func TestBulkReviewPartialSuccess(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	a := h.pending(t, participantW1, "B2")
	b := h.pending(t, participantW2, "B2")
	c := h.pending(t, participantW3, "B2")

	_, err := h.wf.Review(ctx, reviewer, b.ID, reject())
	require.NoError(t, err)

	res, err := h.wf.BulkReview(ctx, reviewer, []primitive.ObjectID{a.ID, b.ID, c.ID}, approve())
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{a.ID, c.ID}, res.Succeeded)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, b.ID, res.Failed[0].ID)
	assert.ErrorIs(t, res.Failed[0].Err, domain.ErrAlreadyDecided)
	assert.NotEmpty(t, res.Failed[0].Reason)
	assert.Len(t, h.ledger.calls(), 2)

	stillRejected, _ := h.subs.GetByID(ctx, b.ID)
	assert.Equal(t, domain.StatusRejected, stillRejected.Status)
}

func TestBulkReviewDuplicateIDs(t *testing.T) {
	h := newHarness()
	a := h.pending(t, participantW1, "B2")

	res, err := h.wf.BulkReview(context.Background(), reviewer, []primitive.ObjectID{a.ID, a.ID}, approve())
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{a.ID}, res.Succeeded)
	require.Len(t, res.Failed, 1)
	assert.ErrorIs(t, res.Failed[0].Err, domain.ErrAlreadyDecided)
	assert.Len(t, h.ledger.calls(), 1)
}

func TestBulkReviewRefusals(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	a := h.pending(t, participantW1, "B2")

	_, err := h.wf.BulkReview(ctx, participantW2, []primitive.ObjectID{a.ID}, approve())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, 0, h.subs.gets)

	ids := make([]primitive.ObjectID, MaxBulkReview+1)
	for i := range ids {
		ids[i] = primitive.NewObjectID()
	}
	_, err = h.wf.BulkReview(ctx, reviewer, ids, approve())
	assert.ErrorIs(t, err, domain.ErrBatchTooLarge)

	res, err := h.wf.BulkReview(ctx, reviewer, nil, reject())
	require.NoError(t, err)
	assert.Empty(t, res.Succeeded)
	assert.Empty(t, res.Failed)
}

func TestCreateValidation(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	otherWallet := h.imageAsset(walletW2, "B1")
	otherBounty := h.imageAsset(walletW1, "B2")
	video := h.assets.put(domain.MediaAsset{OwnerWallet: walletW1, BountyID: "B1", Kind: domain.MediaVideo, ObjectKey: "v"})
	missing := primitive.NewObjectID()

	cases := []struct {
		name string
		who  domain.Identity
		in   CreateSubmissionInput
		want error
	}{
		{"no wallet", reviewer, CreateSubmissionInput{BountyID: "B2", Text: "x"}, domain.ErrInvalidWallet},
		{"unknown bounty", participantW1, CreateSubmissionInput{BountyID: "nope", Text: "x"}, domain.ErrBountyNotFound},
		{"hidden bounty", participantW1, CreateSubmissionInput{BountyID: "hidden", Text: "x"}, domain.ErrBountyNotActive},
		{"expired bounty", participantW1, CreateSubmissionInput{BountyID: "expired", Text: "x"}, domain.ErrBountyNotActive},
		{"completed bounty", participantW1, CreateSubmissionInput{BountyID: "completed", Text: "x"}, domain.ErrBountyNotActive},
		{"media required", participantW1, CreateSubmissionInput{BountyID: "B1", Text: "x"}, domain.ErrMediaRequired},
		{"asset of another wallet", participantW1, CreateSubmissionInput{BountyID: "B1", Text: "x", MediaAssetID: &otherWallet}, domain.ErrMediaOwnership},
		{"asset of another bounty", participantW1, CreateSubmissionInput{BountyID: "B1", Text: "x", MediaAssetID: &otherBounty}, domain.ErrMediaOwnership},
		{"kind not allowed", participantW1, CreateSubmissionInput{BountyID: "B1", Text: "x", MediaAssetID: &video}, domain.ErrMediaKindNotAllowed},
		{"unknown asset", participantW1, CreateSubmissionInput{BountyID: "B1", Text: "x", MediaAssetID: &missing}, domain.ErrMediaNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.wf.Create(ctx, tc.who, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Zero(t, h.subs.count())
}

func TestCreateRejectsAttachedAsset(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	assetID := h.imageAsset(walletW1, "B1")
	require.NoError(t, h.assets.MarkAttached(ctx, assetID, primitive.NewObjectID()))

	_, err := h.wf.Create(ctx, participantW1, CreateSubmissionInput{BountyID: "B1", Text: "done", MediaAssetID: &assetID})
	assert.ErrorIs(t, err, domain.ErrMediaAttached)
}

func TestCounterFailureDoesNotBlockCreate(t *testing.T) {
	h := newHarness()
	h.counter.err = errors.New("redis down")
	sub, err := h.wf.Create(context.Background(), participantW2, CreateSubmissionInput{BountyID: "B2", Text: "done"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, sub.Status)
}

func TestUpvote(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	sub := h.pending(t, participantW1, "B2")

	_, err := h.wf.Upvote(ctx, participantW1, sub.ID)
	assert.ErrorIs(t, err, domain.ErrSelfUpvote)

	got, err := h.wf.Upvote(ctx, participantW2, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Upvotes)

	_, err = h.wf.Upvote(ctx, participantW2, sub.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyUpvoted)

	_, err = h.wf.Upvote(ctx, participantW3, primitive.NewObjectID())
	assert.ErrorIs(t, err, domain.ErrSubmissionNotFound)

	stored, _ := h.subs.GetByID(ctx, sub.ID)
	assert.Equal(t, int64(1), stored.Upvotes)
}

func TestUpvoteSucceedsWhenCountBumpFails(t *testing.T) {
	h := newHarness()
	m := metrics.New(prometheus.NewRegistry())
	h.wf.metrics = m
	ctx := context.Background()
	sub := h.pending(t, participantW1, "B2")
	h.subs.incErr = errors.New("write conflict")

	got, err := h.wf.Upvote(ctx, participantW2, sub.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Upvotes)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterFailures))

	// The vote itself was recorded, so a retry is a duplicate, not a second try.
	h.subs.incErr = nil
	_, err = h.wf.Upvote(ctx, participantW2, sub.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyUpvoted)
}

func TestMediaRoundTrip(t *testing.T) {
	h := newHarness()
	store := newFakeStorage()
	defer store.Close()
	ctx := context.Background()

	ing := NewMediaIngestor(store, h.assets, MediaLimits{ImageMaxBytes: 1 << 20, VideoMaxBytes: 2 << 20, UploadTimeout: time.Second}, nil, nil)
	body := pngBytes(128)
	asset, err := ing.Ingest(ctx, participantW1, "B1", MediaUpload{
		FileName:    "proof.png",
		ContentType: "image/png",
		Size:        int64(len(body)),
		Body:        bytes.NewReader(body),
	})
	require.NoError(t, err)

	sub, err := h.wf.Create(ctx, participantW1, CreateSubmissionInput{BountyID: "B1", Text: "done", MediaAssetID: &asset.ID})
	require.NoError(t, err)

	h.useStorage(store)
	q := h.query()
	res, err := q.Search(ctx, reviewer, SearchQuery{Filter: repository.SubmissionFilter{BountyID: "B1"}})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, sub.ID, res.Items[0].ID)
	require.NotNil(t, res.Items[0].Media)

	resp, err := http.Get(res.Items[0].Media.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func fetch(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, b
}

func TestMediaLinksOutliveIssuedURLs(t *testing.T) {
	h := newHarness()
	store := newFakeStorage()
	defer store.Close()
	store.ttl = time.Hour
	h.useStorage(store)
	ctx := context.Background()

	ing := NewMediaIngestor(store, h.assets, MediaLimits{ImageMaxBytes: 1 << 20, VideoMaxBytes: 2 << 20, UploadTimeout: time.Second}, nil, nil)
	body := pngBytes(256)
	asset, err := ing.Ingest(ctx, participantW1, "B1", MediaUpload{
		FileName:    "proof.png",
		ContentType: "image/png",
		Size:        int64(len(body)),
		Body:        bytes.NewReader(body),
	})
	require.NoError(t, err)

	sub, err := h.wf.Create(ctx, participantW1, CreateSubmissionInput{BountyID: "B1", Text: "done", MediaAssetID: &asset.ID})
	require.NoError(t, err)
	require.NotNil(t, sub.Media)
	issued := sub.Media.URL
	code, _ := fetch(t, issued)
	require.Equal(t, http.StatusOK, code)

	store.advance(8 * 24 * time.Hour)
	code, _ = fetch(t, issued)
	require.Equal(t, http.StatusForbidden, code, "the link handed out at create time has expired")

	res, err := h.query().Search(ctx, reviewer, SearchQuery{Filter: repository.SubmissionFilter{BountyID: "B1"}})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	require.NotNil(t, res.Items[0].Media)
	code, got := fetch(t, res.Items[0].Media.URL)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, body, got)

	mine, err := h.query().BatchLookup(ctx, participantW1, []string{"B1"})
	require.NoError(t, err)
	require.NotNil(t, mine["B1"].Media)
	code, _ = fetch(t, mine["B1"].Media.URL)
	assert.Equal(t, http.StatusOK, code)

	reviewed, err := h.wf.Review(ctx, reviewer, sub.ID, approve())
	require.NoError(t, err)
	code, _ = fetch(t, reviewed.Media.URL)
	assert.Equal(t, http.StatusOK, code)

	var buf bytes.Buffer
	require.NoError(t, h.exporter().Export(ctx, reviewer, repository.SubmissionFilter{BountyID: "B1"}, "", &buf))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	code, _ = fetch(t, rows[1][8])
	assert.Equal(t, http.StatusOK, code)
}

func TestMediaLinkFailureKeepsSubmission(t *testing.T) {
	h := newHarness()
	h.useStorage(brokenLinks{})
	ctx := context.Background()
	assetID := h.imageAsset(walletW1, "B1")

	sub, err := h.wf.Create(ctx, participantW1, CreateSubmissionInput{BountyID: "B1", Text: "done", MediaAssetID: &assetID})
	require.NoError(t, err)
	require.NotNil(t, sub.Media)
	assert.Empty(t, sub.Media.URL)
	assert.Equal(t, "submissions/"+walletW1+"/B1/x.png", sub.Media.ObjectKey)
}

type brokenLinks struct{ cdnStorage }

func (brokenLinks) ObjectURL(context.Context, string) (string, error) {
	return "", errors.New("presign: no credentials")
}
