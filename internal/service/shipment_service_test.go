package service

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waste-tracking-api-server/internal/apperrors"
	"waste-tracking-api-server/internal/events"
	"waste-tracking-api-server/internal/models"
	"waste-tracking-api-server/internal/shipment"
	"waste-tracking-api-server/internal/store"
)

var (
	admin       = models.Actor{UserID: "u-admin", Email: "admin@example.com", Role: models.RoleAdmin}
	generator   = models.Actor{UserID: "u-gen", Email: "gen@example.com", Role: models.RoleGenerator, CompanyID: "gen-1"}
	transporter = models.Actor{UserID: "u-trn", Email: "trn@example.com", Role: models.RoleTransporter, CompanyID: "trn-1"}
	recycler    = models.Actor{UserID: "u-rec", Email: "rec@example.com", Role: models.RoleRecycler, CompanyID: "rec-1"}
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.LifecycleEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, ev events.LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type change struct{ table, changeType, id string }

type recordingNotifier struct {
	mu      sync.Mutex
	changes []change
}

func (n *recordingNotifier) Notify(ctx context.Context, table, changeType, recordID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change{table, changeType, recordID})
}

type fakeStorage struct {
	keys []string
	err  error
}

func (f *fakeStorage) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	return "https://cdn.example.com/" + key, nil
}

type fixture struct {
	store    *store.MemoryStore
	clock    *testClock
	pub      *recordingPublisher
	notifier *recordingNotifier
	storage  *fakeStorage
	svc      *ShipmentService
}

func newFixture(t *testing.T, policy shipment.TransitionPolicy) *fixture {
	t.Helper()
	f := &fixture{
		store:    store.NewMemoryStore(),
		clock:    &testClock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)},
		pub:      &recordingPublisher{},
		notifier: &recordingNotifier{},
		storage:  &fakeStorage{},
	}
	f.svc = NewShipmentService(ShipmentDeps{
		Shipments:      f.store,
		Documents:      f.store,
		Storage:        f.storage,
		Publisher:      f.pub,
		Notifier:       f.notifier,
		Now:            f.clock.Now,
		Policy:         policy,
		ApprovalWindow: 48 * time.Hour,
	})
	return f
}

func draftShipment() *models.Shipment {
	return &models.Shipment{
		GeneratorCompanyID:   "gen-1",
		TransporterCompanyID: "trn-1",
		RecyclerCompanyID:    "rec-1",
		WasteTypeID:          "plastic",
		Quantity:             models.Quantity{Unit: "kg", Value: 120},
		PickupLocation:       "Factory A",
		DeliveryLocation:     "Plant B",
	}
}

func (f *fixture) create(t *testing.T) *models.Shipment {
	t.Helper()
	sh := draftShipment()
	require.NoError(t, f.svc.Create(context.Background(), sh, false, generator))
	return sh
}

func TestCreateShipment(t *testing.T) {
	f := newFixture(t, shipment.PolicyStrict)
	sh := f.create(t)

	assert.Regexp(t, regexp.MustCompile(`^SH\d{9}$`), sh.ShipmentNumber)
	assert.Equal(t, models.StatusRegistered, sh.Status)
	require.Len(t, sh.StatusHistory, 1)
	assert.Equal(t, "u-gen", sh.StatusHistory[0].ActorID)
	assert.Equal(t, models.ApprovalPending, sh.Approval.OverallStatus)
	assert.Equal(t, f.clock.Now().Add(48*time.Hour), sh.Approval.AutoApprovalDeadline)
	assert.Equal(t, []string{events.TypeShipmentCreated}, f.pub.types())
	assert.Equal(t, []change{{models.TableShipments, models.ChangeInsert, sh.ID.Hex()}}, f.notifier.changes)

	draft := draftShipment()
	require.NoError(t, f.svc.Create(context.Background(), draft, true, admin))
	assert.Equal(t, models.StatusPending, draft.Status)
}

func TestCreateShipmentRejects(t *testing.T) {
	f := newFixture(t, shipment.PolicyStrict)

	other := generator
	other.CompanyID = "gen-2"
	err := f.svc.Create(context.Background(), draftShipment(), false, other)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	err = f.svc.Create(context.Background(), draftShipment(), false, recycler)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	bad := draftShipment()
	bad.WasteTypeID = ""
	bad.PickupLocation = " "
	err = f.svc.Create(context.Background(), bad, false, admin)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Contains(t, err.Error(), "wasteTypeID")

	neg := draftShipment()
	neg.Quantity.Value = -1
	assert.ErrorIs(t, f.svc.Create(context.Background(), neg, false, admin), apperrors.ErrValidation)
}

func TestDriverCreatesOwnShipment(t *testing.T) {
	f := newFixture(t, shipment.PolicyStrict)
	driver := models.Actor{UserID: "u-drv", Role: models.RoleDriver, DriverID: "drv-1"}
	sh := draftShipment()
	require.NoError(t, f.svc.Create(context.Background(), sh, false, driver))
	assert.Equal(t, "drv-1", sh.DriverID)

	got, err := f.svc.Get(context.Background(), sh.ShipmentNumber, driver)
	require.NoError(t, err)
	assert.Equal(t, sh.ID, got.ID)
}

func TestAdvanceFollowsPipeline(t *testing.T) {
	f := newFixture(t, shipment.PolicyStrict)
	sh := f.create(t)
	ctx := context.Background()

	got, err := f.svc.Advance(ctx, sh.ID.Hex(), "in_transit", "picked up", transporter)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInTransit, got.Status)
	assert.Equal(t, int64(1), got.Version)

	_, err = f.svc.Advance(ctx, sh.ID.Hex(), "sorting", "", transporter)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	_, err = f.svc.Advance(ctx, sh.ID.Hex(), "lost", "", transporter)
	assert.ErrorIs(t, err, apperrors.ErrInvalidStatus)

	_, err = f.svc.Advance(ctx, sh.ID.Hex(), "delivery", "", generator)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = f.svc.Advance(ctx, sh.ShipmentNumber, "delivery", "", recycler)
	require.NoError(t, err)

	history, err := f.svc.History(ctx, sh.ID.Hex(), generator)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, models.StatusRegistered, history[0].Status)
	assert.Equal(t, "picked up", history[1].Notes)
	assert.Equal(t, "rec@example.com", history[2].ActorEmail)

	assert.Equal(t, []string{
		events.TypeShipmentCreated,
		events.TypeStatusChanged,
		events.TypeStatusChanged,
	}, f.pub.types())
}

func TestAdvancePermissive(t *testing.T) {
	f := newFixture(t, shipment.PolicyPermissive)
	sh := f.create(t)

	got, err := f.svc.Advance(context.Background(), sh.ID.Hex(), "completed", "", admin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
}

func TestAdvanceMissingShipment(t *testing.T) {
	f := newFixture(t, shipment.PolicyStrict)
	_, err := f.svc.Advance(context.Background(), "SH000000000", "in_transit", "", admin)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// racyStore lets another writer bump the version right before the first
// status write, forcing one retry.
type racyStore struct {
	*store.MemoryStore
	raced bool
}

func (r *racyStore) AppendStatus(ctx context.Context, s *models.Shipment, expected int64, entry models.StatusHistoryEntry) error {
	if !r.raced {
		r.raced = true
		other, err := r.GetShipment(ctx, s.ID.Hex())
		if err != nil {
			return err
		}
		if err := r.UpdateApproval(ctx, other, other.Version); err != nil {
			return err
		}
	}
	return r.MemoryStore.AppendStatus(ctx, s, expected, entry)
}

func TestAdvanceRetriesOnConflict(t *testing.T) {
	f := newFixture(t, shipment.PolicyStrict)
	sh := f.create(t)
	racy := &racyStore{MemoryStore: f.store}
	f.svc.deps.Shipments = racy

	got, err := f.svc.Advance(context.Background(), sh.ID.Hex(), "in_transit", "", transporter)
	require.NoError(t, err)
	assert.True(t, racy.raced)
	assert.Equal(t, int64(2), got.Version)

	stored, err := f.store.GetShipment(context.Background(), sh.ID.Hex())
	require.NoError(t, err)
	assert.Len(t, stored.StatusHistory, 2)
}

type failingStore struct {
	*store.MemoryStore
}

func (failingStore) AppendStatus(ctx context.Context, s *models.Shipment, expected int64, entry models.StatusHistoryEntry) error {
	return apperrors.ErrPersistence
}

func TestAdvancePersistenceErrorLeavesShipment(t *testing.T) {
	f := newFixture(t, shipment.PolicyStrict)
	sh := f.create(t)
	f.svc.deps.Shipments = failingStore{f.store}

	_, err := f.svc.Advance(context.Background(), sh.ID.Hex(), "in_transit", "", transporter)
	assert.ErrorIs(t, err, apperrors.ErrPersistence)

	stored, err := f.store.GetShipment(context.Background(), sh.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.StatusRegistered, stored.Status)
	assert.Len(t, stored.StatusHistory, 1)
}

func TestDecideBothApprove(t *testing.T) {
	f := newFixture(t, shipment.PolicyStrict)
	sh := f.create(t)
	ctx := context.Background()

	got, err := f.svc.Decide(ctx, sh.ID.Hex(), "generator", true, "", generator)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, got.Approval.OverallStatus)

	got, err = f.svc.Decide(ctx, sh.ID.Hex(), "recycler", true, "", recycler)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, got.Approval.OverallStatus)
	assert.Equal(t, "u-rec", got.Approval.Recycler.ApprovedBy)

	_, err = f.svc.Decide(ctx, sh.ID.Hex(), "recycler", false, "changed mind", recycler)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyDecided)
}

func TestDecideRejects(t *testing.T) {
	f := newFixture(t, shipment.PolicyStrict)
	sh := f.create(t)
	ctx := context.Background()

	_, err := f.svc.Decide(ctx, sh.ID.Hex(), "transporter", true, "", transporter)
	assert.ErrorIs(t, err, apperrors.ErrInvalidApprovalType)

	_, err = f.svc.Decide(ctx, sh.ID.Hex(), "generator", true, "", recycler)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = f.svc.Decide(ctx, sh.ID.Hex(), "generator", true, "", admin)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = f.svc.Decide(ctx, sh.ID.Hex(), "generator", false, "   ", generator)
	assert.ErrorIs(t, err, apperrors.ErrMissingReason)

	got, err := f.svc.Decide(ctx, sh.ID.Hex(), "generator", false, "wrong weight", generator)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, got.Approval.OverallStatus)
	assert.Equal(t, "wrong weight", got.Approval.Generator.RejectionReason)

	_, err = f.svc.Decide(ctx, sh.ID.Hex(), "recycler", true, "", recycler)
	assert.ErrorIs(t, err, apperrors.ErrApprovalClosed)

	f.clock.Advance(72 * time.Hour)
	got, err = f.svc.Get(ctx, sh.ID.Hex(), admin)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, got.Approval.OverallStatus)
	assert.Equal(t, models.ApprovalPending, got.Approval.Recycler.Status)
}

func TestDecideAfterDeadline(t *testing.T) {
	f := newFixture(t, shipment.PolicyStrict)
	sh := f.create(t)
	ctx := context.Background()

	_, err := f.svc.Decide(ctx, sh.ID.Hex(), "generator", true, "", generator)
	require.NoError(t, err)

	f.clock.Advance(48 * time.Hour)
	_, err = f.svc.Decide(ctx, sh.ID.Hex(), "recycler", false, "late", recycler)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyDecided)

	stored, err := f.store.GetShipment(ctx, sh.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, stored.Approval.OverallStatus)
	assert.Equal(t, models.ApprovalApproved, stored.Approval.Generator.Status)
	assert.Equal(t, models.ApprovalAutoApproved, stored.Approval.Recycler.Status)
	assert.Equal(t, shipment.SystemActor, stored.Approval.Recycler.ApprovedBy)
	assert.Contains(t, f.pub.types(), events.TypeAutoApproved)
}

func TestGetResolvesDeadlineLazily(t *testing.T) {
	f := newFixture(t, shipment.PolicyStrict)
	sh := f.create(t)
	ctx := context.Background()

	f.clock.Advance(47 * time.Hour)
	got, err := f.svc.Get(ctx, sh.ID.Hex(), recycler)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, got.Approval.OverallStatus)

	f.clock.Advance(time.Hour)
	got, err = f.svc.Get(ctx, sh.ID.Hex(), recycler)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, got.Approval.OverallStatus)

	stored, err := f.store.GetShipment(ctx, sh.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, stored.Approval.OverallStatus)
	assert.Equal(t, got.Version, stored.Version)
}

func TestGetHidesForeignShipments(t *testing.T) {
	f := newFixture(t, shipment.PolicyStrict)
	sh := f.create(t)

	stranger := models.Actor{UserID: "u-x", Role: models.RoleGenerator, CompanyID: "gen-9"}
	_, err := f.svc.Get(context.Background(), sh.ID.Hex(), stranger)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAdvanceHidesForeignShipments(t *testing.T) {
	f := newFixture(t, shipment.PolicyStrict)
	sh := f.create(t)

	for _, stranger := range []models.Actor{
		{UserID: "u-t9", Role: models.RoleTransporter, CompanyID: "trn-9"},
		{UserID: "u-r9", Role: models.RoleRecycler, CompanyID: "rec-9"},
	} {
		_, err := f.svc.Advance(context.Background(), sh.ID.Hex(), "in_transit", "", stranger)
		assert.ErrorIs(t, err, apperrors.ErrNotFound, stranger.Role)
	}

	got, err := f.store.GetShipment(context.Background(), sh.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.StatusRegistered, got.Status)
	assert.Len(t, got.StatusHistory, 1)
}

func TestListScopesByCompany(t *testing.T) {
	f := newFixture(t, shipment.PolicyStrict)
	ctx := context.Background()
	f.create(t)
	other := draftShipment()
	other.GeneratorCompanyID = "gen-2"
	require.NoError(t, f.svc.Create(ctx, other, false, admin))

	all, err := f.svc.List(ctx, models.ShipmentFilter{}, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	own, err := f.svc.List(ctx, models.ShipmentFilter{CompanyID: "gen-2"}, generator)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "gen-1", own[0].GeneratorCompanyID)

	none, err := f.svc.List(ctx, models.ShipmentFilter{}, models.Actor{Role: models.RoleGenerator})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSweepAutoApprovals(t *testing.T) {
	f := newFixture(t, shipment.PolicyStrict)
	ctx := context.Background()
	due := f.create(t)
	rejected := f.create(t)
	_, err := f.svc.Decide(ctx, rejected.ID.Hex(), "recycler", false, "contaminated", recycler)
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	fresh := f.create(t)

	f.clock.Advance(25 * time.Hour)
	n, err := f.svc.SweepAutoApprovals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.store.GetShipment(ctx, due.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, got.Approval.OverallStatus)

	got, err = f.store.GetShipment(ctx, rejected.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, got.Approval.OverallStatus)

	got, err = f.store.GetShipment(ctx, fresh.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, got.Approval.OverallStatus)

	n, err = f.svc.SweepAutoApprovals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t, shipment.PolicyStrict)
	f.pub.err = errors.New("broker down")
	sh := f.create(t)

	_, err := f.svc.Advance(context.Background(), sh.ID.Hex(), "in_transit", "", transporter)
	assert.NoError(t, err)
}

func TestAttachDocument(t *testing.T) {
	f := newFixture(t, shipment.PolicyStrict)
	sh := f.create(t)
	ctx := context.Background()

	doc, err := f.svc.AttachDocument(ctx, sh.ShipmentNumber, models.DocumentWeighingTicket, "ticket.pdf", "application/pdf", strings.NewReader("%PDF"), transporter)
	require.NoError(t, err)
	assert.Equal(t, sh.ID.Hex(), doc.ShipmentID)
	assert.NotEmpty(t, doc.Media.ID)
	assert.True(t, strings.HasPrefix(doc.Media.URL, "https://cdn.example.com/shipments/"+sh.ID.Hex()+"/weighing_ticket/"))

	docs, err := f.svc.Documents(ctx, sh.ID.Hex(), generator)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "u-trn", docs[0].UploadedBy)
	assert.Equal(t, doc.Media.ID, docs[0].Media.ID)

	_, err = f.svc.AttachDocument(ctx, sh.ID.Hex(), "selfie", "a.jpg", "image/jpeg", strings.NewReader(""), transporter)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	f.storage.err = errors.New("s3 down")
	_, err = f.svc.AttachDocument(ctx, sh.ID.Hex(), models.DocumentPhoto, "a.jpg", "image/jpeg", strings.NewReader(""), transporter)
	assert.ErrorIs(t, err, apperrors.ErrPersistence)
}

func TestNewShipmentNumber(t *testing.T) {
	at := time.Unix(1700123456, 0)
	n := NewShipmentNumber(at)
	assert.True(t, strings.HasPrefix(n, "SH123456"), n)
	assert.Len(t, n, 11)
}
