package publication

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"marketplace_backend/internal/common"
	"marketplace_backend/internal/config"
	"marketplace_backend/internal/host"
	"marketplace_backend/internal/listing"
	"marketplace_backend/internal/location"
	"marketplace_backend/internal/projection"
	"marketplace_backend/internal/slot"
	"marketplace_backend/internal/subscription"
)

// MockListingRepository is a mock type for listing.Repository
type MockListingRepository struct {
	mock.Mock
}

func (m *MockListingRepository) Create(ctx context.Context, l *listing.Listing) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *MockListingRepository) FindByID(ctx context.Context, id uuid.UUID) (*listing.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*listing.Listing), args.Error(1)
}

func (m *MockListingRepository) FindByHostID(ctx context.Context, hostID uuid.UUID) ([]listing.Listing, error) {
	args := m.Called(ctx, hostID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]listing.Listing), args.Error(1)
}

func (m *MockListingRepository) Update(ctx context.Context, l *listing.Listing) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *MockListingRepository) WithTx(tx *gorm.DB) listing.Repository {
	return m
}

// MockSlotRepository is a mock type for slot.Repository
type MockSlotRepository struct {
	mock.Mock
}

func (m *MockSlotRepository) Create(ctx context.Context, s *slot.AdvertisingSlot) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSlotRepository) GetByListingID(ctx context.Context, listingID uuid.UUID) (*slot.AdvertisingSlot, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*slot.AdvertisingSlot), args.Error(1)
}

func (m *MockSlotRepository) Delete(ctx context.Context, s *slot.AdvertisingSlot) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSlotRepository) CountByHostID(ctx context.Context, hostID uuid.UUID) (int64, error) {
	args := m.Called(ctx, hostID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSlotRepository) ListExpiringBetween(ctx context.Context, start, end time.Time) ([]slot.AdvertisingSlot, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]slot.AdvertisingSlot), args.Error(1)
}

func (m *MockSlotRepository) ListExpiredBefore(ctx context.Context, t time.Time) ([]slot.AdvertisingSlot, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]slot.AdvertisingSlot), args.Error(1)
}

func (m *MockSlotRepository) SetDoNotRenew(ctx context.Context, listingID, slotID uuid.UUID, value bool) error {
	args := m.Called(ctx, listingID, slotID, value)
	return args.Error(0)
}

func (m *MockSlotRepository) WithTx(tx *gorm.DB) slot.Repository {
	return m
}

// MockHostRepository is a mock type for host.Repository
type MockHostRepository struct {
	mock.Mock
}

func (m *MockHostRepository) Create(ctx context.Context, h *host.Host) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *MockHostRepository) FindByID(ctx context.Context, id uuid.UUID) (*host.Host, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*host.Host), args.Error(1)
}

func (m *MockHostRepository) FindByFirebaseUID(ctx context.Context, uid string) (*host.Host, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*host.Host), args.Error(1)
}

func (m *MockHostRepository) Update(ctx context.Context, h *host.Host) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

// MockSubscriptionService is a mock type for subscription.Service
type MockSubscriptionService struct {
	mock.Mock
}

func (m *MockSubscriptionService) CanHostPublishListing(ctx context.Context, hostID uuid.UUID) (*subscription.PublishDecision, error) {
	args := m.Called(ctx, hostID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.PublishDecision), args.Error(1)
}

func (m *MockSubscriptionService) CreateAdvertisingSlot(ctx context.Context, params subscription.CreateSlotParams) (*slot.AdvertisingSlot, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*slot.AdvertisingSlot), args.Error(1)
}

func (m *MockSubscriptionService) GetSlotByListingID(ctx context.Context, listingID uuid.UUID) (*slot.AdvertisingSlot, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*slot.AdvertisingSlot), args.Error(1)
}

func (m *MockSubscriptionService) SetSlotDoNotRenew(ctx context.Context, listingID, slotID uuid.UUID, value bool) error {
	args := m.Called(ctx, listingID, slotID, value)
	return args.Error(0)
}

// MockProjectionWriter is a mock type for ProjectionWriter
type MockProjectionWriter struct {
	mock.Mock
}

func (m *MockProjectionWriter) BuildRows(l *listing.Listing, set location.ResolvedSet, hostVerified bool, slotExpiresAt time.Time) ([]projection.PublicListing, []projection.PublicListingMedia, error) {
	args := m.Called(l, set, hostVerified, slotExpiresAt)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]projection.PublicListing), args.Get(1).([]projection.PublicListingMedia), args.Error(2)
}

func (m *MockProjectionWriter) Create(ctx context.Context, tx *gorm.DB, rows []projection.PublicListing, media []projection.PublicListingMedia) error {
	args := m.Called(ctx, tx, rows, media)
	return args.Error(0)
}

func (m *MockProjectionWriter) DeleteForListing(ctx context.Context, tx *gorm.DB, listingID uuid.UUID) ([]string, error) {
	args := m.Called(ctx, tx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockProjectionWriter) DeleteRowsForLocations(ctx context.Context, listingID uuid.UUID, locationIDs []string) error {
	args := m.Called(ctx, listingID, locationIDs)
	return args.Error(0)
}

func (m *MockProjectionWriter) DeleteMediaForListing(ctx context.Context, listingID uuid.UUID) error {
	args := m.Called(ctx, listingID)
	return args.Error(0)
}

func (m *MockProjectionWriter) MirrorRows(ctx context.Context, rows []projection.PublicListing) {
	m.Called(ctx, rows)
}

func (m *MockProjectionWriter) MirrorRemove(ctx context.Context, listingID uuid.UUID) {
	m.Called(ctx, listingID)
}

// MockLocationResolver is a mock type for LocationResolver
type MockLocationResolver struct {
	mock.Mock
}

func (m *MockLocationResolver) Resolve(ctx context.Context, l *listing.Listing) (location.ResolvedSet, error) {
	args := m.Called(ctx, l)
	return args.Get(0).(location.ResolvedSet), args.Error(1)
}

// MockCounterMaintainer is a mock type for CounterMaintainer
type MockCounterMaintainer struct {
	mock.Mock
}

func (m *MockCounterMaintainer) IncrementAll(ctx context.Context, locationIDs []string) common.BatchReport {
	args := m.Called(ctx, locationIDs)
	return args.Get(0).(common.BatchReport)
}

func (m *MockCounterMaintainer) DecrementAll(ctx context.Context, locationIDs []string) common.BatchReport {
	args := m.Called(ctx, locationIDs)
	return args.Get(0).(common.BatchReport)
}

// MockLocationRepository is a mock type for location.Repository
type MockLocationRepository struct {
	mock.Mock
}

func (m *MockLocationRepository) Create(ctx context.Context, l *location.Location) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *MockLocationRepository) FindCanonical(ctx context.Context, locationID string) (*location.Location, error) {
	args := m.Called(ctx, locationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*location.Location), args.Error(1)
}

func (m *MockLocationRepository) FindVariants(ctx context.Context, locationID string) ([]location.Location, error) {
	args := m.Called(ctx, locationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]location.Location), args.Error(1)
}

func (m *MockLocationRepository) IncrementListings(ctx context.Context, locationID string) error {
	args := m.Called(ctx, locationID)
	return args.Error(0)
}

func (m *MockLocationRepository) DecrementListings(ctx context.Context, locationID string) error {
	args := m.Called(ctx, locationID)
	return args.Error(0)
}

func (m *MockLocationRepository) WithTx(tx *gorm.DB) location.Repository {
	return m
}

// MockNotificationService is a mock type for notification.Service
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) SendEmail(ctx context.Context, templateName, recipient, language string, vars map[string]string) error {
	args := m.Called(ctx, templateName, recipient, language, vars)
	return args.Error(0)
}

func (m *MockNotificationService) SendPush(ctx context.Context, hostID uuid.UUID, templateName, language string, vars map[string]string) error {
	args := m.Called(ctx, hostID, templateName, language, vars)
	return args.Error(0)
}

// fakeTxRunner runs the transaction body directly; the tx-bound mocks just
// return themselves from WithTx.
type fakeTxRunner struct{}

func (fakeTxRunner) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

// stubFlagStore is a fixed-value flag.Store.
type stubFlagStore struct {
	enabled bool
}

func (s *stubFlagStore) IsAutoPublishEnabled(ctx context.Context) bool { return s.enabled }
func (s *stubFlagStore) Refresh(ctx context.Context) error             { return nil }
func (s *stubFlagStore) SetAutoPublish(ctx context.Context, enabled bool) error {
	s.enabled = enabled
	return nil
}

// Test Suite Setup
type PublicationServiceTestSuite struct {
	service      Service
	mockListings *MockListingRepository
	mockSlots    *MockSlotRepository
	mockHosts    *MockHostRepository
	mockSubs     *MockSubscriptionService
	flags        *stubFlagStore
	mockWriter   *MockProjectionWriter
	mockResolver *MockLocationResolver
	mockCounters *MockCounterMaintainer
	mockLocRepo  *MockLocationRepository
	mockNotifier *MockNotificationService
	cfg          *config.Config
}

func setupPublicationServiceTestSuite(t *testing.T, autoPublish bool) *PublicationServiceTestSuite {
	ts := &PublicationServiceTestSuite{}
	ts.mockListings = new(MockListingRepository)
	ts.mockSlots = new(MockSlotRepository)
	ts.mockHosts = new(MockHostRepository)
	ts.mockSubs = new(MockSubscriptionService)
	ts.flags = &stubFlagStore{enabled: autoPublish}
	ts.mockWriter = new(MockProjectionWriter)
	ts.mockResolver = new(MockLocationResolver)
	ts.mockCounters = new(MockCounterMaintainer)
	ts.mockLocRepo = new(MockLocationRepository)
	ts.mockNotifier = new(MockNotificationService)
	ts.cfg = &config.Config{DefaultPlanDurationDays: 30}

	ts.service = NewService(
		fakeTxRunner{},
		ts.mockListings,
		ts.mockSlots,
		ts.mockHosts,
		ts.mockSubs,
		ts.flags,
		ts.mockWriter,
		ts.mockResolver,
		ts.mockCounters,
		ts.mockLocRepo,
		ts.mockNotifier,
		ts.cfg,
		zap.NewNop(),
	)
	return ts
}

func placeID(id string) *string { return &id }

func reviewableListing(hostID uuid.UUID) *listing.Listing {
	return &listing.Listing{
		BaseModel: common.BaseModel{ID: uuid.New()},
		HostID:    hostID,
		Title:     "Cozy loft",
		Status:    listing.StatusInReview,
		PlaceID:   placeID("place-1"),
	}
}

func activeSubscription() *subscription.HostSubscription {
	return &subscription.HostSubscription{
		BaseModel: common.BaseModel{ID: uuid.New()},
		PlanID:    uuid.New(),
		Plan:      subscription.Plan{DurationDays: 30, MaxActiveSlots: 3},
		Status:    subscription.StatusActive,
	}
}

// --- Approve ---

func TestService_Approve_AutoPublishGoesOnline(t *testing.T) {
	ts := setupPublicationServiceTestSuite(t, true)
	ctx := context.Background()

	hostID := uuid.New()
	l := reviewableListing(hostID)
	sub := activeSubscription()
	hostRec := &host.Host{BaseModel: common.BaseModel{ID: hostID}, Email: "h@example.com", Language: "en", IsVerified: true}

	set := location.ResolvedSet{PlaceID: placeID("place-1")}
	rows := []projection.PublicListing{{ListingID: l.ID, LocationID: "place-1"}}
	media := []projection.PublicListingMedia{{ListingID: l.ID, ImageIndex: 0, IsCoverImage: true}}

	ts.mockListings.On("FindByID", ctx, l.ID).Return(l, nil)
	ts.mockSubs.On("CanHostPublishListing", ctx, hostID).
		Return(&subscription.PublishDecision{CanPublish: true, Subscription: sub}, nil)
	ts.mockResolver.On("Resolve", ctx, l).Return(set, nil)
	ts.mockHosts.On("FindByID", ctx, hostID).Return(hostRec, nil)
	ts.mockWriter.On("BuildRows", l, set, true, mock.AnythingOfType("time.Time")).Return(rows, media, nil)
	ts.mockSlots.On("Create", ctx, mock.AnythingOfType("*slot.AdvertisingSlot")).Return(nil)
	ts.mockWriter.On("Create", ctx, (*gorm.DB)(nil), rows, media).Return(nil)
	ts.mockListings.On("Update", ctx, l).Return(nil)
	ts.mockCounters.On("IncrementAll", ctx, []string{"place-1"}).Return(common.BatchReport{Succeeded: 1})
	ts.mockNotifier.On("SendEmail", ctx, "listing_published", "h@example.com", "en", mock.Anything).Return(nil)
	ts.mockNotifier.On("SendPush", ctx, hostID, "listing_published", "en", mock.Anything).Return(nil)

	got, err := ts.service.Approve(ctx, l.ID, true)

	assert.NoError(t, err)
	assert.Equal(t, listing.StatusOnline, got.Status)
	assert.NotNil(t, got.SlotExpiresAt)
	assert.NotNil(t, got.FirstReviewCompletedAt)
	assert.True(t, got.IsVerified)
	ts.mockSlots.AssertCalled(t, "Create", ctx, mock.AnythingOfType("*slot.AdvertisingSlot"))
	ts.mockNotifier.AssertExpectations(t)
}

func TestService_Approve_NoAllowanceFallsBackToApproved(t *testing.T) {
	ts := setupPublicationServiceTestSuite(t, true)
	ctx := context.Background()

	hostID := uuid.New()
	l := reviewableListing(hostID)
	hostRec := &host.Host{BaseModel: common.BaseModel{ID: hostID}, Email: "h@example.com", Language: "en"}

	ts.mockListings.On("FindByID", ctx, l.ID).Return(l, nil)
	ts.mockSubs.On("CanHostPublishListing", ctx, hostID).
		Return(&subscription.PublishDecision{CanPublish: false, Reason: "all advertising slots of the plan are in use"}, nil)
	ts.mockListings.On("Update", ctx, l).Return(nil)
	ts.mockHosts.On("FindByID", ctx, hostID).Return(hostRec, nil)
	ts.mockNotifier.On("SendEmail", ctx, "listing_approved", "h@example.com", "en", mock.Anything).Return(nil)
	ts.mockNotifier.On("SendPush", ctx, hostID, "listing_approved", "en", mock.Anything).Return(nil)

	got, err := ts.service.Approve(ctx, l.ID, false)

	assert.NoError(t, err)
	assert.Equal(t, listing.StatusApproved, got.Status)
	assert.Nil(t, got.ActiveSlotID)
	ts.mockSlots.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	ts.mockWriter.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	ts.mockNotifier.AssertExpectations(t)
}

func TestService_Approve_FlagOffSkipsAllowanceCheck(t *testing.T) {
	ts := setupPublicationServiceTestSuite(t, false)
	ctx := context.Background()

	hostID := uuid.New()
	l := reviewableListing(hostID)
	hostRec := &host.Host{BaseModel: common.BaseModel{ID: hostID}, Email: "h@example.com", Language: "en"}

	ts.mockListings.On("FindByID", ctx, l.ID).Return(l, nil)
	ts.mockListings.On("Update", ctx, l).Return(nil)
	ts.mockHosts.On("FindByID", ctx, hostID).Return(hostRec, nil)
	ts.mockNotifier.On("SendEmail", ctx, "listing_approved", "h@example.com", "en", mock.Anything).Return(nil)
	ts.mockNotifier.On("SendPush", ctx, hostID, "listing_approved", "en", mock.Anything).Return(nil)

	got, err := ts.service.Approve(ctx, l.ID, false)

	assert.NoError(t, err)
	assert.Equal(t, listing.StatusApproved, got.Status)
	ts.mockSubs.AssertNotCalled(t, "CanHostPublishListing", mock.Anything, mock.Anything)
}

func TestService_Approve_PublishFailureFallsBack(t *testing.T) {
	ts := setupPublicationServiceTestSuite(t, true)
	ctx := context.Background()

	hostID := uuid.New()
	l := reviewableListing(hostID)
	sub := activeSubscription()
	hostRec := &host.Host{BaseModel: common.BaseModel{ID: hostID}, Email: "h@example.com", Language: "en"}
	set := location.ResolvedSet{PlaceID: placeID("place-1")}

	ts.mockListings.On("FindByID", ctx, l.ID).Return(l, nil)
	ts.mockSubs.On("CanHostPublishListing", ctx, hostID).
		Return(&subscription.PublishDecision{CanPublish: true, Subscription: sub}, nil)
	ts.mockResolver.On("Resolve", ctx, l).Return(set, nil)
	ts.mockHosts.On("FindByID", ctx, hostID).Return(hostRec, nil)
	ts.mockWriter.On("BuildRows", l, set, false, mock.AnythingOfType("time.Time")).
		Return(nil, nil, common.ErrBadRequest.WithDetails("Listing has no ready images to publish."))
	ts.mockListings.On("Update", ctx, l).Return(nil)
	ts.mockNotifier.On("SendEmail", ctx, "listing_approved", "h@example.com", "en", mock.Anything).Return(nil)
	ts.mockNotifier.On("SendPush", ctx, hostID, "listing_approved", "en", mock.Anything).Return(nil)

	got, err := ts.service.Approve(ctx, l.ID, false)

	assert.NoError(t, err)
	assert.Equal(t, listing.StatusApproved, got.Status)
	ts.mockSlots.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_Approve_FirstReviewStampIsNeverOverwritten(t *testing.T) {
	ts := setupPublicationServiceTestSuite(t, false)
	ctx := context.Background()

	hostID := uuid.New()
	original := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := reviewableListing(hostID)
	l.FirstReviewCompletedAt = &original
	hostRec := &host.Host{BaseModel: common.BaseModel{ID: hostID}, Email: "h@example.com", Language: "en"}

	ts.mockListings.On("FindByID", ctx, l.ID).Return(l, nil)
	ts.mockListings.On("Update", ctx, l).Return(nil)
	ts.mockHosts.On("FindByID", ctx, hostID).Return(hostRec, nil)
	ts.mockNotifier.On("SendEmail", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ts.mockNotifier.On("SendPush", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	got, err := ts.service.Approve(ctx, l.ID, false)

	assert.NoError(t, err)
	assert.Equal(t, original, *got.FirstReviewCompletedAt)
}

func TestService_Approve_RejectsWrongStatus(t *testing.T) {
	ts := setupPublicationServiceTestSuite(t, true)
	ctx := context.Background()

	l := reviewableListing(uuid.New())
	l.Status = listing.StatusOnline

	ts.mockListings.On("FindByID", ctx, l.ID).Return(l, nil)

	_, err := ts.service.Approve(ctx, l.ID, false)

	assert.Error(t, err)
	apiErr, ok := common.IsAPIError(err)
	assert.True(t, ok)
	assert.Equal(t, "INVALID_STATE_TRANSITION", apiErr.Code)
	assert.Contains(t, apiErr.Message, "ONLINE")
}

func TestService_Approve_RejectsMissingLocationData(t *testing.T) {
	ts := setupPublicationServiceTestSuite(t, true)
	ctx := context.Background()

	l := reviewableListing(uuid.New())
	l.PlaceID = nil
	l.ManualLocationIDs = nil

	ts.mockListings.On("FindByID", ctx, l.ID).Return(l, nil)

	_, err := ts.service.Approve(ctx, l.ID, false)

	assert.Error(t, err)
	apiErr, ok := common.IsAPIError(err)
	assert.True(t, ok)
	assert.Equal(t, "BAD_REQUEST", apiErr.Code)
}

// --- Unpublish ---

func TestService_Unpublish_RejectsNonOnlineStatus(t *testing.T) {
	ts := setupPublicationServiceTestSuite(t, true)
	ctx := context.Background()

	l := reviewableListing(uuid.New())
	l.Status = listing.StatusApproved

	ts.mockListings.On("FindByID", ctx, l.ID).Return(l, nil)

	_, err := ts.service.Unpublish(ctx, l.ID)

	assert.Error(t, err)
	apiErr, ok := common.IsAPIError(err)
	assert.True(t, ok)
	assert.Equal(t, "INVALID_STATE_TRANSITION", apiErr.Code)
	assert.Contains(t, apiErr.Message, "APPROVED")
	ts.mockWriter.AssertNotCalled(t, "DeleteForListing", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Unpublish_RemovesEverythingAtomically(t *testing.T) {
	ts := setupPublicationServiceTestSuite(t, true)
	ctx := context.Background()

	hostID := uuid.New()
	l := reviewableListing(hostID)
	l.Status = listing.StatusOnline
	slotID := uuid.New()
	l.ActiveSlotID = &slotID
	exp := time.Now().Add(24 * time.Hour)
	l.SlotExpiresAt = &exp
	activeSlot := &slot.AdvertisingSlot{BaseModel: common.BaseModel{ID: slotID}, ListingID: l.ID, HostID: hostID}
	hostRec := &host.Host{BaseModel: common.BaseModel{ID: hostID}, Email: "h@example.com", Language: "en"}

	ts.mockListings.On("FindByID", ctx, l.ID).Return(l, nil)
	ts.mockSlots.On("GetByListingID", ctx, l.ID).Return(activeSlot, nil)
	ts.mockWriter.On("DeleteForListing", ctx, (*gorm.DB)(nil), l.ID).Return([]string{"place-1", "locality-9"}, nil)
	ts.mockSlots.On("Delete", ctx, activeSlot).Return(nil)
	ts.mockLocRepo.On("DecrementListings", ctx, "place-1").Return(nil)
	ts.mockLocRepo.On("DecrementListings", ctx, "locality-9").Return(nil)
	ts.mockListings.On("Update", ctx, l).Return(nil)
	ts.mockWriter.On("MirrorRemove", ctx, l.ID).Return()
	ts.mockHosts.On("FindByID", ctx, hostID).Return(hostRec, nil)
	ts.mockNotifier.On("SendEmail", ctx, "listing_unpublished", "h@example.com", "en", mock.Anything).Return(nil)
	ts.mockNotifier.On("SendPush", ctx, hostID, "listing_unpublished", "en", mock.Anything).Return(nil)

	got, err := ts.service.Unpublish(ctx, l.ID)

	assert.NoError(t, err)
	assert.Equal(t, listing.StatusOffline, got.Status)
	assert.Nil(t, got.ActiveSlotID)
	assert.Nil(t, got.SlotExpiresAt)
	ts.mockWriter.AssertExpectations(t)
	ts.mockSlots.AssertExpectations(t)
	ts.mockLocRepo.AssertExpectations(t)
}

func TestService_Unpublish_ProjectionFailureAbortsTransaction(t *testing.T) {
	ts := setupPublicationServiceTestSuite(t, true)
	ctx := context.Background()

	l := reviewableListing(uuid.New())
	l.Status = listing.StatusOnline

	ts.mockListings.On("FindByID", ctx, l.ID).Return(l, nil)
	ts.mockSlots.On("GetByListingID", ctx, l.ID).Return(nil, nil)
	ts.mockWriter.On("DeleteForListing", ctx, (*gorm.DB)(nil), l.ID).
		Return(nil, errors.New("write failed"))

	_, err := ts.service.Unpublish(ctx, l.ID)

	assert.Error(t, err)
	ts.mockListings.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	ts.mockLocRepo.AssertNotCalled(t, "DecrementListings", mock.Anything, mock.Anything)
}

// --- Expire ---

func dueSlot(hostID, listingID uuid.UUID) *slot.AdvertisingSlot {
	return &slot.AdvertisingSlot{
		BaseModel: common.BaseModel{ID: uuid.New()},
		HostID:    hostID,
		ListingID: listingID,
		ExpiresAt: time.Now().Add(-24 * time.Hour),
	}
}

func TestService_Expire_PastDueInsideGraceIsSkipped(t *testing.T) {
	ts := setupPublicationServiceTestSuite(t, true)
	ctx := context.Background()

	s := dueSlot(uuid.New(), uuid.New())
	s.IsPastDue = true
	s.MarkedForImmediateExpiry = false

	outcome, err := ts.service.Expire(ctx, s)

	assert.NoError(t, err)
	assert.True(t, outcome.Skipped)
	ts.mockListings.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	ts.mockSlots.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestService_Expire_ImmediateExpiryOverridesGrace(t *testing.T) {
	ts := setupPublicationServiceTestSuite(t, true)
	ctx := context.Background()

	hostID := uuid.New()
	l := reviewableListing(hostID)
	l.Status = listing.StatusOnline
	s := dueSlot(hostID, l.ID)
	s.IsPastDue = true
	s.MarkedForImmediateExpiry = true

	set := location.ResolvedSet{PlaceID: placeID("place-1")}
	ts.mockListings.On("FindByID", ctx, l.ID).Return(l, nil)
	ts.mockResolver.On("Resolve", ctx, l).Return(set, nil)
	ts.mockWriter.On("DeleteRowsForLocations", ctx, l.ID, []string{"place-1"}).Return(nil)
	ts.mockCounters.On("DecrementAll", ctx, []string{"place-1"}).Return(common.BatchReport{Succeeded: 1})
	ts.mockWriter.On("DeleteMediaForListing", ctx, l.ID).Return(nil)
	ts.mockListings.On("Update", ctx, l).Return(nil)
	ts.mockSlots.On("Delete", ctx, s).Return(nil)

	outcome, err := ts.service.Expire(ctx, s)

	assert.NoError(t, err)
	assert.False(t, outcome.Skipped)
	assert.Equal(t, listing.StatusApproved, l.Status)
	assert.Nil(t, l.ActiveSlotID)
	ts.mockSlots.AssertCalled(t, "Delete", ctx, s)
}

func TestService_Expire_NormalLapseResetsListing(t *testing.T) {
	ts := setupPublicationServiceTestSuite(t, true)
	ctx := context.Background()

	hostID := uuid.New()
	l := reviewableListing(hostID)
	l.Status = listing.StatusOnline
	slotID := uuid.New()
	l.ActiveSlotID = &slotID
	s := dueSlot(hostID, l.ID)

	set := location.ResolvedSet{PlaceID: placeID("place-1"), LocalityID: placeID("locality-9")}
	ts.mockListings.On("FindByID", ctx, l.ID).Return(l, nil)
	ts.mockResolver.On("Resolve", ctx, l).Return(set, nil)
	ts.mockWriter.On("DeleteRowsForLocations", ctx, l.ID, []string{"place-1", "locality-9"}).Return(nil)
	ts.mockCounters.On("DecrementAll", ctx, []string{"place-1", "locality-9"}).Return(common.BatchReport{Succeeded: 2})
	ts.mockWriter.On("DeleteMediaForListing", ctx, l.ID).Return(nil)
	ts.mockListings.On("Update", ctx, l).Return(nil)
	ts.mockSlots.On("Delete", ctx, s).Return(nil)

	outcome, err := ts.service.Expire(ctx, s)

	assert.NoError(t, err)
	assert.Equal(t, listing.StatusApproved, l.Status)
	assert.Nil(t, l.ActiveSlotID)
	assert.Nil(t, l.SlotExpiresAt)
	assert.Equal(t, hostID, outcome.HostID)
	assert.Equal(t, "Cozy loft", outcome.ListingTitle)
}

func TestService_Expire_OrphanedSlotIsJustDeleted(t *testing.T) {
	ts := setupPublicationServiceTestSuite(t, true)
	ctx := context.Background()

	s := dueSlot(uuid.New(), uuid.New())

	ts.mockListings.On("FindByID", ctx, s.ListingID).
		Return(nil, common.ErrNotFound.WithDetails("Listing not found."))
	ts.mockSlots.On("Delete", ctx, s).Return(nil)

	outcome, err := ts.service.Expire(ctx, s)

	assert.NoError(t, err)
	assert.True(t, outcome.OrphanedSlot)
	ts.mockResolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
	ts.mockSlots.AssertCalled(t, "Delete", ctx, s)
}
