package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"marketplace_backend/internal/common"
	"marketplace_backend/internal/config"
	"marketplace_backend/internal/slot"
)

// MockRepository is a mock type for Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindCurrentByHostID(ctx context.Context, hostID uuid.UUID) (*HostSubscription, error) {
	args := m.Called(ctx, hostID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*HostSubscription), args.Error(1)
}

func (m *MockRepository) FindPlanByID(ctx context.Context, id uuid.UUID) (*Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Plan), args.Error(1)
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

// Test Suite Setup
type SubscriptionServiceTestSuite struct {
	service   *ServiceImplementation
	mockRepo  *MockRepository
	mockSlots *MockSlotRepository
}

func setupSubscriptionServiceTestSuite(t *testing.T) *SubscriptionServiceTestSuite {
	ts := &SubscriptionServiceTestSuite{}
	ts.mockRepo = new(MockRepository)
	ts.mockSlots = new(MockSlotRepository)
	cfg := &config.Config{DefaultPlanDurationDays: 30}
	ts.service = NewService(ts.mockRepo, ts.mockSlots, cfg, zap.NewNop())
	return ts
}

func subscriptionWithPlan(status string, maxSlots, durationDays int) *HostSubscription {
	return &HostSubscription{
		BaseModel: common.BaseModel{ID: uuid.New()},
		PlanID:    uuid.New(),
		Plan:      Plan{Name: "standard", MaxActiveSlots: maxSlots, DurationDays: durationDays},
		Status:    status,
	}
}

func TestSubscriptionService_CanPublishWithFreeAllowance(t *testing.T) {
	ts := setupSubscriptionServiceTestSuite(t)
	ctx := context.Background()
	hostID := uuid.New()
	sub := subscriptionWithPlan(StatusActive, 3, 30)

	ts.mockRepo.On("FindCurrentByHostID", ctx, hostID).Return(sub, nil)
	ts.mockSlots.On("CountByHostID", ctx, hostID).Return(int64(2), nil)

	decision, err := ts.service.CanHostPublishListing(ctx, hostID)

	assert.NoError(t, err)
	assert.True(t, decision.CanPublish)
	assert.Equal(t, sub, decision.Subscription)
}

func TestSubscriptionService_CannotPublishWhenAllSlotsInUse(t *testing.T) {
	ts := setupSubscriptionServiceTestSuite(t)
	ctx := context.Background()
	hostID := uuid.New()
	sub := subscriptionWithPlan(StatusActive, 3, 30)

	ts.mockRepo.On("FindCurrentByHostID", ctx, hostID).Return(sub, nil)
	ts.mockSlots.On("CountByHostID", ctx, hostID).Return(int64(3), nil)

	decision, err := ts.service.CanHostPublishListing(ctx, hostID)

	assert.NoError(t, err)
	assert.False(t, decision.CanPublish)
	assert.Contains(t, decision.Reason, "in use")
}

func TestSubscriptionService_CannotPublishWithoutSubscription(t *testing.T) {
	ts := setupSubscriptionServiceTestSuite(t)
	ctx := context.Background()
	hostID := uuid.New()

	ts.mockRepo.On("FindCurrentByHostID", ctx, hostID).Return(nil, nil)

	decision, err := ts.service.CanHostPublishListing(ctx, hostID)

	assert.NoError(t, err)
	assert.False(t, decision.CanPublish)
	assert.Contains(t, decision.Reason, "no subscription")
	ts.mockSlots.AssertNotCalled(t, "CountByHostID", mock.Anything, mock.Anything)
}

func TestSubscriptionService_PastDueSubscriptionStillPublishes(t *testing.T) {
	ts := setupSubscriptionServiceTestSuite(t)
	ctx := context.Background()
	hostID := uuid.New()
	sub := subscriptionWithPlan(StatusPastDue, 3, 30)

	ts.mockRepo.On("FindCurrentByHostID", ctx, hostID).Return(sub, nil)
	ts.mockSlots.On("CountByHostID", ctx, hostID).Return(int64(0), nil)

	decision, err := ts.service.CanHostPublishListing(ctx, hostID)

	assert.NoError(t, err)
	assert.True(t, decision.CanPublish)
}

func TestSubscriptionService_CreateSlotUsesPlanDuration(t *testing.T) {
	ts := setupSubscriptionServiceTestSuite(t)
	ctx := context.Background()
	sub := subscriptionWithPlan(StatusActive, 3, 90)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	ts.mockSlots.On("Create", ctx, mock.AnythingOfType("*slot.AdvertisingSlot")).Return(nil)

	created, err := ts.service.CreateAdvertisingSlot(ctx, CreateSlotParams{
		HostID:       uuid.New(),
		ListingID:    uuid.New(),
		Subscription: sub,
		BaseTime:     base,
	})

	assert.NoError(t, err)
	assert.Equal(t, base.AddDate(0, 0, 90), created.ExpiresAt)
	assert.Equal(t, sub.PlanID, created.PlanID)
	assert.False(t, created.IsPastDue)
}

func TestSubscriptionService_CreateSlotFallsBackToDefaultDuration(t *testing.T) {
	ts := setupSubscriptionServiceTestSuite(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	ts.mockSlots.On("Create", ctx, mock.AnythingOfType("*slot.AdvertisingSlot")).Return(nil)

	created, err := ts.service.CreateAdvertisingSlot(ctx, CreateSlotParams{
		HostID:    uuid.New(),
		ListingID: uuid.New(),
		BaseTime:  base,
	})

	assert.NoError(t, err)
	assert.Equal(t, base.AddDate(0, 0, 30), created.ExpiresAt)
	assert.Equal(t, uuid.Nil, created.PlanID)
}

func TestSubscriptionService_CreateSlotCarriesPastDueFlag(t *testing.T) {
	ts := setupSubscriptionServiceTestSuite(t)
	ctx := context.Background()
	sub := subscriptionWithPlan(StatusPastDue, 3, 30)

	ts.mockSlots.On("Create", ctx, mock.AnythingOfType("*slot.AdvertisingSlot")).Return(nil)

	created, err := ts.service.CreateAdvertisingSlot(ctx, CreateSlotParams{
		HostID:       uuid.New(),
		ListingID:    uuid.New(),
		Subscription: sub,
	})

	assert.NoError(t, err)
	assert.True(t, created.IsPastDue)
}

func TestPlanDurationDays(t *testing.T) {
	assert.Equal(t, 90, PlanDurationDays(subscriptionWithPlan(StatusActive, 1, 90), 30))
	assert.Equal(t, 30, PlanDurationDays(subscriptionWithPlan(StatusActive, 1, 0), 30))
	assert.Equal(t, 30, PlanDurationDays(nil, 30))
}
