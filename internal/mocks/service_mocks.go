package mocks

import (
	"context"

	"campaign-server/internal/accounts"
	"campaign-server/internal/artifacts"
	"campaign-server/internal/credits"
	"campaign-server/internal/domain"
	"campaign-server/shared/messaging"

	"github.com/stretchr/testify/mock"
)

// MockCampaignRunner is a mock type for the worker.CampaignRunner type
type MockCampaignRunner struct {
	mock.Mock
}

// Run provides a mock function with given fields: ctx, req, onProgress
func (_m *MockCampaignRunner) Run(ctx context.Context, req domain.CampaignRequest, onProgress func(domain.Phase)) (*domain.AssembledCampaign, error) {
	ret := _m.Called(ctx, req, onProgress)

	var r0 *domain.AssembledCampaign
	if rf, ok := ret.Get(0).(func(context.Context, domain.CampaignRequest, func(domain.Phase)) *domain.AssembledCampaign); ok {
		r0 = rf(ctx, req, onProgress)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.AssembledCampaign)
	}

	return r0, ret.Error(1)
}

func NewMockCampaignRunner(t testingT) *MockCampaignRunner {
	m := &MockCampaignRunner{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// MockAccountLookup is a mock type for the accounts.Lookup type
type MockAccountLookup struct {
	mock.Mock
}

func (_m *MockAccountLookup) Lookup(ctx context.Context, accountID string) (domain.Account, error) {
	ret := _m.Called(ctx, accountID)
	return ret.Get(0).(domain.Account), ret.Error(1)
}

func NewMockAccountLookup(t testingT) *MockAccountLookup {
	m := &MockAccountLookup{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ accounts.Lookup = (*MockAccountLookup)(nil)

// MockSink is a mock type for the artifacts.Sink type
type MockSink struct {
	mock.Mock
}

func (_m *MockSink) Store(ctx context.Context, taskID string, campaign *domain.AssembledCampaign) (artifacts.Stored, error) {
	ret := _m.Called(ctx, taskID, campaign)
	return ret.Get(0).(artifacts.Stored), ret.Error(1)
}

func NewMockSink(t testingT) *MockSink {
	m := &MockSink{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ artifacts.Sink = (*MockSink)(nil)

// MockPublisher is a mock type for the messaging.Publisher type
type MockPublisher struct {
	mock.Mock
}

func (_m *MockPublisher) Publish(ctx context.Context, payload interface{}, correlationID string) error {
	ret := _m.Called(ctx, payload, correlationID)
	return ret.Error(0)
}

func NewMockPublisher(t testingT) *MockPublisher {
	m := &MockPublisher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ messaging.Publisher = (*MockPublisher)(nil)

// MockLedger is a mock type for the credits.Ledger type
type MockLedger struct {
	mock.Mock
}

func (_m *MockLedger) Reserve(ctx context.Context, accountID string, amount int64) (domain.ReservationID, error) {
	ret := _m.Called(ctx, accountID, amount)
	return ret.Get(0).(domain.ReservationID), ret.Error(1)
}

func (_m *MockLedger) Commit(ctx context.Context, id domain.ReservationID) error {
	return _m.Called(ctx, id).Error(0)
}

func (_m *MockLedger) Release(ctx context.Context, id domain.ReservationID) error {
	return _m.Called(ctx, id).Error(0)
}

func (_m *MockLedger) Deposit(ctx context.Context, accountID string, amount int64) error {
	return _m.Called(ctx, accountID, amount).Error(0)
}

func (_m *MockLedger) Balance(ctx context.Context, accountID string) (int64, error) {
	ret := _m.Called(ctx, accountID)
	return ret.Get(0).(int64), ret.Error(1)
}

func (_m *MockLedger) Transactions(ctx context.Context, accountID string, limit int) ([]domain.CreditTransaction, error) {
	ret := _m.Called(ctx, accountID, limit)

	var r0 []domain.CreditTransaction
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]domain.CreditTransaction)
	}
	return r0, ret.Error(1)
}

func NewMockLedger(t testingT) *MockLedger {
	m := &MockLedger{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ credits.Ledger = (*MockLedger)(nil)
