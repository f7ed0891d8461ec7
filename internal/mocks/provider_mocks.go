package mocks

import (
	"context"
	"time"

	"campaign-server/internal/domain"
	"campaign-server/internal/provider"

	"github.com/stretchr/testify/mock"
)

type testingT interface {
	mock.TestingT
	Helper()
	Cleanup(func())
}

// MockReasoningProvider is a mock type for the provider.ReasoningProvider type
type MockReasoningProvider struct {
	mock.Mock
}

func (_m *MockReasoningProvider) Name() string { return "mock-reasoning" }

// Complete provides a mock function with given fields: ctx, req
func (_m *MockReasoningProvider) Complete(ctx context.Context, req provider.ReasoningRequest) (provider.ReasoningResponse, error) {
	ret := _m.Called(ctx, req)

	var r0 provider.ReasoningResponse
	if rf, ok := ret.Get(0).(func(context.Context, provider.ReasoningRequest) provider.ReasoningResponse); ok {
		r0 = rf(ctx, req)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(provider.ReasoningResponse)
	}

	return r0, ret.Error(1)
}

// NewMockReasoningProvider creates a new instance of MockReasoningProvider and asserts its expectations on cleanup.
func NewMockReasoningProvider(t testingT) *MockReasoningProvider {
	m := &MockReasoningProvider{}
	m.Mock.Test(t)
	t.Helper()
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ provider.ReasoningProvider = (*MockReasoningProvider)(nil)

// MockVisualProvider is a mock type for the provider.VisualProvider type
type MockVisualProvider struct {
	mock.Mock
	ProviderName string
}

func (_m *MockVisualProvider) Name() string { return _m.ProviderName }

// Generate provides a mock function with given fields: ctx, req
func (_m *MockVisualProvider) Generate(ctx context.Context, req provider.VisualRequest) (domain.Media, error) {
	ret := _m.Called(ctx, req)

	var r0 domain.Media
	if rf, ok := ret.Get(0).(func(context.Context, provider.VisualRequest) domain.Media); ok {
		r0 = rf(ctx, req)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(domain.Media)
	}

	return r0, ret.Error(1)
}

// NewMockVisualProvider creates a named MockVisualProvider and asserts its expectations on cleanup.
func NewMockVisualProvider(t testingT, name string) *MockVisualProvider {
	m := &MockVisualProvider{ProviderName: name}
	m.Mock.Test(t)
	t.Helper()
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ provider.VisualProvider = (*MockVisualProvider)(nil)

// MockSpeechProvider is a mock type for the provider.SpeechProvider type
type MockSpeechProvider struct {
	mock.Mock
}

func (_m *MockSpeechProvider) Name() string { return "mock-speech" }

// Synthesize provides a mock function with given fields: ctx, script
func (_m *MockSpeechProvider) Synthesize(ctx context.Context, script string) (provider.SpeechResult, error) {
	ret := _m.Called(ctx, script)

	var r0 provider.SpeechResult
	if rf, ok := ret.Get(0).(func(context.Context, string) provider.SpeechResult); ok {
		r0 = rf(ctx, script)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(provider.SpeechResult)
	}

	return r0, ret.Error(1)
}

func NewMockSpeechProvider(t testingT) *MockSpeechProvider {
	m := &MockSpeechProvider{}
	m.Mock.Test(t)
	t.Helper()
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ provider.SpeechProvider = (*MockSpeechProvider)(nil)

// MockMuxer is a mock type for the provider.Muxer type
type MockMuxer struct {
	mock.Mock
}

// Mux provides a mock function with given fields: ctx, in
func (_m *MockMuxer) Mux(ctx context.Context, in provider.MuxInput) (domain.Media, error) {
	ret := _m.Called(ctx, in)

	var r0 domain.Media
	if rf, ok := ret.Get(0).(func(context.Context, provider.MuxInput) domain.Media); ok {
		r0 = rf(ctx, in)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(domain.Media)
	}

	return r0, ret.Error(1)
}

func NewMockMuxer(t testingT) *MockMuxer {
	m := &MockMuxer{}
	m.Mock.Test(t)
	t.Helper()
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ provider.Muxer = (*MockMuxer)(nil)

// MockDurationProbe is a mock type for the provider.DurationProbe type
type MockDurationProbe struct {
	mock.Mock
}

// Probe provides a mock function with given fields: ctx, media
func (_m *MockDurationProbe) Probe(ctx context.Context, media domain.Media) (time.Duration, error) {
	ret := _m.Called(ctx, media)

	var r0 time.Duration
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(time.Duration)
	}

	return r0, ret.Error(1)
}

func NewMockDurationProbe(t testingT) *MockDurationProbe {
	m := &MockDurationProbe{}
	m.Mock.Test(t)
	t.Helper()
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ provider.DurationProbe = (*MockDurationProbe)(nil)
