package segments

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"campaign-server/internal/domain"
	"campaign-server/internal/mocks"
	"campaign-server/internal/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testDNA = "neon noir, teal and magenta, grainy 35mm"

var (
	pngMedia     = domain.Media{Data: []byte("png-bytes"), MimeType: "image/png"}
	errQuota     = provider.NewError("primary", provider.ClassQuotaExhausted, 402, errors.New("credits exhausted"))
	errLoading   = provider.NewError("primary", provider.ClassTransient, 503, errors.New("model is loading"))
	errSafety    = provider.NewError("primary", provider.ClassPermanent, 400, errors.New("rejected by safety system"))
	testScene    = domain.SceneDescriptor{Ordinal: 1, TargetDuration: 4 * time.Second, VisualPrompt: "crowd cheering at sunset", Phase: domain.ScenePhaseHook}
	anyVisualReq = mock.AnythingOfType("provider.VisualRequest")
)

func newTestSynthesizer() (*Synthesizer, *[]time.Duration) {
	s := NewSynthesizer(Config{CallTimeout: time.Second, TransientBackoff: 2 * time.Second}, zap.NewNop())
	slept := &[]time.Duration{}
	s.sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return s, slept
}

func TestMergePrompt(t *testing.T) {
	assert.Equal(t, "just the scene", MergePrompt("", " just the scene "))
	merged := MergePrompt(testDNA, "crowd cheering")
	assert.Contains(t, merged, testDNA)
	assert.Contains(t, merged, "crowd cheering")
	assert.True(t, strings.Index(merged, testDNA) < strings.Index(merged, "crowd cheering"))
}

func TestSynthesize_SuccessOnPrimaryCarriesVisualDNA(t *testing.T) {
	s, slept := newTestSynthesizer()
	primary := mocks.NewMockVisualProvider(t, "primary")
	secondary := mocks.NewMockVisualProvider(t, "secondary")

	primary.On("Generate", mock.Anything, mock.MatchedBy(func(req provider.VisualRequest) bool {
		return strings.Contains(req.Prompt, testDNA) &&
			strings.Contains(req.Prompt, testScene.VisualPrompt) &&
			req.AspectRatio == "9:16" &&
			req.Duration == testScene.TargetDuration
	})).Return(pngMedia, nil).Once()

	asset := s.Synthesize(context.Background(), testScene, testDNA, "9:16",
		[]provider.VisualProvider{primary, secondary}, provider.NewExhaustedSet())

	assert.Equal(t, domain.SceneStatusSucceeded, asset.Status)
	assert.Equal(t, "primary", asset.Provider)
	assert.Equal(t, 1, asset.Ordinal)
	assert.Equal(t, pngMedia, asset.Media)
	assert.Equal(t, testScene.TargetDuration, asset.TargetDuration)
	assert.Empty(t, *slept)
	secondary.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestSynthesize_TransientRetriesOnceOnSameProvider(t *testing.T) {
	s, slept := newTestSynthesizer()
	primary := mocks.NewMockVisualProvider(t, "primary")

	primary.On("Generate", mock.Anything, anyVisualReq).Return(domain.Media{}, errLoading).Once()
	primary.On("Generate", mock.Anything, anyVisualReq).Return(pngMedia, nil).Once()

	asset := s.Synthesize(context.Background(), testScene, testDNA, "9:16",
		[]provider.VisualProvider{primary}, provider.NewExhaustedSet())

	assert.Equal(t, domain.SceneStatusSucceeded, asset.Status)
	assert.Equal(t, "primary", asset.Provider)
	assert.Equal(t, []time.Duration{2 * time.Second}, *slept)
}

func TestSynthesize_TransientTwiceFallsThroughWithoutMarking(t *testing.T) {
	s, slept := newTestSynthesizer()
	primary := mocks.NewMockVisualProvider(t, "primary")
	secondary := mocks.NewMockVisualProvider(t, "secondary")
	exhausted := provider.NewExhaustedSet()

	primary.On("Generate", mock.Anything, anyVisualReq).Return(domain.Media{}, errLoading).Twice()
	secondary.On("Generate", mock.Anything, anyVisualReq).Return(pngMedia, nil).Once()

	asset := s.Synthesize(context.Background(), testScene, testDNA, "9:16",
		[]provider.VisualProvider{primary, secondary}, exhausted)

	assert.Equal(t, domain.SceneStatusSucceeded, asset.Status)
	assert.Equal(t, "secondary", asset.Provider)
	assert.Len(t, *slept, 1)
	assert.False(t, exhausted.Contains("primary"), "transient errors must not mark a provider exhausted")
}

func TestSynthesize_QuotaMarksProviderForTheRun(t *testing.T) {
	s, slept := newTestSynthesizer()
	primary := mocks.NewMockVisualProvider(t, "primary")
	secondary := mocks.NewMockVisualProvider(t, "secondary")
	exhausted := provider.NewExhaustedSet()
	chain := []provider.VisualProvider{primary, secondary}

	primary.On("Generate", mock.Anything, anyVisualReq).Return(domain.Media{}, errQuota).Once()
	secondary.On("Generate", mock.Anything, anyVisualReq).Return(pngMedia, nil).Twice()

	first := s.Synthesize(context.Background(), testScene, testDNA, "9:16", chain, exhausted)
	assert.Equal(t, domain.SceneStatusSucceeded, first.Status)
	assert.Equal(t, "secondary", first.Provider)
	assert.True(t, exhausted.Contains("primary"))
	assert.Empty(t, *slept, "quota errors are not retried")

	next := testScene
	next.Ordinal = 2
	second := s.Synthesize(context.Background(), next, testDNA, "9:16", chain, exhausted)
	assert.Equal(t, domain.SceneStatusSucceeded, second.Status)
	assert.Equal(t, "secondary", second.Provider)
	primary.AssertNumberOfCalls(t, "Generate", 1)
}

func TestSynthesize_PermanentFailsSceneWithoutFallback(t *testing.T) {
	s, slept := newTestSynthesizer()
	primary := mocks.NewMockVisualProvider(t, "primary")
	secondary := mocks.NewMockVisualProvider(t, "secondary")
	exhausted := provider.NewExhaustedSet()

	primary.On("Generate", mock.Anything, anyVisualReq).Return(domain.Media{}, errSafety).Once()

	asset := s.Synthesize(context.Background(), testScene, testDNA, "9:16",
		[]provider.VisualProvider{primary, secondary}, exhausted)

	assert.Equal(t, domain.SceneStatusFailed, asset.Status)
	assert.Contains(t, asset.Error, "safety")
	assert.Empty(t, asset.Provider)
	assert.Nil(t, asset.Media.Data)
	assert.Empty(t, *slept)
	assert.False(t, exhausted.Contains("primary"))
	secondary.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestSynthesize_ChainExhaustedRecordsLastError(t *testing.T) {
	s, _ := newTestSynthesizer()
	primary := mocks.NewMockVisualProvider(t, "primary")
	secondary := mocks.NewMockVisualProvider(t, "secondary")
	exhausted := provider.NewExhaustedSet()
	lastErr := provider.NewError("secondary", provider.ClassQuotaExhausted, 429, errors.New("insufficient_quota"))

	primary.On("Generate", mock.Anything, anyVisualReq).Return(domain.Media{}, errQuota).Once()
	secondary.On("Generate", mock.Anything, anyVisualReq).Return(domain.Media{}, lastErr).Once()

	asset := s.Synthesize(context.Background(), testScene, testDNA, "9:16",
		[]provider.VisualProvider{primary, secondary}, exhausted)

	assert.Equal(t, domain.SceneStatusFailed, asset.Status)
	assert.Equal(t, lastErr.Error(), asset.Error)
	assert.Equal(t, []string{"primary", "secondary"}, exhausted.Names())
}

func TestSynthesize_EverythingAlreadyExhausted(t *testing.T) {
	s, _ := newTestSynthesizer()
	primary := mocks.NewMockVisualProvider(t, "primary")
	exhausted := provider.NewExhaustedSet()
	exhausted.Mark("primary")

	asset := s.Synthesize(context.Background(), testScene, testDNA, "9:16",
		[]provider.VisualProvider{primary}, exhausted)

	assert.Equal(t, domain.SceneStatusFailed, asset.Status)
	assert.Equal(t, ErrNoProviderAvailable.Error(), asset.Error)
	primary.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestSynthesize_EmptyPayloadIsRetried(t *testing.T) {
	s, slept := newTestSynthesizer()
	primary := mocks.NewMockVisualProvider(t, "primary")

	primary.On("Generate", mock.Anything, anyVisualReq).Return(domain.Media{MimeType: "image/png"}, nil).Once()
	primary.On("Generate", mock.Anything, anyVisualReq).Return(pngMedia, nil).Once()

	asset := s.Synthesize(context.Background(), testScene, testDNA, "9:16",
		[]provider.VisualProvider{primary}, provider.NewExhaustedSet())

	assert.Equal(t, domain.SceneStatusSucceeded, asset.Status)
	assert.Len(t, *slept, 1)
}

// slowProvider отвечает только после отмены контекста вызова.
type slowProvider struct {
	calls atomic.Int32
}

func (p *slowProvider) Name() string { return "slow" }

func (p *slowProvider) Generate(ctx context.Context, _ provider.VisualRequest) (domain.Media, error) {
	p.calls.Add(1)
	<-ctx.Done()
	return domain.Media{}, ctx.Err()
}

func TestSynthesize_TimeoutIsTransient(t *testing.T) {
	s, slept := newTestSynthesizer()
	s.cfg.CallTimeout = 10 * time.Millisecond
	slow := &slowProvider{}
	fallback := mocks.NewMockVisualProvider(t, "fallback")
	fallback.On("Generate", mock.Anything, anyVisualReq).Return(pngMedia, nil).Once()

	asset := s.Synthesize(context.Background(), testScene, testDNA, "16:9",
		[]provider.VisualProvider{slow, fallback}, provider.NewExhaustedSet())

	require.Equal(t, domain.SceneStatusSucceeded, asset.Status)
	assert.Equal(t, "fallback", asset.Provider)
	assert.Equal(t, int32(2), slow.calls.Load(), "timeout gets exactly one same-provider retry")
	assert.Len(t, *slept, 1)
}
