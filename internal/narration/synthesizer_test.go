package narration

import (
	"context"
	"errors"
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

var mp3 = domain.Media{Data: []byte("ID3..."), MimeType: "audio/mpeg"}

func TestSynthesize_UsesProviderDuration(t *testing.T) {
	speech := mocks.NewMockSpeechProvider(t)
	probe := mocks.NewMockDurationProbe(t)
	speech.On("Synthesize", mock.Anything, "Hello world").
		Return(provider.SpeechResult{Media: mp3, Duration: 12 * time.Second}, nil).Once()

	s := NewSynthesizer(speech, probe, time.Second, zap.NewNop())
	asset, err := s.Synthesize(context.Background(), "  Hello world ")

	require.NoError(t, err)
	assert.Equal(t, 12*time.Second, asset.Duration)
	assert.Equal(t, mp3, asset.Media)
	probe.AssertNotCalled(t, "Probe", mock.Anything, mock.Anything)
}

func TestSynthesize_ProbesWhenDurationUnknown(t *testing.T) {
	speech := mocks.NewMockSpeechProvider(t)
	probe := mocks.NewMockDurationProbe(t)
	speech.On("Synthesize", mock.Anything, "script").Return(provider.SpeechResult{Media: mp3}, nil).Once()
	probe.On("Probe", mock.Anything, mp3).Return(9500*time.Millisecond, nil).Once()

	s := NewSynthesizer(speech, probe, 0, zap.NewNop())
	asset, err := s.Synthesize(context.Background(), "script")

	require.NoError(t, err)
	assert.Equal(t, 9500*time.Millisecond, asset.Duration)
}

func TestSynthesize_ProbeRunsWithDeadline(t *testing.T) {
	for _, timeout := range []time.Duration{0, 5 * time.Second} {
		speech := mocks.NewMockSpeechProvider(t)
		probe := mocks.NewMockDurationProbe(t)
		speech.On("Synthesize", mock.Anything, "script").Return(provider.SpeechResult{Media: mp3}, nil).Once()
		probe.On("Probe", mock.MatchedBy(func(ctx context.Context) bool {
			_, ok := ctx.Deadline()
			return ok
		}), mp3).Return(4*time.Second, nil).Once()

		s := NewSynthesizer(speech, probe, timeout, zap.NewNop())
		_, err := s.Synthesize(context.WithoutCancel(context.Background()), "script")
		require.NoError(t, err, "timeout %s", timeout)
	}
}

func TestSynthesize_SingleAttemptOnError(t *testing.T) {
	speech := mocks.NewMockSpeechProvider(t)
	cause := provider.NewError("openai-tts", provider.ClassTransient, 503, errors.New("overloaded"))
	speech.On("Synthesize", mock.Anything, "script").Return(provider.SpeechResult{}, cause).Once()

	s := NewSynthesizer(speech, nil, time.Second, zap.NewNop())
	_, err := s.Synthesize(context.Background(), "script")

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	speech.AssertNumberOfCalls(t, "Synthesize", 1)
}

func TestSynthesize_RejectsEmptyScriptAndAudio(t *testing.T) {
	speech := mocks.NewMockSpeechProvider(t)
	s := NewSynthesizer(speech, nil, time.Second, zap.NewNop())

	_, err := s.Synthesize(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyScript)

	speech.On("Synthesize", mock.Anything, "script").Return(provider.SpeechResult{Media: domain.Media{MimeType: "audio/mpeg"}}, nil).Once()
	_, err = s.Synthesize(context.Background(), "script")
	assert.ErrorIs(t, err, ErrEmptyAudio)
}

func TestSynthesize_UnknownDurationWithoutProbe(t *testing.T) {
	speech := mocks.NewMockSpeechProvider(t)
	speech.On("Synthesize", mock.Anything, "script").Return(provider.SpeechResult{Media: mp3}, nil).Once()

	s := NewSynthesizer(speech, nil, time.Second, zap.NewNop())
	_, err := s.Synthesize(context.Background(), "script")
	assert.ErrorIs(t, err, ErrUnknownLength)
}
