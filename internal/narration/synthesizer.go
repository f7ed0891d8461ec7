// Package narration синтезирует единую дорожку озвучки для всего сценария.
package narration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"campaign-server/internal/domain"
	"campaign-server/internal/provider"

	"go.uber.org/zap"
)

// defaultProbeTimeout ограничивает ffprobe, когда таймаут вызова не задан.
const defaultProbeTimeout = 30 * time.Second

var (
	ErrEmptyScript   = errors.New("narration script is empty")
	ErrEmptyAudio    = errors.New("speech provider returned empty audio")
	ErrUnknownLength = errors.New("narration duration is unknown")
)

// Synthesizer - один провайдер, одна попытка на запуск. Фоллбэка для озвучки нет.
type Synthesizer struct {
	speech      provider.SpeechProvider
	probe       provider.DurationProbe // Может быть nil, если провайдер сам сообщает длительность
	callTimeout time.Duration
	logger      *zap.Logger
}

func NewSynthesizer(speech provider.SpeechProvider, probe provider.DurationProbe, callTimeout time.Duration, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{
		speech:      speech,
		probe:       probe,
		callTimeout: callTimeout,
		logger:      logger.Named("NarrationSynthesizer"),
	}
}

// Synthesize озвучивает весь сценарий одним вызовом. Любая ошибка (включая таймаут) фатальна для запуска.
func (s *Synthesizer) Synthesize(ctx context.Context, script string) (domain.NarrationAsset, error) {
	script = strings.TrimSpace(script)
	if script == "" {
		return domain.NarrationAsset{}, ErrEmptyScript
	}
	log := s.logger.With(zap.String("provider", s.speech.Name()), zap.Int("script_len", len(script)))

	callCtx := ctx
	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}

	result, err := s.speech.Synthesize(callCtx, script)
	if err != nil {
		log.Error("Speech synthesis failed", zap.Error(err))
		return domain.NarrationAsset{}, fmt.Errorf("speech provider %s: %w", s.speech.Name(), err)
	}
	if len(result.Media.Data) == 0 {
		return domain.NarrationAsset{}, ErrEmptyAudio
	}

	duration := result.Duration
	if duration <= 0 {
		if s.probe == nil {
			return domain.NarrationAsset{}, ErrUnknownLength
		}
		duration, err = s.probeDuration(ctx, result.Media)
		if err != nil {
			log.Error("Failed to probe narration duration", zap.Error(err))
			return domain.NarrationAsset{}, fmt.Errorf("probe narration duration: %w", err)
		}
		if duration <= 0 {
			return domain.NarrationAsset{}, ErrUnknownLength
		}
	}

	log.Info("Narration synthesized", zap.Duration("duration", duration))
	return domain.NarrationAsset{Media: result.Media, Duration: duration}, nil
}

// probeDuration измеряет длительность с отдельным дедлайном: время речевого вызова на него не тратится.
func (s *Synthesizer) probeDuration(ctx context.Context, media domain.Media) (time.Duration, error) {
	timeout := s.callTimeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.probe.Probe(probeCtx, media)
}
