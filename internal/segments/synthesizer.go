// Package segments синтезирует визуальный ассет для одной сцены через цепочку провайдеров.
package segments

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"campaign-server/internal/domain"
	"campaign-server/internal/metrics"
	"campaign-server/internal/provider"

	"go.uber.org/zap"
)

// ErrNoProviderAvailable - в цепочке не осталось неисчерпанных провайдеров.
var ErrNoProviderAvailable = errors.New("no visual provider available")

// Config - параметры синтеза сцены.
type Config struct {
	CallTimeout      time.Duration // Таймаут одного вызова провайдера
	TransientBackoff time.Duration // Пауза перед повтором после transient ошибки
}

// Synthesizer синтезирует сцены. Сам по себе не хранит состояния запуска:
// множество исчерпанных провайдеров передается в каждый вызов.
type Synthesizer struct {
	cfg    Config
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewSynthesizer(cfg Config, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{
		cfg:    cfg,
		logger: logger.Named("SegmentSynthesizer"),
		sleep:  sleepCtx,
	}
}

// MergePrompt склеивает Visual DNA и промпт сцены в один промпт провайдера.
func MergePrompt(visualDNA, scenePrompt string) string {
	visualDNA = strings.TrimSpace(visualDNA)
	scenePrompt = strings.TrimSpace(scenePrompt)
	if visualDNA == "" {
		return scenePrompt
	}
	return fmt.Sprintf("Visual style: %s\nScene: %s", visualDNA, scenePrompt)
}

// Synthesize выполняет синтез одной сцены и всегда возвращает SceneAsset:
// succeeded с медиа или failed с деталями последней ошибки.
func (s *Synthesizer) Synthesize(
	ctx context.Context,
	descriptor domain.SceneDescriptor,
	visualDNA string,
	aspectRatio string,
	chain []provider.VisualProvider,
	exhausted *provider.ExhaustedSet,
) domain.SceneAsset {
	log := s.logger.With(zap.Int("ordinal", descriptor.Ordinal))
	asset := domain.SceneAsset{
		Ordinal:        descriptor.Ordinal,
		Status:         domain.SceneStatusPending,
		TargetDuration: descriptor.TargetDuration,
	}
	req := provider.VisualRequest{
		Prompt:      MergePrompt(visualDNA, descriptor.VisualPrompt),
		AspectRatio: aspectRatio,
		Duration:    descriptor.TargetDuration,
		Seed:        styleSeed(visualDNA),
	}

	var lastErr error
	from := 0
	for {
		p, idx := provider.NextProvider(chain, exhausted, from)
		if p == nil {
			break
		}
		plog := log.With(zap.String("provider", p.Name()))

		media, err := s.attempt(ctx, p, req, plog)
		if err == nil {
			asset.Status = domain.SceneStatusSucceeded
			asset.Media = media
			asset.Provider = p.Name()
			metrics.VisualProviderResults.WithLabelValues(p.Name(), "succeeded").Inc()
			plog.Info("Scene synthesized")
			return asset
		}
		lastErr = err

		switch provider.Classify(err) {
		case provider.ClassQuotaExhausted:
			metrics.VisualProviderResults.WithLabelValues(p.Name(), "quota_exhausted").Inc()
			if exhausted.Mark(p.Name()) {
				metrics.VisualProviderExhausted.WithLabelValues(p.Name()).Inc()
				plog.Warn("Provider quota exhausted, skipping it for the rest of the run", zap.Error(err))
			}
		case provider.ClassTransient:
			metrics.VisualProviderResults.WithLabelValues(p.Name(), "transient").Inc()
			plog.Warn("Provider still failing after retry, falling through", zap.Error(err))
		default:
			metrics.VisualProviderResults.WithLabelValues(p.Name(), "permanent").Inc()
			plog.Warn("Permanent provider error, scene failed", zap.Error(err))
			return failed(asset, err)
		}
		from = idx + 1
	}

	if lastErr == nil {
		lastErr = ErrNoProviderAvailable
	}
	log.Warn("Provider chain exhausted for scene", zap.Error(lastErr))
	return failed(asset, lastErr)
}

// attempt вызывает провайдера и при transient ошибке один раз повторяет вызов после паузы.
func (s *Synthesizer) attempt(ctx context.Context, p provider.VisualProvider, req provider.VisualRequest, log *zap.Logger) (domain.Media, error) {
	media, err := s.call(ctx, p, req)
	if err == nil || provider.Classify(err) != provider.ClassTransient {
		return media, err
	}

	log.Info("Transient provider error, retrying once", zap.Duration("backoff", s.cfg.TransientBackoff), zap.Error(err))
	if sleepErr := s.sleep(ctx, s.cfg.TransientBackoff); sleepErr != nil {
		return domain.Media{}, err
	}
	return s.call(ctx, p, req)
}

func (s *Synthesizer) call(ctx context.Context, p provider.VisualProvider, req provider.VisualRequest) (domain.Media, error) {
	callCtx := ctx
	if s.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	media, err := p.Generate(callCtx, req)
	metrics.VisualProviderLatency.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.Media{}, err
	}
	if len(media.Data) == 0 {
		return domain.Media{}, provider.NewError(p.Name(), provider.ClassTransient, 0, provider.ErrEmptyPayload)
	}
	return media, nil
}

func failed(asset domain.SceneAsset, err error) domain.SceneAsset {
	asset.Status = domain.SceneStatusFailed
	asset.Error = err.Error()
	asset.Media = domain.Media{}
	return asset
}

// styleSeed дает одинаковый seed всем сценам с одной Visual DNA.
func styleSeed(visualDNA string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(visualDNA))
	return int64(h.Sum32())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
