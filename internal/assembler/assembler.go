// Package assembler собирает упорядоченные визуальные ассеты и озвучку в итоговый ролик.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"campaign-server/internal/domain"
	"campaign-server/internal/provider"

	"go.uber.org/zap"
)

var (
	ErrNoVisuals       = errors.New("no succeeded visual assets to assemble")
	ErrInvalidDuration = errors.New("scene target duration must be positive")
	ErrMuxFailed       = errors.New("mux failed")
)

// PlanTimeline строит план сборки: только succeeded ассеты по возрастанию ordinal,
// каждый занимает свою целевую длительность, пропуски закрываются.
// Озвучка длиннее видео обрезается, короче - оставляет хвост без звука.
func PlanTimeline(assets []domain.SceneAsset, narration time.Duration) (domain.Timeline, error) {
	visuals := OrderedSucceeded(assets)
	if len(visuals) == 0 {
		return domain.Timeline{}, ErrNoVisuals
	}

	timeline := domain.Timeline{Entries: make([]domain.TimelineEntry, 0, len(visuals))}
	var offset time.Duration
	for _, a := range visuals {
		if a.TargetDuration <= 0 {
			return domain.Timeline{}, fmt.Errorf("%w: ordinal %d", ErrInvalidDuration, a.Ordinal)
		}
		timeline.Entries = append(timeline.Entries, domain.TimelineEntry{
			Ordinal:  a.Ordinal,
			Offset:   offset,
			Duration: a.TargetDuration,
		})
		offset += a.TargetDuration
	}
	timeline.VisualDuration = offset

	switch {
	case narration > offset:
		timeline.AudioDuration = offset
		timeline.AudioTruncated = true
	default:
		timeline.AudioDuration = narration
		timeline.TrailingSilence = offset - narration
	}
	return timeline, nil
}

// OrderedSucceeded возвращает копию succeeded ассетов, отсортированную по ordinal.
func OrderedSucceeded(assets []domain.SceneAsset) []domain.SceneAsset {
	out := make([]domain.SceneAsset, 0, len(assets))
	for _, a := range assets {
		if a.Status == domain.SceneStatusSucceeded {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out
}

// Assembler - обертка над Muxer, которая планирует шкалу и гарантирует, что частичный
// артефакт никогда не возвращается.
type Assembler struct {
	muxer       provider.Muxer
	callTimeout time.Duration
	logger      *zap.Logger
}

func NewAssembler(muxer provider.Muxer, callTimeout time.Duration, logger *zap.Logger) *Assembler {
	return &Assembler{muxer: muxer, callTimeout: callTimeout, logger: logger.Named("Assembler")}
}

// Assemble собирает ролик. Поля Analysis и FailedSegmentCount заполняет вызывающая сторона.
func (a *Assembler) Assemble(ctx context.Context, orderedAssets []domain.SceneAsset, narration domain.NarrationAsset, aspectRatio string) (*domain.AssembledCampaign, error) {
	visuals := OrderedSucceeded(orderedAssets)
	timeline, err := PlanTimeline(visuals, narration.Duration)
	if err != nil {
		return nil, err
	}
	log := a.logger.With(
		zap.Int("visuals", len(visuals)),
		zap.Duration("visual_duration", timeline.VisualDuration),
		zap.Duration("narration_duration", narration.Duration),
		zap.Bool("audio_truncated", timeline.AudioTruncated),
	)

	callCtx := ctx
	if a.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.callTimeout)
		defer cancel()
	}

	video, err := a.muxer.Mux(callCtx, provider.MuxInput{
		Visuals:     visuals,
		Narration:   narration,
		Timeline:    timeline,
		AspectRatio: aspectRatio,
	})
	if err != nil {
		log.Error("Muxing failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrMuxFailed, err)
	}
	if len(video.Data) == 0 {
		log.Error("Muxer returned empty video")
		return nil, fmt.Errorf("%w: %v", ErrMuxFailed, provider.ErrEmptyPayload)
	}

	log.Info("Campaign video assembled", zap.Int("bytes", len(video.Data)))
	return &domain.AssembledCampaign{
		Video:     video,
		Narration: narration,
		Scenes:    visuals,
		Timeline:  timeline,
	}, nil
}
