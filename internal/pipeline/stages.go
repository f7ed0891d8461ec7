package pipeline

import (
	"context"

	"campaign-server/internal/domain"
	"campaign-server/internal/provider"
)

// ProgressFunc получает каждый переход состояния запуска ровно один раз и по порядку.
type ProgressFunc = func(phase domain.Phase)

// SubjectResolver возвращает описание субъекта по ссылке (id события или URL). Только чтение.
type SubjectResolver interface {
	Resolve(ctx context.Context, ref string) (domain.Subject, error)
}

// NarrativeAnalyzer - стадия анализа (реализация: analyzer.Analyzer).
type NarrativeAnalyzer interface {
	Analyze(ctx context.Context, subject domain.Subject, channel, aspectRatio string, n int, accountID string) (domain.NarrativeAnalysis, error)
}

// SegmentSynthesizer - синтез одной сцены (реализация: segments.Synthesizer).
type SegmentSynthesizer interface {
	Synthesize(ctx context.Context, descriptor domain.SceneDescriptor, visualDNA, aspectRatio string,
		chain []provider.VisualProvider, exhausted *provider.ExhaustedSet) domain.SceneAsset
}

// NarrationSynthesizer - озвучка сценария (реализация: narration.Synthesizer).
type NarrationSynthesizer interface {
	Synthesize(ctx context.Context, script string) (domain.NarrationAsset, error)
}

// CampaignAssembler - сборка ролика (реализация: assembler.Assembler).
type CampaignAssembler interface {
	Assemble(ctx context.Context, orderedAssets []domain.SceneAsset, narration domain.NarrationAsset, aspectRatio string) (*domain.AssembledCampaign, error)
}
