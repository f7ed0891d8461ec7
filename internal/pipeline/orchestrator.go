// Package pipeline ведет запуск кампании через стадии анализа, синтеза сцен, озвучки и сборки,
// оборачивая его резервированием кредитов.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"campaign-server/internal/credits"
	"campaign-server/internal/domain"
	"campaign-server/internal/metrics"
	"campaign-server/internal/provider"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidRequest - запрос не прошел структурную валидацию, запуск не начинался.
var ErrInvalidRequest = errors.New("invalid campaign request")

// Config - параметры версии пайплайна.
type Config struct {
	SceneCount         int   // N, фиксировано для версии пайплайна
	CampaignCost       int64 // Фиксированная стоимость запуска в кредитах
	SegmentConcurrency int   // Сколько сцен синтезируется одновременно
}

// Orchestrator - конечный автомат запуска. Один вызов Run - один запуск;
// состояние запуска (резерв, исчерпанные провайдеры) живет только внутри вызова.
type Orchestrator struct {
	cfg       Config
	ledger    credits.Ledger
	resolver  SubjectResolver
	analyzer  NarrativeAnalyzer
	segments  SegmentSynthesizer
	narration NarrationSynthesizer
	assembler CampaignAssembler
	chain     []provider.VisualProvider
	logger    *zap.Logger
}

func NewOrchestrator(
	cfg Config,
	ledger credits.Ledger,
	resolver SubjectResolver,
	analyzer NarrativeAnalyzer,
	segments SegmentSynthesizer,
	narration NarrationSynthesizer,
	assembler CampaignAssembler,
	chain []provider.VisualProvider,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.SegmentConcurrency <= 0 {
		cfg.SegmentConcurrency = 1
	}
	return &Orchestrator{
		cfg:       cfg,
		ledger:    ledger,
		resolver:  resolver,
		analyzer:  analyzer,
		segments:  segments,
		narration: narration,
		assembler: assembler,
		chain:     chain,
		logger:    logger.Named("Orchestrator"),
	}
}

// Run выполняет запуск. Отмена ctx проверяется только на границах стадий: начатый вызов
// провайдера доживает до конца на отвязанном контексте, а его результат отбрасывается.
func (o *Orchestrator) Run(ctx context.Context, req domain.CampaignRequest, onProgress ProgressFunc) (*domain.AssembledCampaign, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	r := &run{
		o:          o,
		req:        req,
		onProgress: onProgress,
		phase:      domain.PhasePending,
		phaseStart: time.Now(),
		exhausted:  provider.NewExhaustedSet(),
		log: o.logger.With(
			zap.String("task_id", req.TaskID),
			zap.String("account_id", req.AccountID),
			zap.Bool("privileged", req.IsPrivileged),
		),
	}
	// Вызовы провайдеров и очистка журнала не должны прерываться отменой вызывающей стороны.
	work := context.WithoutCancel(ctx)

	if err := ctx.Err(); err != nil {
		return nil, r.fail(domain.CodeCancelled, err)
	}

	// --- 1. Резервирование кредитов ---
	if !req.IsPrivileged {
		id, err := o.ledger.Reserve(work, req.AccountID, o.cfg.CampaignCost)
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientCredits) {
				return nil, r.fail(domain.CodeInsufficientCredits, err)
			}
			return nil, r.fail(domain.CodeLedgerUnavailable, err)
		}
		r.reservation = id
		metrics.CreditsTotal.WithLabelValues(string(domain.TransactionReserved)).Add(float64(o.cfg.CampaignCost))
		r.log.Info("Credits reserved", zap.String("reservation_id", string(id)), zap.Int64("amount", o.cfg.CampaignCost))
	}

	// --- 2. Анализ ---
	if err := ctx.Err(); err != nil {
		return nil, r.fail(domain.CodeCancelled, err)
	}
	r.enter(domain.PhaseAnalyzing)

	subject, err := o.resolver.Resolve(work, req.SubjectRef)
	if err != nil {
		return nil, r.fail(domain.CodeSubjectUnresolved, err)
	}
	analysis, err := o.analyzer.Analyze(work, subject, req.Channel, req.AspectRatio, o.cfg.SceneCount, req.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidAnalysis) {
			return nil, r.fail(domain.CodeInvalidAnalysis, err)
		}
		return nil, r.fail(domain.CodeAnalysisFailed, err)
	}
	if len(analysis.Scenes) != o.cfg.SceneCount {
		return nil, r.fail(domain.CodeInvalidAnalysis,
			fmt.Errorf("expected %d scenes, got %d", o.cfg.SceneCount, len(analysis.Scenes)))
	}

	// --- 3. Синтез сцен ---
	if err := ctx.Err(); err != nil {
		return nil, r.fail(domain.CodeCancelled, err)
	}
	r.enter(domain.PhaseSynthesizingSegments)

	assets := o.synthesizeSegments(work, analysis, req.AspectRatio, r.exhausted)
	succeeded := 0
	for _, a := range assets {
		metrics.SegmentsTotal.WithLabelValues(string(a.Status)).Inc()
		if a.Status == domain.SceneStatusSucceeded {
			succeeded++
		}
	}
	failedCount := len(assets) - succeeded
	r.log.Info("Segments settled",
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failedCount),
		zap.Strings("exhausted_providers", r.exhausted.Names()),
	)
	if succeeded == 0 {
		return nil, r.fail(domain.CodeAllSegmentsFailed, fmt.Errorf("0 of %d scenes succeeded", len(assets)))
	}

	// --- 4. Озвучка ---
	if err := ctx.Err(); err != nil {
		return nil, r.fail(domain.CodeCancelled, err)
	}
	r.enter(domain.PhaseSynthesizingNarration)

	narration, err := o.narration.Synthesize(work, analysis.Script)
	if err != nil {
		return nil, r.fail(domain.CodeNarrationFailed, err)
	}

	// --- 5. Сборка ---
	if err := ctx.Err(); err != nil {
		return nil, r.fail(domain.CodeCancelled, err)
	}
	r.enter(domain.PhaseAssembling)

	campaign, err := o.assembler.Assemble(work, assets, narration, req.AspectRatio)
	if err != nil {
		return nil, r.fail(domain.CodeAssemblyFailed, err)
	}
	campaign.Analysis = analysis
	campaign.FailedSegmentCount = failedCount

	// --- 6. Списание ---
	if err := ctx.Err(); err != nil {
		return nil, r.fail(domain.CodeCancelled, err)
	}
	if r.reservation != "" {
		if err := o.ledger.Commit(work, r.reservation); err != nil {
			return nil, r.fail(domain.CodeLedgerUnavailable, fmt.Errorf("commit reservation: %w", err))
		}
		metrics.CreditsTotal.WithLabelValues(string(domain.TransactionCommitted)).Add(float64(o.cfg.CampaignCost))
	}

	r.enter(domain.PhaseCompleted)
	metrics.RunsTotal.WithLabelValues("completed").Inc()
	r.log.Info("Campaign completed",
		zap.Int("scenes", len(campaign.Scenes)),
		zap.Int("failed_segments", campaign.FailedSegmentCount),
		zap.Bool("audio_truncated", campaign.Timeline.AudioTruncated),
	)
	return campaign, nil
}

// synthesizeSegments запускает синтез всех сцен с ограниченным параллелизмом и
// возвращает ассеты, отсортированные по ordinal, независимо от порядка завершения.
func (o *Orchestrator) synthesizeSegments(ctx context.Context, analysis domain.NarrativeAnalysis, aspectRatio string, exhausted *provider.ExhaustedSet) []domain.SceneAsset {
	assets := make([]domain.SceneAsset, len(analysis.Scenes))

	var g errgroup.Group
	g.SetLimit(o.cfg.SegmentConcurrency)
	for i, descriptor := range analysis.Scenes {
		g.Go(func() error {
			assets[i] = o.segments.Synthesize(ctx, descriptor, analysis.VisualDNA, aspectRatio, o.chain, exhausted)
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(assets, func(i, j int) bool { return assets[i].Ordinal < assets[j].Ordinal })
	return assets
}

// run - контекст одного запуска.
type run struct {
	o           *Orchestrator
	req         domain.CampaignRequest
	onProgress  ProgressFunc
	phase       domain.Phase
	phaseStart  time.Time
	reservation domain.ReservationID
	exhausted   *provider.ExhaustedSet
	log         *zap.Logger
}

// enter переводит запуск в следующую фазу и сообщает об этом ровно один раз.
func (r *run) enter(next domain.Phase) {
	if !domain.CanTransition(r.phase, next) {
		r.log.Error("Illegal phase transition ignored", zap.Stringer("from", r.phase), zap.Stringer("to", next))
		return
	}
	now := time.Now()
	if r.phase != domain.PhasePending {
		metrics.StageDuration.WithLabelValues(r.phase.String()).Observe(now.Sub(r.phaseStart).Seconds())
	}
	r.log.Debug("Phase transition", zap.Stringer("from", r.phase), zap.Stringer("to", next))
	r.phase = next
	r.phaseStart = now
	if r.onProgress != nil {
		r.onProgress(next)
	}
}

// fail освобождает резерв, переводит запуск в FAILED и возвращает типизированную ошибку.
func (r *run) fail(code domain.ErrorCode, cause error) error {
	failedIn := r.phase
	if r.reservation != "" {
		if err := r.o.ledger.Release(context.Background(), r.reservation); err != nil {
			r.log.Error("Failed to release reservation", zap.String("reservation_id", string(r.reservation)), zap.Error(err))
		} else {
			metrics.CreditsTotal.WithLabelValues(string(domain.TransactionReleased)).Add(float64(r.o.cfg.CampaignCost))
		}
	}
	r.enter(domain.PhaseFailed)
	metrics.RunsTotal.WithLabelValues(string(code)).Inc()

	r.log.Warn("Campaign run failed", zap.String("code", string(code)), zap.Stringer("phase", failedIn), zap.Error(cause))
	return domain.NewPipelineError(code, failedIn, cause)
}
