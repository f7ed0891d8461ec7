// Package worker связывает очередь задач RabbitMQ с пайплайном кампаний.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"campaign-server/internal/accounts"
	"campaign-server/internal/artifacts"
	"campaign-server/internal/domain"
	"campaign-server/internal/metrics"
	"campaign-server/internal/pipeline"
	"campaign-server/shared/messaging"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Коды ошибок уровня воркера, которых нет в таксономии пайплайна.
const (
	CodeInvalidRequest     = "invalid_request"
	CodeAccountUnavailable = "account_unavailable"
	CodeArtifactSaveFailed = "artifact_save_failed"
	CodeInternal           = "internal_error"
)

var (
	ErrMalformedTask = errors.New("malformed campaign task")
	// ErrShuttingDown - запуск прерван остановкой воркера, задачу нужно вернуть в очередь.
	ErrShuttingDown = errors.New("worker is shutting down")
)

const publishTimeout = 10 * time.Second

// CampaignRunner - пайплайн, как его видит воркер.
type CampaignRunner interface {
	Run(ctx context.Context, req domain.CampaignRequest, onProgress pipeline.ProgressFunc) (*domain.AssembledCampaign, error)
}

// Disposition - что сделать с сообщением после обработки.
type Disposition int

const (
	Ack Disposition = iota
	Requeue
	Reject
)

// Handler обрабатывает одну задачу: аккаунт, запуск пайплайна, прогресс, сохранение, результат.
type Handler struct {
	runner   CampaignRunner
	lookup   accounts.Lookup
	sink     artifacts.Sink
	progress messaging.Publisher
	results  messaging.Publisher
	runs     *RunRegistry
	logger   *zap.Logger
}

func NewHandler(
	runner CampaignRunner,
	lookup accounts.Lookup,
	sink artifacts.Sink,
	progress messaging.Publisher,
	results messaging.Publisher,
	runs *RunRegistry,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		runner:   runner,
		lookup:   lookup,
		sink:     sink,
		progress: progress,
		results:  results,
		runs:     runs,
		logger:   logger.Named("TaskHandler"),
	}
}

// HandleDelivery разбирает сообщение и решает его судьбу.
func (h *Handler) HandleDelivery(ctx context.Context, msg amqp091.Delivery) Disposition {
	var payload messaging.CampaignTaskPayload
	if err := json.Unmarshal(msg.Body, &payload); err != nil || payload.TaskID == "" {
		h.logger.Error("Failed to unmarshal campaign task",
			zap.Error(err), zap.String("correlation_id", msg.CorrelationId), zap.ByteString("body", msg.Body))
		return Reject
	}

	err := h.Handle(ctx, payload)
	switch {
	case err == nil:
		return Ack
	case errors.Is(err, ErrShuttingDown):
		return Requeue
	default:
		return Reject
	}
}

// Handle выполняет задачу. Ошибка пайплайна сама по себе не ошибка Handle:
// она уходит в очередь результатов. Handle возвращает ошибку, только если
// результат не удалось доставить или воркер останавливается.
func (h *Handler) Handle(ctx context.Context, payload messaging.CampaignTaskPayload) error {
	metrics.TasksReceived.Inc()
	start := time.Now()
	log := h.logger.With(zap.String("task_id", payload.TaskID), zap.String("account_id", payload.AccountID))
	log.Info("Campaign task received", zap.String("subject_ref", payload.SubjectRef), zap.String("channel", payload.Channel))

	acc, err := h.lookup.Lookup(ctx, payload.AccountID)
	if err != nil {
		log.Error("Account lookup failed", zap.Error(err))
		return h.publishResult(log, failureResult(payload, CodeAccountUnavailable, "", err))
	}

	req := domain.CampaignRequest{
		TaskID:       payload.TaskID,
		SubjectRef:   payload.SubjectRef,
		Channel:      payload.Channel,
		AspectRatio:  payload.AspectRatio,
		AccountID:    payload.AccountID,
		AccountTier:  acc.Tier,
		IsPrivileged: acc.IsPrivileged,
	}

	runCtx, done := h.runs.Start(ctx, payload.TaskID)
	campaign, runErr := h.runner.Run(runCtx, req, h.progressFunc(ctx, log, payload))
	done()

	if runErr != nil {
		if errors.Is(runErr, domain.ErrCancelled) && ctx.Err() != nil {
			log.Warn("Run interrupted by shutdown, returning task to queue")
			return fmt.Errorf("%w: %v", ErrShuttingDown, runErr)
		}
		code, phase := classifyRunError(runErr)
		log.Warn("Campaign run failed", zap.String("code", code), zap.String("phase", phase), zap.Error(runErr))
		return h.publishResult(log, failureResult(payload, code, phase, runErr))
	}

	stored, err := h.sink.Store(ctx, payload.TaskID, campaign)
	if err != nil {
		metrics.ArtifactSaveErrors.Inc()
		log.Error("Failed to store campaign artifacts", zap.Error(err))
		return h.publishResult(log, failureResult(payload, CodeArtifactSaveFailed, domain.PhaseCompleted.String(), err))
	}

	log.Info("Campaign task completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("failed_segments", campaign.FailedSegmentCount),
		zap.String("video_url", stored.VideoURL))
	return h.publishResult(log, successResult(payload, campaign, stored))
}

// progressFunc пересылает фазы в очередь прогресса. FAILED при остановке воркера не
// отправляется: задача вернется в очередь и будет выполнена заново.
func (h *Handler) progressFunc(workerCtx context.Context, log *zap.Logger, payload messaging.CampaignTaskPayload) pipeline.ProgressFunc {
	return func(phase domain.Phase) {
		if phase == domain.PhaseFailed && workerCtx.Err() != nil {
			log.Debug("Skipping FAILED progress, worker is shutting down")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		msg := messaging.CampaignProgressPayload{
			TaskID:    payload.TaskID,
			AccountID: payload.AccountID,
			Phase:     phase.String(),
			At:        time.Now().UTC(),
		}
		// Потеря события прогресса не ломает запуск.
		if err := h.progress.Publish(ctx, msg, payload.TaskID); err != nil {
			metrics.PublishErrors.WithLabelValues("progress").Inc()
			log.Warn("Failed to publish progress", zap.String("phase", phase.String()), zap.Error(err))
		}
	}
}

func (h *Handler) publishResult(log *zap.Logger, result messaging.CampaignResultPayload) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := h.results.Publish(ctx, result, result.TaskID); err != nil {
		metrics.PublishErrors.WithLabelValues("result").Inc()
		log.Error("Failed to publish campaign result", zap.String("status", string(result.Status)), zap.Error(err))
		return fmt.Errorf("publish result: %w", err)
	}
	return nil
}

func classifyRunError(err error) (code, phase string) {
	if errors.Is(err, pipeline.ErrInvalidRequest) {
		return CodeInvalidRequest, domain.PhasePending.String()
	}
	var pErr *domain.PipelineError
	if errors.As(err, &pErr) {
		return string(pErr.Code), pErr.Phase.String()
	}
	return CodeInternal, ""
}

func failureResult(payload messaging.CampaignTaskPayload, code, phase string, err error) messaging.CampaignResultPayload {
	return messaging.CampaignResultPayload{
		TaskID:       payload.TaskID,
		AccountID:    payload.AccountID,
		Status:       messaging.ResultStatusError,
		ErrorCode:    code,
		FailedPhase:  phase,
		ErrorDetails: err.Error(),
		CompletedAt:  time.Now().UTC(),
	}
}

func successResult(payload messaging.CampaignTaskPayload, c *domain.AssembledCampaign, stored artifacts.Stored) messaging.CampaignResultPayload {
	scenes := make([]messaging.SceneSummary, 0, len(c.Scenes))
	for _, sc := range c.Scenes {
		scenes = append(scenes, messaging.SceneSummary{
			Ordinal:  sc.Ordinal,
			Status:   string(sc.Status),
			Provider: sc.Provider,
			Error:    sc.Error,
		})
	}
	return messaging.CampaignResultPayload{
		TaskID:             payload.TaskID,
		AccountID:          payload.AccountID,
		Status:             messaging.ResultStatusSuccess,
		VideoURL:           stored.VideoURL,
		NarrationURL:       stored.NarrationURL,
		ManifestURL:        stored.ManifestURL,
		Headline:           c.Analysis.Social.Headline,
		Body:               c.Analysis.Social.Body,
		CTA:                c.Analysis.Social.CTA,
		Hashtags:           c.Analysis.Social.Hashtags,
		Scenes:             scenes,
		FailedSegmentCount: c.FailedSegmentCount,
		AudioTruncated:     c.Timeline.AudioTruncated,
		TrailingSilenceMs:  c.Timeline.TrailingSilence.Milliseconds(),
		CompletedAt:        time.Now().UTC(),
	}
}
