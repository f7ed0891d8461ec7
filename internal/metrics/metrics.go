// Package metrics содержит метрики пайплайна кампаний и отправку их в Pushgateway.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

const jobName = "campaign_worker"

var (
	// Registry - локальный реестр метрик, его отдает Pushgateway-пушер.
	Registry = prometheus.NewRegistry()

	TasksReceived = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "campaign_tasks_received_total",
		Help: "Total number of campaign tasks received by the worker.",
	})
	RunsTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_runs_total",
		Help: "Total number of pipeline runs, partitioned by outcome (completed or error code).",
	}, []string{"outcome"})
	StageDuration = promauto.With(Registry).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campaign_stage_duration_seconds",
		Help:    "Duration of each pipeline stage.",
		Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"phase"})
	SegmentsTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_segments_total",
		Help: "Total number of synthesized scenes, partitioned by final status.",
	}, []string{"status"})
	VisualProviderResults = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_visual_provider_results_total",
		Help: "Scene synthesis results per provider after the local retry.",
	}, []string{"provider", "outcome"})
	VisualProviderExhausted = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_visual_provider_exhausted_total",
		Help: "How many times a provider was removed from the chain for the rest of a run.",
	}, []string{"provider"})
	VisualProviderLatency = promauto.With(Registry).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campaign_visual_provider_call_duration_seconds",
		Help:    "Duration of a single visual provider call.",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
	}, []string{"provider"})
	CreditsTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_credits_total",
		Help: "Credits moved through the ledger, partitioned by phase (reserved/committed/released).",
	}, []string{"phase"})
	TokensUsed = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_ai_tokens_used_total",
		Help: "Total number of AI tokens used by the narrative analyzer.",
	}, []string{"provider"})
	PublishErrors = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_publish_errors_total",
		Help: "Failed publications of progress and result messages.",
	}, []string{"kind"})
	ArtifactSaveErrors = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "campaign_artifact_save_errors_total",
		Help: "Total number of errors saving assembled campaigns.",
	})
	CancelRequests = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_cancel_requests_total",
		Help: "Cancel requests received by the worker, partitioned by whether a local run matched.",
	}, []string{"matched"})
)

// Pusher периодически отправляет Registry в Pushgateway.
type Pusher struct {
	pusher *push.Pusher
	logger *zap.Logger
	mu     sync.Mutex
}

// NewPusher создает пушер для инстанса hostname-pid и проверяет соединение первым push.
func NewPusher(pushgatewayURL string, logger *zap.Logger) (*Pusher, error) {
	if pushgatewayURL == "" {
		return nil, errors.New("pushgateway url is empty")
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	instanceID := fmt.Sprintf("%s-%d", hostname, os.Getpid())

	p := &Pusher{
		pusher: push.New(pushgatewayURL, jobName).Gatherer(Registry).Grouping("instance", instanceID),
		logger: logger.Named("MetricsPusher"),
	}
	p.logger.Info("Initializing Pushgateway pusher", zap.String("job", jobName), zap.String("instance", instanceID), zap.String("url", pushgatewayURL))
	if err := p.Push(); err != nil {
		return nil, fmt.Errorf("could not push initial metrics to Pushgateway: %w", err)
	}
	return p, nil
}

// Push отправляет текущие значения метрик.
func (p *Pusher) Push() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.pusher.Push(); err != nil {
		p.logger.Warn("Error pushing metrics to Pushgateway", zap.Error(err))
		return err
	}
	return nil
}

// Run пушит метрики с интервалом, пока не отменен ctx.
func (p *Pusher) Run(ctx context.Context, interval time.Duration) {
	if p == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.Push()
		}
	}
}

// Cleanup удаляет метрики инстанса из Pushgateway. Вызывается через defer в main.
func (p *Pusher) Cleanup() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.pusher.Delete(); err != nil {
		p.logger.Warn("Error deleting metrics from Pushgateway", zap.Error(err))
		return
	}
	p.logger.Info("Metrics deleted from Pushgateway")
}
