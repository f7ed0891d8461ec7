package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"campaign-server/internal/artifacts"
	"campaign-server/internal/domain"
	"campaign-server/internal/mocks"
	"campaign-server/internal/pipeline"
	"campaign-server/shared/messaging"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type handlerDeps struct {
	runner   *mocks.MockCampaignRunner
	lookup   *mocks.MockAccountLookup
	sink     *mocks.MockSink
	progress *mocks.MockPublisher
	results  *mocks.MockPublisher
	runs     *RunRegistry
	handler  *Handler
}

func newHandlerDeps(t *testing.T) *handlerDeps {
	d := &handlerDeps{
		runner:   mocks.NewMockCampaignRunner(t),
		lookup:   mocks.NewMockAccountLookup(t),
		sink:     mocks.NewMockSink(t),
		progress: mocks.NewMockPublisher(t),
		results:  mocks.NewMockPublisher(t),
		runs:     NewRunRegistry(time.Minute),
	}
	d.handler = NewHandler(d.runner, d.lookup, d.sink, d.progress, d.results, d.runs, zap.NewNop())
	return d
}

func testTask() messaging.CampaignTaskPayload {
	return messaging.CampaignTaskPayload{
		TaskID:      "task-1",
		AccountID:   "acc-1",
		SubjectRef:  "evt-42",
		Channel:     "instagram",
		AspectRatio: "9:16",
	}
}

func resultWith(check func(r messaging.CampaignResultPayload) bool) interface{} {
	return mock.MatchedBy(func(p interface{}) bool {
		r, ok := p.(messaging.CampaignResultPayload)
		return ok && check(r)
	})
}

func TestHandle_SuccessPublishesProgressAndResult(t *testing.T) {
	d := newHandlerDeps(t)
	campaign := &domain.AssembledCampaign{
		Analysis:           domain.NarrativeAnalysis{Social: domain.SocialCopy{Headline: "Jazz Night", Hashtags: []string{"#jazz"}}},
		Scenes:             []domain.SceneAsset{{Ordinal: 1, Status: domain.SceneStatusSucceeded, Provider: "sana"}},
		FailedSegmentCount: 4,
		Timeline:           domain.Timeline{AudioTruncated: true},
	}

	d.lookup.On("Lookup", mock.Anything, "acc-1").Return(domain.Account{ID: "acc-1", Tier: domain.AccountTierPro, IsPrivileged: true}, nil)
	d.runner.On("Run", mock.Anything, mock.MatchedBy(func(req domain.CampaignRequest) bool {
		return req.TaskID == "task-1" && req.IsPrivileged && req.AccountTier == domain.AccountTierPro && req.Channel == "instagram"
	}), mock.Anything).
		Run(func(args mock.Arguments) {
			onProgress := args.Get(2).(pipeline.ProgressFunc)
			onProgress(domain.PhaseAnalyzing)
			onProgress(domain.PhaseCompleted)
		}).
		Return(campaign, nil)
	d.progress.On("Publish", mock.Anything, mock.MatchedBy(func(p interface{}) bool {
		msg, ok := p.(messaging.CampaignProgressPayload)
		return ok && (msg.Phase == "ANALYZING" || msg.Phase == "COMPLETED")
	}), "task-1").Return(nil).Twice()
	d.sink.On("Store", mock.Anything, "task-1", campaign).Return(artifacts.Stored{VideoURL: "https://cdn/task-1.mp4"}, nil)
	d.results.On("Publish", mock.Anything, resultWith(func(r messaging.CampaignResultPayload) bool {
		return r.Status == messaging.ResultStatusSuccess &&
			r.VideoURL == "https://cdn/task-1.mp4" &&
			r.Headline == "Jazz Night" &&
			r.FailedSegmentCount == 4 &&
			r.AudioTruncated &&
			len(r.Scenes) == 1
	}), "task-1").Return(nil)

	require.NoError(t, d.handler.Handle(context.Background(), testTask()))
	assert.Zero(t, d.runs.Active())
}

func TestHandle_PipelineFailurePublishesTypedError(t *testing.T) {
	d := newHandlerDeps(t)
	runErr := domain.NewPipelineError(domain.CodeAllSegmentsFailed, domain.PhaseSynthesizingSegments, errors.New("no provider"))

	d.lookup.On("Lookup", mock.Anything, "acc-1").Return(domain.Account{ID: "acc-1", Tier: domain.AccountTierFree}, nil)
	d.runner.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(nil, runErr)
	d.results.On("Publish", mock.Anything, resultWith(func(r messaging.CampaignResultPayload) bool {
		return r.Status == messaging.ResultStatusError &&
			r.ErrorCode == "all_segments_failed" &&
			r.FailedPhase == "SYNTHESIZING_SEGMENTS"
	}), "task-1").Return(nil)

	require.NoError(t, d.handler.Handle(context.Background(), testTask()))
}

func TestHandle_InvalidRequest(t *testing.T) {
	d := newHandlerDeps(t)
	d.lookup.On("Lookup", mock.Anything, "acc-1").Return(domain.Account{ID: "acc-1"}, nil)
	d.runner.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(nil, pipeline.ErrInvalidRequest)
	d.results.On("Publish", mock.Anything, resultWith(func(r messaging.CampaignResultPayload) bool {
		return r.ErrorCode == CodeInvalidRequest
	}), "task-1").Return(nil)

	require.NoError(t, d.handler.Handle(context.Background(), testTask()))
}

func TestHandle_AccountLookupFailure(t *testing.T) {
	d := newHandlerDeps(t)
	d.lookup.On("Lookup", mock.Anything, "acc-1").Return(domain.Account{}, errors.New("db down"))
	d.results.On("Publish", mock.Anything, resultWith(func(r messaging.CampaignResultPayload) bool {
		return r.ErrorCode == CodeAccountUnavailable
	}), "task-1").Return(nil)

	require.NoError(t, d.handler.Handle(context.Background(), testTask()))
	d.runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandle_ArtifactSaveFailure(t *testing.T) {
	d := newHandlerDeps(t)
	campaign := &domain.AssembledCampaign{}
	d.lookup.On("Lookup", mock.Anything, "acc-1").Return(domain.Account{ID: "acc-1"}, nil)
	d.runner.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(campaign, nil)
	d.sink.On("Store", mock.Anything, "task-1", campaign).Return(artifacts.Stored{}, artifacts.ErrSaveFailed)
	d.results.On("Publish", mock.Anything, resultWith(func(r messaging.CampaignResultPayload) bool {
		return r.ErrorCode == CodeArtifactSaveFailed
	}), "task-1").Return(nil)

	require.NoError(t, d.handler.Handle(context.Background(), testTask()))
}

func TestHandle_ResultPublishFailureIsReturned(t *testing.T) {
	d := newHandlerDeps(t)
	d.lookup.On("Lookup", mock.Anything, "acc-1").Return(domain.Account{}, errors.New("db down"))
	d.results.On("Publish", mock.Anything, mock.Anything, "task-1").Return(errors.New("channel closed"))

	assert.Error(t, d.handler.Handle(context.Background(), testTask()))
}

func TestHandle_ProgressPublishFailureDoesNotFailRun(t *testing.T) {
	d := newHandlerDeps(t)
	campaign := &domain.AssembledCampaign{}
	d.lookup.On("Lookup", mock.Anything, "acc-1").Return(domain.Account{ID: "acc-1"}, nil)
	d.runner.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { args.Get(2).(pipeline.ProgressFunc)(domain.PhaseAnalyzing) }).
		Return(campaign, nil)
	d.progress.On("Publish", mock.Anything, mock.Anything, "task-1").Return(errors.New("broker gone"))
	d.sink.On("Store", mock.Anything, "task-1", campaign).Return(artifacts.Stored{}, nil)
	d.results.On("Publish", mock.Anything, resultWith(func(r messaging.CampaignResultPayload) bool {
		return r.Status == messaging.ResultStatusSuccess
	}), "task-1").Return(nil)

	require.NoError(t, d.handler.Handle(context.Background(), testTask()))
}

func TestHandle_CancelFromRegistryReachesRun(t *testing.T) {
	d := newHandlerDeps(t)
	d.lookup.On("Lookup", mock.Anything, "acc-1").Return(domain.Account{ID: "acc-1"}, nil)
	d.runner.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, _ domain.CampaignRequest, _ func(domain.Phase)) *domain.AssembledCampaign {
			assert.True(t, d.runs.Cancel("task-1"))
			<-ctx.Done()
			return nil
		}, domain.NewPipelineError(domain.CodeCancelled, domain.PhaseAnalyzing, context.Canceled))
	d.results.On("Publish", mock.Anything, resultWith(func(r messaging.CampaignResultPayload) bool {
		return r.ErrorCode == "cancelled"
	}), "task-1").Return(nil)

	require.NoError(t, d.handler.Handle(context.Background(), testTask()))
}

func TestHandle_ShutdownRequeues(t *testing.T) {
	d := newHandlerDeps(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d.lookup.On("Lookup", mock.Anything, "acc-1").Return(domain.Account{ID: "acc-1"}, nil)
	d.runner.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.NewPipelineError(domain.CodeCancelled, domain.PhasePending, context.Canceled))

	body, err := json.Marshal(testTask())
	require.NoError(t, err)
	assert.Equal(t, Requeue, d.handler.HandleDelivery(ctx, amqp091.Delivery{Body: body}))
	d.results.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandle_ShutdownMidRunSuppressesFailedProgress(t *testing.T) {
	d := newHandlerDeps(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d.lookup.On("Lookup", mock.Anything, "acc-1").Return(domain.Account{ID: "acc-1"}, nil)
	d.runner.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			onProgress := args.Get(2).(func(domain.Phase))
			onProgress(domain.PhaseAnalyzing)
			cancel()
			onProgress(domain.PhaseFailed)
		}).
		Return(nil, domain.NewPipelineError(domain.CodeCancelled, domain.PhaseAnalyzing, context.Canceled))
	d.progress.On("Publish", mock.Anything, mock.MatchedBy(func(p interface{}) bool {
		msg, ok := p.(messaging.CampaignProgressPayload)
		return ok && msg.Phase == domain.PhaseAnalyzing.String()
	}), "task-1").Return(nil).Once()

	err := d.handler.Handle(ctx, testTask())

	assert.ErrorIs(t, err, ErrShuttingDown)
	d.progress.AssertNumberOfCalls(t, "Publish", 1)
	d.results.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleDelivery_MalformedIsRejected(t *testing.T) {
	d := newHandlerDeps(t)
	assert.Equal(t, Reject, d.handler.HandleDelivery(context.Background(), amqp091.Delivery{Body: []byte("{not json")}))
	assert.Equal(t, Reject, d.handler.HandleDelivery(context.Background(), amqp091.Delivery{Body: []byte(`{"accountId":"a"}`)}))
}
