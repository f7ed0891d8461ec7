package messaging

import "time"

// ResultStatus - итог запуска, отправляемый в очередь результатов.
type ResultStatus string

const (
	ResultStatusSuccess ResultStatus = "success"
	ResultStatusError   ResultStatus = "error"
)

// CampaignTaskPayload - задача на генерацию ролика, публикуется API и читается воркером.
type CampaignTaskPayload struct {
	TaskID      string    `json:"taskId"`
	AccountID   string    `json:"accountId"`
	SubjectRef  string    `json:"subjectRef"`
	Channel     string    `json:"channel"`
	AspectRatio string    `json:"aspectRatio"`
	RequestedAt time.Time `json:"requestedAt"`
}

// CampaignProgressPayload - переход запуска в новую фазу.
type CampaignProgressPayload struct {
	TaskID    string    `json:"taskId"`
	AccountID string    `json:"accountId"`
	Phase     string    `json:"phase"`
	At        time.Time `json:"at"`
}

// SceneSummary - итог по одной сцене без бинарных данных.
type SceneSummary struct {
	Ordinal  int    `json:"ordinal"`
	Status   string `json:"status"`
	Provider string `json:"provider,omitempty"`
	Error    string `json:"error,omitempty"`
}

// CampaignResultPayload - терминальный результат запуска.
type CampaignResultPayload struct {
	TaskID             string         `json:"taskId"`
	AccountID          string         `json:"accountId"`
	Status             ResultStatus   `json:"status"`
	ErrorCode          string         `json:"errorCode,omitempty"`
	FailedPhase        string         `json:"failedPhase,omitempty"`
	ErrorDetails       string         `json:"errorDetails,omitempty"`
	VideoURL           string         `json:"videoUrl,omitempty"`
	NarrationURL       string         `json:"narrationUrl,omitempty"`
	ManifestURL        string         `json:"manifestUrl,omitempty"`
	Headline           string         `json:"headline,omitempty"`
	Body               string         `json:"body,omitempty"`
	CTA                string         `json:"cta,omitempty"`
	Hashtags           []string       `json:"hashtags,omitempty"`
	Scenes             []SceneSummary `json:"scenes,omitempty"`
	FailedSegmentCount int            `json:"failedSegmentCount"`
	AudioTruncated     bool           `json:"audioTruncated"`
	TrailingSilenceMs  int64          `json:"trailingSilenceMs"`
	CompletedAt        time.Time      `json:"completedAt"`
}

// CampaignCancelPayload - запрос на отмену запуска, рассылается всем воркерам через fanout.
type CampaignCancelPayload struct {
	TaskID    string `json:"taskId"`
	AccountID string `json:"accountId"`
}
