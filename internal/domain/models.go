package domain

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// AccountTier - тарифный уровень аккаунта, приходит из слоя биллинга.
type AccountTier string

const (
	AccountTierFree       AccountTier = "free"
	AccountTierPro        AccountTier = "pro"
	AccountTierEnterprise AccountTier = "enterprise"
)

// Account - данные аккаунта, нужные пайплайну для решения о тарификации.
type Account struct {
	ID           string      `db:"id" json:"id"`
	Tier         AccountTier `db:"tier" json:"tier"`
	IsPrivileged bool        `db:"is_privileged" json:"isPrivileged"`
}

// CampaignRequest - неизменяемый вход одного запуска пайплайна.
type CampaignRequest struct {
	TaskID       string      `json:"taskId" validate:"required"`
	SubjectRef   string      `json:"subjectRef" validate:"required,max=2048"`
	Channel      string      `json:"channel" validate:"required,oneof=instagram tiktok youtube facebook linkedin x"`
	AspectRatio  string      `json:"aspectRatio" validate:"required,oneof=9:16 16:9 1:1 4:5"`
	AccountID    string      `json:"accountId" validate:"required"`
	AccountTier  AccountTier `json:"accountTier"`
	IsPrivileged bool        `json:"isPrivileged"`
}

var requestValidator = validator.New()

// Validate проверяет структурную корректность запроса.
func (r CampaignRequest) Validate() error {
	return requestValidator.Struct(r)
}

// Subject - то, о чем снимается ролик: событие платформы или внешняя страница.
type Subject struct {
	Ref         string `json:"ref"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Venue       string `json:"venue,omitempty"`
	StartsAt    string `json:"startsAt,omitempty"`
	SourceURL   string `json:"sourceUrl,omitempty"`
}

// ScenePhase - нарративная фаза сцены.
type ScenePhase string

const (
	ScenePhaseHook   ScenePhase = "hook"
	ScenePhaseBuild  ScenePhase = "build"
	ScenePhaseClimax ScenePhase = "climax"
	ScenePhaseCTA    ScenePhase = "cta"
)

// SceneDescriptor - описание одной сцены, выдаваемое анализатором.
type SceneDescriptor struct {
	Ordinal        int           `json:"ordinal"`
	TargetDuration time.Duration `json:"targetDuration"`
	VisualPrompt   string        `json:"visualPrompt"`
	Phase          ScenePhase    `json:"phase"`
}

// SocialCopy - структурированный текст для публикации в соцсетях.
type SocialCopy struct {
	Headline string   `json:"headline"`
	Body     string   `json:"body"`
	CTA      string   `json:"cta"`
	Hashtags []string `json:"hashtags"`
}

// Citation - источник, на который сослалась модель (информационно).
type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// NarrativeAnalysis - результат анализатора. После создания только читается.
type NarrativeAnalysis struct {
	Essence   string            `json:"essence"`
	VisualDNA string            `json:"visualDna"`
	Script    string            `json:"script"`
	Scenes    []SceneDescriptor `json:"scenes"`
	Social    SocialCopy        `json:"social"`
	Citations []Citation        `json:"citations,omitempty"`
}

// Media - непрозрачный бинарный payload от провайдера.
type Media struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mimeType"`
}

// IsVideo сообщает, является ли payload видеоклипом (иначе это статичное изображение).
func (m Media) IsVideo() bool {
	return strings.HasPrefix(m.MimeType, "video/")
}

// SceneStatus - статус синтеза одной сцены.
type SceneStatus string

const (
	SceneStatusPending   SceneStatus = "pending"
	SceneStatusSucceeded SceneStatus = "succeeded"
	SceneStatusFailed    SceneStatus = "failed"
)

// SceneAsset - результат синтеза одного SceneDescriptor, сопоставляется по Ordinal.
type SceneAsset struct {
	Ordinal        int           `json:"ordinal"`
	Status         SceneStatus   `json:"status"`
	Media          Media         `json:"media"`
	Error          string        `json:"error,omitempty"`
	Provider       string        `json:"provider,omitempty"`
	TargetDuration time.Duration `json:"targetDuration"`
}

// NarrationAsset - единая аудиодорожка озвучки всего сценария.
type NarrationAsset struct {
	Media    Media         `json:"media"`
	Duration time.Duration `json:"duration"`
}

// TimelineEntry - позиция одного визуального ассета на итоговой шкале.
type TimelineEntry struct {
	Ordinal  int           `json:"ordinal"`
	Offset   time.Duration `json:"offset"`
	Duration time.Duration `json:"duration"`
}

// Timeline - план сборки: визуальный ряд и то, сколько озвучки в него попадает.
type Timeline struct {
	Entries         []TimelineEntry `json:"entries"`
	VisualDuration  time.Duration   `json:"visualDuration"`
	AudioDuration   time.Duration   `json:"audioDuration"`   // Длительность озвучки в итоговом ролике
	AudioTruncated  bool            `json:"audioTruncated"`  // Озвучка обрезана по длине видео
	TrailingSilence time.Duration   `json:"trailingSilence"` // Хвост видео без озвучки
}

// AssembledCampaign - терминальный артефакт пайплайна.
type AssembledCampaign struct {
	Video              Media             `json:"video"`
	Narration          NarrationAsset    `json:"narration"`
	Analysis           NarrativeAnalysis `json:"analysis"`
	Scenes             []SceneAsset      `json:"scenes"`
	FailedSegmentCount int               `json:"failedSegmentCount"`
	Timeline           Timeline          `json:"timeline"`
}
