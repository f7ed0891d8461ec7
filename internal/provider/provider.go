// Package provider описывает узкие контракты генеративных провайдеров и
// политику классификации их ошибок.
package provider

import (
	"context"
	"encoding/json"
	"time"

	"campaign-server/internal/domain"
)

// ReasoningRequest - запрос к reasoning-модели со схемой ответа.
type ReasoningRequest struct {
	AccountID    string
	SystemPrompt string
	UserInput    string
	Schema       json.RawMessage // JSON Schema, которой должен соответствовать ответ
	SchemaName   string
}

// Usage - информация об использовании токенов.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ReasoningResponse - ответ reasoning-модели.
type ReasoningResponse struct {
	Text      string
	Citations []domain.Citation
	Usage     Usage
}

// ReasoningProvider - провайдер структурированного текста (анализ кампании).
type ReasoningProvider interface {
	Name() string
	Complete(ctx context.Context, req ReasoningRequest) (ReasoningResponse, error)
}

// VisualRequest - запрос на один визуальный ассет.
type VisualRequest struct {
	Prompt      string
	AspectRatio string
	Duration    time.Duration // Целевая длительность (учитывают только видео-провайдеры)
	Seed        int64
}

// VisualProvider - провайдер изображений или видеоклипов. Входит в цепочку фоллбэка.
type VisualProvider interface {
	Name() string
	Generate(ctx context.Context, req VisualRequest) (domain.Media, error)
}

// SpeechResult - результат синтеза речи. Duration может быть нулевым,
// если провайдер не сообщает длительность.
type SpeechResult struct {
	Media    domain.Media
	Duration time.Duration
}

// SpeechProvider - text-to-speech провайдер.
type SpeechProvider interface {
	Name() string
	Synthesize(ctx context.Context, script string) (SpeechResult, error)
}

// DurationProbe измеряет длительность медиа (например, через ffprobe).
type DurationProbe interface {
	Probe(ctx context.Context, media domain.Media) (time.Duration, error)
}

// MuxInput - упорядоченный визуальный ряд плюс озвучка для сборки.
type MuxInput struct {
	Visuals     []domain.SceneAsset
	Narration   domain.NarrationAsset
	Timeline    domain.Timeline
	AspectRatio string
}

// Muxer собирает визуальный ряд и озвучку в один видеофайл.
type Muxer interface {
	Mux(ctx context.Context, in MuxInput) (domain.Media, error)
}
