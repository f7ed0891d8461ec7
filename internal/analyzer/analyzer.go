// Package analyzer получает от reasoning-модели структурированный нарратив кампании.
package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"campaign-server/internal/domain"
	"campaign-server/internal/metrics"
	"campaign-server/internal/provider"

	"go.uber.org/zap"
)

// MaxSceneSeconds - верхняя граница длительности одной сцены в ответе модели.
const MaxSceneSeconds = 600.0

// ErrReasoningFailed - провайдер не вернул ответ (ошибка вызова или таймаут).
var ErrReasoningFailed = errors.New("reasoning provider call failed")

// TokenCounter оценивает размер промпта в токенах.
type TokenCounter interface {
	Count(text string) int
}

// Analyzer делает ровно один вызов reasoning-провайдера на запуск, без повторов.
type Analyzer struct {
	reasoning   provider.ReasoningProvider
	tokens      TokenCounter
	callTimeout time.Duration
	logger      *zap.Logger
}

// NewAnalyzer создает анализатор. tokens может быть nil.
func NewAnalyzer(reasoning provider.ReasoningProvider, tokens TokenCounter, callTimeout time.Duration, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		reasoning:   reasoning,
		tokens:      tokens,
		callTimeout: callTimeout,
		logger:      logger.Named("NarrativeAnalyzer"),
	}
}

// Analyze возвращает нарратив ровно из n сцен. Ошибки вызова оборачивают ErrReasoningFailed,
// некорректный ответ - domain.ErrInvalidAnalysis.
func (a *Analyzer) Analyze(ctx context.Context, subject domain.Subject, channel, aspectRatio string, n int, accountID string) (domain.NarrativeAnalysis, error) {
	if n <= 0 {
		return domain.NarrativeAnalysis{}, fmt.Errorf("%w: scene count must be positive, got %d", domain.ErrInvalidAnalysis, n)
	}
	log := a.logger.With(zap.String("provider", a.reasoning.Name()), zap.String("channel", channel), zap.Int("scenes", n))

	req := provider.ReasoningRequest{
		AccountID:    accountID,
		SystemPrompt: buildSystemPrompt(channel, aspectRatio, n),
		UserInput:    buildUserInput(subject),
		Schema:       BuildSchema(n),
		SchemaName:   schemaName,
	}
	if a.tokens != nil {
		log.Debug("Estimated prompt size", zap.Int("prompt_tokens", a.tokens.Count(req.SystemPrompt+req.UserInput)))
	}

	callCtx := ctx
	if a.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.callTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := a.reasoning.Complete(callCtx, req)
	if err != nil {
		log.Error("Reasoning call failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return domain.NarrativeAnalysis{}, fmt.Errorf("%w: %v", ErrReasoningFailed, err)
	}
	if resp.Usage.TotalTokens > 0 {
		metrics.TokensUsed.WithLabelValues(a.reasoning.Name()).Add(float64(resp.Usage.TotalTokens))
	}

	analysis, err := Parse(resp.Text, n)
	if err != nil {
		log.Warn("Reasoning response rejected", zap.Error(err), zap.Int("response_len", len(resp.Text)))
		return domain.NarrativeAnalysis{}, err
	}
	analysis.Citations = resp.Citations

	log.Info("Narrative analysis ready",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Int("citations", len(analysis.Citations)),
	)
	return analysis, nil
}

// Parse разбирает и валидирует ответ модели. Количество сцен должно быть ровно n:
// ответ с n-1 или n+1 сценами отклоняется, а не обрезается или дополняется.
func Parse(text string, n int) (domain.NarrativeAnalysis, error) {
	var raw rawAnalysis
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &raw); err != nil {
		return domain.NarrativeAnalysis{}, fmt.Errorf("%w: malformed JSON: %v", domain.ErrInvalidAnalysis, err)
	}
	if len(raw.Scenes) != n {
		return domain.NarrativeAnalysis{}, fmt.Errorf("%w: expected %d scenes, got %d", domain.ErrInvalidAnalysis, n, len(raw.Scenes))
	}
	if strings.TrimSpace(raw.VisualDNA) == "" {
		return domain.NarrativeAnalysis{}, fmt.Errorf("%w: visual_dna is empty", domain.ErrInvalidAnalysis)
	}
	if strings.TrimSpace(raw.Script) == "" {
		return domain.NarrativeAnalysis{}, fmt.Errorf("%w: script is empty", domain.ErrInvalidAnalysis)
	}
	if strings.TrimSpace(raw.Essence) == "" {
		return domain.NarrativeAnalysis{}, fmt.Errorf("%w: essence is empty", domain.ErrInvalidAnalysis)
	}
	if err := checkSocial(raw.Social); err != nil {
		return domain.NarrativeAnalysis{}, err
	}

	scenes, err := convertScenes(raw.Scenes)
	if err != nil {
		return domain.NarrativeAnalysis{}, err
	}

	return domain.NarrativeAnalysis{
		Essence:   strings.TrimSpace(raw.Essence),
		VisualDNA: strings.TrimSpace(raw.VisualDNA),
		Script:    strings.TrimSpace(raw.Script),
		Scenes:    scenes,
		Social: domain.SocialCopy{
			Headline: strings.TrimSpace(raw.Social.Headline),
			Body:     strings.TrimSpace(raw.Social.Body),
			CTA:      strings.TrimSpace(raw.Social.CTA),
			Hashtags: raw.Social.Hashtags,
		},
	}, nil
}

// checkSocial требует заполненные заголовок, текст и призыв к действию. Хэштеги необязательны.
func checkSocial(social rawSocial) error {
	fields := []struct{ name, value string }{
		{"headline", social.Headline},
		{"body", social.Body},
		{"cta", social.CTA},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: social.%s is empty", domain.ErrInvalidAnalysis, f.name)
		}
	}
	return nil
}

// convertScenes проверяет сцены и нормализует ordinal: либо все нули (тогда берется позиция),
// либо перестановка 1..n (тогда сцены сортируются).
func convertScenes(raw []rawScene) ([]domain.SceneDescriptor, error) {
	n := len(raw)
	allZero := true
	for _, s := range raw {
		if s.Ordinal != 0 {
			allZero = false
			break
		}
	}

	seen := make(map[int]bool, n)
	scenes := make([]domain.SceneDescriptor, 0, n)
	for i, s := range raw {
		ordinal := s.Ordinal
		if allZero {
			ordinal = i + 1
		}
		if ordinal < 1 || ordinal > n || seen[ordinal] {
			return nil, fmt.Errorf("%w: scene %d has invalid or duplicate ordinal %d", domain.ErrInvalidAnalysis, i, s.Ordinal)
		}
		seen[ordinal] = true

		if strings.TrimSpace(s.VisualPrompt) == "" {
			return nil, fmt.Errorf("%w: scene %d has empty visual_prompt", domain.ErrInvalidAnalysis, ordinal)
		}
		if s.DurationSeconds <= 0 {
			return nil, fmt.Errorf("%w: scene %d has non-positive duration", domain.ErrInvalidAnalysis, ordinal)
		}
		if s.DurationSeconds > MaxSceneSeconds {
			return nil, fmt.Errorf("%w: scene %d lasts %.0fs, limit is %.0fs", domain.ErrInvalidAnalysis, ordinal, s.DurationSeconds, MaxSceneSeconds)
		}

		scenes = append(scenes, domain.SceneDescriptor{
			Ordinal:        ordinal,
			TargetDuration: time.Duration(s.DurationSeconds * float64(time.Second)),
			VisualPrompt:   strings.TrimSpace(s.VisualPrompt),
			Phase:          domain.ScenePhase(strings.ToLower(strings.TrimSpace(s.Phase))),
		})
	}

	sort.Slice(scenes, func(i, j int) bool { return scenes[i].Ordinal < scenes[j].Ordinal })
	return scenes, nil
}

// stripCodeFence убирает ```json ... ``` вокруг ответа, если модель его добавила.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
