package openai

import (
	"context"
	"fmt"
	"io"

	"campaign-server/internal/domain"
	"campaign-server/internal/provider"

	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Speech - TTS провайдер. API не сообщает длительность аудио,
// поэтому SpeechResult.Duration всегда нулевой и длину измеряет DurationProbe.
type Speech struct {
	client *openaigo.Client
	model  string
	voice  string
	logger *zap.Logger
}

func NewSpeech(client *openaigo.Client, model, voice string, logger *zap.Logger) *Speech {
	if model == "" {
		model = string(openaigo.TTSModel1)
	}
	if voice == "" {
		voice = string(openaigo.VoiceAlloy)
	}
	return &Speech{client: client, model: model, voice: voice, logger: logger.Named("OpenAISpeech")}
}

func (s *Speech) Name() string { return "openai-tts" }

func (s *Speech) Synthesize(ctx context.Context, script string) (provider.SpeechResult, error) {
	resp, err := s.client.CreateSpeech(ctx, openaigo.CreateSpeechRequest{
		Model:          openaigo.SpeechModel(s.model),
		Input:          script,
		Voice:          openaigo.SpeechVoice(s.voice),
		ResponseFormat: openaigo.SpeechResponseFormatMp3,
	})
	if err != nil {
		return provider.SpeechResult{}, wrapError(s.Name(), err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return provider.SpeechResult{}, fmt.Errorf("read speech payload: %w", err)
	}
	s.logger.Debug("Speech synthesized", zap.Int("bytes", len(data)), zap.Int("script_len", len(script)))
	return provider.SpeechResult{Media: domain.Media{Data: data, MimeType: "audio/mpeg"}}, nil
}

var _ provider.SpeechProvider = (*Speech)(nil)
