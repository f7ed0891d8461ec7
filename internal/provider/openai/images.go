package openai

import (
	"context"
	"encoding/base64"
	"fmt"

	"campaign-server/internal/domain"
	"campaign-server/internal/provider"

	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Images - визуальный провайдер на основе генерации изображений. Длительность сцены
// он не учитывает: статичный кадр растягивается при сборке.
type Images struct {
	client *openaigo.Client
	model  string
	name   string
	logger *zap.Logger
}

// NewImages создает провайдера. name попадает в цепочку фоллбэка и метрики.
func NewImages(client *openaigo.Client, model, name string, logger *zap.Logger) *Images {
	if name == "" {
		name = "openai-images"
	}
	return &Images{client: client, model: model, name: name, logger: logger.Named("OpenAIImages")}
}

func (p *Images) Name() string { return p.name }

func (p *Images) Generate(ctx context.Context, req provider.VisualRequest) (domain.Media, error) {
	resp, err := p.client.CreateImage(ctx, openaigo.ImageRequest{
		Prompt:         req.Prompt,
		Model:          p.model,
		N:              1,
		Size:           imageSize(req.AspectRatio),
		ResponseFormat: openaigo.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return domain.Media{}, wrapError(p.name, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return domain.Media{}, provider.NewError(p.name, provider.ClassTransient, 0, provider.ErrEmptyPayload)
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return domain.Media{}, provider.NewError(p.name, provider.ClassTransient, 0, fmt.Errorf("decode image payload: %w", err))
	}
	p.logger.Debug("Image generated", zap.Int("bytes", len(data)), zap.String("aspect_ratio", req.AspectRatio))
	return domain.Media{Data: data, MimeType: "image/png"}, nil
}

// imageSize подбирает ближайший поддерживаемый размер под соотношение сторон.
func imageSize(aspectRatio string) string {
	switch aspectRatio {
	case "9:16", "4:5":
		return openaigo.CreateImageSize1024x1792
	case "16:9":
		return openaigo.CreateImageSize1792x1024
	default:
		return openaigo.CreateImageSize1024x1024
	}
}

var _ provider.VisualProvider = (*Images)(nil)
