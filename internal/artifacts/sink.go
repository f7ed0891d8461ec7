// Package artifacts сохраняет итоговый ролик кампании и выдает публичные ссылки на него.
package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"campaign-server/internal/domain"

	"go.uber.org/zap"
)

var (
	ErrInvalidTaskID = errors.New("task id is not usable as a file name")
	ErrSaveFailed    = errors.New("failed to save artifact")
)

// Stored - публичные ссылки на сохраненные файлы.
type Stored struct {
	VideoURL     string
	NarrationURL string
	ManifestURL  string
}

// Sink - место, куда уходит готовая кампания.
type Sink interface {
	Store(ctx context.Context, taskID string, campaign *domain.AssembledCampaign) (Stored, error)
}

// manifest - метаданные ролика без бинарных данных.
type manifest struct {
	TaskID             string                   `json:"taskId"`
	Analysis           domain.NarrativeAnalysis `json:"analysis"`
	Timeline           domain.Timeline          `json:"timeline"`
	Scenes             []sceneEntry             `json:"scenes"`
	FailedSegmentCount int                      `json:"failedSegmentCount"`
	NarrationDuration  float64                  `json:"narrationDurationSeconds"`
}

type sceneEntry struct {
	Ordinal  int    `json:"ordinal"`
	Provider string `json:"provider"`
	MimeType string `json:"mimeType"`
}

// DiskSink пишет файлы в смонтированный том, который раздается наружу по baseURL.
type DiskSink struct {
	dir     string
	baseURL *url.URL
	logger  *zap.Logger
}

var _ Sink = (*DiskSink)(nil)

func NewDiskSink(dir, publicBaseURL string, logger *zap.Logger) (*DiskSink, error) {
	if dir == "" {
		return nil, errors.New("artifact save path (ARTIFACT_SAVE_PATH) is not configured")
	}
	if publicBaseURL == "" {
		return nil, errors.New("artifact public base URL (ARTIFACT_PUBLIC_BASE_URL) is not configured")
	}
	if !strings.Contains(publicBaseURL, "://") {
		publicBaseURL = "https://" + publicBaseURL
	}
	base, err := url.Parse(publicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid artifact public base URL: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir %s: %w", dir, err)
	}
	return &DiskSink{dir: dir, baseURL: base, logger: logger.Named("DiskSink")}, nil
}

func (s *DiskSink) Store(ctx context.Context, taskID string, campaign *domain.AssembledCampaign) (Stored, error) {
	if taskID == "" || strings.ContainsAny(taskID, `/\`) || strings.HasPrefix(taskID, ".") {
		return Stored{}, fmt.Errorf("%w: %q", ErrInvalidTaskID, taskID)
	}
	if campaign == nil {
		return Stored{}, fmt.Errorf("%w: campaign is nil", ErrSaveFailed)
	}
	log := s.logger.With(zap.String("task_id", taskID))

	videoName := taskID + Extension(campaign.Video.MimeType, ".mp4")
	narrationName := taskID + "-narration" + Extension(campaign.Narration.Media.MimeType, ".mp3")
	manifestName := taskID + ".json"

	files := []struct {
		name string
		data func() ([]byte, error)
	}{
		{videoName, func() ([]byte, error) { return campaign.Video.Data, nil }},
		{narrationName, func() ([]byte, error) { return campaign.Narration.Media.Data, nil }},
		{manifestName, func() ([]byte, error) { return json.MarshalIndent(buildManifest(taskID, campaign), "", "  ") }},
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return Stored{}, err
		}
		data, err := f.data()
		if err != nil {
			return Stored{}, fmt.Errorf("%w: %v", ErrSaveFailed, err)
		}
		if err := writeAtomic(filepath.Join(s.dir, f.name), data); err != nil {
			log.Error("Failed to save artifact file", zap.String("file", f.name), zap.Error(err))
			return Stored{}, fmt.Errorf("%w: %v", ErrSaveFailed, err)
		}
	}

	stored := Stored{
		VideoURL:     s.publicURL(videoName),
		NarrationURL: s.publicURL(narrationName),
		ManifestURL:  s.publicURL(manifestName),
	}
	log.Info("Campaign artifacts saved", zap.String("video_url", stored.VideoURL), zap.Int("video_bytes", len(campaign.Video.Data)))
	return stored, nil
}

func (s *DiskSink) publicURL(name string) string {
	return s.baseURL.JoinPath(name).String()
}

// writeAtomic пишет во временный файл и переименовывает, чтобы раздача не отдала недописанный файл.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func buildManifest(taskID string, c *domain.AssembledCampaign) manifest {
	m := manifest{
		TaskID:             taskID,
		Analysis:           c.Analysis,
		Timeline:           c.Timeline,
		FailedSegmentCount: c.FailedSegmentCount,
		NarrationDuration:  c.Narration.Duration.Seconds(),
		Scenes:             make([]sceneEntry, 0, len(c.Scenes)),
	}
	for _, sc := range c.Scenes {
		m.Scenes = append(m.Scenes, sceneEntry{Ordinal: sc.Ordinal, Provider: sc.Provider, MimeType: sc.Media.MimeType})
	}
	return m
}

// Extension подбирает расширение файла по MIME-типу.
func Extension(mimeType, fallback string) string {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])) {
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/aac":
		return ".aac"
	case "audio/ogg", "audio/opus":
		return ".ogg"
	default:
		return fallback
	}
}
