package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"campaign-server/internal/domain"
	"campaign-server/internal/provider"

	"go.uber.org/zap"
)

// Config - параметры кодирования итогового ролика.
type Config struct {
	Binary  string // По умолчанию "ffmpeg"
	TempDir string
	FPS     int
	Preset  string
	CRF     int
}

// Muxer склеивает визуальный ряд по таймлайну и накладывает озвучку.
// Длина результата всегда равна длине визуального ряда: лишняя озвучка обрезается, недостающая не дополняется.
type Muxer struct {
	cfg    Config
	runner Runner
	logger *zap.Logger
}

func NewMuxer(cfg Config, runner Runner, logger *zap.Logger) *Muxer {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	if cfg.Preset == "" {
		cfg.Preset = "fast"
	}
	if cfg.CRF <= 0 {
		cfg.CRF = 22
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Muxer{cfg: cfg, runner: runner, logger: logger.Named("FFmpegMuxer")}
}

func (m *Muxer) Mux(ctx context.Context, in provider.MuxInput) (domain.Media, error) {
	if len(in.Visuals) == 0 || len(in.Visuals) != len(in.Timeline.Entries) {
		return domain.Media{}, fmt.Errorf("timeline has %d entries for %d visuals", len(in.Timeline.Entries), len(in.Visuals))
	}

	workDir, err := os.MkdirTemp(m.cfg.TempDir, "mux-*")
	if err != nil {
		return domain.Media{}, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	visualFiles := make([]string, len(in.Visuals))
	for i, v := range in.Visuals {
		name := filepath.Join(workDir, fmt.Sprintf("scene_%02d%s", v.Ordinal, extension(v.Media.MimeType)))
		if err := os.WriteFile(name, v.Media.Data, 0o644); err != nil {
			return domain.Media{}, fmt.Errorf("write scene %d: %w", v.Ordinal, err)
		}
		visualFiles[i] = name
	}
	audioFile := filepath.Join(workDir, "narration"+extension(in.Narration.Media.MimeType))
	if err := os.WriteFile(audioFile, in.Narration.Media.Data, 0o644); err != nil {
		return domain.Media{}, fmt.Errorf("write narration: %w", err)
	}
	outFile := filepath.Join(workDir, "campaign.mp4")

	args := m.buildArgs(in, visualFiles, audioFile, outFile)
	m.logger.Debug("Running ffmpeg", zap.Int("visuals", len(visualFiles)), zap.Duration("visual_duration", in.Timeline.VisualDuration))
	if _, err := m.runner.Run(ctx, m.cfg.Binary, args...); err != nil {
		return domain.Media{}, err
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		return domain.Media{}, fmt.Errorf("read muxed video: %w", err)
	}
	return domain.Media{Data: data, MimeType: "video/mp4"}, nil
}

// buildArgs строит команду ffmpeg: каждый вход обрезается до длительности записи таймлайна,
// кадры приводятся к разрешению соотношения сторон, результат ограничен длиной визуального ряда.
func (m *Muxer) buildArgs(in provider.MuxInput, visualFiles []string, audioFile, outFile string) []string {
	width, height := resolution(in.AspectRatio)
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}

	for i, v := range in.Visuals {
		dur := seconds(in.Timeline.Entries[i].Duration)
		if v.Media.IsVideo() {
			args = append(args, "-stream_loop", "-1", "-t", dur, "-i", visualFiles[i])
		} else {
			args = append(args, "-loop", "1", "-t", dur, "-i", visualFiles[i])
		}
	}
	audioIndex := len(in.Visuals)
	args = append(args, "-i", audioFile)

	var filter strings.Builder
	for i := range in.Visuals {
		fmt.Fprintf(&filter,
			"[%d:v]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1,fps=%d,format=yuv420p[v%d];",
			i, width, height, width, height, m.cfg.FPS, i)
	}
	for i := range in.Visuals {
		fmt.Fprintf(&filter, "[v%d]", i)
	}
	fmt.Fprintf(&filter, "concat=n=%d:v=1:a=0[outv]", len(in.Visuals))

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[outv]",
		"-map", fmt.Sprintf("%d:a", audioIndex),
		"-c:v", "libx264",
		"-preset", m.cfg.Preset,
		"-crf", fmt.Sprintf("%d", m.cfg.CRF),
		"-c:a", "aac",
		"-t", seconds(in.Timeline.VisualDuration),
		"-movflags", "+faststart",
		outFile,
	)
	return args
}

func resolution(aspectRatio string) (int, int) {
	switch aspectRatio {
	case "16:9":
		return 1920, 1080
	case "1:1":
		return 1080, 1080
	case "4:5":
		return 1080, 1350
	default:
		return 1080, 1920
	}
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

func extension(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	default:
		return ".bin"
	}
}

var _ provider.Muxer = (*Muxer)(nil)
