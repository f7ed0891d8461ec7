package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"campaign-server/internal/domain"
	"campaign-server/internal/provider"
)

// Probe измеряет длительность медиа через ffprobe.
type Probe struct {
	runner  Runner
	binary  string
	tempDir string
}

// NewProbe создает пробу. binary по умолчанию "ffprobe", tempDir - системный.
func NewProbe(runner Runner, binary, tempDir string) *Probe {
	if runner == nil {
		runner = ExecRunner{}
	}
	if binary == "" {
		binary = "ffprobe"
	}
	return &Probe{runner: runner, binary: binary, tempDir: tempDir}
}

func (p *Probe) Probe(ctx context.Context, media domain.Media) (time.Duration, error) {
	f, err := os.CreateTemp(p.tempDir, "probe-*"+extension(media.MimeType))
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(media.Data); err != nil {
		f.Close()
		return 0, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}

	out, err := p.runner.Run(ctx, p.binary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		f.Name(),
	)
	if err != nil {
		return 0, err
	}
	return parseDuration(out)
}

func parseDuration(out []byte) (time.Duration, error) {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("ffprobe reported non-positive duration %v", seconds)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

var _ provider.DurationProbe = (*Probe)(nil)
