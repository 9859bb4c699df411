package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"adscope/internal/domain"
	"adscope/internal/infra"
)

// Frame is one extracted keyframe on disk inside the job workspace.
type Frame struct {
	OffsetMs float64
	Label    string
	Path     string
}

// FrameSet is the result of keyframe extraction. Frame files live inside the
// workspace that produced them and disappear with its cleanup.
type FrameSet struct {
	Frames []Frame
}

// Extractor derives keyframes and audio from a local video file by shelling
// out to ffmpeg/ffprobe.
type Extractor struct {
	ffmpeg  string
	ffprobe string
	logger  infra.Logger
}

func NewExtractor(ffmpegPath, ffprobePath string, logger infra.Logger) *Extractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Extractor{ffmpeg: ffmpegPath, ffprobe: ffprobePath, logger: logger}
}

// DurationMs probes the container for total duration.
func (e *Extractor) DurationMs(ctx context.Context, srcPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, e.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		srcPath,
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w", err)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(out.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", out.String(), err)
	}
	return seconds * 1000, nil
}

// Keyframes extracts one still per request into the workspace. Individual
// offset failures are logged and skipped; zero successful frames fails the
// whole call because an empty analysis input is never acceptable.
func (e *Extractor) Keyframes(ctx context.Context, ws *Workspace, srcPath string, requests []FrameRequest) (*FrameSet, error) {
	if len(requests) == 0 {
		return nil, fmt.Errorf("keyframes: no offsets requested")
	}

	durationMs, err := e.DurationMs(ctx, srcPath)
	if err != nil {
		return nil, fmt.Errorf("keyframes: %w", err)
	}

	set := &FrameSet{}
	for i, req := range requests {
		resolved := ResolveOffsetMs(req.OffsetMs, durationMs)
		label := req.Label
		if label == "" {
			label = fmt.Sprintf("frame-%d", i)
		}
		outPath, err := ws.Path(fmt.Sprintf("frames/%s.jpg", sanitizeComponent(label)))
		if err != nil {
			return nil, fmt.Errorf("keyframes: %w", err)
		}
		if err := e.extractFrame(ctx, srcPath, outPath, resolved); err != nil {
			e.logger.Warn().
				Err(err).
				Float64("offset_ms", req.OffsetMs).
				Float64("resolved_ms", resolved).
				Str("label", label).
				Msg("extract: keyframe failed, skipping offset")
			continue
		}
		set.Frames = append(set.Frames, Frame{OffsetMs: resolved, Label: label, Path: outPath})
	}

	if len(set.Frames) == 0 {
		return nil, domain.ErrNoFrames
	}
	return set, nil
}

func (e *Extractor) extractFrame(ctx context.Context, srcPath, outPath string, offsetMs float64) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure frame dir: %w", err)
	}
	seek := fmt.Sprintf("%.3f", offsetMs/1000)
	cmd := exec.CommandContext(ctx, e.ffmpeg,
		"-hide_banner", "-loglevel", "error",
		"-ss", seek,
		"-i", srcPath,
		"-frames:v", "1",
		"-q:v", "2",
		"-y", outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg frame at %ss: %w (%s)", seek, err, strings.TrimSpace(stderr.String()))
	}
	if st, err := os.Stat(outPath); err != nil || st.Size() == 0 {
		return fmt.Errorf("ffmpeg produced no frame at %ss", seek)
	}
	return nil
}

// Audio extracts a mono 16kHz wav track suitable for speech-to-text. An error
// here is non-fatal to the job; the caller proceeds without a transcript.
func (e *Extractor) Audio(ctx context.Context, ws *Workspace, srcPath string) (string, error) {
	outPath, err := ws.Path("audio/track.wav")
	if err != nil {
		return "", fmt.Errorf("audio: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("audio: ensure dir: %w", err)
	}
	cmd := exec.CommandContext(ctx, e.ffmpeg,
		"-hide_banner", "-loglevel", "error",
		"-i", srcPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		"-y", outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg audio: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}
	return outPath, nil
}
