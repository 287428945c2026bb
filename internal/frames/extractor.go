// Package frames turns a reel video into the evenly spaced JPEG frames
// the estimator pool consumes.
package frames

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/reeltrip/reeltrip/internal/domain"
)

// ErrNoFrames is returned when a video yields no decodable frames.
var ErrNoFrames = errors.New("no readable frames in video")

// Extractor produces up to maxFrames frames from a video file.
type Extractor interface {
	Extract(ctx context.Context, videoPath string, maxFrames int) ([]domain.Frame, error)
}

// FFmpegExtractor shells out to ffprobe/ffmpeg. Frames are sampled at
// evenly spaced timestamps rather than a fixed interval so variable
// frame rate reels still cover the whole clip.
type FFmpegExtractor struct {
	ffmpegPath  string
	ffprobePath string
	logger      *zap.Logger
}

// NewFFmpegExtractor creates an extractor using the ffmpeg and ffprobe
// binaries on PATH.
func NewFFmpegExtractor(logger *zap.Logger) *FFmpegExtractor {
	return &FFmpegExtractor{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		logger:      logger,
	}
}

// Extract decodes one JPEG per evenly spaced timestamp. Individual frame
// failures are skipped; only a fully unreadable video is an error.
func (e *FFmpegExtractor) Extract(ctx context.Context, videoPath string, maxFrames int) ([]domain.Frame, error) {
	if maxFrames < 1 {
		maxFrames = 8
	}

	duration, err := e.probeDuration(ctx, videoPath)
	if err != nil {
		return nil, err
	}

	step := duration / float64(maxFrames)
	frames := make([]domain.Frame, 0, maxFrames)
	for i := 0; i < maxFrames; i++ {
		offset := float64(i) * step
		data, err := e.grabFrame(ctx, videoPath, offset)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Warn("skipping unreadable frame",
				zap.Float64("offset_seconds", offset),
				zap.Error(err),
			)
			continue
		}
		frames = append(frames, domain.Frame{
			Index: len(frames),
			MIME:  "image/jpeg",
			Data:  data,
		})
	}

	if len(frames) == 0 {
		return nil, ErrNoFrames
	}

	e.logger.Info("extracted frames",
		zap.String("video", videoPath),
		zap.Int("frames", len(frames)),
		zap.Float64("duration_seconds", duration),
	)
	return frames, nil
}

func (e *FFmpegExtractor) probeDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("failed to probe video %s: %w", videoPath, err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || duration <= 0 {
		return 0, fmt.Errorf("video %s has no readable duration", videoPath)
	}
	return duration, nil
}

func (e *FFmpegExtractor) grabFrame(ctx context.Context, videoPath string, offset float64) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.ffmpegPath,
		"-ss", fmt.Sprintf("%.3f", offset),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"pipe:1",
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed at %.3fs: %w: %s", offset, err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output at %.3fs", offset)
	}
	return stdout.Bytes(), nil
}
