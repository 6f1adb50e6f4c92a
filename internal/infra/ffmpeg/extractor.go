package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Extractor shells out to ffmpeg and ffprobe.
type Extractor struct {
	ffmpegBin  string
	ffprobeBin string
	logger     *zap.Logger
}

func NewExtractor(ffmpegBin, ffprobeBin string, logger *zap.Logger) *Extractor {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	return &Extractor{ffmpegBin: ffmpegBin, ffprobeBin: ffprobeBin, logger: logger}
}

// ExtractAudio drops the video stream and writes a mono 16 kHz mp3, which
// keeps an hour of speech well under the upload ceiling.
func (e *Extractor) ExtractAudio(ctx context.Context, inputPath string, outputPath string) error {
	cmd := exec.CommandContext(ctx, e.ffmpegBin,
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-acodec", "libmp3lame",
		"-b:a", "64k",
		"-f", "mp3",
		outputPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg error: %w, output: %s", err, tail(output, 500))
	}

	if duration, err := e.ProbeDuration(ctx, outputPath); err == nil {
		e.logger.Debug("audio extracted", zap.Float64("duration_secs", duration))
	}
	return nil
}

func (e *Extractor) ProbeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, e.ffprobeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	return parseDuration(output)
}

func parseDuration(output []byte) (float64, error) {
	durationStr := strings.TrimSpace(string(output))
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", durationStr, err)
	}
	return duration, nil
}

func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return "..." + string(b[len(b)-n:])
}
