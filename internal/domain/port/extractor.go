package port

import "context"

type AudioExtractor interface {
	// ExtractAudio writes a mono mp3 of inputPath to outputPath.
	ExtractAudio(ctx context.Context, inputPath string, outputPath string) error
	ProbeDuration(ctx context.Context, path string) (float64, error)
}
