package internal_mixer

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/jjpp222/tutor-aleman-backend/pkg/commons"
)

// Engine abstracts the audio processing the mix pipeline shells out for, so
// the pipeline's control flow is independent of how transcoding and mixing
// are executed.
type Engine interface {
	// Transcode converts the input file into a directly-mixable wav.
	Transcode(ctx context.Context, inputPath, outputPath string) error

	// Mix combines two input tracks into a single normalized output at the
	// given bitrate. The context bounds the whole invocation.
	Mix(ctx context.Context, userPath, botPath, outputPath, bitrate string) error
}

type ffmpegEngine struct {
	path   string
	logger commons.Logger
}

// NewFfmpegEngine returns an Engine that invokes the ffmpeg binary at the
// given path as a subprocess.
func NewFfmpegEngine(path string, logger commons.Logger) Engine {
	if path == "" {
		path = "ffmpeg"
	}
	return &ffmpegEngine{path: path, logger: logger}
}

func (e *ffmpegEngine) Transcode(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-y",
		"-i", inputPath,
		"-ar", "44100",
		"-ac", "2",
		outputPath,
	}
	return e.run(ctx, args)
}

func (e *ffmpegEngine) Mix(ctx context.Context, userPath, botPath, outputPath, bitrate string) error {
	if bitrate == "" {
		bitrate = "128k"
	}
	args := []string{
		"-y",
		"-i", userPath,
		"-i", botPath,
		"-filter_complex", "amix=inputs=2:duration=longest:dropout_transition=2",
		"-b:a", bitrate,
		outputPath,
	}
	return e.run(ctx, args)
}

func (e *ffmpegEngine) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, e.path, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg timed out: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg failed: %v: %s", err, tail(out, 512))
	}
	return nil
}

// tail returns the last n bytes of ffmpeg output; the useful error is always
// at the end.
func tail(out []byte, n int) string {
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return string(out)
}
