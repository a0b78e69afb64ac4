// Package mux combines separately retrieved video and audio streams into one
// container using ffmpeg. The video track is copied, never re-encoded; the
// audio track is transcoded to AAC so any source codec fits an mp4 container.
package mux

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// FFmpeg constants for stream combination
const (
	FFmpegCommand = "ffmpeg"

	VideoCodecCopy = "copy"
	AudioCodecAAC  = "aac"

	// stderrTailBytes bounds how much ffmpeg stderr ends up in an error.
	stderrTailBytes = 2048
)

// Combiner merges a video file and an audio file into a single output file.
type Combiner interface {
	Combine(ctx context.Context, videoPath, audioPath, outputPath string) error
}

// FFmpegCombiner shells out to the ffmpeg binary.
type FFmpegCombiner struct {
	// Command overrides the ffmpeg executable, for tests and exotic installs.
	Command string
}

func NewFFmpegCombiner() *FFmpegCombiner {
	return &FFmpegCombiner{Command: FFmpegCommand}
}

// BuildCombineArgs builds the ffmpeg argument list for a combine run.
func BuildCombineArgs(videoPath, audioPath, outputPath string) []string {
	return []string{
		"-y",            // Overwrite output file
		"-i", videoPath, // Video input
		"-i", audioPath, // Audio input
		"-c:v", VideoCodecCopy, // Copy video track untouched
		"-c:a", AudioCodecAAC, // Transcode audio to AAC
		outputPath, // Output file
	}
}

// Combine runs ffmpeg and waits for it to finish. On failure the tail of
// ffmpeg's stderr is folded into the returned error, since ffmpeg reports
// everything useful there.
func (c *FFmpegCombiner) Combine(ctx context.Context, videoPath, audioPath, outputPath string) error {
	command := c.Command
	if command == "" {
		command = FFmpegCommand
	}

	args := BuildCombineArgs(videoPath, audioPath, outputPath)
	cmd := exec.CommandContext(ctx, command, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg merge failed: %w: %s", err, stderrTail(stderr.String()))
	}
	return nil
}

func stderrTail(output string) string {
	output = strings.TrimSpace(output)
	if len(output) > stderrTailBytes {
		output = output[len(output)-stderrTailBytes:]
	}
	return output
}
