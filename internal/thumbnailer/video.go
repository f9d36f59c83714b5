package thumbnailer

import (
	"bytes"
	"fmt"
	"image"
	"os/exec"
	"time"

	"neoview/internal/logging"
)

// DefaultVideoSeek is how far into a video the frame grab seeks. Frames
// at t=0 are often black or a fade-in.
const DefaultVideoSeek = time.Second

// extractVideoFrame grabs a single frame from a video file via ffmpeg.
// If the seek position is past the end of a short clip the first
// attempt produces nothing, so it retries from the start.
func extractVideoFrame(path string, seek time.Duration) (image.Image, error) {
	logging.Debug("Extracting video frame: %s", path)

	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	logging.Debug("Using ffmpeg: %s", ffmpegPath)

	cmd := exec.Command("ffmpeg",
		"-ss", fmt.Sprintf("%.3f", seek.Seconds()),
		"-i", path,
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil || stdout.Len() == 0 {
		logging.Debug("FFmpeg seek attempt failed for %s: %v, stderr: %s", path, err, stderr.String())

		cmd = exec.Command("ffmpeg",
			"-i", path,
			"-vframes", "1",
			"-f", "image2pipe",
			"-vcodec", "png",
			"-",
		)
		stdout.Reset()
		stderr.Reset()
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("ffmpeg failed: %v, stderr: %s", err, stderr.String())
		}
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%w: ffmpeg produced no output for %s", ErrDecodeFailure, path)
	}

	logging.Debug("FFmpeg output size: %d bytes", stdout.Len())

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode ffmpeg output: %v", ErrDecodeFailure, err)
	}

	return img, nil
}
