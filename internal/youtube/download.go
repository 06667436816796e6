// Package youtube fetches the audio track of a video with yt-dlp.
package youtube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

var ErrNotInstalled = errors.New("yt-dlp is not installed; install it with `brew install yt-dlp` or `pipx install yt-dlp`")

type Downloader struct {
	Executable string
	Logger     *zap.Logger
}

func NewDownloader(logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{Executable: "yt-dlp", Logger: logger}
}

// Download extracts the audio of videoURL as mp3 into dir and returns the
// file path.
func (d *Downloader) Download(ctx context.Context, videoURL, dir string) (string, error) {
	if err := ValidateURL(videoURL); err != nil {
		return "", err
	}

	exe, err := exec.LookPath(d.executable())
	if err != nil {
		return "", ErrNotInstalled
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}

	args := []string{
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", "0",
		"-o", filepath.Join(dir, "%(title)s.%(ext)s"),
		videoURL,
	}

	cmd := exec.CommandContext(ctx, exe, args...)
	var stderr bytes.Buffer
	cmd.Stdout = &stderr
	cmd.Stderr = &stderr

	d.logger().Info("downloading audio", zap.String("url", videoURL))
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("download youtube audio: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.mp3"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", errors.New("yt-dlp finished without producing an mp3 file")
	}

	d.logger().Debug("audio downloaded", zap.String("path", matches[0]))
	return matches[0], nil
}

// ValidateURL accepts absolute http(s) URLs only.
func ValidateURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("invalid video URL %q", raw)
	}
	return nil
}

func (d *Downloader) executable() string {
	if d.Executable == "" {
		return "yt-dlp"
	}
	return d.Executable
}

func (d *Downloader) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}
