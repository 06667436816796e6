package record

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

type ffmpegLinuxBackend struct{}

func newFFMPEGLinuxBackend() Backend {
	return &ffmpegLinuxBackend{}
}

func (b *ffmpegLinuxBackend) Name() string {
	return "ffmpeg"
}

func (b *ffmpegLinuxBackend) Available() bool {
	return commandAvailable("ffmpeg")
}

// Commands tries PulseAudio first and ALSA second unless a format is forced.
func (b *ffmpegLinuxBackend) Commands(cfg Config) [][]string {
	formats := []struct {
		format string
		input  string
	}{
		{format: "pulse", input: "default"},
		{format: "alsa", input: "default"},
	}

	if cfg.Format != "" {
		input := cfg.Input
		if input == "" {
			input = "default"
		}
		formats = formats[:1]
		formats[0].format, formats[0].input = cfg.Format, input
	} else if cfg.Input != "" {
		for i := range formats {
			formats[i].input = cfg.Input
		}
	}

	commands := make([][]string, 0, len(formats))
	for _, candidate := range formats {
		commands = append(commands, ffmpegArgs(candidate.format, candidate.input, cfg))
	}
	return commands
}

func (b *ffmpegLinuxBackend) ListDevices(ctx context.Context) (string, error) {
	var sections []string

	if commandAvailable("pactl") {
		if out, err := commandOutput(ctx, "pactl", "list", "short", "sources"); err == nil {
			sections = append(sections, "PulseAudio/PipeWire sources:\n"+out)
		} else {
			sections = append(sections, "PulseAudio/PipeWire sources: "+err.Error())
		}
	}

	if commandAvailable("arecord") {
		if out, err := commandOutput(ctx, "arecord", "-L"); err == nil {
			sections = append(sections, "ALSA devices:\n"+out)
		} else {
			sections = append(sections, "ALSA devices: "+err.Error())
		}
	}

	if len(sections) == 0 {
		return "", errors.New("no device listing command available")
	}

	return strings.Join(sections, "\n\n"), nil
}

func ffmpegArgs(format, input string, cfg Config) []string {
	return []string{
		"ffmpeg", "-nostdin", "-hide_banner", "-loglevel", "error", "-y",
		"-f", format, "-i", input,
		"-ac", strconv.Itoa(defaultChannels(cfg.Channels)),
		"-ar", strconv.Itoa(defaultSampleRate(cfg.SampleRate)),
		"-c:a", "pcm_s16le",
		cfg.OutputPath,
	}
}
