// Package stt talks to an OpenAI-compatible speech-to-text API.
package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL  = "https://api.groq.com/openai/v1"
	DefaultModel    = "whisper-large-v3-turbo"
	DefaultLanguage = "es"
)

var ErrMissingAPIKey = errors.New("api key is required")

// KnownModels lists the hosted models the default endpoint serves.
var KnownModels = []string{"whisper-large-v3-turbo", "whisper-large-v3", "distil-whisper-large-v3-en"}

type Options struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Prompt   string
	Logger   *zap.Logger
}

// Request describes one transcription. Either AudioPath or Audio must be set;
// FileName names in-memory audio for the upload and defaults to recording.webm.
type Request struct {
	AudioPath string
	Audio     []byte
	FileName  string
	Language  string
	Model     string
	Prompt    string
}

type Result struct {
	Text     string   `json:"text"`
	Language string   `json:"language"`
	Duration *float64 `json:"duration,omitempty"`
	Model    string   `json:"model"`
}

type Client struct {
	api      *openai.Client
	model    string
	language string
	prompt   string
	logger   *zap.Logger
}

func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = DefaultBaseURL
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		api:      openai.NewClientWithConfig(cfg),
		model:    firstNonEmpty(opts.Model, DefaultModel),
		language: firstNonEmpty(opts.Language, DefaultLanguage),
		prompt:   opts.Prompt,
		logger:   logger.Named("stt"),
	}, nil
}

func (c *Client) Transcribe(ctx context.Context, req Request) (Result, error) {
	model := firstNonEmpty(req.Model, c.model)
	language := normalizeLanguage(firstNonEmpty(req.Language, c.language))

	audioReq := openai.AudioRequest{
		Model:    model,
		Prompt:   firstNonEmpty(req.Prompt, c.prompt),
		Language: language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	}

	switch {
	case len(req.Audio) > 0:
		audioReq.Reader = bytes.NewReader(req.Audio)
		audioReq.FilePath = firstNonEmpty(req.FileName, "recording.webm")
	case strings.TrimSpace(req.AudioPath) != "":
		path := filepath.Clean(req.AudioPath)
		if _, err := os.Stat(path); err != nil {
			return Result{}, fmt.Errorf("audio file not found: %w", err)
		}
		audioReq.FilePath = path
	default:
		return Result{}, errors.New("audio payload or path is required")
	}

	started := time.Now()
	resp, err := c.api.CreateTranscription(ctx, audioReq)
	if err != nil {
		c.logger.Warn("transcription request failed", zap.String("model", model), zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return Result{}, fmt.Errorf("transcription request failed: %w", err)
	}
	c.logger.Debug("transcription request finished", zap.String("model", model), zap.Duration("elapsed", time.Since(started)))

	result := Result{
		Text:     strings.TrimSpace(resp.Text),
		Language: firstNonEmpty(language, resp.Language),
		Model:    model,
	}
	if resp.Duration > 0 {
		duration := resp.Duration
		result.Duration = &duration
	}
	return result, nil
}

// ValidateKey proves the key is accepted by listing the available models.
func (c *Client) ValidateKey(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("validate api key: %w", err)
	}
	return nil
}

func normalizeLanguage(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "auto" {
		return ""
	}
	return trimmed
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
