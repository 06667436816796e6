package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/DonMrMango/transcriptor/internal/config"
	"github.com/DonMrMango/transcriptor/internal/session"
	"github.com/DonMrMango/transcriptor/internal/store"
	"github.com/DonMrMango/transcriptor/internal/stt"
	"github.com/DonMrMango/transcriptor/internal/update"
)

type History interface {
	Save(ctx context.Context, in store.NewTranscription) (store.Transcription, error)
	List(ctx context.Context, limit int) ([]store.Transcription, error)
	Search(ctx context.Context, query string, limit int) ([]store.Transcription, error)
	UpdateText(ctx context.Context, id int64, text string) (store.Transcription, error)
}

type PDFTool interface {
	PageCount(input string) (int, error)
	Merge(inputs []string, output string) error
	ExtractSelection(input, selector, output string) error
	SplitGroups(input, selector, dir string) ([]string, error)
	SplitFixed(input string, size int, dir string) ([]string, error)
	ExtractAll(input, dir string) ([]string, error)
	ExtractPages(input, selector, dir string) ([]string, error)
	ImagesToPDF(images []string, output string) error
	PDFToImages(ctx context.Context, input, dir string) ([]string, error)
}

type AudioDownloader interface {
	Download(ctx context.Context, url, dir string) (string, error)
}

type UpdateChecker interface {
	Check(ctx context.Context) (update.Status, error)
}

// TranscriberFactory builds a transcription client for apiKey.
type TranscriberFactory func(apiKey string) (session.Transcriber, error)

type HostOptions struct {
	ConfigPath     string
	Settings       config.Settings
	History        History
	PDF            PDFTool
	YouTube        AudioDownloader
	Updates        UpdateChecker
	NewTranscriber TranscriberFactory
	Copy           func(ctx context.Context, text string) error
	// TempDir holds downloaded audio while it is transcribed.
	TempDir string
	Logger  *zap.Logger
}

// Host implements the bridge channels on top of the application services.
type Host struct {
	opts   HostOptions
	logger *zap.Logger

	mu       sync.RWMutex
	settings config.Settings
	session  *session.Controller
}

func NewHost(opts HostOptions) *Host {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	return &Host{opts: opts, logger: logger.Named("host"), settings: opts.Settings}
}

// AttachSession wires the recording controller used by the recording
// channels. The controller should transcribe through h.Transcriber().
func (h *Host) AttachSession(c *session.Controller) {
	h.mu.Lock()
	h.session = c
	h.mu.Unlock()
}

// Transcriber resolves the API key on every call, so a key saved through the
// bridge takes effect without a restart.
func (h *Host) Transcriber() session.Transcriber {
	return keyedTranscriber{host: h}
}

type keyedTranscriber struct {
	host *Host
}

func (k keyedTranscriber) Transcribe(ctx context.Context, req stt.Request) (stt.Result, error) {
	client, err := k.host.transcriber("")
	if err != nil {
		return stt.Result{}, err
	}
	return client.Transcribe(ctx, req)
}

// Register binds every channel to s.
func (h *Host) Register(s *Server) {
	channels := map[string]Handler{
		"get-api-key":            h.getAPIKey,
		"save-api-key":           h.saveAPIKey,
		"transcribe-audio":       h.transcribeAudio,
		"transcribe-file":        h.transcribeFile,
		"transcribe-youtube":     h.transcribeYouTube,
		"save-transcription":     h.saveTranscription,
		"get-history":            h.getHistory,
		"search-transcriptions":  h.searchTranscriptions,
		"update-transcription":   h.updateTranscription,
		"copy-to-clipboard":      h.copyToClipboard,
		"toggle-recording":       h.toggleRecording,
		"release-microphone":     h.releaseMicrophone,
		"start-recording":        h.startRecording,
		"stop-recording":         h.stopRecording,
		"pause-recording":        h.pauseRecording,
		"resume-recording":       h.resumeRecording,
		"cancel-recording":       h.cancelRecording,
		"get-state":              h.getState,
		"get-last-transcription": h.getLastTranscription,
		"navigate-back":          h.navigateBack,
		"open-history":           h.openHistory,
		"open-pdf-tools":         h.openPDFTools,
		"pdf-combine":            h.pdfCombine,
		"pdf-page-count":         h.pdfPageCount,
		"pdf-split-ranges":       h.pdfSplitRanges,
		"pdf-split-range-groups": h.pdfSplitRangeGroups,
		"pdf-split-fixed":        h.pdfSplitFixed,
		"pdf-extract-all":        h.pdfExtractAll,
		"pdf-select-pages":       h.pdfSelectPages,
		"images-to-pdf":          h.imagesToPDF,
		"pdf-to-images":          h.pdfToImages,
		"check-for-updates":      h.checkForUpdates,
	}
	for name, handler := range channels {
		s.Handle(name, handler)
	}
}

func (h *Host) apiKey(override string) string {
	if key := strings.TrimSpace(override); key != "" {
		return key
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.settings.ResolveAPIKey()
}

func (h *Host) transcriber(apiKey string) (session.Transcriber, error) {
	key := h.apiKey(apiKey)
	if key == "" {
		return nil, stt.ErrMissingAPIKey
	}
	return h.opts.NewTranscriber(key)
}

func (h *Host) controller() (*session.Controller, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.session == nil {
		return nil, errors.New("recording is not available in this host")
	}
	return h.session, nil
}

func (h *Host) getAPIKey(context.Context, json.RawMessage) Result {
	return Success(map[string]any{"apiKey": h.apiKey("")})
}

func (h *Host) saveAPIKey(_ context.Context, params json.RawMessage) Result {
	var p struct {
		APIKey string `json:"apiKey"`
	}
	if err := decode(params, &p); err != nil {
		return Failure(err)
	}
	if err := config.SaveAPIKey(h.opts.ConfigPath, p.APIKey); err != nil {
		return Failure(err)
	}

	h.mu.Lock()
	h.settings.APIKey = strings.TrimSpace(p.APIKey)
	h.mu.Unlock()

	h.logger.Info("api key saved", zap.String("key", config.MaskedAPIKey(p.APIKey)))
	return Success(nil)
}

type transcribeParams struct {
	Audio    []byte `json:"audio"`
	FileName string `json:"fileName"`
	FilePath string `json:"filePath"`
	URL      string `json:"url"`
	APIKey   string `json:"apiKey"`
	Language string `json:"language"`
}

func transcriptionPayload(result stt.Result) map[string]any {
	return map[string]any{
		"text":     result.Text,
		"language": result.Language,
		"duration": result.Duration,
		"model":    result.Model,
	}
}

func (h *Host) transcribeAudio(ctx context.Context, params json.RawMessage) Result {
	var p transcribeParams
	if err := decode(params, &p); err != nil {
		return Failure(err)
	}
	if len(p.Audio) == 0 {
		return Failure(errors.New("audio payload is empty"))
	}
	return h.transcribe(ctx, p.APIKey, stt.Request{Audio: p.Audio, FileName: p.FileName, Language: p.Language})
}

func (h *Host) transcribeFile(ctx context.Context, params json.RawMessage) Result {
	var p transcribeParams
	if err := decode(params, &p); err != nil {
		return Failure(err)
	}
	if p.FilePath == "" {
		return Canceled()
	}
	return h.transcribe(ctx, p.APIKey, stt.Request{AudioPath: p.FilePath, Language: p.Language})
}

func (h *Host) transcribeYouTube(ctx context.Context, params json.RawMessage) Result {
	var p transcribeParams
	if err := decode(params, &p); err != nil {
		return Failure(err)
	}
	if strings.TrimSpace(p.URL) == "" {
		return Failure(errors.New("video URL is required"))
	}
	if h.opts.YouTube == nil {
		return Failure(errors.New("youtube download is not available"))
	}

	dir, err := os.MkdirTemp(h.opts.TempDir, "youtube-*")
	if err != nil {
		return Failure(err)
	}
	defer os.RemoveAll(dir)

	path, err := h.opts.YouTube.Download(ctx, p.URL, dir)
	if err != nil {
		return Failure(err)
	}

	result := h.transcribe(ctx, p.APIKey, stt.Request{AudioPath: path, Language: p.Language})
	if result.Succeeded() {
		result["title"] = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return result
}

func (h *Host) transcribe(ctx context.Context, apiKey string, req stt.Request) Result {
	client, err := h.transcriber(apiKey)
	if err != nil {
		return Failure(err)
	}
	result, err := client.Transcribe(ctx, req)
	if err != nil {
		return Failure(err)
	}
	return Success(transcriptionPayload(result))
}

func (h *Host) saveTranscription(ctx context.Context, params json.RawMessage) Result {
	var p store.NewTranscription
	if err := decode(params, &p); err != nil {
		return Failure(err)
	}
	if strings.TrimSpace(p.Text) == "" {
		return Failure(errors.New("transcription text is empty"))
	}
	saved, err := h.opts.History.Save(ctx, p)
	if err != nil {
		return Failure(err)
	}
	return Success(map[string]any{"id": saved.ID, "transcription": saved})
}

type historyParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (h *Host) getHistory(ctx context.Context, params json.RawMessage) Result {
	var p historyParams
	if err := decode(params, &p); err != nil {
		return Failure(err)
	}
	items, err := h.opts.History.List(ctx, p.Limit)
	if err != nil {
		return Failure(err)
	}
	return Success(map[string]any{"history": nonNil(items)})
}

func (h *Host) searchTranscriptions(ctx context.Context, params json.RawMessage) Result {
	var p historyParams
	if err := decode(params, &p); err != nil {
		return Failure(err)
	}
	items, err := h.opts.History.Search(ctx, p.Query, p.Limit)
	if err != nil {
		return Failure(err)
	}
	return Success(map[string]any{"results": nonNil(items)})
}

func (h *Host) updateTranscription(ctx context.Context, params json.RawMessage) Result {
	var p struct {
		ID   int64  `json:"id"`
		Text string `json:"text"`
	}
	if err := decode(params, &p); err != nil {
		return Failure(err)
	}
	updated, err := h.opts.History.UpdateText(ctx, p.ID, p.Text)
	if err != nil {
		return Failure(err)
	}
	return Success(map[string]any{"transcription": updated})
}

func (h *Host) copyToClipboard(ctx context.Context, params json.RawMessage) Result {
	var p struct {
		Text string `json:"text"`
	}
	if err := decode(params, &p); err != nil {
		return Failure(err)
	}
	if h.opts.Copy == nil {
		return Failure(errors.New("clipboard is not available"))
	}
	if err := h.opts.Copy(ctx, p.Text); err != nil {
		return Failure(err)
	}
	return Success(nil)
}

func (h *Host) toggleRecording(ctx context.Context, _ json.RawMessage) Result {
	ctrl, err := h.controller()
	if err != nil {
		return Failure(err)
	}
	saved, err := ctrl.Toggle(ctx)
	if err != nil {
		return Failure(err)
	}
	payload := map[string]any{"recording": saved == nil, "screen": ctrl.Screen()}
	if saved != nil {
		payload["transcription"] = saved
	}
	return Success(payload)
}

func (h *Host) releaseMicrophone(context.Context, json.RawMessage) Result {
	ctrl, err := h.controller()
	if err != nil {
		// Nothing can hold the microphone without a controller.
		return Success(nil)
	}
	if err := ctrl.ReleaseMicrophone(); err != nil {
		return Failure(err)
	}
	return Success(nil)
}

func (h *Host) startRecording(ctx context.Context, _ json.RawMessage) Result {
	return h.onController(func(c *session.Controller) error { return c.StartRecording(ctx) })
}

func (h *Host) stopRecording(ctx context.Context, _ json.RawMessage) Result {
	ctrl, err := h.controller()
	if err != nil {
		return Failure(err)
	}
	saved, err := ctrl.StopRecording(ctx)
	if err != nil {
		return Failure(err)
	}
	return Success(map[string]any{"transcription": saved, "screen": ctrl.Screen()})
}

func (h *Host) pauseRecording(context.Context, json.RawMessage) Result {
	return h.onController((*session.Controller).PauseRecording)
}

func (h *Host) resumeRecording(context.Context, json.RawMessage) Result {
	return h.onController((*session.Controller).ResumeRecording)
}

func (h *Host) cancelRecording(context.Context, json.RawMessage) Result {
	return h.onController((*session.Controller).CancelRecording)
}

func (h *Host) getState(context.Context, json.RawMessage) Result {
	ctrl, err := h.controller()
	if err != nil {
		return Failure(err)
	}
	return Success(map[string]any{
		"screen":    ctrl.Screen(),
		"elapsedMs": ctrl.Elapsed().Milliseconds(),
		"paused":    ctrl.Paused(),
	})
}

func (h *Host) getLastTranscription(context.Context, json.RawMessage) Result {
	ctrl, err := h.controller()
	if err != nil {
		return Failure(err)
	}
	last, ok := ctrl.Last()
	if !ok {
		return Success(map[string]any{"transcription": nil})
	}
	return Success(map[string]any{"transcription": last})
}

func (h *Host) navigateBack(context.Context, json.RawMessage) Result {
	return h.onController((*session.Controller).Back)
}

func (h *Host) openHistory(context.Context, json.RawMessage) Result {
	return h.onController((*session.Controller).ViewHistory)
}

func (h *Host) openPDFTools(context.Context, json.RawMessage) Result {
	return h.onController((*session.Controller).OpenPDFTools)
}

func (h *Host) onController(fn func(*session.Controller) error) Result {
	ctrl, err := h.controller()
	if err != nil {
		return Failure(err)
	}
	if err := fn(ctrl); err != nil {
		return Failure(err)
	}
	return Success(map[string]any{"screen": ctrl.Screen()})
}

type pdfParams struct {
	FilePath      string   `json:"filePath"`
	FilePaths     []string `json:"filePaths"`
	Ranges        string   `json:"ranges"`
	Pages         string   `json:"pages"`
	RangeSize     int      `json:"rangeSize"`
	SeparateFiles bool     `json:"separateFiles"`
	OutputPath    string   `json:"outputPath"`
	OutputDir     string   `json:"outputDir"`
}

func (h *Host) pdfCombine(_ context.Context, params json.RawMessage) Result {
	var p pdfParams
	if err := decode(params, &p); err != nil {
		return Failure(err)
	}
	if p.OutputPath == "" {
		return Canceled()
	}
	if err := h.opts.PDF.Merge(p.FilePaths, p.OutputPath); err != nil {
		return Failure(err)
	}
	return Success(map[string]any{"filePath": p.OutputPath})
}

func (h *Host) pdfPageCount(_ context.Context, params json.RawMessage) Result {
	var p pdfParams
	if err := decode(params, &p); err != nil {
		return Failure(err)
	}
	if p.FilePath == "" {
		return Canceled()
	}
	count, err := h.opts.PDF.PageCount(p.FilePath)
	if err != nil {
		return Failure(err)
	}
	return Success(map[string]any{"pageCount": count})
}

func (h *Host) pdfSplitRanges(_ context.Context, params json.RawMessage) Result {
	var p pdfParams
	if err := decode(params, &p); err != nil {
		return Failure(err)
	}
	if p.OutputPath == "" {
		return Canceled()
	}
	if err := h.opts.PDF.ExtractSelection(p.FilePath, p.Ranges, p.OutputPath); err != nil {
		return Failure(err)
	}
	return Success(map[string]any{"filePath": p.OutputPath})
}

func (h *Host) pdfSplitRangeGroups(_ context.Context, params json.RawMessage) Result {
	return h.splitInto(params, func(p pdfParams) ([]string, error) {
		return h.opts.PDF.SplitGroups(p.FilePath, p.Ranges, p.OutputDir)
	})
}

func (h *Host) pdfSplitFixed(_ context.Context, params json.RawMessage) Result {
	return h.splitInto(params, func(p pdfParams) ([]string, error) {
		return h.opts.PDF.SplitFixed(p.FilePath, p.RangeSize, p.OutputDir)
	})
}

func (h *Host) pdfExtractAll(_ context.Context, params json.RawMessage) Result {
	return h.splitInto(params, func(p pdfParams) ([]string, error) {
		return h.opts.PDF.ExtractAll(p.FilePath, p.OutputDir)
	})
}

func (h *Host) pdfSelectPages(_ context.Context, params json.RawMessage) Result {
	var p pdfParams
	if err := decode(params, &p); err != nil {
		return Failure(err)
	}
	if p.SeparateFiles {
		return h.splitInto(params, func(p pdfParams) ([]string, error) {
			return h.opts.PDF.ExtractPages(p.FilePath, p.Pages, p.OutputDir)
		})
	}
	if p.OutputPath == "" {
		return Canceled()
	}
	if err := h.opts.PDF.ExtractSelection(p.FilePath, p.Pages, p.OutputPath); err != nil {
		return Failure(err)
	}
	return Success(map[string]any{"filePath": p.OutputPath})
}

func (h *Host) splitInto(params json.RawMessage, split func(pdfParams) ([]string, error)) Result {
	var p pdfParams
	if err := decode(params, &p); err != nil {
		return Failure(err)
	}
	if p.OutputDir == "" {
		return Canceled()
	}
	files, err := split(p)
	if err != nil {
		return Failure(err)
	}
	return Success(map[string]any{"count": len(files), "directory": p.OutputDir, "files": files})
}

func (h *Host) imagesToPDF(_ context.Context, params json.RawMessage) Result {
	var p pdfParams
	if err := decode(params, &p); err != nil {
		return Failure(err)
	}
	if p.OutputPath == "" {
		return Canceled()
	}
	if err := h.opts.PDF.ImagesToPDF(p.FilePaths, p.OutputPath); err != nil {
		return Failure(err)
	}
	return Success(map[string]any{"filePath": p.OutputPath, "count": len(p.FilePaths)})
}

func (h *Host) pdfToImages(ctx context.Context, params json.RawMessage) Result {
	var p pdfParams
	if err := decode(params, &p); err != nil {
		return Failure(err)
	}
	if p.OutputDir == "" {
		return Canceled()
	}
	images, err := h.opts.PDF.PDFToImages(ctx, p.FilePath, p.OutputDir)
	if err != nil {
		return Failure(err)
	}
	return Success(map[string]any{"count": len(images), "directory": p.OutputDir, "files": images})
}

func (h *Host) checkForUpdates(ctx context.Context, _ json.RawMessage) Result {
	if h.opts.Updates == nil {
		return Failure(errors.New("update checks are disabled"))
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	status, err := h.opts.Updates.Check(ctx)
	if err != nil {
		return Failure(fmt.Errorf("check for updates: %w", err))
	}
	return Success(map[string]any{
		"available": status.Available,
		"current":   status.Current,
		"latest":    status.Latest,
		"url":       status.URL,
	})
}

func nonNil(items []store.Transcription) []store.Transcription {
	return lo.Ternary(items == nil, []store.Transcription{}, items)
}
