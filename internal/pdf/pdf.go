// Package pdf implements the file-to-file PDF transforms: merge, split,
// page selection and image conversion.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"

	"github.com/DonMrMango/transcriptor/internal/pagerange"
)

var (
	ErrNoPages           = errors.New("no pages selected")
	ErrTooFewInputs      = errors.New("at least two PDF files are required to merge")
	ErrNoImages          = errors.New("no images selected")
	ErrRasterizerMissing = errors.New("pdftoppm is not installed; install poppler-utils (Linux) or poppler (macOS)")
)

// Tool performs PDF operations. The zero value is not usable; use New.
type Tool struct {
	// newConf returns a fresh configuration per operation; pdfcpu mutates it.
	newConf    func() *model.Configuration
	rasterizer string
	dpi        int
	logger     *zap.Logger
}

type Option func(*Tool)

// WithRasterizer overrides the pdftoppm executable.
func WithRasterizer(name string) Option {
	return func(t *Tool) { t.rasterizer = name }
}

func WithDPI(dpi int) Option {
	return func(t *Tool) {
		if dpi > 0 {
			t.dpi = dpi
		}
	}
}

func New(logger *zap.Logger, opts ...Option) *Tool {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tool{
		newConf:    model.NewDefaultConfiguration,
		rasterizer: "pdftoppm",
		dpi:        150,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tool) PageCount(input string) (int, error) {
	count, err := api.PageCountFile(input)
	if err != nil {
		return 0, fmt.Errorf("read page count of %s: %w", filepath.Base(input), err)
	}
	return count, nil
}

// Merge concatenates inputs in order into output.
func (t *Tool) Merge(inputs []string, output string) error {
	if len(inputs) < 2 {
		return ErrTooFewInputs
	}
	if err := ensureParent(output); err != nil {
		return err
	}

	if err := api.MergeCreateFile(inputs, output, false, t.newConf()); err != nil {
		_ = os.Remove(output)
		return fmt.Errorf("merge pdf files: %w", err)
	}

	t.logger.Debug("merged pdf files", zap.Int("inputs", len(inputs)), zap.String("output", output))
	return nil
}

// ExtractSelection writes the pages chosen by selector into a single PDF.
func (t *Tool) ExtractSelection(input, selector, output string) error {
	count, err := t.PageCount(input)
	if err != nil {
		return err
	}
	pages, err := pagerange.Parse(selector, count)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		return ErrNoPages
	}
	if err := ensureParent(output); err != nil {
		return err
	}

	if err := t.trim(input, output, pages); err != nil {
		_ = os.Remove(output)
		return err
	}
	return nil
}

// SplitGroups writes one PDF per selector token into dir.
func (t *Tool) SplitGroups(input, selector, dir string) ([]string, error) {
	count, err := t.PageCount(input)
	if err != nil {
		return nil, err
	}
	groups, err := pagerange.ParseGroups(selector, count)
	if err != nil {
		return nil, err
	}
	return t.writeGroups(input, dir, groups)
}

// SplitFixed writes consecutive blocks of size pages into dir.
func (t *Tool) SplitFixed(input string, size int, dir string) ([]string, error) {
	count, err := t.PageCount(input)
	if err != nil {
		return nil, err
	}
	groups, err := pagerange.Fixed(count, size)
	if err != nil {
		return nil, err
	}
	return t.writeGroups(input, dir, groups)
}

// ExtractAll writes every page of input as its own PDF.
func (t *Tool) ExtractAll(input, dir string) ([]string, error) {
	count, err := t.PageCount(input)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNoPages
	}
	groups, err := pagerange.Fixed(count, 1)
	if err != nil {
		return nil, err
	}
	return t.writeGroups(input, dir, groups)
}

// ExtractPages writes each page chosen by selector as its own PDF.
func (t *Tool) ExtractPages(input, selector, dir string) ([]string, error) {
	count, err := t.PageCount(input)
	if err != nil {
		return nil, err
	}
	pages, err := pagerange.Parse(selector, count)
	if err != nil {
		return nil, err
	}

	groups := make([][]int, 0, len(pages))
	for _, page := range pages {
		groups = append(groups, []int{page})
	}
	return t.writeGroups(input, dir, groups)
}

// ImagesToPDF builds output with one page per image, in the given order.
func (t *Tool) ImagesToPDF(images []string, output string) error {
	if len(images) == 0 {
		return ErrNoImages
	}
	if err := ensureParent(output); err != nil {
		return err
	}

	// ImportImagesFile appends when output already exists.
	if err := os.Remove(output); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := api.ImportImagesFile(images, output, pdfcpu.DefaultImportConfig(), t.newConf()); err != nil {
		_ = os.Remove(output)
		return fmt.Errorf("convert images to pdf: %w", err)
	}
	return nil
}

// PDFToImages rasterises every page of input into PNG files under dir.
func (t *Tool) PDFToImages(ctx context.Context, input, dir string) ([]string, error) {
	exe, err := exec.LookPath(t.rasterizer)
	if err != nil {
		return nil, ErrRasterizerMissing
	}
	if _, err := os.Stat(input); err != nil {
		return nil, fmt.Errorf("open %s: %w", input, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	// Only images from this run are returned.
	work, err := os.MkdirTemp(dir, ".pdftoppm-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(work)

	base := baseName(input) + "_page"
	cmd := exec.CommandContext(ctx, exe, "-png", "-r", strconv.Itoa(t.dpi), input, filepath.Join(work, base))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("rasterize pdf: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	entries, err := os.ReadDir(work)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.HasPrefix(entry.Name(), base+"-") && strings.HasSuffix(entry.Name(), ".png") {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%s produced no images", filepath.Base(exe))
	}
	sort.Slice(names, func(i, j int) bool {
		return pageSuffix(names[i], base) < pageSuffix(names[j], base)
	})

	images := make([]string, 0, len(names))
	for _, name := range names {
		target := filepath.Join(dir, name)
		if err := os.Rename(filepath.Join(work, name), target); err != nil {
			for _, path := range images {
				_ = os.Remove(path)
			}
			return nil, fmt.Errorf("move %s: %w", name, err)
		}
		images = append(images, target)
	}
	return images, nil
}

func (t *Tool) writeGroups(input, dir string, groups [][]int) ([]string, error) {
	if len(groups) == 0 {
		return nil, ErrNoPages
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	base := baseName(input)
	written := make([]string, 0, len(groups))
	seen := make(map[string]bool, len(groups))
	for _, group := range groups {
		output := filepath.Join(dir, GroupFileName(base, group))
		if seen[output] {
			continue
		}
		if err := t.trim(input, output, group); err != nil {
			for _, path := range append(written, output) {
				_ = os.Remove(path)
			}
			return nil, err
		}
		seen[output] = true
		written = append(written, output)
	}

	t.logger.Debug("split pdf", zap.String("input", input), zap.Int("files", len(written)))
	return written, nil
}

func (t *Tool) trim(input, output string, pages []int) error {
	if err := api.TrimFile(input, output, pagerange.Selectors(pages), t.newConf()); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(output), err)
	}
	return nil
}

// GroupFileName names the output for a group of zero-based pages:
// <base>_page_<n>.pdf for one page, <base>_pages_<a>-<b>.pdf otherwise.
func GroupFileName(base string, group []int) string {
	first, last := group[0], group[0]
	for _, page := range group {
		first = min(first, page)
		last = max(last, page)
	}
	if first == last {
		return fmt.Sprintf("%s_page_%d.pdf", base, first+1)
	}
	return fmt.Sprintf("%s_pages_%d-%d.pdf", base, first+1, last+1)
}

func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func pageSuffix(path, prefix string) int {
	raw := strings.TrimSuffix(strings.TrimPrefix(path, prefix+"-"), ".png")
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func ensureParent(path string) error {
	if path == "" {
		return errors.New("output path is required")
	}
	return os.MkdirAll(filepath.Dir(filepath.Clean(path)), 0o755)
}
