// Package update checks GitHub releases for a newer transcriptor build and
// downloads the matching archive.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DonMrMango/transcriptor/internal/download"
	"github.com/DonMrMango/transcriptor/internal/version"
)

const (
	DefaultAPIBaseURL = "https://api.github.com"
	InitialDelay      = 3 * time.Second
	Interval          = time.Hour

	checksumsAsset = "checksums.txt"
)

var ErrNoAsset = errors.New("release has no archive for this platform")

type Asset struct {
	Name string `json:"name"`
	URL  string `json:"browser_download_url"`
	Size int64  `json:"size"`
}

type Release struct {
	TagName string  `json:"tag_name"`
	Name    string  `json:"name"`
	HTMLURL string  `json:"html_url"`
	Body    string  `json:"body"`
	Draft   bool    `json:"draft"`
	Assets  []Asset `json:"assets"`
}

// Status is the outcome of one check.
type Status struct {
	Current   string  `json:"current"`
	Latest    string  `json:"latest"`
	Available bool    `json:"available"`
	URL       string  `json:"url,omitempty"`
	Notes     string  `json:"notes,omitempty"`
	Release   Release `json:"-"`
}

type Checker struct {
	Repository string
	Current    string
	APIBaseURL string
	GOOS       string
	GOARCH     string
	NoProgress bool
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewChecker returns a checker for owner/name on GitHub, comparing against the
// running binary's version.
func NewChecker(repository string, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		Repository: repository,
		Current:    version.Version,
		APIBaseURL: DefaultAPIBaseURL,
		GOOS:       runtime.GOOS,
		GOARCH:     runtime.GOARCH,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Logger:     logger,
	}
}

// Check fetches the latest published release.
func (c *Checker) Check(ctx context.Context) (Status, error) {
	if !strings.Contains(c.Repository, "/") {
		return Status{}, fmt.Errorf("update repository %q must be owner/name", c.Repository)
	}

	endpoint := strings.TrimRight(c.APIBaseURL, "/") + "/repos/" + c.Repository + "/releases/latest"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Status{}, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "transcriptor/"+c.Current)

	resp, err := c.client().Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("query latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Status{Current: c.Current}, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Status{}, fmt.Errorf("query latest release: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return Status{}, fmt.Errorf("decode release: %w", err)
	}

	status := Status{
		Current: c.Current,
		Latest:  strings.TrimPrefix(release.TagName, "v"),
		URL:     release.HTMLURL,
		Notes:   release.Body,
		Release: release,
	}
	status.Available = !release.Draft && version.Newer(release.TagName, c.Current)

	c.log().Debug("update check finished",
		zap.String("current", status.Current),
		zap.String("latest", status.Latest),
		zap.Bool("available", status.Available))
	return status, nil
}

// Run checks once after initialDelay and then every interval until ctx is
// done. notify is called for every check that finds a newer release. Failed
// checks are logged and wait for the next tick.
func (c *Checker) Run(ctx context.Context, initialDelay, interval time.Duration, notify func(Status)) {
	timer := time.NewTimer(initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		status, err := c.Check(ctx)
		switch {
		case err != nil:
			if ctx.Err() == nil {
				c.log().Warn("update check failed", zap.Error(err))
			}
		case status.Available:
			c.log().Info("update available", zap.String("version", status.Latest))
			if notify != nil {
				notify(status)
			}
		default:
			c.log().Debug("no update available")
		}

		timer.Reset(interval)
	}
}

// Download fetches the platform archive of status.Release into dir and
// verifies it against the release's checksums.txt when present.
func (c *Checker) Download(ctx context.Context, status Status, dir string) (string, error) {
	asset, ok := AssetFor(status.Release, c.GOOS, c.GOARCH)
	if !ok {
		return "", fmt.Errorf("%w (%s/%s)", ErrNoAsset, c.GOOS, c.GOARCH)
	}

	opts := download.Options{
		URL:          asset.URL,
		Destination:  filepath.Join(dir, asset.Name),
		ChecksumName: asset.Name,
		UserAgent:    "transcriptor/" + c.Current,
		Description:  "downloading " + status.Latest,
		NoProgress:   c.NoProgress,
		HTTPClient:   c.HTTPClient,
		Logger:       c.log(),
	}
	for _, candidate := range status.Release.Assets {
		if candidate.Name == checksumsAsset {
			opts.ChecksumURL = candidate.URL
		}
	}
	if opts.ChecksumURL == "" {
		c.log().Warn("release has no checksums file; skipping verification", zap.String("release", status.Release.TagName))
	}

	if err := download.DownloadFile(ctx, opts); err != nil {
		return "", err
	}
	return opts.Destination, nil
}

// AssetFor picks the archive built for goos/goarch, named
// transcriptor_<version>_<goos>_<goarch>.tar.gz or .zip.
func AssetFor(release Release, goos, goarch string) (Asset, bool) {
	marker := "_" + goos + "_" + goarch
	for _, asset := range release.Assets {
		name := strings.ToLower(asset.Name)
		if !strings.HasPrefix(name, "transcriptor") {
			continue
		}
		base := strings.TrimSuffix(strings.TrimSuffix(name, ".tar.gz"), ".zip")
		if base != name && strings.HasSuffix(base, marker) {
			return asset, true
		}
	}
	return Asset{}, false
}

func (c *Checker) client() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}

func (c *Checker) log() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
