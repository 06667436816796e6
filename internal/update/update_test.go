package update

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func releaseServer(t *testing.T, release func(base string) Release, files map[string][]byte) *httptest.Server {
	t.Helper()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repos/DonMrMango/transcriptor/releases/latest" {
			_ = json.NewEncoder(w).Encode(release(server.URL))
			return
		}
		if body, ok := files[r.URL.Path]; ok {
			_, _ = w.Write(body)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestChecker(baseURL, current string) *Checker {
	c := NewChecker("DonMrMango/transcriptor", nil)
	c.APIBaseURL = baseURL
	c.Current = current
	c.GOOS = "linux"
	c.GOARCH = "amd64"
	c.NoProgress = true
	return c
}

func TestCheckReportsNewerRelease(t *testing.T) {
	t.Parallel()

	server := releaseServer(t, func(string) Release {
		return Release{TagName: "v0.2.0", HTMLURL: "https://github.com/DonMrMango/transcriptor/releases/v0.2.0", Body: "notas"}
	}, nil)

	status, err := newTestChecker(server.URL, "0.1.0").Check(context.Background())
	require.NoError(t, err)
	require.True(t, status.Available)
	require.Equal(t, "0.2.0", status.Latest)
	require.Equal(t, "0.1.0", status.Current)
	require.Equal(t, "notas", status.Notes)
}

func TestCheckUpToDate(t *testing.T) {
	t.Parallel()

	server := releaseServer(t, func(string) Release { return Release{TagName: "v0.1.0"} }, nil)

	status, err := newTestChecker(server.URL, "0.1.0").Check(context.Background())
	require.NoError(t, err)
	require.False(t, status.Available)
}

func TestCheckWithoutReleases(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	status, err := newTestChecker(server.URL, "0.1.0").Check(context.Background())
	require.NoError(t, err)
	require.False(t, status.Available)
}

func TestCheckSurfacesServerErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newTestChecker(server.URL, "0.1.0").Check(context.Background())
	require.ErrorContains(t, err, "status 403")
}

func TestCheckRejectsMalformedRepository(t *testing.T) {
	t.Parallel()

	c := NewChecker("transcriptor", nil)
	_, err := c.Check(context.Background())
	require.Error(t, err)
}

func TestRunNotifiesAfterInitialDelayAndOnInterval(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(Release{TagName: "v9.0.0"})
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notified := make(chan Status, 8)
	done := make(chan struct{})
	go func() {
		newTestChecker(server.URL, "0.1.0").Run(ctx, 10*time.Millisecond, 20*time.Millisecond, func(s Status) {
			notified <- s
		})
		close(done)
	}()

	first := <-notified
	require.Equal(t, "9.0.0", first.Latest)
	<-notified

	cancel()
	<-done
	require.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestRunKeepsGoingAfterFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(Release{TagName: "v1.0.0"})
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notified := make(chan Status, 4)
	go newTestChecker(server.URL, "0.1.0").Run(ctx, time.Millisecond, 10*time.Millisecond, func(s Status) {
		notified <- s
	})

	select {
	case s := <-notified:
		require.Equal(t, "1.0.0", s.Latest)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification after a failed check")
	}
}

func TestDownloadVerifiesPlatformArchive(t *testing.T) {
	t.Parallel()

	archive := []byte("linux-amd64-archive")
	sum := sha256.Sum256(archive)
	name := "transcriptor_0.2.0_linux_amd64.tar.gz"
	files := map[string][]byte{
		"/dl/" + name:       archive,
		"/dl/checksums.txt": []byte(fmt.Sprintf("%s  %s\n", hex.EncodeToString(sum[:]), name)),
	}

	server := releaseServer(t, func(base string) Release {
		return Release{TagName: "v0.2.0", Assets: []Asset{
			{Name: "transcriptor_0.2.0_darwin_arm64.tar.gz", URL: base + "/dl/transcriptor_0.2.0_darwin_arm64.tar.gz"},
			{Name: name, URL: base + "/dl/" + name},
			{Name: "checksums.txt", URL: base + "/dl/checksums.txt"},
		}}
	}, files)

	checker := newTestChecker(server.URL, "0.1.0")
	status, err := checker.Check(context.Background())
	require.NoError(t, err)

	path, err := checker.Download(context.Background(), status, t.TempDir())
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, archive, raw)
}

func TestDownloadWithoutPlatformAsset(t *testing.T) {
	t.Parallel()

	checker := newTestChecker("http://unused", "0.1.0")
	_, err := checker.Download(context.Background(), Status{Release: Release{TagName: "v0.2.0"}}, t.TempDir())
	require.ErrorIs(t, err, ErrNoAsset)
}

func TestAssetFor(t *testing.T) {
	t.Parallel()

	release := Release{Assets: []Asset{
		{Name: "checksums.txt"},
		{Name: "transcriptor_0.2.0_linux_arm64.tar.gz"},
		{Name: "transcriptor_0.2.0_darwin_arm64.zip"},
	}}

	asset, ok := AssetFor(release, "darwin", "arm64")
	require.True(t, ok)
	require.Equal(t, "transcriptor_0.2.0_darwin_arm64.zip", asset.Name)

	_, ok = AssetFor(release, "linux", "amd64")
	require.False(t, ok)
}
