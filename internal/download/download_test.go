package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sha(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func TestParseChecksumByFilename(t *testing.T) {
	t.Parallel()

	content := []byte(
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa  transcriptor_linux_amd64.tar.gz.sig\n" +
			"bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb *transcriptor_linux_amd64.tar.gz\n")

	parsed, err := ParseChecksum(content, "transcriptor_linux_amd64.tar.gz")
	require.NoError(t, err)
	require.Equal(t, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", parsed)
}

func TestParseChecksumFallsBackToFirstEntry(t *testing.T) {
	t.Parallel()

	parsed, err := ParseChecksum([]byte("CCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC\n"), "other.zip")
	require.NoError(t, err)
	require.Equal(t, "cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc", parsed)

	_, err = ParseChecksum([]byte("no sums here"), "x")
	require.Error(t, err)
}

func TestVerifyFileChecksum(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "payload.bin")
	payload := []byte("transcriptor")
	require.NoError(t, os.WriteFile(path, payload, 0o644))

	require.NoError(t, VerifyFileChecksum(path, sha(payload)))
	require.NoError(t, VerifyFileChecksum(path, ""))
	require.Error(t, VerifyFileChecksum(path, "deadbeef"))
}

func TestDownloadFileWithChecksumURL(t *testing.T) {
	t.Parallel()

	payload := []byte("release-archive")
	checksumBody := fmt.Sprintf("%s  transcriptor_linux_amd64.tar.gz\n", sha(payload))

	var userAgent atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/transcriptor_linux_amd64.tar.gz":
			userAgent.Store(r.Header.Get("User-Agent"))
			_, _ = w.Write(payload)
		case "/checksums.txt":
			_, _ = w.Write([]byte(checksumBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	destination := filepath.Join(t.TempDir(), "updates", "next.tar.gz")
	err := DownloadFile(context.Background(), Options{
		URL:         server.URL + "/transcriptor_linux_amd64.tar.gz",
		Destination: destination,
		ChecksumURL: server.URL + "/checksums.txt",
		NoProgress:  true,
		Retries:     1,
	})
	require.NoError(t, err)

	onDisk, err := os.ReadFile(destination)
	require.NoError(t, err)
	require.Equal(t, payload, onDisk)
	require.Equal(t, "transcriptor/1", userAgent.Load())
	require.NoFileExists(t, destination+".part")
}

func TestDownloadFileChecksumMismatchLeavesNothing(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("tampered"))
	}))
	defer server.Close()

	destination := filepath.Join(t.TempDir(), "artifact.bin")
	err := DownloadFile(context.Background(), Options{
		URL:            server.URL + "/artifact.bin",
		Destination:    destination,
		ExpectedSHA256: sha([]byte("original")),
		NoProgress:     true,
		Retries:        2,
		Backoff:        time.Millisecond,
	})
	require.ErrorContains(t, err, "checksum mismatch")
	require.NoFileExists(t, destination)
	require.NoFileExists(t, destination+".part")
}

func TestDownloadFileRetriesServerErrors(t *testing.T) {
	t.Parallel()

	payload := []byte("eventually")
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	destination := filepath.Join(t.TempDir(), "artifact.bin")
	err := DownloadFile(context.Background(), Options{
		URL:         server.URL + "/artifact.bin",
		Destination: destination,
		NoProgress:  true,
		Retries:     3,
		Backoff:     time.Millisecond,
	})
	require.NoError(t, err)
	require.EqualValues(t, 3, calls.Load())
}

func TestDownloadFileDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	err := DownloadFile(context.Background(), Options{
		URL:         server.URL + "/missing.bin",
		Destination: filepath.Join(t.TempDir(), "missing.bin"),
		NoProgress:  true,
		Retries:     3,
		Backoff:     time.Millisecond,
	})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.Code)
	require.EqualValues(t, 1, calls.Load())
}

func TestResolveExpectedChecksum(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa  transcriptor.zip\n"))
	}))
	defer server.Close()

	checksum, err := ResolveExpectedChecksum(context.Background(), server.URL, "transcriptor.zip", nil)
	require.NoError(t, err)
	require.Equal(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", checksum)
}
