package cli

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DonMrMango/transcriptor/internal/update"
)

func newReleaseServer(t *testing.T, tag string) *httptest.Server {
	t.Helper()

	archive := []byte("archive-bytes")
	sum := sha256.Sum256(archive)
	assetName := fmt.Sprintf("transcriptor_%s_%s_%s.tar.gz", tag, runtime.GOOS, runtime.GOARCH)

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/DonMrMango/transcriptor/releases/latest":
			_ = json.NewEncoder(w).Encode(update.Release{
				TagName: "v" + tag,
				HTMLURL: "https://github.com/DonMrMango/transcriptor/releases/v" + tag,
				Assets: []update.Asset{
					{Name: assetName, URL: server.URL + "/dl/" + assetName},
					{Name: "checksums.txt", URL: server.URL + "/dl/checksums.txt"},
				},
			})
		case "/dl/" + assetName:
			_, _ = w.Write(archive)
		case "/dl/checksums.txt":
			fmt.Fprintf(w, "%s  %s\n", hex.EncodeToString(sum[:]), assetName)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestUpdateCommandReportsAndDownloads(t *testing.T) {
	t.Parallel()

	server := newReleaseServer(t, "9.0.0")
	app, _, _ := newTestApp(t)
	dest := t.TempDir()

	out := new(bytes.Buffer)
	cmd := newUpdateCmd(app)
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--api-url", server.URL, "--download", dest})

	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "transcriptor v9.0.0 is available")

	archive := filepath.Join(dest, fmt.Sprintf("transcriptor_9.0.0_%s_%s.tar.gz", runtime.GOOS, runtime.GOARCH))
	data, err := os.ReadFile(archive)
	require.NoError(t, err)
	require.Equal(t, "archive-bytes", string(data))
}

func TestUpdateCommandUpToDate(t *testing.T) {
	t.Parallel()

	server := newReleaseServer(t, "0.0.1")
	app, _, _ := newTestApp(t)

	out := new(bytes.Buffer)
	cmd := newUpdateCmd(app)
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--api-url", server.URL})

	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "is up to date")
}
