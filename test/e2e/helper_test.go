package e2e

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/3-lines-studio/ssrserve"
)

var fixtureDir string

func init() {
	_, filename, _, _ := runtime.Caller(0)
	fixtureDir, _ = filepath.Abs(filepath.Join(filepath.Dir(filename), "testdata", "app"))
}

func skipIfNoNode(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("node"); err != nil {
		t.Skip("node not available, skipping E2E test")
	}
}

// copyFixture gives each test its own project root, since the sidecar
// writes its script inside the root.
func copyFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.CopyFS(dir, os.DirFS(fixtureDir)))
	return dir
}

type testServer struct {
	app    *ssrserve.App
	addr   string
	client *http.Client
}

func prodConfig(root string) ssrserve.Config {
	return ssrserve.Config{
		NodeEnv:     "production",
		Base:        "/app/",
		Root:        root,
		ClientDir:   "dist/client",
		ServerEntry: "dist/server/entry-server.js",
		Runtime:     "node",
	}
}

func newTestServer(t *testing.T, cfg ssrserve.Config) *testServer {
	t.Helper()
	skipIfNoNode(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := ssrserve.New(context.Background(), cfg, ssrserve.WithLogger(logger))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Error("server did not shut down")
		}
		_ = app.Stop()
	})

	return &testServer{
		app:    app,
		addr:   ln.Addr().String(),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *testServer) url(path string) string {
	return "http://" + s.addr + path
}

func (s *testServer) do(t *testing.T, method, path string) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequest(method, s.url(path), nil)
	require.NoError(t, err)
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (s *testServer) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	return s.do(t, http.MethodGet, path)
}
