package process

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/3-lines-studio/ssrserve/internal/core"
)

var (
	//go:embed sidecar_dev.mjs
	SidecarDevSource string

	//go:embed sidecar_prod.mjs
	SidecarProdSource string
)

const (
	rpcPrefix       = "/__ssrserve/"
	UnhandledHeader = "X-Ssrserve-Unhandled"
	startTimeout    = 10 * time.Second
	stopGrace       = 5 * time.Second
)

var socketSeq atomic.Int64

type Options struct {
	Mode    core.Mode
	Runtime string
	Root    string
	Base    string
	// Entry is a Vite module id in development and a path to the compiled
	// entry in production.
	Entry string
	// Source overrides the embedded sidecar script.
	Source string
}

// Sidecar is a Node or Bun child process that owns everything JavaScript:
// Vite in development, the compiled render entry in production. It listens
// on a unix socket and answers JSON requests.
type Sidecar struct {
	mode    core.Mode
	cmd     *exec.Cmd
	socket  string
	script  string
	client  *http.Client
	exited  chan struct{}
	stopped sync.Once
	stopErr error
}

func Start(opts Options) (*Sidecar, error) {
	if opts.Runtime == "" {
		opts.Runtime = "node"
	}
	if opts.Root == "" {
		opts.Root = "."
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	source := opts.Source
	if source == "" {
		source = SidecarProdSource
		if opts.Mode == core.ModeDev {
			source = SidecarDevSource
		}
	}

	// The script lives inside the project so bare imports such as "vite"
	// resolve against the project's node_modules.
	scriptDir := filepath.Join(root, ".ssrserve")
	if err := os.MkdirAll(scriptDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sidecar directory: %w", err)
	}
	seq := socketSeq.Add(1)
	script := filepath.Join(scriptDir, fmt.Sprintf("sidecar-%d-%d.mjs", os.Getpid(), seq))
	if err := os.WriteFile(script, []byte(source), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write sidecar script: %w", err)
	}

	socket := filepath.Join(os.TempDir(), fmt.Sprintf("ssrserve-%d-%d.sock", os.Getpid(), seq))
	_ = os.Remove(socket)

	entry := opts.Entry
	if opts.Mode == core.ModeProd && entry != "" && !filepath.IsAbs(entry) {
		entry = filepath.Join(root, entry)
	}

	cmd := exec.Command(opts.Runtime, script)
	cmd.Dir = root
	cmd.Env = append(os.Environ(),
		"SSRSERVE_SOCKET="+socket,
		"SSRSERVE_ROOT="+root,
		"SSRSERVE_BASE="+opts.Base,
		"SSRSERVE_ENTRY="+entry,
	)
	if opts.Mode == core.ModeProd {
		cmd.Env = append(cmd.Env, "NODE_ENV=production")
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		_ = os.Remove(script)
		return nil, fmt.Errorf("failed to start %s: %w", opts.Runtime, err)
	}

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	if err := waitForSocket(socket, exited, startTimeout); err != nil {
		_ = cmd.Process.Kill()
		<-exited
		_ = os.Remove(script)
		return nil, err
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket)
		},
		MaxIdleConnsPerHost: 64,
	}

	return &Sidecar{
		mode:   opts.Mode,
		cmd:    cmd,
		socket: socket,
		script: script,
		client: &http.Client{Transport: transport},
		exited: exited,
	}, nil
}

// Stop sends SIGTERM so the script can close its server (and Vite), then
// kills the process if it is still running after stopGrace.
func (s *Sidecar) Stop() error {
	s.stopped.Do(func() {
		if err := s.cmd.Process.Signal(syscall.SIGTERM); err == nil {
			select {
			case <-s.exited:
			case <-time.After(stopGrace):
			}
		}
		select {
		case <-s.exited:
		default:
			s.stopErr = s.cmd.Process.Kill()
			<-s.exited
		}
		_ = os.Remove(s.socket)
		_ = os.Remove(s.script)
	})
	return s.stopErr
}

type errorPayload struct {
	Message string `json:"message"`
	Stack   string `json:"stack"`
}

func (e *errorPayload) err() error {
	if e == nil {
		return nil
	}
	return &core.RenderError{Message: e.Message, Stack: e.Stack}
}

type renderResponse struct {
	Head  string        `json:"head"`
	HTML  string        `json:"html"`
	Error *errorPayload `json:"error"`
}

// Render matches core.RenderFunc. In development the sidecar reloads the
// entry module from source on each call.
func (s *Sidecar) Render(ctx context.Context, url string, manifest core.Manifest) (core.RenderResult, error) {
	reqBody := map[string]any{
		"url":      url,
		"manifest": manifest,
	}

	var result renderResponse
	if err := s.postJSON(ctx, "render", reqBody, &result); err != nil {
		return core.RenderResult{}, err
	}
	if err := result.Error.err(); err != nil {
		return core.RenderResult{}, err
	}

	return core.RenderResult{
		Head: result.Head,
		HTML: result.HTML,
	}, nil
}

// TransformHTML runs Vite's index.html transform (client script injection,
// plugin hooks). The production sidecar returns html unchanged.
func (s *Sidecar) TransformHTML(ctx context.Context, url, html string) (string, error) {
	var result struct {
		HTML  string        `json:"html"`
		Error *errorPayload `json:"error"`
	}
	if err := s.postJSON(ctx, "transform", map[string]any{"url": url, "html": html}, &result); err != nil {
		return "", err
	}
	if err := result.Error.err(); err != nil {
		return "", err
	}
	return result.HTML, nil
}

// FixStacktrace maps compiled positions in a render error back to source.
// Errors that did not come from JavaScript are returned untouched.
func (s *Sidecar) FixStacktrace(ctx context.Context, err error) error {
	var re *core.RenderError
	if !errors.As(err, &re) || re.Stack == "" {
		return err
	}

	var result struct {
		Stack string        `json:"stack"`
		Error *errorPayload `json:"error"`
	}
	if postErr := s.postJSON(ctx, "stacktrace", errorPayload{Message: re.Message, Stack: re.Stack}, &result); postErr != nil || result.Error != nil {
		return err
	}
	if result.Stack == "" {
		return err
	}
	re.Stack = result.Stack
	return err
}

// Load imports the render entry. Production sidecars keep the module for
// their lifetime, so this is the startup check that the entry exists and
// exports render.
func (s *Sidecar) Load(ctx context.Context) error {
	var result struct {
		OK    bool          `json:"ok"`
		Error *errorPayload `json:"error"`
	}
	if err := s.postJSON(ctx, "load", map[string]any{}, &result); err != nil {
		return err
	}
	if err := result.Error.err(); err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("render entry failed to load")
	}
	return nil
}

func (s *Sidecar) postJSON(ctx context.Context, endpoint string, body any, result any) error {
	select {
	case <-s.exited:
		return core.ErrSidecarUnavailable
	default:
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://sidecar"+rpcPrefix+endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", core.ErrSidecarUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sidecar %s returned status %d", endpoint, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

func waitForSocket(path string, exited <-chan struct{}, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		select {
		case <-exited:
			return fmt.Errorf("sidecar exited before listening on %s", path)
		default:
		}
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for sidecar socket at %s", path)
}

// isRPC reports whether a request path belongs to the sidecar protocol
// rather than to Vite.
func isRPC(path string) bool {
	return strings.HasPrefix(path, rpcPrefix)
}
