package usecase

import (
	"context"
	"errors"
	iofs "io/fs"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3-lines-studio/ssrserve/internal/adapters/fs"
	"github.com/3-lines-studio/ssrserve/internal/core"
)

const template = `<html><head><!--app-head--></head><body><!--app-html--></body></html>`

type countingFS struct {
	FileSystem
	mu    sync.Mutex
	reads map[string]int
}

func newCountingFS(files fstest.MapFS) *countingFS {
	return &countingFS{
		FileSystem: fs.NewIOFileSystem(files),
		reads:      map[string]int{},
	}
}

func (c *countingFS) ReadFile(path string) ([]byte, error) {
	c.mu.Lock()
	c.reads[path]++
	c.mu.Unlock()
	return c.FileSystem.ReadFile(path)
}

func (c *countingFS) Open(path string) (iofs.File, error) {
	c.mu.Lock()
	c.reads[path]++
	c.mu.Unlock()
	return c.FileSystem.Open(path)
}

func (c *countingFS) count(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads[path]
}

type fakeSidecar struct {
	mu          sync.Mutex
	render      core.RenderFunc
	transformed int
	fixed       int
	loads       int
	loadErr     error
}

func (f *fakeSidecar) Render(ctx context.Context, url string, manifest core.Manifest) (core.RenderResult, error) {
	return f.render(ctx, url, manifest)
}

func (f *fakeSidecar) TransformHTML(_ context.Context, url, html string) (string, error) {
	f.mu.Lock()
	f.transformed++
	f.mu.Unlock()
	return strings.Replace(html, "<head>", `<head><script type="module" src="/@vite/client"></script>`, 1), nil
}

func (f *fakeSidecar) FixStacktrace(_ context.Context, err error) error {
	f.mu.Lock()
	f.fixed++
	f.mu.Unlock()
	var re *core.RenderError
	if errors.As(err, &re) {
		re.Stack = strings.ReplaceAll(re.Stack, "entry-server.js:1:100", "src/App.tsx:12:3")
	}
	return err
}

func (f *fakeSidecar) Load(context.Context) error {
	f.loads++
	return f.loadErr
}

func staticRender(result core.RenderResult) core.RenderFunc {
	return func(context.Context, string, core.Manifest) (core.RenderResult, error) {
		return result, nil
	}
}

func prodFiles() fstest.MapFS {
	return fstest.MapFS{
		"dist/client/index.html":              {Data: []byte(template)},
		"dist/client/.vite/ssr-manifest.json": {Data: []byte(`{"src/App.tsx":["/assets/App.js"]}`)},
	}
}

func prodAssets(fsys FileSystem, render core.RenderFunc) ProdAssets {
	return ProdAssets{
		FS:           fsys,
		TemplatePath: "dist/client/index.html",
		ManifestPath: "dist/client/.vite/ssr-manifest.json",
		Render:       render,
	}
}

func TestServePageSubstitutesResult(t *testing.T) {
	src, err := LoadProdSource(context.Background(), prodAssets(newCountingFS(prodFiles()), staticRender(core.RenderResult{Head: "H", HTML: "B"})))
	require.NoError(t, err)

	out := NewPageService(src).ServePage(context.Background(), ServePageInput{URL: "/"})
	require.NoError(t, out.Error)
	assert.Equal(t, "<html><head>H</head><body>B</body></html>", out.HTML)
}

func TestServePageEmptyResult(t *testing.T) {
	src, err := LoadProdSource(context.Background(), prodAssets(newCountingFS(prodFiles()), staticRender(core.RenderResult{})))
	require.NoError(t, err)

	out := NewPageService(src).ServePage(context.Background(), ServePageInput{URL: "/"})
	require.NoError(t, out.Error)
	assert.Equal(t, "<html><head></head><body></body></html>", out.HTML)
}

func TestServePagePassesURLAndManifest(t *testing.T) {
	var gotURL string
	var gotManifest core.Manifest
	render := func(_ context.Context, url string, manifest core.Manifest) (core.RenderResult, error) {
		gotURL, gotManifest = url, manifest
		return core.RenderResult{}, nil
	}

	src, err := LoadProdSource(context.Background(), prodAssets(newCountingFS(prodFiles()), render))
	require.NoError(t, err)

	out := NewPageService(src).ServePage(context.Background(), ServePageInput{URL: "/foo/bar?x=1"})
	require.NoError(t, out.Error)
	assert.Equal(t, "/foo/bar?x=1", gotURL)
	assert.Equal(t, core.Manifest{"src/App.tsx": {"/assets/App.js"}}, gotManifest)
}

func TestServePageRenderFailureThenSuccess(t *testing.T) {
	fail := true
	render := func(_ context.Context, url string, _ core.Manifest) (core.RenderResult, error) {
		if fail {
			return core.RenderResult{}, &core.RenderError{Message: "boom", Stack: "Error: boom\n    at render (entry-server.js:1:100)"}
		}
		return core.RenderResult{HTML: url}, nil
	}

	src, err := LoadProdSource(context.Background(), prodAssets(newCountingFS(prodFiles()), render))
	require.NoError(t, err)
	svc := NewPageService(src)

	out := svc.ServePage(context.Background(), ServePageInput{URL: "/x"})
	require.Error(t, out.Error)
	assert.Equal(t, "Error: boom\n    at render (entry-server.js:1:100)", out.Diagnostic)

	fail = false
	out = svc.ServePage(context.Background(), ServePageInput{URL: "/x"})
	require.NoError(t, out.Error)
	assert.Contains(t, out.HTML, "<body>/x</body>")
}

func TestServePageRenderPanicThenSuccess(t *testing.T) {
	explode := true
	render := func(_ context.Context, url string, _ core.Manifest) (core.RenderResult, error) {
		if explode {
			panic("render exploded")
		}
		return core.RenderResult{HTML: url}, nil
	}

	src, err := LoadProdSource(context.Background(), prodAssets(newCountingFS(prodFiles()), render))
	require.NoError(t, err)
	svc := NewPageService(src)

	out := svc.ServePage(context.Background(), ServePageInput{URL: "/x"})
	require.Error(t, out.Error)
	var re *core.RenderError
	require.ErrorAs(t, out.Error, &re)
	assert.Equal(t, "render exploded", re.Message)
	assert.True(t, strings.HasPrefix(out.Diagnostic, "panic: render exploded"))
	assert.Contains(t, out.Diagnostic, "goroutine")

	explode = false
	out = svc.ServePage(context.Background(), ServePageInput{URL: "/x"})
	require.NoError(t, out.Error)
	assert.Contains(t, out.HTML, "<body>/x</body>")
}

func TestDevSourceWithoutSidecar(t *testing.T) {
	src := &DevSource{FS: newCountingFS(fstest.MapFS{"index.html": {Data: []byte(template)}}), TemplatePath: "index.html"}

	_, err := src.Template(context.Background(), "/")
	require.ErrorIs(t, err, core.ErrSidecarUnavailable)

	_, err = src.Renderer(context.Background())
	require.ErrorIs(t, err, core.ErrSidecarUnavailable)

	boom := errors.New("boom")
	assert.Same(t, boom, src.Diagnose(context.Background(), boom))

	out := NewPageService(src).ServePage(context.Background(), ServePageInput{URL: "/"})
	require.ErrorIs(t, out.Error, core.ErrSidecarUnavailable)
	assert.Equal(t, core.ErrSidecarUnavailable.Error(), out.Diagnostic)
}

func TestProdSourceReadsAssetsOnce(t *testing.T) {
	fsys := newCountingFS(prodFiles())
	src, err := LoadProdSource(context.Background(), prodAssets(fsys, staticRender(core.RenderResult{HTML: "B"})))
	require.NoError(t, err)
	svc := NewPageService(src)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := svc.ServePage(context.Background(), ServePageInput{URL: "/"})
			assert.NoError(t, out.Error)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fsys.count("dist/client/index.html"))
	assert.Equal(t, 1, fsys.count("dist/client/.vite/ssr-manifest.json"))
}

func TestLoadProdSourceErrors(t *testing.T) {
	t.Run("missing template", func(t *testing.T) {
		files := prodFiles()
		delete(files, "dist/client/index.html")
		_, err := LoadProdSource(context.Background(), prodAssets(newCountingFS(files), staticRender(core.RenderResult{})))
		require.ErrorIs(t, err, iofs.ErrNotExist)
	})

	t.Run("missing manifest", func(t *testing.T) {
		files := prodFiles()
		delete(files, "dist/client/.vite/ssr-manifest.json")
		_, err := LoadProdSource(context.Background(), prodAssets(newCountingFS(files), staticRender(core.RenderResult{})))
		require.ErrorIs(t, err, iofs.ErrNotExist)
	})

	t.Run("malformed manifest", func(t *testing.T) {
		files := prodFiles()
		files["dist/client/.vite/ssr-manifest.json"] = &fstest.MapFile{Data: []byte(`{not json`)}
		_, err := LoadProdSource(context.Background(), prodAssets(newCountingFS(files), staticRender(core.RenderResult{})))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid ssr manifest")
	})

	t.Run("no renderer", func(t *testing.T) {
		_, err := LoadProdSource(context.Background(), prodAssets(newCountingFS(prodFiles()), nil))
		require.Error(t, err)
	})

	t.Run("sidecar entry fails to load", func(t *testing.T) {
		assets := prodAssets(newCountingFS(prodFiles()), nil)
		assets.Sidecar = &fakeSidecar{loadErr: errors.New("cannot find module")}
		_, err := LoadProdSource(context.Background(), assets)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "load render entry")
	})
}

func TestLoadProdSourceUsesSidecarOnce(t *testing.T) {
	side := &fakeSidecar{render: staticRender(core.RenderResult{HTML: "from sidecar"})}
	assets := prodAssets(newCountingFS(prodFiles()), nil)
	assets.Sidecar = side

	src, err := LoadProdSource(context.Background(), assets)
	require.NoError(t, err)
	svc := NewPageService(src)

	for range 3 {
		out := svc.ServePage(context.Background(), ServePageInput{URL: "/"})
		require.NoError(t, out.Error)
		assert.Contains(t, out.HTML, "from sidecar")
	}
	assert.Equal(t, 1, side.loads)
	assert.Equal(t, 0, side.transformed, "production templates are not transformed")
}

func TestDevSourceReadsTemplateEveryRequest(t *testing.T) {
	files := fstest.MapFS{"index.html": {Data: []byte(template)}}
	fsys := newCountingFS(files)
	side := &fakeSidecar{render: func(_ context.Context, url string, manifest core.Manifest) (core.RenderResult, error) {
		if manifest != nil {
			return core.RenderResult{}, errors.New("manifest must be nil in development")
		}
		return core.RenderResult{HTML: url}, nil
	}}
	svc := NewPageService(&DevSource{FS: fsys, TemplatePath: "index.html", Sidecar: side})

	out := svc.ServePage(context.Background(), ServePageInput{URL: "/a"})
	require.NoError(t, out.Error)
	assert.Contains(t, out.HTML, `<script type="module" src="/@vite/client"></script>`)
	assert.Contains(t, out.HTML, "<body>/a</body>")

	// Live edit.
	files["index.html"] = &fstest.MapFile{Data: []byte(`<main><!--app-html--></main>`)}
	out = svc.ServePage(context.Background(), ServePageInput{URL: "/b"})
	require.NoError(t, out.Error)
	assert.Equal(t, "<main>/b</main>", out.HTML)

	assert.Equal(t, 2, fsys.count("index.html"))
	assert.Equal(t, 2, side.transformed)
}

func TestDevSourceFixesStacktrace(t *testing.T) {
	files := fstest.MapFS{"index.html": {Data: []byte(template)}}
	side := &fakeSidecar{render: func(context.Context, string, core.Manifest) (core.RenderResult, error) {
		return core.RenderResult{}, &core.RenderError{Message: "boom", Stack: "Error: boom\n    at App (entry-server.js:1:100)"}
	}}
	svc := NewPageService(&DevSource{FS: newCountingFS(files), TemplatePath: "index.html", Sidecar: side})

	out := svc.ServePage(context.Background(), ServePageInput{URL: "/"})
	require.Error(t, out.Error)
	assert.Equal(t, "Error: boom\n    at App (src/App.tsx:12:3)", out.Diagnostic)
	assert.Equal(t, 1, side.fixed)
}

func TestDevSourceMissingTemplate(t *testing.T) {
	side := &fakeSidecar{render: staticRender(core.RenderResult{})}
	svc := NewPageService(&DevSource{FS: newCountingFS(fstest.MapFS{}), TemplatePath: "index.html", Sidecar: side})

	out := svc.ServePage(context.Background(), ServePageInput{URL: "/"})
	require.Error(t, out.Error)
	assert.Contains(t, out.Diagnostic, "read template")
}

func TestRenderTimeout(t *testing.T) {
	render := func(ctx context.Context, _ string, _ core.Manifest) (core.RenderResult, error) {
		<-ctx.Done()
		return core.RenderResult{}, ctx.Err()
	}
	src, err := LoadProdSource(context.Background(), prodAssets(newCountingFS(prodFiles()), render))
	require.NoError(t, err)

	out := NewPageService(src, WithRenderTimeout(10*time.Millisecond)).ServePage(context.Background(), ServePageInput{URL: "/"})
	require.ErrorIs(t, out.Error, context.DeadlineExceeded)
}

type recordingMetrics struct {
	renders []error
	reads   int
}

func (m *recordingMetrics) ObserveRender(_ string, _ time.Duration, err error) {
	m.renders = append(m.renders, err)
}

func (m *recordingMetrics) TemplateRead(string) {
	m.reads++
}

func TestServePageRecordsMetrics(t *testing.T) {
	m := &recordingMetrics{}
	assets := prodAssets(newCountingFS(prodFiles()), staticRender(core.RenderResult{}))
	assets.Metrics = m
	src, err := LoadProdSource(context.Background(), assets)
	require.NoError(t, err)

	NewPageService(src, WithMetrics(m)).ServePage(context.Background(), ServePageInput{URL: "/"})

	assert.Equal(t, 1, m.reads)
	require.Len(t, m.renders, 1)
	assert.NoError(t, m.renders[0])
}
