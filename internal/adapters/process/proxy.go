package process

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
)

var errUnhandled = errors.New("sidecar did not handle request")

// AssetHandler offers each request to Vite's middleware stack first. Requests
// Vite leaves alone (it answers with UnhandledHeader) go to next.
func (s *Sidecar) AssetHandler(next http.Handler) http.Handler {
	target := &url.URL{Scheme: "http", Host: "sidecar"}
	proxy := &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(target)
			r.Out.Host = r.In.Host
			r.SetXForwarded()
		},
		Transport: s.client.Transport,
		ModifyResponse: func(resp *http.Response) error {
			if resp.Header.Get(UnhandledHeader) != "" {
				_ = resp.Body.Close()
				return errUnhandled
			}
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, req *http.Request, err error) {
			if !errors.Is(err, errUnhandled) {
				slog.WarnContext(req.Context(), "Sidecar asset request failed", "path", req.URL.Path, "err", err)
			}
			next.ServeHTTP(w, req)
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if isRPC(req.URL.Path) {
			next.ServeHTTP(w, req)
			return
		}
		proxy.ServeHTTP(w, req)
	})
}
