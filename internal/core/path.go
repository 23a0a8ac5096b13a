package core

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeBase trims the trailing slash so "/app/" and "/app" behave the
// same. The root base becomes "/".
func NormalizeBase(base string) (string, error) {
	if base == "" {
		return "/", nil
	}
	if !strings.HasPrefix(base, "/") {
		return "", fmt.Errorf("base %q must start with /", base)
	}
	if strings.ContainsAny(base, "?#") {
		return "", fmt.Errorf("base %q cannot contain a query or fragment", base)
	}
	// Request targets are matched in escaped form.
	if escaped := (&url.URL{Path: base}).EscapedPath(); escaped != base {
		return "", fmt.Errorf("base %q contains characters that need escaping, use %q", base, escaped)
	}
	if base != "/" {
		base = strings.TrimRight(base, "/")
		if base == "" {
			base = "/"
		}
	}
	return base, nil
}

// StripBase removes base from the front of a request target. The result
// always starts with "/". Targets outside base are returned unchanged.
func StripBase(target, base string) string {
	if base == "" || base == "/" {
		return ensureLeadingSlash(target)
	}
	rest, ok := strings.CutPrefix(target, base)
	if !ok {
		return ensureLeadingSlash(target)
	}
	if rest != "" && rest[0] != '/' && rest[0] != '?' {
		return ensureLeadingSlash(target)
	}
	return ensureLeadingSlash(rest)
}

func ensureLeadingSlash(path string) string {
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}

// WithinBase reports whether the URL path lives under base.
func WithinBase(path, base string) bool {
	if base == "" || base == "/" {
		return true
	}
	return path == base || strings.HasPrefix(path, base+"/")
}
