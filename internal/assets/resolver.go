// Package assets resolves logical static-asset paths to remote URLs or local
// paths and answers existence checks with a remote/local fallback.
package assets

import (
	"path"
	"strings"
)

// Resolver maps a logical asset path (relative to the static root, e.g.
// "report/t1/diagnostic_4.jpeg") to the reference handed to clients: either a
// remote URL or a server-local path. The implementation is chosen once at
// configuration time.
type Resolver interface {
	// Resolve returns the URL or local path form of rel.
	Resolve(rel string) string
	// Remote reports whether Resolve produces remote URLs.
	Remote() bool
}

// LocalResolver serves assets from the local static directory.
type LocalResolver struct {
	// Prefix is the public path prefix, "/static" by default.
	Prefix string
}

func (r LocalResolver) Resolve(rel string) string {
	prefix := r.Prefix
	if prefix == "" {
		prefix = "/static"
	}
	return path.Join("/", prefix, rel)
}

func (r LocalResolver) Remote() bool { return false }

// BaseURLResolver prefixes assets with a fixed remote base (a CDN or an
// already-public bucket endpoint).
type BaseURLResolver struct {
	Base string
}

func (r BaseURLResolver) Resolve(rel string) string {
	return strings.TrimSuffix(r.Base, "/") + "/" + strings.TrimLeft(rel, "/")
}

func (r BaseURLResolver) Remote() bool { return true }

// IsURL reports whether the resolved reference is a remote URL.
func IsURL(fileOrURL string) bool {
	return strings.HasPrefix(fileOrURL, "http")
}
