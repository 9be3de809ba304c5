package assets

import (
	"context"
	"net/http"
	"time"

	"github.com/sayhar/wiki-know/internal/safeio"
)

// DefaultCheckTimeout bounds a single remote existence check.
const DefaultCheckTimeout = 5 * time.Second

// StatFunc answers an existence check directly against the remote store,
// bypassing the HTTP probe (e.g. S3Resolver.StatExists).
type StatFunc func(ctx context.Context, rel string) (bool, error)

// Oracle determines whether an asset exists. For remote resolvers it probes
// the remote store first and falls back to the local filesystem when the
// remote copy is missing or the check fails; for local resolvers it checks
// the filesystem directly. Checks are idempotent and side-effect-free; a
// network failure counts as "absent, checked remotely" and is never retried.
type Oracle struct {
	resolver Resolver
	fs       *safeio.FS
	client   *http.Client
	stat     StatFunc
}

// NewOracle builds an oracle over the given resolver and local static root.
// stat may be nil, in which case remote checks are HTTP HEAD requests against
// the resolved URL. timeout <= 0 uses DefaultCheckTimeout.
func NewOracle(resolver Resolver, fsys *safeio.FS, stat StatFunc, timeout time.Duration) *Oracle {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return &Oracle{
		resolver: resolver,
		fs:       fsys,
		client:   &http.Client{Timeout: timeout},
		stat:     stat,
	}
}

// RemoteEnabled reports whether existence checks run against a remote store.
func (o *Oracle) RemoteEnabled() bool {
	return o != nil && o.resolver != nil && o.resolver.Remote()
}

// Resolve returns the client-facing reference for rel.
func (o *Oracle) Resolve(rel string) string {
	if o == nil || o.resolver == nil {
		return rel
	}
	return o.resolver.Resolve(rel)
}

// Exists reports whether the asset at rel exists and whether the check that
// answered ran remotely. When the remote store reports the asset absent (or
// unreachable) but the local file exists, the result is (true, false): the
// local fallback satisfied the check.
func (o *Oracle) Exists(ctx context.Context, rel string) (found bool, checkedRemotely bool) {
	if o == nil {
		return false, false
	}
	if !o.RemoteEnabled() {
		return o.localExists(rel), false
	}

	if o.remoteExists(ctx, rel) {
		return true, true
	}
	if o.localExists(rel) {
		return true, false
	}
	return false, true
}

func (o *Oracle) remoteExists(ctx context.Context, rel string) bool {
	if o.stat != nil {
		found, err := o.stat(ctx, rel)
		return err == nil && found
	}
	target := o.resolver.Resolve(rel)
	if !IsURL(target) {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (o *Oracle) localExists(rel string) bool {
	return o.fs != nil && o.fs.Exists(rel)
}
