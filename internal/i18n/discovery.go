package i18n

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/rungomx/server/internal/metrics"
)

// Namespace kinds, matching the directories under messages/.
const (
	KindRoot       = "root"
	KindPages      = "pages"
	KindComponents = "components"
)

const messagesDir = "messages"

// Namespaces lists the namespace names found under each kind directory.
type Namespaces struct {
	Root       []string
	Pages      []string
	Components []string
}

// Has reports whether name exists under kind.
func (n Namespaces) Has(kind, name string) bool {
	for _, candidate := range n.list(kind) {
		if candidate == name {
			return true
		}
	}
	return false
}

func (n Namespaces) list(kind string) []string {
	switch kind {
	case KindRoot:
		return n.Root
	case KindPages:
		return n.Pages
	case KindComponents:
		return n.Components
	default:
		return nil
	}
}

// Discovery scans the messages tree once and caches the result until
// Invalidate is called. Safe for concurrent use.
type Discovery struct {
	fsys  fs.FS
	group singleflight.Group

	mu         sync.RWMutex
	cached     *Namespaces
	generation uint64
}

func NewDiscovery(fsys fs.FS) *Discovery {
	return &Discovery{fsys: fsys}
}

// Namespaces returns the cached scan, scanning on first use. Concurrent
// callers during a scan share its result.
func (d *Discovery) Namespaces() (Namespaces, error) {
	d.mu.RLock()
	cached, generation := d.cached, d.generation
	d.mu.RUnlock()
	if cached != nil {
		return *cached, nil
	}

	v, err, _ := d.group.Do("scan", func() (any, error) {
		d.mu.RLock()
		cached := d.cached
		d.mu.RUnlock()
		if cached != nil {
			return *cached, nil
		}

		found, err := scanNamespaces(d.fsys)
		if err != nil {
			return nil, err
		}
		d.mu.Lock()
		// A scan that raced with Invalidate must not repopulate the cache.
		if d.generation == generation {
			d.cached = &found
		}
		d.mu.Unlock()
		return found, nil
	})
	if err != nil {
		return Namespaces{}, err
	}
	return v.(Namespaces), nil
}

// Invalidate drops the cached scan so the next call rescans.
func (d *Discovery) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.generation++
	d.mu.Unlock()
}

func scanNamespaces(fsys fs.FS) (Namespaces, error) {
	metrics.MessageDiscoveryScans.Inc()

	var out Namespaces
	for _, kind := range []string{KindRoot, KindPages, KindComponents} {
		names, err := listDirs(fsys, path.Join(messagesDir, kind))
		if err != nil {
			return Namespaces{}, err
		}
		switch kind {
		case KindRoot:
			out.Root = names
		case KindPages:
			out.Pages = names
		case KindComponents:
			out.Components = names
		}
	}
	if len(out.Root) == 0 {
		return Namespaces{}, fmt.Errorf("no root message namespaces under %s", messagesDir)
	}
	return out, nil
}

func listDirs(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
