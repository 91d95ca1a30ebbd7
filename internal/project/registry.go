package project

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// index is one loaded version of the manifest
type index struct {
	views      map[string]View
	components map[string]Component
	byTag      map[string]Component
}

func newIndex(m Manifest) *index {
	idx := &index{
		views:      make(map[string]View, len(m.Views)),
		components: make(map[string]Component, len(m.Components)),
		byTag:      make(map[string]Component, len(m.Components)),
	}
	for _, v := range m.Views {
		idx.views[v.Name] = v
	}
	for _, c := range m.Components {
		idx.components[c.Name] = c
		idx.byTag[c.ResolvedTag()] = c
	}
	return idx
}

func (idx *index) empty() bool {
	return idx == nil || (len(idx.views) == 0 && len(idx.components) == 0)
}

// cachedIndex wraps an index with cache metadata
type cachedIndex struct {
	index     *index
	modTime   time.Time
	ExpiresAt time.Time
}

// IsExpired checks if the cached index should be checked against the file again
func (c *cachedIndex) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// Registry is a Context backed by a manifest file. The manifest is re-read at
// most once per TTL, and only when its modification time changed.
type Registry struct {
	mu       sync.RWMutex
	path     string
	cached   *cachedIndex
	cacheTTL time.Duration
	static   bool
	logger   *zap.Logger
}

// NewRegistry creates a registry for the manifest at path. Nothing is read
// until the first lookup.
func NewRegistry(path string, ttl time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		path:     path,
		cacheTTL: ttl,
		logger:   logger,
	}
}

// NewStaticRegistry creates a registry serving m that never reloads.
func NewStaticRegistry(m Manifest) *Registry {
	return &Registry{
		cached: &cachedIndex{index: newIndex(m)},
		static: true,
		logger: zap.NewNop(),
	}
}

// ParseManifest validates and decodes manifest JSON.
func ParseManifest(data []byte) (Manifest, error) {
	if err := ValidateManifest(data); err != nil {
		return Manifest{}, fmt.Errorf("invalid project manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to decode project manifest: %w", err)
	}
	return m, nil
}

// Load reads the manifest now, replacing whatever was cached.
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *Registry) load() error {
	if r.path == "" {
		return fmt.Errorf("no project manifest configured")
	}

	info, err := os.Stat(r.path)
	if err != nil {
		return fmt.Errorf("failed to stat project manifest: %w", err)
	}
	if r.cached != nil && r.cached.index != nil && info.ModTime().Equal(r.cached.modTime) {
		r.cached.ExpiresAt = time.Now().Add(r.cacheTTL)
		return nil
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("failed to read project manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return err
	}

	r.cached = &cachedIndex{
		index:     newIndex(m),
		modTime:   info.ModTime(),
		ExpiresAt: time.Now().Add(r.cacheTTL),
	}
	r.logger.Info("loaded project manifest",
		zap.String("path", r.path),
		zap.Int("views", len(m.Views)),
		zap.Int("components", len(m.Components)),
	)
	return nil
}

func (r *Registry) current() *index {
	r.mu.RLock()
	if r.cached != nil && (r.static || !r.cached.IsExpired()) {
		defer r.mu.RUnlock()
		return r.cached.index
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if r.cached != nil && !r.cached.IsExpired() {
		return r.cached.index
	}

	if err := r.load(); err != nil {
		r.logger.Debug("project manifest unavailable", zap.String("path", r.path), zap.Error(err))
		if r.cached == nil {
			r.cached = &cachedIndex{}
		}
		// Keep serving the last good manifest until the next TTL.
		r.cached.ExpiresAt = time.Now().Add(r.cacheTTL)
	}
	return r.cached.index
}

// Available reports whether a non-empty manifest is loaded.
func (r *Registry) Available() bool {
	return !r.current().empty()
}

func (r *Registry) FindView(name string) (View, bool) {
	idx := r.current()
	if idx == nil {
		return View{}, false
	}
	v, ok := idx.views[name]
	return v, ok
}

func (r *Registry) FindComponent(name string) (Component, bool) {
	idx := r.current()
	if idx == nil {
		return Component{}, false
	}
	c, ok := idx.components[name]
	return c, ok
}

func (r *Registry) FindComponentByTag(tag string) (Component, bool) {
	idx := r.current()
	if idx == nil {
		return Component{}, false
	}
	c, ok := idx.byTag[tag]
	return c, ok
}

// Views returns all views sorted by name.
func (r *Registry) Views() []View {
	idx := r.current()
	if idx == nil {
		return nil
	}
	out := make([]View, 0, len(idx.views))
	for _, v := range idx.views {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Components returns all components sorted by tag.
func (r *Registry) Components() []Component {
	idx := r.current()
	if idx == nil {
		return nil
	}
	out := make([]Component, 0, len(idx.components))
	for _, c := range idx.components {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResolvedTag() < out[j].ResolvedTag() })
	return out
}

// ViewsWithPrefix returns views whose name starts with prefix.
func (r *Registry) ViewsWithPrefix(prefix string) []View {
	var out []View
	for _, v := range r.Views() {
		if strings.HasPrefix(v.Name, prefix) {
			out = append(out, v)
		}
	}
	return out
}
