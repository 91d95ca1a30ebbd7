package directives

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed directives.yaml
var catalogue []byte

// Directive describes one Blade directive
type Directive struct {
	Name             string   `yaml:"name"`
	Description      string   `yaml:"description"`
	HasEndTag        bool     `yaml:"has_end_tag"`
	EndTag           string   `yaml:"end_tag"`
	AlternateEndTags []string `yaml:"alternate_end_tags"`
	// Parent names the block this directive is a clause of, e.g. @empty inside @forelse.
	Parent  string `yaml:"parent"`
	Snippet string `yaml:"snippet"`
}

// Registry is an immutable lookup table built from directive metadata.
type Registry struct {
	all       []Directive
	byName    map[string]*Directive
	closerFor map[string]string
	openerFor map[string]string
	// closes maps each closer to every opener it terminates.
	closes   map[string]map[string]bool
	clauseOf map[string]string
}

// NewRegistry builds the lookup tables for the given directives. Closers map back
// to their opener, including alternate closers. When several openers share a
// closer, as @if and @hasSection share @endif, the first in list order is the
// one OpenerFor reports.
func NewRegistry(list []Directive) *Registry {
	r := &Registry{
		all:       make([]Directive, len(list)),
		byName:    make(map[string]*Directive, len(list)),
		closerFor: make(map[string]string),
		openerFor: make(map[string]string),
		closes:    make(map[string]map[string]bool),
		clauseOf:  make(map[string]string),
	}
	copy(r.all, list)

	for i := range r.all {
		d := &r.all[i]
		r.byName[d.Name] = d

		if d.Parent != "" {
			r.clauseOf[d.Name] = d.Parent
		}
		if !d.HasEndTag || d.EndTag == "" {
			continue
		}
		r.closerFor[d.Name] = d.EndTag
		for _, closer := range append([]string{d.EndTag}, d.AlternateEndTags...) {
			if _, ok := r.openerFor[closer]; !ok {
				r.openerFor[closer] = d.Name
			}
			if r.closes[closer] == nil {
				r.closes[closer] = make(map[string]bool)
			}
			r.closes[closer][d.Name] = true
		}
	}

	return r
}

// Load decodes a YAML directive list.
func Load(data []byte) (*Registry, error) {
	var list []Directive
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse directive catalogue: %w", err)
	}
	for i, d := range list {
		if d.Name == "" {
			return nil, fmt.Errorf("directive %d has no name", i)
		}
		if d.HasEndTag && d.EndTag == "" {
			return nil, fmt.Errorf("directive %q has an end tag but no end_tag name", d.Name)
		}
	}
	return NewRegistry(list), nil
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := Load(catalogue)
	if err != nil {
		panic(err)
	}
	return r
})

// Default returns the registry built from the embedded catalogue.
func Default() *Registry {
	return defaultRegistry()
}

// All returns every directive in catalogue order.
func (r *Registry) All() []Directive {
	out := make([]Directive, len(r.all))
	copy(out, r.all)
	return out
}

// Find looks up a directive by name, with or without the leading "@".
func (r *Registry) Find(name string) (Directive, bool) {
	d, ok := r.byName[strings.TrimPrefix(name, "@")]
	if !ok {
		return Directive{}, false
	}
	return *d, true
}

// IsKnown reports whether name is a directive or a closing directive.
func (r *Registry) IsKnown(name string) bool {
	name = strings.TrimPrefix(name, "@")
	if _, ok := r.byName[name]; ok {
		return true
	}
	_, ok := r.openerFor[name]
	return ok
}

// CloserFor returns the primary closing directive for an opener.
func (r *Registry) CloserFor(opener string) (string, bool) {
	closer, ok := r.closerFor[opener]
	return closer, ok
}

// OpenerFor returns the opener a closing directive terminates.
func (r *Registry) OpenerFor(closer string) (string, bool) {
	opener, ok := r.openerFor[closer]
	return opener, ok
}

// Closes reports whether closer terminates a block opened by opener.
func (r *Registry) Closes(opener, closer string) bool {
	return r.closes[closer][opener]
}

// ClauseParent returns the block a clause directive belongs to.
func (r *Registry) ClauseParent(name string) (string, bool) {
	parent, ok := r.clauseOf[name]
	return parent, ok
}

// WithPrefix returns directives whose name starts with prefix, sorted by name.
func (r *Registry) WithPrefix(prefix string) []Directive {
	var out []Directive
	for _, d := range r.all {
		if strings.HasPrefix(d.Name, prefix) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
