// Package project holds the views and components of the Laravel project a
// template belongs to, as reported by the project manifest.
package project

import "strings"

// View is a renderable template addressed by its dotted name
type View struct {
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
}

// Prop is a property a component accepts
type Prop struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Default  string `json:"default,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// Component is a Blade component. Tag is how templates refer to it, e.g.
// x-alert or flux:button.
type Component struct {
	Name  string `json:"name"`
	Tag   string `json:"tag,omitempty"`
	Class string `json:"class,omitempty"`
	Path  string `json:"path,omitempty"`
	Props []Prop `json:"props,omitempty"`
}

// ResolvedTag returns the component's tag, deriving x-<name> when unset.
func (c Component) ResolvedTag() string {
	if c.Tag != "" {
		return c.Tag
	}
	return "x-" + c.Name
}

// Prop returns the named prop. Names match with or without a leading ":".
func (c Component) Prop(name string) (Prop, bool) {
	name = strings.TrimPrefix(name, ":")
	for _, p := range c.Props {
		if p.Name == name {
			return p, true
		}
	}
	return Prop{}, false
}

// Manifest is the document written by the project inspection script
type Manifest struct {
	Views      []View      `json:"views"`
	Components []Component `json:"components"`
}

// Context is the lookup oracle diagnostics and completion consult. When it is
// not Available, nothing can be asserted about missing names.
type Context interface {
	Available() bool
	FindView(name string) (View, bool)
	FindComponent(name string) (Component, bool)
	FindComponentByTag(tag string) (Component, bool)
	Views() []View
	Components() []Component
}

// Unavailable is a Context with no loaded project.
type Unavailable struct{}

func (Unavailable) Available() bool                             { return false }
func (Unavailable) FindView(string) (View, bool)                { return View{}, false }
func (Unavailable) FindComponent(string) (Component, bool)      { return Component{}, false }
func (Unavailable) FindComponentByTag(string) (Component, bool) { return Component{}, false }
func (Unavailable) Views() []View                               { return nil }
func (Unavailable) Components() []Component                     { return nil }
