package catalog

import (
	"errors"
	"regexp"
	"strings"
)

// ErrUnresolvableContainer is returned when an owner is neither a schema nor
// a module that belongs to one.
var ErrUnresolvableContainer = errors.New("unresolvable container")

// Container owns catalog objects. The set of implementations is closed:
// *Schema and *Module.
type Container interface {
	ContainerName() string
	isContainer()
}

// Schema is a database schema.
type Schema struct {
	Name string
}

// Module is a DB2 module; its routines live in the module's schema.
type Module struct {
	Name   string
	Schema *Schema
}

func (s *Schema) ContainerName() string { return s.Name }
func (m *Module) ContainerName() string { return m.Name }

func (*Schema) isContainer() {}
func (*Module) isContainer() {}

// EffectiveSchema returns the schema objects in c ultimately belong to.
func EffectiveSchema(c Container) (*Schema, error) {
	switch v := c.(type) {
	case *Schema:
		if v == nil {
			return nil, ErrUnresolvableContainer
		}
		return v, nil
	case *Module:
		if v == nil || v.Schema == nil {
			return nil, ErrUnresolvableContainer
		}
		return v.Schema, nil
	}
	return nil, ErrUnresolvableContainer
}

// Path returns the container chain from the schema down to c.
func Path(c Container) []Container {
	switch v := c.(type) {
	case *Schema:
		return []Container{v}
	case *Module:
		if v.Schema == nil {
			return []Container{v}
		}
		return []Container{v.Schema, v}
	}
	return nil
}

// NameFunc builds the fully qualified name of an object called name inside c.
type NameFunc func(c Container, name string) string

var ordinaryIdent = regexp.MustCompile(`^[A-Z_][A-Z0-9_$#@]*$`)

// QuoteIdent quotes name unless it is an ordinary upper-case identifier.
func QuoteIdent(name string) string {
	if ordinaryIdent.MatchString(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// DisplayName returns the quoted, dot-joined container chain of c.
func DisplayName(c Container) string {
	path := Path(c)
	parts := make([]string, 0, len(path))
	for _, p := range path {
		parts = append(parts, QuoteIdent(p.ContainerName()))
	}
	return strings.Join(parts, ".")
}

// QualifiedName is the default NameFunc: the quoted container chain followed
// by the quoted object name, joined with dots.
func QualifiedName(c Container, name string) string {
	if prefix := DisplayName(c); prefix != "" {
		return prefix + "." + QuoteIdent(name)
	}
	return QuoteIdent(name)
}
