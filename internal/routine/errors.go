package routine

import (
	"errors"
	"fmt"

	"github.com/markb/routinecat/internal/catalog"
)

// Mapping error kinds. Test with errors.Is against a *MappingError.
var (
	ErrUnknownEnumLiteral    = errors.New("unknown enum literal")
	ErrUnresolvableContainer = catalog.ErrUnresolvableContainer
	ErrMissingColumn         = errors.New("missing required column")
)

// MappingError reports why a catalog row could not become a descriptor.
type MappingError struct {
	Kind   error  // one of the Err* kinds above
	Column string // offending column, if any
	Value  string // offending raw value, if any
	Name   string // routine name, when it was already read
}

func (e *MappingError) Error() string {
	switch {
	case e.Column != "" && e.Value != "":
		return fmt.Sprintf("map routine %q: %v %q in column %s", e.Name, e.Kind, e.Value, e.Column)
	case e.Column != "":
		return fmt.Sprintf("map routine %q: %v %s", e.Name, e.Kind, e.Column)
	}
	return fmt.Sprintf("map routine %q: %v", e.Name, e.Kind)
}

func (e *MappingError) Unwrap() error { return e.Kind }

// FetchError wraps a failure of the parameter fetch collaborator.
type FetchError struct {
	Routine string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch parameters of %s: %v", e.Routine, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// RefreshError wraps a failure during an explicit refresh.
type RefreshError struct {
	Routine string
	Err     error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("refresh %s: %v", e.Routine, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }
