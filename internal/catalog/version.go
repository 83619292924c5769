package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is the release of the database server a catalog was read from.
type Version struct {
	Major int
	Minor int
}

// Versions at which DB2 added routine catalog columns.
var (
	V9_5 = Version{Major: 9, Minor: 5}
	V9_7 = Version{Major: 9, Minor: 7}
)

// ParseVersion parses "11", "11.5" or "11.5.8.0". Components past the minor
// version are ignored.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	if s == "" {
		return Version{}, fmt.Errorf("empty version")
	}
	parts := strings.Split(s, ".")
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return Version{}, fmt.Errorf("invalid major version %q: %w", parts[0], err)
	}
	v := Version{Major: major}
	if len(parts) > 1 {
		minor, err := strconv.Atoi(parts[1])
		if err != nil {
			return Version{}, fmt.Errorf("invalid minor version %q: %w", parts[1], err)
		}
		v.Minor = minor
	}
	return v, nil
}

// AtLeast reports whether v is the same as or newer than other.
func (v Version) AtLeast(other Version) bool {
	if v.Major != other.Major {
		return v.Major > other.Major
	}
	return v.Minor >= other.Minor
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Capabilities lists the version-gated catalog columns a mapper may read.
// The zero value reads none of them.
type Capabilities struct {
	OwnerType    bool // OWNERTYPE
	Dialect      bool // DIALECT
	FunctionType bool // FUNCTIONTYPE
}

// CapabilitiesFor derives the readable columns from a server version.
func CapabilitiesFor(v Version) Capabilities {
	return Capabilities{
		OwnerType:    v.AtLeast(V9_5),
		Dialect:      v.AtLeast(V9_7),
		FunctionType: v.AtLeast(V9_7),
	}
}

// AllCapabilities enables every gated column.
func AllCapabilities() Capabilities {
	return Capabilities{OwnerType: true, Dialect: true, FunctionType: true}
}
