package store

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyPath is returned for an empty key or a key with an empty segment.
var ErrEmptyPath = errors.New("store: empty key path")

// Path addresses a value inside the config document as an ordered list of
// field names, e.g. Path{"data", "dataDirectory"}.
type Path []string

// ParsePath splits a dotted key such as "data.dataDirectory".
func ParsePath(key string) (Path, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrEmptyPath
	}
	parts := strings.Split(key, ".")
	for _, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("%w: %q", ErrEmptyPath, key)
		}
	}
	return Path(parts), nil
}

// MustPath is ParsePath for compile-time constant keys.
func MustPath(key string) Path {
	p, err := ParsePath(key)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string {
	return strings.Join(p, ".")
}

// Child returns a new path with name appended.
func (p Path) Child(name string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, name)
}

// HasPrefix reports whether q is p itself or one of its ancestors.
func (p Path) HasPrefix(q Path) bool {
	if len(q) > len(p) {
		return false
	}
	for i := range q {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

func (p Path) valid() bool {
	if len(p) == 0 {
		return false
	}
	for _, seg := range p {
		if seg == "" {
			return false
		}
	}
	return true
}
