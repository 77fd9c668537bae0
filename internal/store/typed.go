package store

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Decode reads the value at p into a T. ok is false when p is absent.
func Decode[T any](s *Store, p Path) (v T, ok bool, err error) {
	raw, found := s.Get(p)
	if !found {
		return v, false, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return v, true, fmt.Errorf("store: decode %s: %w", p, err)
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, true, fmt.Errorf("store: decode %s: %w", p, err)
	}
	return v, true, nil
}

// DecodeOr is Decode with a fallback for absent or undecodable values.
func DecodeOr[T any](s *Store, p Path, fallback T) T {
	v, ok, err := Decode[T](s, p)
	if !ok || err != nil {
		return fallback
	}
	return v
}
