package client

import (
	"context"
	"fmt"
	"sync"

	json "github.com/goccy/go-json"
)

// Setting is a typed handle on one store key: the value is loaded once,
// served locally and replaced wholesale on Set.
type Setting[T any] struct {
	svc *StorageService
	key string
	def T

	mu      sync.RWMutex
	value   T
	loading bool
}

// NewSetting panics when svc is nil; that is a wiring bug, not a runtime
// condition.
func NewSetting[T any](svc *StorageService, key string, def T) *Setting[T] {
	if svc == nil {
		panic("client: NewSetting requires a StorageService")
	}
	return &Setting[T]{svc: svc, key: key, def: def, value: def, loading: true}
}

// Load fetches the current value, falling back to the default when the key
// is absent. On error the default stays in place.
func (h *Setting[T]) Load(ctx context.Context) error {
	v, ok, err := GetAs[T](ctx, h.svc, h.key)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.loading = false
	if err != nil {
		return fmt.Errorf("load %s: %w", h.key, err)
	}
	if ok {
		h.value = v
	} else {
		h.value = h.def
	}
	return nil
}

func (h *Setting[T]) Key() string {
	return h.key
}

func (h *Setting[T]) Value() T {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.value
}

// Loading is true until the first Load finishes.
func (h *Setting[T]) Loading() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.loading
}

// Set writes v and only then replaces the local value. A failed write leaves
// Value unchanged.
func (h *Setting[T]) Set(ctx context.Context, v T) error {
	if err := h.svc.Set(ctx, h.key, v); err != nil {
		return err
	}
	h.commit(v)
	return nil
}

func (h *Setting[T]) commit(v T) {
	h.mu.Lock()
	h.value = v
	h.mu.Unlock()
}

// PartialSetting adds field-level updates on top of Setting.
//
// Update merges over the value captured at call time and writes the whole
// merged object. Two updates in flight at once each merge over their own
// snapshot, so the later write can drop a field set by the earlier one.
type PartialSetting[T any] struct {
	*Setting[T]
}

func NewPartialSetting[T any](svc *StorageService, key string, def T) *PartialSetting[T] {
	return &PartialSetting[T]{Setting: NewSetting(svc, key, def)}
}

// Update applies partial's top-level fields over the current value.
func (h *PartialSetting[T]) Update(ctx context.Context, partial map[string]any) error {
	merged, err := merge(h.Value(), partial)
	if err != nil {
		return fmt.Errorf("merge %s: %w", h.key, err)
	}
	var next T
	if err := json.Unmarshal(merged, &next); err != nil {
		return fmt.Errorf("merge %s: %w", h.key, err)
	}
	if err := h.svc.Set(ctx, h.key, json.RawMessage(merged)); err != nil {
		return err
	}
	h.commit(next)
	return nil
}

func merge(current any, partial map[string]any) ([]byte, error) {
	raw, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}
	base := map[string]any{}
	if err := json.Unmarshal(raw, &base); err != nil {
		return nil, fmt.Errorf("value is not an object: %w", err)
	}
	if base == nil {
		base = map[string]any{}
	}
	for k, v := range partial {
		base[k] = v
	}
	return json.Marshal(base)
}
