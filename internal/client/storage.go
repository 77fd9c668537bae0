// Package client is the window-side view of the config store: a cache in
// front of the bridge plus typed setting hooks built on it.
package client

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	json "github.com/goccy/go-json"

	"go-knowledge/internal/bridge"
)

// CallError is a failure envelope returned by the bridge.
type CallError struct {
	Channel string
	Message string
}

func (e *CallError) Error() string {
	return e.Message
}

type getOptions struct {
	bypass bool
}

// GetOption tunes a single Get.
type GetOption func(*getOptions)

// Bypass forces a round trip even when the key is cached.
func Bypass() GetOption {
	return func(o *getOptions) { o.bypass = true }
}

// StorageService mirrors store values locally. The cache is scratch state:
// it is never authoritative and is not shared across processes.
type StorageService struct {
	transport Transport

	mu    sync.RWMutex
	cache map[string]json.RawMessage
}

func NewStorageService(t Transport) *StorageService {
	return &StorageService{
		transport: t,
		cache:     make(map[string]json.RawMessage),
	}
}

func (s *StorageService) call(ctx context.Context, channel string, args ...any) (json.RawMessage, error) {
	env, err := s.transport.Invoke(ctx, channel, args...)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, &CallError{Channel: channel, Message: env.Error}
	}
	return env.Data, nil
}

func absent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Get returns the encoded value at key. ok is false when the key is absent.
func (s *StorageService) Get(ctx context.Context, key string, opts ...GetOption) (json.RawMessage, bool, error) {
	var o getOptions
	for _, fn := range opts {
		fn(&o)
	}
	if !o.bypass {
		s.mu.RLock()
		raw, hit := s.cache[key]
		s.mu.RUnlock()
		if hit {
			return raw, true, nil
		}
	}

	raw, err := s.call(ctx, bridge.ChannelGet, key)
	if err != nil {
		return nil, false, err
	}
	if absent(raw) {
		return nil, false, nil
	}
	s.mu.Lock()
	s.cache[key] = raw
	s.mu.Unlock()
	return raw, true, nil
}

// GetAs decodes the value at key into T.
func GetAs[T any](ctx context.Context, s *StorageService, key string, opts ...GetOption) (T, bool, error) {
	var v T
	raw, ok, err := s.Get(ctx, key, opts...)
	if err != nil || !ok {
		return v, ok, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, true, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, true, nil
}

// Set writes value at key. The cache is only touched after the store
// confirms the write.
func (s *StorageService) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if _, err := s.call(ctx, bridge.ChannelSet, key, json.RawMessage(raw)); err != nil {
		return err
	}
	s.mu.Lock()
	s.invalidateLocked(key)
	s.cache[key] = raw
	s.mu.Unlock()
	return nil
}

func (s *StorageService) Delete(ctx context.Context, key string) error {
	if _, err := s.call(ctx, bridge.ChannelDelete, key); err != nil {
		return err
	}
	s.mu.Lock()
	s.invalidateLocked(key)
	s.mu.Unlock()
	return nil
}

func (s *StorageService) Has(ctx context.Context, key string) (bool, error) {
	raw, err := s.call(ctx, bridge.ChannelHas, key)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := json.Unmarshal(raw, &ok); err != nil {
		return false, fmt.Errorf("decode has: %w", err)
	}
	return ok, nil
}

func (s *StorageService) Clear(ctx context.Context) error {
	return s.callAndFlush(ctx, bridge.ChannelClear)
}

func (s *StorageService) Reset(ctx context.Context) error {
	return s.callAndFlush(ctx, bridge.ChannelReset)
}

func (s *StorageService) Import(ctx context.Context, payload string) error {
	return s.callAndFlush(ctx, bridge.ChannelImport, payload)
}

func (s *StorageService) GetAll(ctx context.Context) (map[string]any, error) {
	raw, err := s.call(ctx, bridge.ChannelGetAll)
	if err != nil {
		return nil, err
	}
	var all map[string]any
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("decode getAll: %w", err)
	}
	return all, nil
}

// SetMultiple writes each top-level key. On failure, keys the store already
// accepted are unknown here, so the whole cache is dropped.
func (s *StorageService) SetMultiple(ctx context.Context, partial map[string]any) error {
	encoded := make(map[string]json.RawMessage, len(partial))
	for k, v := range partial {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", k, err)
		}
		encoded[k] = raw
	}
	if _, err := s.call(ctx, bridge.ChannelSetMultiple, encoded); err != nil {
		s.Flush()
		return err
	}
	s.mu.Lock()
	for k, raw := range encoded {
		s.invalidateLocked(k)
		s.cache[k] = raw
	}
	s.mu.Unlock()
	return nil
}

func (s *StorageService) Export(ctx context.Context) (string, error) {
	raw, err := s.call(ctx, bridge.ChannelExport)
	if err != nil {
		return "", err
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", fmt.Errorf("decode export: %w", err)
	}
	return text, nil
}

func (s *StorageService) StorePath(ctx context.Context) (string, error) {
	raw, err := s.call(ctx, bridge.ChannelGetStorePath)
	if err != nil {
		return "", err
	}
	var p string
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", fmt.Errorf("decode store path: %w", err)
	}
	return p, nil
}

func (s *StorageService) StoreSize(ctx context.Context) (int64, error) {
	raw, err := s.call(ctx, bridge.ChannelGetStoreSize)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("decode store size: %w", err)
	}
	return n, nil
}

// Flush drops every cached entry.
func (s *StorageService) Flush() {
	s.mu.Lock()
	s.cache = make(map[string]json.RawMessage)
	s.mu.Unlock()
}

func (s *StorageService) callAndFlush(ctx context.Context, channel string, args ...any) error {
	if _, err := s.call(ctx, channel, args...); err != nil {
		return err
	}
	s.Flush()
	return nil
}

// invalidateLocked drops key together with every cached ancestor and
// descendant, since their encoded values embed the changed one.
func (s *StorageService) invalidateLocked(key string) {
	for k := range s.cache {
		if k == key || strings.HasPrefix(k, key+".") || strings.HasPrefix(key, k+".") {
			delete(s.cache, k)
		}
	}
}
