// Package bridge exposes store operations as named request/response channels.
// The window shell never touches the config file directly; every call goes
// through a channel here and comes back as a model.Result envelope.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	json "github.com/goccy/go-json"

	"go-knowledge/internal/model"
	"go-knowledge/internal/store"
)

// Storage channel names.
const (
	ChannelGet          = "storage:get"
	ChannelSet          = "storage:set"
	ChannelDelete       = "storage:delete"
	ChannelHas          = "storage:has"
	ChannelClear        = "storage:clear"
	ChannelReset        = "storage:reset"
	ChannelGetAll       = "storage:getAll"
	ChannelSetMultiple  = "storage:setMultiple"
	ChannelExport       = "storage:export"
	ChannelImport       = "storage:import"
	ChannelGetStorePath = "storage:getStorePath"
	ChannelGetStoreSize = "storage:getStoreSize"
)

// StorageChannels 全部存储通道，注册与注销以此为单位
var StorageChannels = []string{
	ChannelGet, ChannelSet, ChannelDelete, ChannelHas,
	ChannelClear, ChannelReset, ChannelGetAll, ChannelSetMultiple,
	ChannelExport, ChannelImport, ChannelGetStorePath, ChannelGetStoreSize,
}

var ErrNoHandler = errors.New("no handler registered")

// Handler serves one channel. args are the positional JSON arguments.
type Handler func(ctx context.Context, args []json.RawMessage) (any, error)

type Bridge struct {
	store *store.Store

	mu       sync.RWMutex
	handlers map[string]Handler
}

func New(s *store.Store) *Bridge {
	return &Bridge{
		store:    s,
		handlers: make(map[string]Handler),
	}
}

// Handle registers h for channel, replacing any previous handler.
func (b *Bridge) Handle(channel string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channel] = h
}

// Remove unregisters channel.
func (b *Bridge) Remove(channel string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, channel)
}

// Registered reports whether channel has a handler.
func (b *Bridge) Registered(channel string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.handlers[channel]
	return ok
}

// Channels lists registered channel names, sorted.
func (b *Bridge) Channels() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.handlers))
	for name := range b.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Invoke dispatches one call. It never panics and never returns a bare error:
// handler errors and panics alike are folded into a failure envelope.
func (b *Bridge) Invoke(ctx context.Context, channel string, args []json.RawMessage) (res model.Result[any]) {
	b.mu.RLock()
	h, ok := b.handlers[channel]
	b.mu.RUnlock()
	if !ok {
		return model.Fail[any](fmt.Errorf("%w for '%s'", ErrNoHandler, channel))
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("bridge handler panicked", "channel", channel, "panic", r)
			res = model.Fail[any](fmt.Errorf("%v", r))
		}
	}()

	data, err := h(ctx, args)
	if err != nil {
		slog.Debug("bridge call failed", "channel", channel, "err", err)
		return model.Fail[any](err)
	}
	return model.OK[any](data)
}

// RegisterStorageHandlers wires every storage channel to the store.
func (b *Bridge) RegisterStorageHandlers() {
	s := b.store
	handlers := map[string]Handler{
		ChannelGet: func(_ context.Context, args []json.RawMessage) (any, error) {
			p, err := pathArg(args, 0)
			if err != nil {
				return nil, err
			}
			v, _ := s.Get(p)
			return v, nil
		},
		ChannelSet: func(_ context.Context, args []json.RawMessage) (any, error) {
			p, err := pathArg(args, 0)
			if err != nil {
				return nil, err
			}
			v, err := arg[any](args, 1)
			if err != nil {
				return nil, err
			}
			return nil, s.Set(p, v)
		},
		ChannelDelete: func(_ context.Context, args []json.RawMessage) (any, error) {
			p, err := pathArg(args, 0)
			if err != nil {
				return nil, err
			}
			return nil, s.Delete(p)
		},
		ChannelHas: func(_ context.Context, args []json.RawMessage) (any, error) {
			p, err := pathArg(args, 0)
			if err != nil {
				return nil, err
			}
			return s.Has(p), nil
		},
		ChannelClear: func(context.Context, []json.RawMessage) (any, error) {
			return nil, s.Clear()
		},
		ChannelReset: func(context.Context, []json.RawMessage) (any, error) {
			return nil, s.Reset()
		},
		ChannelGetAll: func(context.Context, []json.RawMessage) (any, error) {
			return s.GetAll(), nil
		},
		ChannelSetMultiple: func(_ context.Context, args []json.RawMessage) (any, error) {
			partial, err := arg[map[string]any](args, 0)
			if err != nil {
				return nil, err
			}
			return nil, s.SetMultiple(partial)
		},
		ChannelExport: func(context.Context, []json.RawMessage) (any, error) {
			return s.Export()
		},
		ChannelImport: func(_ context.Context, args []json.RawMessage) (any, error) {
			text, err := arg[string](args, 0)
			if err != nil {
				return nil, err
			}
			return nil, s.Import(text)
		},
		ChannelGetStorePath: func(context.Context, []json.RawMessage) (any, error) {
			return s.Path(), nil
		},
		ChannelGetStoreSize: func(context.Context, []json.RawMessage) (any, error) {
			return s.Size()
		},
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for name, h := range handlers {
		b.handlers[name] = h
	}
}

// UnregisterStorageHandlers removes every storage channel at once.
func (b *Bridge) UnregisterStorageHandlers() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, name := range StorageChannels {
		delete(b.handlers, name)
	}
}

func arg[T any](args []json.RawMessage, i int) (T, error) {
	var v T
	if i >= len(args) {
		return v, fmt.Errorf("missing argument %d", i+1)
	}
	if err := json.Unmarshal(args[i], &v); err != nil {
		return v, fmt.Errorf("argument %d: %w", i+1, err)
	}
	return v, nil
}

func pathArg(args []json.RawMessage, i int) (store.Path, error) {
	key, err := arg[string](args, i)
	if err != nil {
		return nil, err
	}
	return store.ParsePath(key)
}
