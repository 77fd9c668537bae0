package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"sync"

	json "github.com/goccy/go-json"

	"go-knowledge/internal/model"
)

const (
	DefaultName   = "app-config"
	fileExtension = ".json"
)

// 数据目录下的固定子目录
const (
	DatabasesDir   = "databases"
	AttachmentsDir = "attachments"
	LogsDir        = "logs"
)

var (
	ErrClosed       = errors.New("store: closed")
	ErrInvalidInput = errors.New("store: import payload must be a JSON object")
)

// Listener receives the value at a watched path before and after a change.
// Absent values are reported as nil.
type Listener func(newValue, oldValue any)

// Options configures Open.
type Options struct {
	// Dir holds the config file. Required.
	Dir string
	// Name is the file name without extension. Defaults to "app-config".
	Name string
	// UserDataDir roots the derived data.* paths. Defaults to Dir.
	UserDataDir string
}

// Store owns the on-disk JSON config document. All access to the file goes
// through it; every mutation is written through before the call returns.
type Store struct {
	mu       sync.RWMutex
	file     string
	userData string
	defaults map[string]any
	data     map[string]any
	closed   bool

	lmu       sync.Mutex
	listeners map[string]map[int]watcher
	nextID    int
}

type watcher struct {
	path Path
	fn   Listener
}

// Open loads (or creates) <Dir>/<Name>.json. A missing file materialises the
// compiled defaults; a corrupt file is replaced by them. Missing top-level
// sections are filled in and the data.* paths are derived.
func Open(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("store: directory required")
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.UserDataDir == "" {
		opts.UserDataDir = opts.Dir
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}

	defaults, err := defaultDocument()
	if err != nil {
		return nil, fmt.Errorf("store: encode defaults: %w", err)
	}

	s := &Store{
		file:      filepath.Join(opts.Dir, opts.Name+fileExtension),
		userData:  opts.UserDataDir,
		defaults:  defaults,
		listeners: make(map[string]map[int]watcher),
	}

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	for key, val := range defaults {
		if _, ok := doc[key]; !ok {
			doc[key] = deepCopy(val)
		}
	}
	s.deriveDataPaths(doc)
	if err := s.persist(doc); err != nil {
		return nil, err
	}
	s.data = doc
	return s, nil
}

func defaultDocument() (map[string]any, error) {
	v, err := normalize(model.DefaultAppConfig())
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

func (s *Store) load() (map[string]any, error) {
	raw, err := os.ReadFile(s.file)
	if errors.Is(err, os.ErrNotExist) {
		return copyDoc(s.defaults), nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", s.file, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		slog.Warn("config file invalid, falling back to defaults", "path", s.file, "err", err)
		return copyDoc(s.defaults), nil
	}
	return doc, nil
}

// deriveDataPaths fills each empty data.* path independently from the
// user-data directory.
func (s *Store) deriveDataPaths(doc map[string]any) {
	section, ok := doc[model.SectionData].(map[string]any)
	if !ok {
		section = map[string]any{}
		doc[model.SectionData] = section
	}
	fill := func(field, value string) {
		if falsy(section[field]) {
			section[field] = value
		}
	}
	fill("dataDirectory", s.userData)
	fill("databasePath", filepath.Join(s.userData, DatabasesDir))
	fill("attachmentsPath", filepath.Join(s.userData, AttachmentsDir))
	fill("logsPath", filepath.Join(s.userData, LogsDir))
}

func (s *Store) persist(doc map[string]any) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}
	dir := filepath.Dir(s.file)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.file)+".*.tmp")
	if err != nil {
		return fmt.Errorf("store: write: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: write: %w", err)
	}
	if err := os.Rename(tmpName, s.file); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: write: %w", err)
	}
	return nil
}

// Close detaches all listeners; later mutations fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.lmu.Lock()
	s.listeners = make(map[string]map[int]watcher)
	s.lmu.Unlock()
	return nil
}

// Get returns a copy of the value at p. The bool is false when absent.
func (s *Store) Get(p Path) (any, bool) {
	if !p.valid() {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := lookup(s.data, p)
	if !ok {
		return nil, false
	}
	return deepCopy(v), true
}

// Has reports whether p exists.
func (s *Store) Has(p Path) bool {
	if !p.valid() {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := lookup(s.data, p)
	return ok
}

// Set stores a structural clone of value at p and writes the file.
// Listeners on p are always notified.
func (s *Store) Set(p Path, value any) error {
	if !p.valid() {
		return ErrEmptyPath
	}
	v, err := normalize(value)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", p, err)
	}
	return s.mutate(p, func(doc map[string]any) (map[string]any, error) {
		assign(doc, p, v)
		return doc, nil
	})
}

// Delete removes p. Deleting an absent key is not an error.
func (s *Store) Delete(p Path) error {
	if !p.valid() {
		return ErrEmptyPath
	}
	if !s.Has(p) {
		return nil
	}
	return s.mutate(p, func(doc map[string]any) (map[string]any, error) {
		remove(doc, p)
		return doc, nil
	})
}

// Clear empties the document; no section remains.
func (s *Store) Clear() error {
	return s.mutate(nil, func(map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	})
}

// Reset replaces the document with the compiled defaults and re-derives the
// data.* paths.
func (s *Store) Reset() error {
	return s.mutate(nil, func(map[string]any) (map[string]any, error) {
		doc := copyDoc(s.defaults)
		s.deriveDataPaths(doc)
		return doc, nil
	})
}

// GetAll returns the whole document, or the compiled defaults when it is empty.
func (s *Store) GetAll() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.data) == 0 {
		return copyDoc(s.defaults)
	}
	return copyDoc(s.data)
}

// SetMultiple sets each top-level key of partial in turn. Keys written before
// a failure stay written.
func (s *Store) SetMultiple(partial map[string]any) error {
	keys := make([]string, 0, len(partial))
	for k := range partial {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := s.Set(Path{k}, partial[k]); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}

// Export returns GetAll as indented JSON.
func (s *Store) Export() (string, error) {
	raw, err := json.MarshalIndent(s.GetAll(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("store: export: %w", err)
	}
	return string(raw), nil
}

// Import replaces the whole document with the parsed payload. Nothing is
// merged or validated against the schema; a payload that fails to parse
// leaves the store untouched.
func (s *Store) Import(payload string) error {
	var doc map[string]any
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return fmt.Errorf("store: import: %w", err)
	}
	if doc == nil {
		return ErrInvalidInput
	}
	return s.mutate(nil, func(map[string]any) (map[string]any, error) {
		return doc, nil
	})
}

// Path returns the config file location.
func (s *Store) Path() string {
	return s.file
}

// Size returns the config file size in bytes.
func (s *Store) Size() (int64, error) {
	info, err := os.Stat(s.file)
	if err != nil {
		return 0, fmt.Errorf("store: stat: %w", err)
	}
	return info.Size(), nil
}

// Watch registers fn for changes at p. The returned func unregisters it.
func (s *Store) Watch(p Path, fn Listener) func() {
	key := p.String()
	s.lmu.Lock()
	defer s.lmu.Unlock()
	id := s.nextID
	s.nextID++
	if s.listeners[key] == nil {
		s.listeners[key] = make(map[int]watcher)
	}
	s.listeners[key][id] = watcher{path: append(Path(nil), p...), fn: fn}
	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		delete(s.listeners[key], id)
		if len(s.listeners[key]) == 0 {
			delete(s.listeners, key)
		}
	}
}

// mutate applies fn to a copy of the document, persists the result and only
// then swaps it in. forced names a path whose listeners fire even when the
// value compares equal.
func (s *Store) mutate(forced Path, fn func(doc map[string]any) (map[string]any, error)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	prev := s.data
	next, err := fn(copyDoc(prev))
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.persist(next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.data = next
	s.mu.Unlock()

	s.notify(prev, next, forced)
	return nil
}

func (s *Store) notify(prev, next map[string]any, forced Path) {
	s.lmu.Lock()
	var calls []func()
	for _, group := range s.listeners {
		for _, w := range group {
			oldV, _ := lookup(prev, w.path)
			newV, _ := lookup(next, w.path)
			isForced := forced != nil && reflect.DeepEqual(w.path, forced)
			if !isForced && reflect.DeepEqual(oldV, newV) {
				continue
			}
			fn := w.fn
			o, n := deepCopy(oldV), deepCopy(newV)
			calls = append(calls, func() { fn(n, o) })
		}
	}
	s.lmu.Unlock()

	for _, call := range calls {
		call()
	}
}
