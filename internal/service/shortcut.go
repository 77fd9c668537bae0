package service

import (
	"fmt"
	"strings"
	"sync"

	"go-knowledge/internal/model"
	"go-knowledge/internal/store"
)

var pathShortcutList = store.Path{model.SectionShortcuts, "shortcuts"}

type ShortcutService struct {
	store *store.Store
	mu    sync.Mutex
}

func NewShortcutService(st *store.Store) *ShortcutService {
	return &ShortcutService{store: st}
}

// ListShortcuts 没有保存过时返回默认列表
func (s *ShortcutService) ListShortcuts() []model.ShortcutItem {
	items, ok, err := store.Decode[[]model.ShortcutItem](s.store, pathShortcutList)
	if !ok || err != nil {
		return model.DefaultShortcuts()
	}
	return items
}

func (s *ShortcutService) UpdateShortcutKey(id, key string) (model.ShortcutItem, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return model.ShortcutItem{}, fmt.Errorf("%w: key required", ErrInvalidInput)
	}
	return s.update(id, func(item *model.ShortcutItem) {
		item.CurrentKey = key
	})
}

func (s *ShortcutService) SetShortcutEnabled(id string, enabled bool) (model.ShortcutItem, error) {
	return s.update(id, func(item *model.ShortcutItem) {
		item.Enabled = enabled
	})
}

// ResetShortcut currentKey 恢复为 defaultKey
func (s *ShortcutService) ResetShortcut(id string) (model.ShortcutItem, error) {
	return s.update(id, func(item *model.ShortcutItem) {
		item.CurrentKey = item.DefaultKey
	})
}

// ResetAllShortcuts 恢复整个默认列表，而不仅是按键
func (s *ShortcutService) ResetAllShortcuts() ([]model.ShortcutItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := model.DefaultShortcuts()
	if err := s.store.Set(pathShortcutList, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *ShortcutService) update(id string, fn func(item *model.ShortcutItem)) (model.ShortcutItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.ListShortcuts()
	for i := range items {
		if items[i].ID != id {
			continue
		}
		fn(&items[i])
		if err := s.store.Set(pathShortcutList, items); err != nil {
			return model.ShortcutItem{}, err
		}
		return items[i], nil
	}
	return model.ShortcutItem{}, fmt.Errorf("shortcut %s: %w", id, ErrNotFound)
}
