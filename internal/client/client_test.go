package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"go-knowledge/internal/bridge"
	"go-knowledge/internal/model"
	"go-knowledge/internal/store"
)

type countingTransport struct {
	next  Transport
	calls map[string]int
	fail  map[string]string
}

func (c *countingTransport) Invoke(ctx context.Context, channel string, args ...any) (Envelope, error) {
	c.calls[channel]++
	if msg, ok := c.fail[channel]; ok {
		return Envelope{Success: false, Error: msg}, nil
	}
	return c.next.Invoke(ctx, channel, args...)
}

func newTestService(t *testing.T) (*StorageService, *countingTransport, *store.Store) {
	t.Helper()
	s, err := store.Open(store.Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	b := bridge.New(s)
	b.RegisterStorageHandlers()
	ct := &countingTransport{
		next:  LocalTransport{Bridge: b},
		calls: map[string]int{},
		fail:  map[string]string{},
	}
	return NewStorageService(ct), ct, s
}

func TestCacheServesAfterSet(t *testing.T) {
	svc, ct, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Set(ctx, "general.language", "en-US"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := GetAs[string](ctx, svc, "general.language")
	if err != nil || !ok || got != "en-US" {
		t.Fatalf("get = %q, %v, %v", got, ok, err)
	}
	if n := ct.calls[bridge.ChannelGet]; n != 0 {
		t.Fatalf("cached read issued %d round trips", n)
	}

	if _, _, err := svc.Get(ctx, "general.language", Bypass()); err != nil {
		t.Fatalf("bypass get: %v", err)
	}
	if n := ct.calls[bridge.ChannelGet]; n != 1 {
		t.Fatalf("bypass issued %d round trips, want 1", n)
	}
}

func TestSetInvalidatesAncestorsAndDescendants(t *testing.T) {
	svc, ct, _ := newTestService(t)
	ctx := context.Background()

	general, _, err := GetAs[model.GeneralSettings](ctx, svc, "general")
	if err != nil || general.Language != "zh-CN" {
		t.Fatalf("initial general = %+v, %v", general, err)
	}
	if _, _, err := svc.Get(ctx, "display.theme"); err != nil {
		t.Fatalf("get: %v", err)
	}

	if err := svc.Set(ctx, "general.language", "en-US"); err != nil {
		t.Fatalf("set: %v", err)
	}
	general, _, _ = GetAs[model.GeneralSettings](ctx, svc, "general")
	if general.Language != "en-US" {
		t.Fatalf("stale ancestor served: %q", general.Language)
	}

	if err := svc.Set(ctx, "display", map[string]any{"theme": "浅色"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	before := ct.calls[bridge.ChannelGet]
	theme, _, _ := GetAs[string](ctx, svc, "display.theme")
	if theme != "浅色" {
		t.Fatalf("stale descendant served: %q", theme)
	}
	if ct.calls[bridge.ChannelGet] != before+1 {
		t.Fatal("descendant should have been refetched")
	}
}

func TestDeleteAndReset(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Set(ctx, "memory.selectedUser", "alice"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := svc.Delete(ctx, "memory.selectedUser"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, err := svc.Get(ctx, "memory.selectedUser"); ok || err != nil {
		t.Fatalf("get after delete ok=%v err=%v", ok, err)
	}
	if has, _ := svc.Has(ctx, "memory.selectedUser"); has {
		t.Fatal("has after delete")
	}

	if err := svc.Set(ctx, "display.fontSize", 22); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := svc.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	size, _, _ := GetAs[int](ctx, svc, "display.fontSize")
	if size != 14 {
		t.Fatalf("fontSize after reset = %d, cache not flushed", size)
	}
}

func TestImportFlushesCache(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.Get(ctx, "general.language"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := svc.Import(ctx, `{"general":{"language":"de-DE"}}`); err != nil {
		t.Fatalf("import: %v", err)
	}
	lang, _, _ := GetAs[string](ctx, svc, "general.language")
	if lang != "de-DE" {
		t.Fatalf("language after import = %q", lang)
	}

	if err := svc.Import(ctx, "{oops"); err == nil {
		t.Fatal("expected import failure")
	}
}

func TestSettingFallsBackToDefault(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	def := model.MCPSettings{Enabled: true}
	if err := svc.Delete(ctx, "mcp"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	h := NewSetting(svc, "mcp", def)
	if !h.Loading() {
		t.Fatal("loading should be true before Load")
	}
	if err := h.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if h.Loading() {
		t.Fatal("loading after Load")
	}
	if !h.Value().Enabled {
		t.Fatalf("value = %+v, want default", h.Value())
	}
}

func TestSettingFailedWriteKeepsValue(t *testing.T) {
	svc, ct, _ := newTestService(t)
	ctx := context.Background()

	h := NewSetting(svc, "general.language", "zh-CN")
	if err := h.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	ct.fail[bridge.ChannelSet] = "disk full"
	err := h.Set(ctx, "en-US")
	var callErr *CallError
	if !errors.As(err, &callErr) || callErr.Message != "disk full" {
		t.Fatalf("set err = %v", err)
	}
	if h.Value() != "zh-CN" {
		t.Fatalf("value changed after failed write: %q", h.Value())
	}
	if v, _, _ := GetAs[string](ctx, svc, "general.language"); v != "zh-CN" {
		t.Fatalf("cache updated after failed write: %q", v)
	}

	delete(ct.fail, bridge.ChannelSet)
	if err := h.Set(ctx, "en-US"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if h.Value() != "en-US" {
		t.Fatalf("value = %q", h.Value())
	}
}

func TestPartialSettingMerges(t *testing.T) {
	svc, ct, s := newTestService(t)
	ctx := context.Background()

	h := NewPartialSetting(svc, "display", model.DisplaySettings{})
	if err := h.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := h.Update(ctx, map[string]any{"fontSize": 18, "wordWrap": false}); err != nil {
		t.Fatalf("update: %v", err)
	}

	v := h.Value()
	if v.FontSize != 18 || v.WordWrap || v.ThemeColor != "#00B96B" {
		t.Fatalf("merged value = %+v", v)
	}
	stored, _, err := store.Decode[model.DisplaySettings](s, store.Path{"display"})
	if err != nil || stored != v {
		t.Fatalf("store holds %+v, hook holds %+v (err %v)", stored, v, err)
	}

	ct.fail[bridge.ChannelSet] = "boom"
	if err := h.Update(ctx, map[string]any{"fontSize": 30}); err == nil {
		t.Fatal("expected update failure")
	}
	if h.Value().FontSize != 18 {
		t.Fatal("failed update leaked into local value")
	}
}

func TestPartialSettingStaleSnapshotDropsField(t *testing.T) {
	svc, _, s := newTestService(t)
	ctx := context.Background()

	a := NewPartialSetting(svc, "memory", model.MemorySettings{})
	b := NewPartialSetting(svc, "memory", model.MemorySettings{})
	if err := a.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := b.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := a.Update(ctx, map[string]any{"retentionDays": 90}); err != nil {
		t.Fatalf("update a: %v", err)
	}
	if err := b.Update(ctx, map[string]any{"maxMemoryItems": 50}); err != nil {
		t.Fatalf("update b: %v", err)
	}

	// b 基于旧快照合并，a 的字段被覆盖
	got, _, _ := store.Decode[model.MemorySettings](s, store.Path{"memory"})
	if got.MaxMemoryItems != 50 || got.RetentionDays != 30 {
		t.Fatalf("memory = %+v", got)
	}
}

func TestNewSettingNilServicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewSetting[string](nil, "general.language", "")
}

func TestHTTPTransport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s, err := store.Open(store.Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()
	b := bridge.New(s)
	b.RegisterStorageHandlers()
	r := gin.New()
	b.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	svc := NewStorageService(NewHTTPTransport(srv.URL))
	ctx := context.Background()

	if err := svc.SetMultiple(ctx, map[string]any{"general": map[string]any{"language": "en-US"}}); err != nil {
		t.Fatalf("setMultiple: %v", err)
	}
	lang, _, err := GetAs[string](ctx, svc, "general.language", Bypass())
	if err != nil || lang != "en-US" {
		t.Fatalf("language = %q, %v", lang, err)
	}
	text, err := svc.Export(ctx)
	if err != nil || text == "" {
		t.Fatalf("export = %q, %v", text, err)
	}
	size, err := svc.StoreSize(ctx)
	if err != nil || size <= 0 {
		t.Fatalf("size = %d, %v", size, err)
	}
	if p, err := svc.StorePath(ctx); err != nil || p != s.Path() {
		t.Fatalf("path = %q, %v", p, err)
	}

	b.UnregisterStorageHandlers()
	var callErr *CallError
	if _, _, err := svc.Get(ctx, "general", Bypass()); !errors.As(err, &callErr) {
		t.Fatalf("get after unregister err = %v", err)
	}
}
