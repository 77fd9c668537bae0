package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"

	"go-knowledge/internal/model"
	"go-knowledge/internal/store"
)

func newTestBridge(t *testing.T) (*Bridge, *store.Store) {
	t.Helper()
	s, err := store.Open(store.Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	b := New(s)
	b.RegisterStorageHandlers()
	return b, s
}

func rawArgs(t *testing.T, args ...any) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		raw, err := json.Marshal(a)
		if err != nil {
			t.Fatalf("marshal arg: %v", err)
		}
		out = append(out, raw)
	}
	return out
}

func TestStorageChannelsRegistered(t *testing.T) {
	b, _ := newTestBridge(t)
	for _, name := range StorageChannels {
		if !b.Registered(name) {
			t.Fatalf("channel %s not registered", name)
		}
	}
	if got := len(b.Channels()); got != 12 {
		t.Fatalf("registered %d channels, want 12", got)
	}
}

func TestSetGetThroughBridge(t *testing.T) {
	b, _ := newTestBridge(t)
	ctx := context.Background()

	res := b.Invoke(ctx, ChannelSet, rawArgs(t, "display.fontSize", 18))
	if !res.Success {
		t.Fatalf("set failed: %s", res.Error)
	}
	res = b.Invoke(ctx, ChannelGet, rawArgs(t, "display.fontSize"))
	if !res.Success || res.Data != float64(18) {
		t.Fatalf("get = %+v", res)
	}

	res = b.Invoke(ctx, ChannelDelete, rawArgs(t, "display.fontSize"))
	if !res.Success {
		t.Fatalf("delete failed: %s", res.Error)
	}
	res = b.Invoke(ctx, ChannelHas, rawArgs(t, "display.fontSize"))
	if !res.Success || res.Data != false {
		t.Fatalf("has after delete = %+v", res)
	}
	res = b.Invoke(ctx, ChannelGet, rawArgs(t, "display.fontSize"))
	if !res.Success || res.Data != nil {
		t.Fatalf("get absent key = %+v, want success with no data", res)
	}
}

func TestInvalidArgumentsBecomeFailures(t *testing.T) {
	b, _ := newTestBridge(t)
	ctx := context.Background()

	cases := []struct {
		channel string
		args    []json.RawMessage
	}{
		{ChannelGet, nil},
		{ChannelGet, rawArgs(t, "")},
		{ChannelSet, rawArgs(t, "general.language")},
		{ChannelSetMultiple, rawArgs(t, "not an object")},
		{ChannelImport, rawArgs(t, "{broken")},
	}
	for _, tc := range cases {
		res := b.Invoke(ctx, tc.channel, tc.args)
		if res.Success || res.Error == "" {
			t.Fatalf("%s: expected failure envelope, got %+v", tc.channel, res)
		}
	}
}

func TestExportImportChannels(t *testing.T) {
	b, _ := newTestBridge(t)
	ctx := context.Background()

	exp := b.Invoke(ctx, ChannelExport, nil)
	text, ok := exp.Data.(string)
	if !exp.Success || !ok || text == "" {
		t.Fatalf("export = %+v", exp)
	}
	if res := b.Invoke(ctx, ChannelImport, rawArgs(t, text)); !res.Success {
		t.Fatalf("import failed: %s", res.Error)
	}
	if res := b.Invoke(ctx, ChannelGetStorePath, nil); !strings.HasSuffix(res.Data.(string), "app-config.json") {
		t.Fatalf("store path = %v", res.Data)
	}
	if res := b.Invoke(ctx, ChannelGetStoreSize, nil); res.Data.(int64) <= 0 {
		t.Fatalf("store size = %v", res.Data)
	}
}

func TestWriteFailureBecomesFailure(t *testing.T) {
	b, s := newTestBridge(t)
	ctx := context.Background()

	// 非空目录占据配置文件位置，写入时 rename 失败
	if err := os.Remove(s.Path()); err != nil {
		t.Fatalf("remove config file: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(s.Path(), "occupied"), 0o755); err != nil {
		t.Fatalf("create blocking dir: %v", err)
	}

	res := b.Invoke(ctx, ChannelSet, rawArgs(t, "general.language", "en-US"))
	if res.Success || res.Error == "" {
		t.Fatalf("set with unwritable file = %+v", res)
	}
	res = b.Invoke(ctx, ChannelSetMultiple, rawArgs(t, map[string]any{"general": map[string]any{}}))
	if res.Success || res.Error == "" {
		t.Fatalf("setMultiple with unwritable file = %+v", res)
	}
	res = b.Invoke(ctx, ChannelGet, rawArgs(t, "general.language"))
	if !res.Success || res.Data != "zh-CN" {
		t.Fatalf("language after failed writes = %+v", res)
	}
}

func TestPanickingHandlerIsWrapped(t *testing.T) {
	b, _ := newTestBridge(t)
	b.Handle("test:boom", func(context.Context, []json.RawMessage) (any, error) {
		panic("boom")
	})

	res := b.Invoke(context.Background(), "test:boom", nil)
	if res.Success || res.Error != "boom" {
		t.Fatalf("panic result = %+v", res)
	}
}

func TestUnregisterStorageHandlers(t *testing.T) {
	b, s := newTestBridge(t)
	b.Handle("app:version", func(context.Context, []json.RawMessage) (any, error) { return "1.0.0", nil })

	b.UnregisterStorageHandlers()
	for _, name := range StorageChannels {
		if b.Registered(name) {
			t.Fatalf("channel %s still registered", name)
		}
	}
	if !b.Registered("app:version") {
		t.Fatal("unrelated channel removed")
	}

	res := b.Invoke(context.Background(), ChannelSet, rawArgs(t, "general.language", "en-US"))
	if res.Success || !strings.Contains(res.Error, "no handler registered") {
		t.Fatalf("invoke after unregister = %+v", res)
	}
	if v, _ := s.Get(store.MustPath("general.language")); v != "zh-CN" {
		t.Fatalf("store reached after unregister: %v", v)
	}

	b.RegisterStorageHandlers()
	if res := b.Invoke(context.Background(), ChannelHas, rawArgs(t, "general")); !res.Success {
		t.Fatalf("re-register failed: %+v", res)
	}
}

func TestIPCRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	b, _ := newTestBridge(t)
	r := gin.New()
	b.RegisterRoutes(r)

	post := func(channel, body string) (*httptest.ResponseRecorder, model.Result[any]) {
		req := httptest.NewRequest(http.MethodPost, "/ipc/"+channel, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		var res model.Result[any]
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
		return rec, res
	}

	rec, res := post(ChannelSet, `["general.language","en-US"]`)
	if rec.Code != http.StatusOK || !res.Success {
		t.Fatalf("set: code=%d res=%+v", rec.Code, res)
	}
	rec, res = post(ChannelGet, `["general.language"]`)
	if rec.Code != http.StatusOK || res.Data != "en-US" {
		t.Fatalf("get: code=%d res=%+v", rec.Code, res)
	}

	// 业务失败仍是 200，错误放在信封里
	rec, res = post(ChannelImport, `["not json"]`)
	if rec.Code != http.StatusOK || res.Success {
		t.Fatalf("import: code=%d res=%+v", rec.Code, res)
	}

	rec, res = post("storage:unknown", `[]`)
	if rec.Code != http.StatusNotFound || res.Success {
		t.Fatalf("unknown channel: code=%d res=%+v", rec.Code, res)
	}

	rec, _ = post(ChannelGetAll, ``)
	if rec.Code != http.StatusOK {
		t.Fatalf("empty body: code=%d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/ipc/"+ChannelGet, strings.NewReader(`{"key":"x"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("object body: code=%d", w.Code)
	}
}
