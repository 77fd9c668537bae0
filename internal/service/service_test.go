package service

import (
	"net/http"
	"path/filepath"
	"testing"

	"go-knowledge/internal/store"
)

type testEnv struct {
	store     *store.Store
	llm       *LLMService
	providers *ProviderService
	chat      *ChatService
	shortcuts *ShortcutService
	documents *DocumentService
	backups   *BackupService
	userData  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	userData := t.TempDir()
	st, err := store.Open(store.Options{Dir: userData, UserDataDir: userData})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	db, err := OpenChatDB(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("open chat db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	llm := NewLLMService(http.DefaultClient)
	providers := NewProviderService(st, llm)
	chat := NewChatService(db, llm, providers)
	if err := chat.SeedAssistants(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return &testEnv{
		store:     st,
		llm:       llm,
		providers: providers,
		chat:      chat,
		shortcuts: NewShortcutService(st),
		documents: NewDocumentService(st),
		backups:   NewBackupService(st),
		userData:  userData,
	}
}
