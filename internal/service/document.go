package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"go-knowledge/internal/model"
	"go-knowledge/internal/store"
)

var (
	pathDocuments       = store.Path{model.SectionDocument, "documents"}
	pathAttachmentsPath = store.Path{model.SectionData, "attachmentsPath"}
)

// DocumentService 管理 document.documents 列表及附件目录中的文件
//
// 文档只能被显式删除；处理进度由外部的文档解析流程通过 UpdateProgress/Complete/Fail 推进。
type DocumentService struct {
	store *store.Store
	mu    sync.Mutex
}

func NewDocumentService(st *store.Store) *DocumentService {
	return &DocumentService{store: st}
}

func (s *DocumentService) ListDocuments() []model.DocumentItem {
	return store.DecodeOr(s.store, pathDocuments, []model.DocumentItem{})
}

// AttachmentPath 文档在附件目录中的位置
func (s *DocumentService) AttachmentPath(doc model.DocumentItem) (string, error) {
	dir := store.DecodeOr(s.store, pathAttachmentsPath, "")
	if dir == "" {
		return "", errors.New("data.attachmentsPath 未设置")
	}
	return filepath.Join(dir, doc.ID+strings.ToLower(filepath.Ext(doc.Name))), nil
}

// AddDocument 保存上传内容并登记为处理中
func (s *DocumentService) AddDocument(name string, r io.Reader) (model.DocumentItem, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return model.DocumentItem{}, fmt.Errorf("%w: file name required", ErrInvalidInput)
	}

	doc := model.DocumentItem{
		ID:       uuid.NewString(),
		Name:     name,
		Status:   model.DocumentProcessing,
		Progress: 0,
	}
	dst, err := s.AttachmentPath(doc)
	if err != nil {
		return model.DocumentItem{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return model.DocumentItem{}, fmt.Errorf("create attachments dir: %w", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return model.DocumentItem{}, fmt.Errorf("save %s: %w", name, err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return model.DocumentItem{}, fmt.Errorf("save %s: %w", name, err)
	}

	doc.Size = humanize.Bytes(uint64(n))
	doc.Type = documentType(name, dst)

	s.mu.Lock()
	defer s.mu.Unlock()
	docs := append([]model.DocumentItem{doc}, s.ListDocuments()...)
	if err := s.store.Set(pathDocuments, docs); err != nil {
		os.Remove(dst)
		return model.DocumentItem{}, err
	}
	slog.Info("document added", "id", doc.ID, "name", name, "size", doc.Size, "type", doc.Type)
	return doc, nil
}

// documentType 优先取扩展名，没有扩展名时按内容识别
func documentType(name, path string) string {
	if ext := strings.TrimPrefix(filepath.Ext(name), "."); ext != "" {
		return strings.ToUpper(ext)
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "UNKNOWN"
	}
	if ext := strings.TrimPrefix(mt.Extension(), "."); ext != "" {
		return strings.ToUpper(ext)
	}
	return "UNKNOWN"
}

// UpdateProgress 进度限制在 0-100
func (s *DocumentService) UpdateProgress(id string, progress int) (model.DocumentItem, error) {
	progress = max(0, min(100, progress))
	return s.update(id, func(d *model.DocumentItem) {
		d.Progress = progress
	})
}

func (s *DocumentService) Complete(id string) (model.DocumentItem, error) {
	return s.update(id, func(d *model.DocumentItem) {
		d.Status = model.DocumentCompleted
		d.Progress = 100
	})
}

func (s *DocumentService) Fail(id string) (model.DocumentItem, error) {
	return s.update(id, func(d *model.DocumentItem) {
		d.Status = model.DocumentError
	})
}

// DeleteDocument 删除登记项和附件文件
func (s *DocumentService) DeleteDocument(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.ListDocuments()
	for i, d := range docs {
		if d.ID != id {
			continue
		}
		rest := append(docs[:i:i], docs[i+1:]...)
		if err := s.store.Set(pathDocuments, rest); err != nil {
			return err
		}
		if path, err := s.AttachmentPath(d); err == nil {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				slog.Warn("remove attachment failed", "path", path, "err", err)
			}
		}
		return nil
	}
	return fmt.Errorf("document %s: %w", id, ErrNotFound)
}

func (s *DocumentService) update(id string, fn func(d *model.DocumentItem)) (model.DocumentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.ListDocuments()
	for i := range docs {
		if docs[i].ID != id {
			continue
		}
		fn(&docs[i])
		if err := s.store.Set(pathDocuments, docs); err != nil {
			return model.DocumentItem{}, err
		}
		return docs[i], nil
	}
	return model.DocumentItem{}, fmt.Errorf("document %s: %w", id, ErrNotFound)
}
