package service

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"go-knowledge/internal/model"
	"go-knowledge/internal/store"
)

const (
	backupDir        = "backups"
	backupPrefix     = "app-config-"
	backupExt        = ".json"
	backupTimeFormat = "20060102-150405.000000"
)

// BackupFile 一个备份文件
type BackupFile struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      string    `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

type BackupService struct {
	store *store.Store
	now   func() time.Time
}

func NewBackupService(st *store.Store) *BackupService {
	return &BackupService{store: st, now: time.Now}
}

// Settings 当前 data 分区
func (s *BackupService) Settings() model.DataSettings {
	return store.DecodeOr(s.store, store.Path{model.SectionData}, model.DataSettings{})
}

func (s *BackupService) dir() (string, error) {
	root := s.Settings().DataDirectory
	if root == "" {
		return "", errors.New("data.dataDirectory 未设置")
	}
	return filepath.Join(root, backupDir), nil
}

// Backup 导出当前配置并按 maxBackups 清理旧备份
func (s *BackupService) Backup() (BackupFile, error) {
	dir, err := s.dir()
	if err != nil {
		return BackupFile{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return BackupFile{}, fmt.Errorf("create backup dir: %w", err)
	}

	text, err := s.store.Export()
	if err != nil {
		return BackupFile{}, err
	}
	created := s.now()
	name := backupPrefix + created.Format(backupTimeFormat) + backupExt
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return BackupFile{}, fmt.Errorf("write backup: %w", err)
	}

	if keep := s.Settings().MaxBackups; keep > 0 {
		if err := s.Prune(keep); err != nil {
			slog.Warn("prune backups failed", "err", err)
		}
	}
	return BackupFile{
		Name:      name,
		Path:      path,
		Size:      humanize.Bytes(uint64(len(text))),
		CreatedAt: created,
	}, nil
}

// ListBackups 最新的在前
func (s *BackupService) ListBackups() ([]BackupFile, error) {
	dir, err := s.dir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return []BackupFile{}, nil
	}
	if err != nil {
		return nil, err
	}

	files := make([]BackupFile, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupExt) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), backupExt)
		created, err := time.ParseInLocation(backupTimeFormat, stamp, time.Local)
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, BackupFile{
			Name:      name,
			Path:      filepath.Join(dir, name),
			Size:      humanize.Bytes(uint64(info.Size())),
			CreatedAt: created,
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name > files[j].Name })
	return files, nil
}

// Prune 只保留最新的 keep 个备份
func (s *BackupService) Prune(keep int) error {
	files, err := s.ListBackups()
	if err != nil {
		return err
	}
	var errs []error
	for i := keep; i < len(files); i++ {
		if err := os.Remove(files[i].Path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Restore 用指定备份整体替换当前配置
func (s *BackupService) Restore(name string) error {
	if name != filepath.Base(name) || !strings.HasPrefix(name, backupPrefix) {
		return fmt.Errorf("%w: backup name %q", ErrInvalidInput, name)
	}
	dir, err := s.dir()
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(filepath.Join(dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("backup %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return err
	}
	return s.store.Import(string(raw))
}
