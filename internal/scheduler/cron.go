package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"go-knowledge/internal/model"
	"go-knowledge/internal/service"
	"go-knowledge/internal/store"
)

// Scheduler 按 data.backupInterval 定时备份配置，data 分区变化时重新排期
type Scheduler struct {
	cron    *cron.Cron
	backups *service.BackupService
	store   *store.Store

	mu            sync.Mutex
	backupEntryID cron.EntryID
	spec          string
	unwatch       func()
}

func NewScheduler(backups *service.BackupService, st *store.Store) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		backups: backups,
		store:   st,
	}
}

func (s *Scheduler) Start() {
	s.rearm()
	s.unwatch = s.store.Watch(store.Path{model.SectionData}, func(_, _ any) {
		s.rearm()
	})
	s.cron.Start()
	slog.Info("[Cron] Scheduler started", "backup", s.Spec())
}

// BackupSpec 由 data 设置得到 cron 表达式，未启用或间隔无效时返回空
func BackupSpec(d model.DataSettings) string {
	if !d.BackupEnabled || d.BackupInterval <= 0 {
		return ""
	}
	return fmt.Sprintf("@every %dh", d.BackupInterval)
}

func (s *Scheduler) rearm() {
	spec := BackupSpec(s.backups.Settings())

	s.mu.Lock()
	defer s.mu.Unlock()
	if spec == s.spec && (spec == "" || s.backupEntryID != 0) {
		return
	}
	if s.backupEntryID != 0 {
		s.cron.Remove(s.backupEntryID)
		s.backupEntryID = 0
	}
	s.spec = spec
	if spec == "" {
		slog.Info("[Cron] Backup disabled")
		return
	}

	id, err := s.cron.AddFunc(spec, func() {
		slog.Info("[Cron] Backing up config...")
		f, err := s.backups.Backup()
		if err != nil {
			slog.Error("[Cron] Backup failed", "err", err)
			return
		}
		slog.Info("[Cron] Backup written", "path", f.Path, "size", f.Size)
	})
	if err != nil {
		slog.Error("[Cron] Invalid backup schedule", "spec", spec, "err", err)
		return
	}
	s.backupEntryID = id
	slog.Info("[Cron] Backup scheduled", "spec", spec)
}

// Spec 当前生效的备份表达式
func (s *Scheduler) Spec() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

// GetNextBackupTime 获取下次备份时间，未排期时为零值
func (s *Scheduler) GetNextBackupTime() time.Time {
	s.mu.Lock()
	id := s.backupEntryID
	s.mu.Unlock()
	if id == 0 {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

func (s *Scheduler) Stop() {
	if s.unwatch != nil {
		s.unwatch()
	}
	<-s.cron.Stop().Done()
}
