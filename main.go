package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"go-knowledge/config"
	"go-knowledge/internal/bridge"
	"go-knowledge/internal/handler"
	"go-knowledge/internal/model"
	"go-knowledge/internal/scheduler"
	"go-knowledge/internal/service"
	"go-knowledge/internal/store"
	"go-knowledge/internal/util"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		return err
	}
	util.InitLogger(cfg.Log.Level, nil)

	userData, err := cfg.UserDataDir()
	if err != nil {
		return err
	}

	// 打开配置存储
	st, err := store.Open(store.Options{Dir: userData, Name: cfg.Storage.Name, UserDataDir: userData})
	if err != nil {
		return err
	}
	defer st.Close()
	data := store.DecodeOr(st, store.Path{model.SectionData}, model.DataSettings{})

	// 日志同时写入 data.logsPath
	if data.LogsPath != "" {
		if err := os.MkdirAll(data.LogsPath, 0o755); err != nil {
			return err
		}
		logFile, err := os.OpenFile(filepath.Join(data.LogsPath, "app.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer logFile.Close()
		util.InitLogger(cfg.Log.Level, logFile)
	}
	slog.Info("Config store opened", "path", st.Path())

	// 初始化数据库
	if err := os.MkdirAll(data.DatabasePath, 0o755); err != nil {
		return err
	}
	db, err := service.OpenChatDB(filepath.Join(data.DatabasePath, cfg.Database.File))
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	// 初始化服务
	llmSvc := service.NewLLMService(nil)
	providerSvc := service.NewProviderService(st, llmSvc)
	chatSvc := service.NewChatService(db, llmSvc, providerSvc)
	if err := chatSvc.SeedAssistants(); err != nil {
		return err
	}
	documentSvc := service.NewDocumentService(st)
	backupSvc := service.NewBackupService(st)

	// 注册存储通道
	b := bridge.New(st)
	b.RegisterStorageHandlers()
	defer b.UnregisterStorageHandlers()

	// 启动定时任务
	sched := scheduler.NewScheduler(backupSvc, st)
	sched.Start()
	defer sched.Stop()

	// 初始化Gin
	gin.SetMode(cfg.Server.Mode)
	r := gin.Default()

	// 注册路由
	h := handler.NewHandler(handler.Services{
		Chat:      chatSvc,
		Providers: providerSvc,
		Shortcuts: service.NewShortcutService(st),
		Documents: documentSvc,
		Backups:   backupSvc,
		Status:    service.NewStatusService(st, chatSvc, providerSvc, documentSvc),
		Bridge:    b,
	})
	h.SetScheduler(sched)
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("Server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
