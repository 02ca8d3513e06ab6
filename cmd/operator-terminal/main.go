package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pcb-assembly-tracking/internal/cache"
	"pcb-assembly-tracking/internal/catalog"
	"pcb-assembly-tracking/internal/client"
	"pcb-assembly-tracking/internal/config"
	"pcb-assembly-tracking/internal/event"
	"pcb-assembly-tracking/internal/handlers"
	"pcb-assembly-tracking/internal/service"
	"pcb-assembly-tracking/internal/session"
	"pcb-assembly-tracking/internal/web"
)

// main 是操作台服务的主入口
func main() {
	// 1. 初始化核心组件
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("加载配置失败", "error", err)
		os.Exit(1)
	}

	cat := catalog.New()
	if err := cat.Validate(); err != nil {
		logger.Error("物料目录校验失败", "error", err)
		os.Exit(1)
	}

	store, err := cache.NewStore(cfg.CacheDir, cache.Caps{
		Pending:   cfg.PendingCap,
		Completed: cfg.CompletedCap,
		Logs:      cfg.LogCap,
	}, logger)
	if err != nil {
		logger.Error("无法初始化本地缓存", "error", err)
		os.Exit(1)
	}
	if pending := store.Pending(); len(pending) > 0 {
		logger.Info("发现未同步的在制记录", "count", len(pending))
	}

	// 2. 组装 UI 推送和事件总线
	var stateTracker *web.StateTracker
	hub := web.NewHub(func() interface{} { return stateTracker.GetStateSnapshot() })
	stateTracker = web.NewStateTracker(hub)
	go hub.Run()

	eventBus := event.NewBus()
	registry := session.NewRegistry()
	alerts := handlers.NewAlertEvaluator(cfg.AlertRules, logger)
	handlers.RegisterEventHandlers(eventBus, stateTracker, registry, alerts, logger)

	// 3. 组装完工服务
	timeout := time.Duration(cfg.RequestTimeoutMs) * time.Millisecond
	cli := client.New(cfg.APIBaseURL, timeout, logger)
	svc := service.New(cat, registry, cli, store, eventBus, cfg.Operator, logger)

	logger.Info("=== PCB 装配追踪操作台启动 ===",
		"listen", cfg.ListenAddr, "backend", cfg.APIBaseURL, "operator", cfg.Operator)

	// 4. 启动 API 服务
	go startAPIServer(cfg.ListenAddr, svc, cat, store, hub, stateTracker, logger)

	// 5. 优雅停机
	waitForShutdown(logger)
}

// waitForShutdown 等待系统信号以实现优雅停机
func waitForShutdown(logger *slog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("接收到停机信号，操作台退出")
}
