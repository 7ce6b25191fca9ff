package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/yuqie6/TimeLoom/internal/eventbus"
	"github.com/yuqie6/TimeLoom/internal/mining"
	"github.com/yuqie6/TimeLoom/internal/pkg/buildinfo"
	"github.com/yuqie6/TimeLoom/internal/pkg/config"
	"github.com/yuqie6/TimeLoom/internal/repository"
	"github.com/yuqie6/TimeLoom/internal/service"
)

// runtime 持有按当前配置组装的服务，热更新时整体重建
type runtime struct {
	mu     sync.Mutex
	cfg    *config.Config
	db     *repository.Database
	mining *service.MiningService
	hub    *eventbus.Hub
}

func newRuntime(cfg *config.Config, hub *eventbus.Hub) (*runtime, error) {
	db, err := repository.NewDatabase(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("初始化数据库失败: %w", err)
	}
	if db.SafeMode {
		slog.Warn("数据库迁移失败，以安全模式运行")
	}

	historyRepo := repository.NewHistoryRepository(db.DB)
	miner := mining.NewEmaMiner(mining.EmaMinerOptions{
		DailyAlpha:   cfg.Mining.DailyAlpha,
		WeeklyAlpha:  cfg.Mining.WeeklyAlpha,
		MonthlyAlpha: cfg.Mining.MonthlyAlpha,
		StaleAfter:   time.Duration(cfg.Mining.StaleAfterHours) * time.Hour,
	})
	writer := mining.NewHistoryWriter(
		miner,
		historyRepo,
		repository.NewEmaStateRepository(db.DB),
		repository.NewBehaviorRepository(db.DB),
	)
	analyzer := mining.NewHistoryAnalyzer(
		mining.NewMarkovMiner(cfg.Mining.GapToleranceSlots),
		mining.NewHNetMiner(cfg.Mining.HNetWindow),
	)
	miningSvc := service.NewMiningService(
		writer,
		analyzer,
		historyRepo,
		repository.NewMarkovRepository(db.DB),
		repository.NewHNetRepository(db.DB),
		hub,
		cfg.Planner.TimeZone,
	)

	return &runtime{cfg: cfg, db: db, mining: miningSvc, hub: hub}, nil
}

func (rt *runtime) close() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.db != nil {
		rt.db.Close()
		rt.db = nil
	}
}

// reload 用新配置重建服务，失败则保留旧运行时
func (rt *runtime) reload(cfgPath string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("重新加载配置失败，保留旧配置", "error", err)
		return
	}

	next, err := newRuntime(cfg, rt.hub)
	if err != nil {
		slog.Error("按新配置重建服务失败，保留旧配置", "error", err)
		return
	}

	rt.mu.Lock()
	old := rt.db
	rt.cfg = next.cfg
	rt.db = next.db
	rt.mining = next.mining
	rt.mu.Unlock()

	if old != nil {
		old.Close()
	}

	config.SetupLogger(cfg.App.LogLevel)
	slog.Info("配置热更新生效", "log_level", cfg.App.LogLevel)
	rt.hub.Publish(eventbus.Event{Type: eventbus.TypeConfigReloaded})
}

func (rt *runtime) reconcileInterval() time.Duration {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	mins := rt.cfg.Mining.ReconcileEveryMins
	if mins <= 0 {
		mins = 60
	}
	return time.Duration(mins) * time.Minute
}

func (rt *runtime) reconcileOnce(ctx context.Context) {
	rt.mu.Lock()
	svc := rt.mining
	rt.mu.Unlock()

	if _, err := svc.Reconcile(ctx, nil); err != nil {
		slog.Error("周期性频次对账失败", "error", err)
	}
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 首次运行落一份默认配置，便于用户编辑
	cfgPath, cfgErr := config.DefaultConfigPath()
	if cfgErr == nil {
		if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
			_ = config.WriteFile(cfgPath, config.Default())
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("加载配置失败", "error", err)
		os.Exit(1)
	}
	config.SetupLogger(cfg.App.LogLevel)

	hub := eventbus.NewHub()
	rt, err := newRuntime(cfg, hub)
	if err != nil {
		slog.Error("启动 Agent 失败", "error", err)
		os.Exit(1)
	}
	defer rt.close()

	slog.Info("TimeLoom Agent 启动",
		"name", cfg.App.Name,
		"version", buildinfo.Version,
		"timezone", cfg.Planner.TimeZone)

	// 配置热更新：监听配置文件变化并整体重建服务
	watcher := viper.New()
	watcher.SetConfigFile(cfgPath)
	if err := watcher.ReadInConfig(); err == nil {
		watcher.OnConfigChange(func(e fsnotify.Event) {
			slog.Info("检测到配置变更", "file", e.Name, "op", e.Op.String())
			rt.reload(cfgPath)
		})
		watcher.WatchConfig()
	} else {
		slog.Warn("配置文件不可监听，热更新停用", "error", err)
	}

	// 启动即做一次对账，之后按配置周期执行
	rt.reconcileOnce(ctx)

	ticker := time.NewTicker(rt.reconcileInterval())
	defer ticker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			rt.reconcileOnce(ctx)
			// 区间可能被热更新改掉，重置计时器
			ticker.Reset(rt.reconcileInterval())
		case sig := <-sigChan:
			slog.Info("收到退出信号", "signal", sig.String())
			cancel()
			slog.Info("TimeLoom Agent 已退出")
			return
		}
	}
}
