package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/yuqie6/TimeLoom/internal/eventbus"
	"github.com/yuqie6/TimeLoom/internal/mining"
	"github.com/yuqie6/TimeLoom/internal/pkg/buildinfo"
	"github.com/yuqie6/TimeLoom/internal/pkg/config"
	"github.com/yuqie6/TimeLoom/internal/repository"
	"github.com/yuqie6/TimeLoom/internal/schema"
	"github.com/yuqie6/TimeLoom/internal/service"
	"github.com/yuqie6/TimeLoom/internal/solver"
)

var (
	cfgFile string
	cfg     *config.Config
	db      *repository.Database
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "loom",
		Short:   "TimeLoom - 从行为历史学习的个人日程排期引擎",
		Long:    `TimeLoom 在本地挖掘活动完成历史，合成软约束，并组装发往遗传求解器的排期问题。`,
		Version: fmt.Sprintf("%s (%s)", buildinfo.Version, buildinfo.Commit),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// 加载配置
			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				slog.Error("加载配置失败", "error", err)
				os.Exit(1)
			}
			config.SetupLogger(cfg.App.LogLevel)

			// 初始化数据库
			db, err = repository.NewDatabase(cfg.Storage.DBPath)
			if err != nil {
				slog.Error("初始化数据库失败", "error", err)
				os.Exit(1)
			}
			if db.SafeMode {
				fmt.Println("⚠️  数据库迁移失败，当前以安全模式运行（只读旧表结构）")
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if db != nil {
				db.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径")

	// 添加子命令
	rootCmd.AddCommand(recordCmd())
	rootCmd.AddCommand(mineCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(buildCmd())
	rootCmd.AddCommand(decodeCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newMiningService 按当前配置组装挖掘服务
func newMiningService() *service.MiningService {
	historyRepo := repository.NewHistoryRepository(db.DB)
	statesRepo := repository.NewEmaStateRepository(db.DB)
	behaviorRepo := repository.NewBehaviorRepository(db.DB)
	markovRepo := repository.NewMarkovRepository(db.DB)
	hnetRepo := repository.NewHNetRepository(db.DB)

	miner := mining.NewEmaMiner(mining.EmaMinerOptions{
		DailyAlpha:   cfg.Mining.DailyAlpha,
		WeeklyAlpha:  cfg.Mining.WeeklyAlpha,
		MonthlyAlpha: cfg.Mining.MonthlyAlpha,
		StaleAfter:   time.Duration(cfg.Mining.StaleAfterHours) * time.Hour,
	})
	writer := mining.NewHistoryWriter(miner, historyRepo, statesRepo, behaviorRepo)
	analyzer := mining.NewHistoryAnalyzer(
		mining.NewMarkovMiner(cfg.Mining.GapToleranceSlots),
		mining.NewHNetMiner(cfg.Mining.HNetWindow),
	)
	return service.NewMiningService(writer, analyzer, historyRepo, markovRepo, hnetRepo, eventbus.NewHub(), cfg.Planner.TimeZone)
}

// newPlannerService 按当前配置组装排期服务
func newPlannerService() *service.PlannerService {
	heuristic := solver.HeuristicOptions{
		MinimumSupport:       cfg.Heuristic.MinimumSupport,
		DependencyThreshold:  cfg.Heuristic.DependencyThreshold,
		PairMinimumSupport:   cfg.Heuristic.PairMinimumSupport,
		MaxClausesPerBinding: cfg.Heuristic.MaxClausesPerBinding,
		SoftBindingScale:     cfg.Heuristic.SoftBindingScale,
		MarkovSmoothingAlpha: cfg.Heuristic.MarkovSmoothingAlpha,
		FrequencyWeight:      cfg.Heuristic.FrequencyWeight,
	}
	return service.NewPlannerService(
		repository.NewActivityRepository(db.DB),
		repository.NewConstraintRepository(db.DB),
		repository.NewBehaviorRepository(db.DB),
		repository.NewMarkovRepository(db.DB),
		repository.NewHNetRepository(db.DB),
		repository.NewEventRepository(db.DB),
		solver.NewProblemBuilder(&heuristic),
		nil, // CLI 只组装问题，不驱动求解器
		eventbus.NewHub(),
		&service.PlannerServiceConfig{
			TimeZone:       cfg.Planner.TimeZone,
			HorizonDays:    cfg.Planner.HorizonDays,
			MaxGenerations: cfg.Planner.MaxGenerations,
			TimeLimit:      time.Duration(cfg.Planner.TimeLimitMs) * time.Millisecond,
		},
	)
}

// recordCmd 记录一次活动完成
func recordCmd() *cobra.Command {
	var activityID string
	var startRaw string
	var duration float64
	var notes string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "记录一次活动完成（写历史并增量更新学习频次）",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			if activityID == "" {
				fmt.Println("❌ 必须指定 --activity")
				os.Exit(1)
			}

			start := time.Now()
			if startRaw != "" {
				parsed, err := time.Parse(time.RFC3339, startRaw)
				if err != nil {
					fmt.Printf("❌ 无法解析 --start（期望 RFC3339）: %v\n", err)
					os.Exit(1)
				}
				start = parsed
			}

			svc := newMiningService()
			id, err := svc.RecordCompletion(ctx, mining.RecordCompletionInput{
				ActivityID:      activityID,
				ActualStartTime: start,
				ActualDuration:  duration,
				Notes:           notes,
				TimeZone:        cfg.Planner.TimeZone,
			})
			if err != nil {
				fmt.Printf("❌ 记录失败: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("✅ 已记录完成 %s (历史行 %s)\n", activityID, id)
		},
	}

	cmd.Flags().StringVar(&activityID, "activity", "", "活动模板 ID")
	cmd.Flags().StringVar(&startRaw, "start", "", "实际开始时间 (RFC3339，默认当前时间)")
	cmd.Flags().Float64Var(&duration, "duration", 30, "实际时长（分钟）")
	cmd.Flags().StringVar(&notes, "notes", "", "备注")
	return cmd
}

// mineCmd 从完整历史重建计数表
func mineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "清空并从完整完成历史重建转移/依赖计数",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			result, err := newMiningService().ReplayHistory(ctx)
			if err != nil {
				fmt.Printf("❌ 重放失败: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("✅ 历史重放完成")
			fmt.Printf("  • 完成事件: %d\n", result.CompletedEvents)
			fmt.Printf("  • 转移计数: %d\n", result.MarkovUpdates)
			fmt.Printf("  • 依赖弧:   %d\n", result.HNetArcUpdates)
			fmt.Printf("  • 共现对:   %d\n", result.HNetPairUpdates)
		},
	}
}

// reconcileCmd 重建学习频次
func reconcileCmd() *cobra.Command {
	var stale []string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "对脏或过期活动重建 EMA 学习频次",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			result, err := newMiningService().Reconcile(ctx, stale)
			if err != nil {
				fmt.Printf("❌ 对账失败: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("✅ 频次对账完成")
			fmt.Printf("  • 涉及活动: %d\n", result.Activities)
			fmt.Printf("  • 重建刻度: %d\n", result.RebuiltScopes)
			fmt.Printf("  • 发布行为行: %d\n", result.PublishedScopes)
		},
	}

	cmd.Flags().StringSliceVar(&stale, "stale", nil, "额外标记为过期的活动 ID")
	return cmd
}

// buildCmd 组装并序列化求解问题
func buildCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "组装排期问题并写出 MessagePack 负载",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			built, err := newPlannerService().BuildProblem(ctx, time.Now())
			if err != nil {
				fmt.Printf("❌ 组装失败: %v\n", err)
				os.Exit(1)
			}

			payload := solver.SerializeProblem(built.Problem)
			if err := os.WriteFile(out, payload, 0o644); err != nil {
				fmt.Printf("❌ 写出负载失败: %v\n", err)
				os.Exit(1)
			}

			fmt.Printf("✅ 问题已写入 %s (%d 字节)\n", out, len(payload))
			fmt.Printf("  • 活动: %d (浮动 %d / 固定 %d)\n",
				len(built.Problem.Activities), len(built.Problem.FloatingIndices), len(built.Problem.FixedIndices))
			fmt.Printf("  • 全局约束: %d\n", len(built.Problem.GlobalConstraints))
			fmt.Printf("  • 热力图: %d 项, 转移矩阵: %d 项\n", len(built.Problem.Heatmap), len(built.Problem.MarkovMatrix))
			fmt.Printf("  • 槽位总数: %d (起点 %s)\n", built.Problem.TotalSlots, built.HorizonStart.Format(time.RFC3339))
			for _, w := range built.Warnings {
				fmt.Printf("  ⚠️  %s\n", w)
			}
		},
	}

	cmd.Flags().StringVar(&out, "out", "problem.msgpack", "输出文件路径")
	return cmd
}

// decodeCmd 解码求解器输出
func decodeCmd() *cobra.Command {
	var in string

	cmd := &cobra.Command{
		Use:   "decode",
		Short: "解码求解结果并翻译回活动与时间",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			payload, err := os.ReadFile(in)
			if err != nil {
				fmt.Printf("❌ 读取结果失败: %v\n", err)
				os.Exit(1)
			}

			tuples, err := solver.DeserializeSolveResult(payload)
			if err != nil {
				fmt.Printf("❌ 结果格式非法: %v\n", err)
				os.Exit(1)
			}

			// 结果只带稠密数值 ID，需要重建同一个问题上下文才能翻译
			built, err := newPlannerService().BuildProblem(ctx, time.Now())
			if err != nil {
				fmt.Printf("❌ 重建问题上下文失败: %v\n", err)
				os.Exit(1)
			}

			results := solver.ParseSolveResult(tuples, built)
			fmt.Printf("✅ 解码 %d 条结果（丢弃 %d 条）\n", len(results), len(tuples)-len(results))
			for _, r := range results {
				fmt.Printf("  • %-24s 槽位 %-4d  %s\n", r.ActivityID, r.StartSlot, r.StartTime.Format("2006-01-02 15:04"))
			}
		},
	}

	cmd.Flags().StringVar(&in, "in", "result.msgpack", "求解结果文件路径")
	return cmd
}

// historyCmd 查看某个本地日的完成历史
func historyCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "按本地日查看完成历史",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			if date == "" {
				date = time.Now().Format("2006-01-02")
			}

			start, end, err := repository.DayRange(date, cfg.Planner.TimeZone)
			if err != nil {
				fmt.Printf("❌ 无法解析 --date（期望 YYYY-MM-DD）: %v\n", err)
				os.Exit(1)
			}

			rows, err := repository.NewHistoryRepository(db.DB).GetByTimeRange(ctx, start, end)
			if err != nil {
				fmt.Printf("❌ 查询历史失败: %v\n", err)
				os.Exit(1)
			}

			fmt.Printf("📅 %s 完成 %d 项\n", date, len(rows))
			for _, row := range rows {
				when := "?"
				if row.ActualStartTime != nil {
					when = row.ActualStartTime.In(start.Location()).Format("15:04")
				}
				fmt.Printf("  • %s  %-24s %.0f 分钟\n", when, row.ActivityID, row.DurationMinutes())
				if row.Notes != "" {
					fmt.Printf("      %s\n", row.Notes)
				}
			}
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "本地日期 (YYYY-MM-DD，默认今天)")
	return cmd
}

// statsCmd 数据概览
func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "查看数据层概览",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			activityRepo := repository.NewActivityRepository(db.DB)
			eventRepo := repository.NewEventRepository(db.DB)
			historyRepo := repository.NewHistoryRepository(db.DB)
			markovRepo := repository.NewMarkovRepository(db.DB)
			hnetRepo := repository.NewHNetRepository(db.DB)

			activities, _ := activityRepo.Count(ctx)
			events, _ := eventRepo.Count(ctx)
			completed, _ := historyRepo.CountCompleted(ctx)
			transitions, _ := markovRepo.GetAll(ctx)
			arcs, _ := hnetRepo.GetArcs(ctx)
			pairs, _ := hnetRepo.GetPairs(ctx)

			fmt.Println("📊 TimeLoom 数据概览")
			fmt.Println("═══════════════════════════════════")
			fmt.Printf("  • 活动模板:   %d\n", activities)
			fmt.Printf("  • 日程事件:   %d\n", events)
			fmt.Printf("  • 完成历史:   %d\n", completed)
			fmt.Printf("  • 转移计数行: %d\n", len(transitions))
			fmt.Printf("  • 依赖弧行:   %d\n", len(arcs))
			fmt.Printf("  • 共现对行:   %d\n", len(pairs))
			fmt.Println("═══════════════════════════════════")

			// 额外给出最常见的转移，便于人工核对挖掘质量
			top := append([]schema.MarkovTransitionCount(nil), transitions...)
			sort.Slice(top, func(i, j int) bool { return top[i].Count > top[j].Count })
			if len(top) > 5 {
				top = top[:5]
			}
			if len(top) > 0 {
				fmt.Println("\n🔁 高频转移")
				for _, tr := range top {
					fmt.Printf("  • %s → %s (%d 次)\n", tr.FromActivityID, tr.ToActivityID, tr.Count)
				}
			}
		},
	}
}
