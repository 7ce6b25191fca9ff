package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

func DefaultConfigPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("获取可执行文件路径失败: %w", err)
	}
	exeDir := filepath.Dir(exe)
	return filepath.Join(exeDir, "config", "config.yaml"), nil
}

func WriteFile(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("cfg 不能为空")
	}
	if path == "" {
		return fmt.Errorf("path 不能为空")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	payload := map[string]any{
		"app": map[string]any{
			"name":      cfg.App.Name,
			"version":   cfg.App.Version,
			"log_level": cfg.App.LogLevel,
		},
		"storage": map[string]any{
			"db_path": cfg.Storage.DBPath,
		},
		"planner": map[string]any{
			"timezone":        cfg.Planner.TimeZone,
			"horizon_days":    cfg.Planner.HorizonDays,
			"max_generations": cfg.Planner.MaxGenerations,
			"time_limit_ms":   cfg.Planner.TimeLimitMs,
		},
		"mining": map[string]any{
			"gap_tolerance_slots":  cfg.Mining.GapToleranceSlots,
			"hnet_window":          cfg.Mining.HNetWindow,
			"daily_alpha":          cfg.Mining.DailyAlpha,
			"weekly_alpha":         cfg.Mining.WeeklyAlpha,
			"monthly_alpha":        cfg.Mining.MonthlyAlpha,
			"stale_after_hours":    cfg.Mining.StaleAfterHours,
			"reconcile_every_mins": cfg.Mining.ReconcileEveryMins,
		},
		"heuristic": map[string]any{
			"minimum_support":           cfg.Heuristic.MinimumSupport,
			"dependency_threshold":      cfg.Heuristic.DependencyThreshold,
			"pair_minimum_support":      cfg.Heuristic.PairMinimumSupport,
			"max_clauses_per_binding":   cfg.Heuristic.MaxClausesPerBinding,
			"soft_binding_weight_scale": cfg.Heuristic.SoftBindingScale,
			"markov_smoothing_alpha":    cfg.Heuristic.MarkovSmoothingAlpha,
			"frequency_weight":          cfg.Heuristic.FrequencyWeight,
		},
	}

	b, err := yaml.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}
