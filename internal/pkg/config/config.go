package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Planner   PlannerConfig   `mapstructure:"planner"`
	Mining    MiningConfig    `mapstructure:"mining"`
	Heuristic HeuristicConfig `mapstructure:"heuristic"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Version  string `mapstructure:"version"`
	LogLevel string `mapstructure:"log_level"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// PlannerConfig 排期配置
type PlannerConfig struct {
	TimeZone       string `mapstructure:"timezone"`
	HorizonDays    int    `mapstructure:"horizon_days"`
	MaxGenerations int    `mapstructure:"max_generations"`
	TimeLimitMs    int    `mapstructure:"time_limit_ms"`
}

// MiningConfig 行为挖掘配置
type MiningConfig struct {
	GapToleranceSlots  int     `mapstructure:"gap_tolerance_slots"`
	HNetWindow         int     `mapstructure:"hnet_window"`
	DailyAlpha         float64 `mapstructure:"daily_alpha"`
	WeeklyAlpha        float64 `mapstructure:"weekly_alpha"`
	MonthlyAlpha       float64 `mapstructure:"monthly_alpha"`
	StaleAfterHours    int     `mapstructure:"stale_after_hours"`
	ReconcileEveryMins int     `mapstructure:"reconcile_every_mins"`
}

// HeuristicConfig 软绑定合成调参
type HeuristicConfig struct {
	MinimumSupport       int     `mapstructure:"minimum_support"`
	DependencyThreshold  float64 `mapstructure:"dependency_threshold"`
	PairMinimumSupport   int     `mapstructure:"pair_minimum_support"`
	MaxClausesPerBinding int     `mapstructure:"max_clauses_per_binding"`
	SoftBindingScale     float64 `mapstructure:"soft_binding_weight_scale"`
	MarkovSmoothingAlpha float64 `mapstructure:"markov_smoothing_alpha"`
	FrequencyWeight      float64 `mapstructure:"frequency_weight"`
}

// Default 默认配置（首次运行写盘用）
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:     "loom-agent",
			Version:  "0.1.0",
			LogLevel: "info",
		},
		Storage: StorageConfig{
			DBPath: "./data/timeloom.db",
		},
		Planner: PlannerConfig{
			TimeZone:       "UTC",
			HorizonDays:    7,
			MaxGenerations: 60,
			TimeLimitMs:    200,
		},
		Mining: MiningConfig{
			GapToleranceSlots:  2,
			HNetWindow:         256,
			DailyAlpha:         0.25,
			WeeklyAlpha:        0.20,
			MonthlyAlpha:       0.15,
			StaleAfterHours:    24,
			ReconcileEveryMins: 60,
		},
		Heuristic: HeuristicConfig{
			MinimumSupport:       2,
			DependencyThreshold:  0.1,
			PairMinimumSupport:   2,
			MaxClausesPerBinding: 4,
			SoftBindingScale:     250,
			MarkovSmoothingAlpha: 1,
			FrequencyWeight:      2,
		},
	}
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 设置配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// 默认查找路径
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// 支持环境变量
	v.SetEnvPrefix("LOOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("配置文件未找到，使用默认配置")
		} else {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		slog.Info("加载配置文件", "path", v.ConfigFileUsed())
	}

	// 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 处理相对路径
	cfg.Storage.DBPath = resolvePath(cfg.Storage.DBPath)

	return &cfg, nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "loom-agent")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.log_level", "info")

	// Storage
	v.SetDefault("storage.db_path", "./data/timeloom.db")

	// Planner
	v.SetDefault("planner.timezone", "UTC")
	v.SetDefault("planner.horizon_days", 7)
	v.SetDefault("planner.max_generations", 60)
	v.SetDefault("planner.time_limit_ms", 200)

	// Mining
	v.SetDefault("mining.gap_tolerance_slots", 2)
	v.SetDefault("mining.hnet_window", 256)
	v.SetDefault("mining.daily_alpha", 0.25)
	v.SetDefault("mining.weekly_alpha", 0.20)
	v.SetDefault("mining.monthly_alpha", 0.15)
	v.SetDefault("mining.stale_after_hours", 24)
	v.SetDefault("mining.reconcile_every_mins", 60)

	// Heuristic
	v.SetDefault("heuristic.minimum_support", 2)
	v.SetDefault("heuristic.dependency_threshold", 0.1)
	v.SetDefault("heuristic.pair_minimum_support", 2)
	v.SetDefault("heuristic.max_clauses_per_binding", 4)
	v.SetDefault("heuristic.soft_binding_weight_scale", 250)
	v.SetDefault("heuristic.markov_smoothing_alpha", 1)
	v.SetDefault("heuristic.frequency_weight", 2)
}

// resolvePath 解析相对路径为绝对路径
func resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	// 获取可执行文件目录
	exe, err := os.Executable()
	if err != nil {
		return path
	}

	exeDir := filepath.Dir(exe)
	return filepath.Join(exeDir, path)
}

// SetupLogger 根据配置设置日志级别
func SetupLogger(level string) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
