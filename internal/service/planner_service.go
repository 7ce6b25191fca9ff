package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yuqie6/TimeLoom/internal/bucket"
	"github.com/yuqie6/TimeLoom/internal/eventbus"
	"github.com/yuqie6/TimeLoom/internal/repository"
	"github.com/yuqie6/TimeLoom/internal/schema"
	"github.com/yuqie6/TimeLoom/internal/solver"
	"github.com/yuqie6/TimeLoom/internal/timeslot"
)

// PlannerServiceConfig 排期服务配置
type PlannerServiceConfig struct {
	TimeZone       string        // IANA 时区，非法值回退 UTC
	HorizonDays    int           // 规划窗口天数
	MaxGenerations int           // 求解代数上限
	TimeLimit      time.Duration // 单次求解时间预算
}

// PlannerService 端到端排期：聚合数据快照、组装问题、求解并落库
type PlannerService struct {
	activityRepo   *repository.ActivityRepository
	constraintRepo *repository.ConstraintRepository
	behaviorRepo   *repository.BehaviorRepository
	markovRepo     *repository.MarkovRepository
	hnetRepo       *repository.HNetRepository
	eventRepo      *repository.EventRepository
	builder        *solver.ProblemBuilder
	scheduler      *solver.Scheduler
	hub            *eventbus.Hub
	cfg            *PlannerServiceConfig
}

// NewPlannerService 创建排期服务
func NewPlannerService(
	activityRepo *repository.ActivityRepository,
	constraintRepo *repository.ConstraintRepository,
	behaviorRepo *repository.BehaviorRepository,
	markovRepo *repository.MarkovRepository,
	hnetRepo *repository.HNetRepository,
	eventRepo *repository.EventRepository,
	builder *solver.ProblemBuilder,
	scheduler *solver.Scheduler,
	hub *eventbus.Hub,
	cfg *PlannerServiceConfig,
) *PlannerService {
	if cfg == nil {
		cfg = &PlannerServiceConfig{}
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = "UTC"
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = 7
	}
	return &PlannerService{
		activityRepo:   activityRepo,
		constraintRepo: constraintRepo,
		behaviorRepo:   behaviorRepo,
		markovRepo:     markovRepo,
		hnetRepo:       hnetRepo,
		eventRepo:      eventRepo,
		builder:        builder,
		scheduler:      scheduler,
		hub:            hub,
		cfg:            cfg,
	}
}

// HorizonStart 规划窗口起点：配置时区里今天的零点
func (s *PlannerService) HorizonStart(now time.Time) time.Time {
	loc := bucket.LoadLocation(s.cfg.TimeZone)
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// TotalSlots 规划窗口的槽位总数
func (s *PlannerService) TotalSlots() int {
	return s.cfg.HorizonDays * timeslot.SlotsPerDay
}

// BuildProblem 取数据层快照并组装求解问题
func (s *PlannerService) BuildProblem(ctx context.Context, now time.Time) (*solver.BuiltProblem, error) {
	horizonStart := s.HorizonStart(now)
	totalSlots := s.TotalSlots()

	activities, err := s.activityRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载活动模板失败: %w", err)
	}
	constraints, err := s.constraintRepo.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载约束失败: %w", err)
	}
	heatmap, err := s.behaviorRepo.GetByMetric(ctx, schema.MetricHeatmapProbability)
	if err != nil {
		return nil, fmt.Errorf("加载热力图行为失败: %w", err)
	}
	frequency, err := s.behaviorRepo.GetByMetric(ctx, schema.MetricObservedFrequency)
	if err != nil {
		return nil, fmt.Errorf("加载频次行为失败: %w", err)
	}
	transitions, err := s.markovRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载转移计数失败: %w", err)
	}
	arcs, err := s.hnetRepo.GetArcs(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载依赖弧失败: %w", err)
	}
	pairs, err := s.hnetRepo.GetPairs(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载共现对失败: %w", err)
	}
	events, err := s.eventRepo.GetInHorizon(ctx, horizonStart, totalSlots)
	if err != nil {
		return nil, fmt.Errorf("加载窗口内日程失败: %w", err)
	}

	built, err := s.builder.Build(solver.BuildInput{
		Activities:        activities,
		Constraints:       constraints,
		UserBehavior:      append(heatmap, frequency...),
		MarkovTransitions: transitions,
		HNetArcCounts:     arcs,
		HNetPairCounts:    pairs,
		ScheduledEvents:   events,
		HorizonStart:      horizonStart,
		TotalSlots:        totalSlots,
	})
	if err != nil {
		return nil, fmt.Errorf("组装求解问题失败: %w", err)
	}

	for _, warning := range built.Warnings {
		slog.Warn("问题组装告警", "detail", warning)
	}
	s.hub.Publish(eventbus.Event{
		Type: eventbus.TypeProblemBuilt,
		Data: map[string]any{
			"activities": len(built.Problem.Activities),
			"floating":   len(built.Problem.FloatingIndices),
			"fixed":      len(built.Problem.FixedIndices),
			"warnings":   len(built.Warnings),
		},
	})
	return built, nil
}

// Plan 一次完整的排期：组装、求解、翻译
func (s *PlannerService) Plan(ctx context.Context, now time.Time) (*solver.BuiltProblem, []solver.ParsedScheduleResult, error) {
	built, err := s.BuildProblem(ctx, now)
	if err != nil {
		return nil, nil, err
	}

	results, err := s.scheduler.Solve(ctx, built, solver.SolveOptions{
		MaxGenerations: s.cfg.MaxGenerations,
		TimeLimit:      s.cfg.TimeLimit,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("求解失败: %w", err)
	}

	s.hub.Publish(eventbus.Event{
		Type: eventbus.TypeScheduleSolved,
		Data: map[string]any{"results": len(results)},
	})
	return built, results, nil
}

// ApplySchedule 把求解结果落为 PREDICTED 状态的日程事件
func (s *PlannerService) ApplySchedule(ctx context.Context, results []solver.ParsedScheduleResult) (int, error) {
	if len(results) == 0 {
		return 0, nil
	}

	templates, err := s.activityRepo.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("加载活动模板失败: %w", err)
	}
	templateByID := make(map[string]schema.Activity, len(templates))
	for _, t := range templates {
		templateByID[t.ID] = t
	}

	events := make([]schema.ScheduledEvent, 0, len(results))
	for _, r := range results {
		template, ok := templateByID[r.ActivityID]
		if !ok {
			slog.Warn("求解结果引用了不存在的活动模板", "activity_id", r.ActivityID)
			continue
		}
		duration := template.DefaultDuration
		events = append(events, schema.ScheduledEvent{
			ID:                   uuid.NewString(),
			ActivityID:           template.ID,
			CategoryID:           template.CategoryID,
			Title:                template.Name,
			StartTime:            r.StartTime,
			EndTime:              r.StartTime.Add(time.Duration(duration) * time.Minute),
			Duration:             duration,
			Status:               schema.EventStatusPredicted,
			ReplaceabilityStatus: schema.ReplaceabilitySoft,
			Priority:             template.Priority,
		})
	}

	if err := s.eventRepo.BatchInsert(ctx, events); err != nil {
		return 0, fmt.Errorf("写入预测日程失败: %w", err)
	}
	return len(events), nil
}
