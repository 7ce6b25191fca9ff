package solver

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultMaxGenerations 遗传求解的默认代数上限
	DefaultMaxGenerations = 60
	// DefaultTimeLimit 单次求解的默认时间预算
	DefaultTimeLimit = 200 * time.Millisecond
)

// SolveOptions 求解预算，零值字段取默认
type SolveOptions struct {
	MaxGenerations int
	TimeLimit      time.Duration
}

func (o SolveOptions) normalized() SolveOptions {
	if o.MaxGenerations <= 0 {
		o.MaxGenerations = DefaultMaxGenerations
	}
	if o.TimeLimit <= 0 {
		o.TimeLimit = DefaultTimeLimit
	}
	return o
}

// Solver 外部遗传求解器的字节级接口。
// 输入输出都是 MessagePack 字节流，实现方不感知问题结构。
type Solver interface {
	Solve(ctx context.Context, problem []byte, maxGenerations int, timeLimit time.Duration) ([]byte, error)
}

// Scheduler 求解门面：编码问题、调用求解器、解码并翻译结果
type Scheduler struct {
	solver Solver
}

// NewScheduler 创建求解门面
func NewScheduler(solver Solver) *Scheduler {
	return &Scheduler{solver: solver}
}

// SolveRaw 求解并返回未翻译的 (数值 ID, 槽位) 元组
func (s *Scheduler) SolveRaw(ctx context.Context, built *BuiltProblem, opts SolveOptions) ([]ResultTuple, error) {
	opts = opts.normalized()
	payload := SerializeProblem(built.Problem)

	started := time.Now()
	raw, err := s.solver.Solve(ctx, payload, opts.MaxGenerations, opts.TimeLimit)
	if err != nil {
		return nil, fmt.Errorf("调用求解器失败: %w", err)
	}

	tuples, err := DeserializeSolveResult(raw)
	if err != nil {
		return nil, fmt.Errorf("解码求解结果失败: %w", err)
	}

	slog.Debug("求解完成",
		"activities", len(built.Problem.Activities),
		"tuples", len(tuples),
		"elapsed", time.Since(started))
	return tuples, nil
}

// Solve 求解并翻译为外部活动 ID 加绝对时间
func (s *Scheduler) Solve(ctx context.Context, built *BuiltProblem, opts SolveOptions) ([]ParsedScheduleResult, error) {
	tuples, err := s.SolveRaw(ctx, built, opts)
	if err != nil {
		return nil, err
	}
	return ParseSolveResult(tuples, built), nil
}
