package solver

import (
	"time"

	"github.com/yuqie6/TimeLoom/internal/schema"
)

// ActivityType 求解器侧的活动类型
type ActivityType string

const (
	ActivityFixed    ActivityType = "Fixed"    // 固定时间锚点，不可移动
	ActivityFloating ActivityType = "Floating" // 求解器自由安排
)

// FrequencyTarget 学习到的软频次目标
type FrequencyTarget struct {
	Scope       schema.TimeScope
	TargetCount int
	Weight      float64
}

// UserFrequencyConstraint 用户显式频次目标，违反按罚分计
type UserFrequencyConstraint struct {
	Scope         schema.TimeScope
	MinCount      *int
	MaxCount      *int
	PenaltyWeight float64
}

// Binding CNF 式软绑定：每个 required set 是一个析取子句，
// 集合间为合取
type Binding struct {
	RequiredSets  [][]int
	TimeScope     schema.TimeScope
	ValidWeekdays int
	Weight        float64
}

// Activity 求解器侧的活动描述
type Activity struct {
	ID                       int
	ActivityType             ActivityType
	DurationSlots            int
	Priority                 int
	AssignedStart            *int // Floating 为 nil
	CategoryID               int
	InputBindings            []Binding
	OutputBindings           []Binding
	FrequencyTargets         []FrequencyTarget
	UserFrequencyConstraints []UserFrequencyConstraint
}

// ForbiddenZone 禁排槽位区间 [Start, End)
type ForbiddenZone struct {
	Start int
	End   int
}

// CumulativeTime 周期内累计时长上下限
type CumulativeTime struct {
	CategoryID  *int // nil 表示作用于全部分类
	PeriodSlots int
	MinDuration int
	MaxDuration int
}

// GlobalConstraint 全局约束，外部标签式编码：恰有一个分支非空
type GlobalConstraint struct {
	ForbiddenZone  *ForbiddenZone
	CumulativeTime *CumulativeTime
}

// HeatmapEntry (活动, 槽位, 概率)
type HeatmapEntry struct {
	Activity    int
	Slot        int
	Probability float64
}

// MarkovEntry (from, to, 概率)
type MarkovEntry struct {
	From        int
	To          int
	Probability float64
}

// ResultTuple 求解结果的一行：(数值活动 ID, 起始槽位)
type ResultTuple [2]int

// Problem 发给求解器的完整问题
type Problem struct {
	Activities        []Activity
	FloatingIndices   []int
	FixedIndices      []int
	GlobalConstraints []GlobalConstraint
	Heatmap           []HeatmapEntry
	MarkovMatrix      []MarkovEntry
	TotalSlots        int
}

// BuiltProblem 构建产物：问题本体加解码结果所需的上下文
type BuiltProblem struct {
	Problem             Problem
	ActivityIDToNumeric DenseIDMaps
	CategoryIDToNumeric DenseIDMaps
	HorizonStart        time.Time
	Warnings            []string
}

// ParsedScheduleResult 解码后的单条排期结果
type ParsedScheduleResult struct {
	ActivityID string
	StartSlot  int
	StartTime  time.Time
}
