package schema

import (
	"fmt"
	"math"
	"time"
)

// ConstraintType 声明式约束类型
type ConstraintType string

const (
	// 全局约束（作用于整张日程表）
	ConstraintGlobalForbiddenZone  ConstraintType = "GLOBAL_FORBIDDEN_ZONE"
	ConstraintGlobalCumulativeTime ConstraintType = "GLOBAL_CUMULATIVE_TIME"

	// 用户自定义约束
	ConstraintUserSequence      ConstraintType = "USER_SEQUENCE"
	ConstraintUserFrequencyGoal ConstraintType = "USER_FREQUENCY_GOAL"
)

// TimeScope 求解器侧的时间范围枚举（与求解器线上格式一致）
type TimeScope string

const (
	ScopeSameDay   TimeScope = "SameDay"
	ScopeSameWeek  TimeScope = "SameWeek"
	ScopeSameMonth TimeScope = "SameMonth"
)

// Constraint 持久化的声明式约束，value 列为按类型解释的 JSON
// 数据量级：十级
type Constraint struct {
	ID         string         `gorm:"primaryKey;size:36"`
	Type       ConstraintType `gorm:"size:40;index"`
	ActivityID string         `gorm:"size:36;index"` // 活动级约束（Sequence / Frequency）
	CategoryID string         `gorm:"size:36;index"` // 分类级全局约束（Cumulative Time）
	Value      JSONMap        `gorm:"type:text"`
	IsActive   bool           `gorm:"default:true;index"`
	CreatedAt  time.Time      `gorm:"autoCreateTime"`
}

// TableName 指定表名
func (Constraint) TableName() string {
	return "constraints"
}

// ForbiddenZoneValue 禁排时段（槽位半开区间）
type ForbiddenZoneValue struct {
	StartSlot int
	EndSlot   int
}

// CumulativeTimeValue 周期内累计时长上下限（槽位）
type CumulativeTimeValue struct {
	PeriodSlots int
	MinDuration int
	MaxDuration int
}

// SequenceValue 显式先后顺序约束
type SequenceValue struct {
	PredecessorID string
	SuccessorID   string
	MinGapSlots   *int // 已识别但当前绑定模型不支持
	MaxGapSlots   *int
}

// FrequencyGoalValue 单活动的频次目标
type FrequencyGoalValue struct {
	Scope    TimeScope
	MinCount *int
	MaxCount *int
}

// ParsedConstraintValue 约束 value 列的类型化结果，按 Type 恰有一个分支非空
type ParsedConstraintValue struct {
	ForbiddenZone *ForbiddenZoneValue
	Cumulative    *CumulativeTimeValue
	Sequence      *SequenceValue
	Frequency     *FrequencyGoalValue
}

// ParseValue 在加载边界处做一次类型化校验，之后消费方不再面对裸 JSON。
// 解析失败返回错误，由调用方决定跳过并告警。
func (c Constraint) ParseValue() (*ParsedConstraintValue, error) {
	switch c.Type {
	case ConstraintGlobalForbiddenZone:
		v, err := parseForbiddenZone(c.Value)
		if err != nil {
			return nil, err
		}
		return &ParsedConstraintValue{ForbiddenZone: v}, nil
	case ConstraintGlobalCumulativeTime:
		v, err := parseCumulativeTime(c.Value)
		if err != nil {
			return nil, err
		}
		return &ParsedConstraintValue{Cumulative: v}, nil
	case ConstraintUserSequence:
		v, err := parseSequence(c.Value)
		if err != nil {
			return nil, err
		}
		return &ParsedConstraintValue{Sequence: v}, nil
	case ConstraintUserFrequencyGoal:
		v, err := parseFrequencyGoal(c.Value)
		if err != nil {
			return nil, err
		}
		return &ParsedConstraintValue{Frequency: v}, nil
	default:
		return nil, fmt.Errorf("不支持的约束类型: %s", c.Type)
	}
}

func parseForbiddenZone(value JSONMap) (*ForbiddenZoneValue, error) {
	start, ok := value.GetFloat("startSlot")
	if !ok {
		return nil, fmt.Errorf("缺少 startSlot")
	}
	end, ok := value.GetFloat("endSlot")
	if !ok {
		return nil, fmt.Errorf("缺少 endSlot")
	}
	if math.IsNaN(start) || math.IsNaN(end) || int(math.Floor(start)) >= int(math.Floor(end)) {
		return nil, fmt.Errorf("非法的时段范围: [%v, %v)", start, end)
	}
	return &ForbiddenZoneValue{
		StartSlot: maxInt(0, int(math.Floor(start))),
		EndSlot:   maxInt(0, int(math.Floor(end))),
	}, nil
}

func parseCumulativeTime(value JSONMap) (*CumulativeTimeValue, error) {
	period, ok := value.GetFloat("periodSlots")
	if !ok {
		return nil, fmt.Errorf("缺少 periodSlots")
	}
	minDur, ok := value.GetFloat("minDuration")
	if !ok {
		return nil, fmt.Errorf("缺少 minDuration")
	}
	maxDur, ok := value.GetFloat("maxDuration")
	if !ok {
		return nil, fmt.Errorf("缺少 maxDuration")
	}
	return &CumulativeTimeValue{
		PeriodSlots: maxInt(1, int(math.Floor(period))),
		MinDuration: maxInt(0, int(math.Floor(minDur))),
		MaxDuration: maxInt(0, int(math.Floor(maxDur))),
	}, nil
}

func parseSequence(value JSONMap) (*SequenceValue, error) {
	predecessor, ok := value.GetString("predecessorId")
	if !ok || predecessor == "" {
		return nil, fmt.Errorf("缺少 predecessorId")
	}
	successor, ok := value.GetString("successorId")
	if !ok || successor == "" {
		return nil, fmt.Errorf("缺少 successorId")
	}

	out := &SequenceValue{PredecessorID: predecessor, SuccessorID: successor}
	if gap, ok := value.GetFloat("minGapSlots"); ok {
		n := int(gap)
		out.MinGapSlots = &n
	}
	if gap, ok := value.GetFloat("maxGapSlots"); ok {
		n := int(gap)
		out.MaxGapSlots = &n
	}
	return out, nil
}

func parseFrequencyGoal(value JSONMap) (*FrequencyGoalValue, error) {
	scopeRaw, ok := value.GetString("scope")
	if !ok {
		return nil, fmt.Errorf("缺少 scope")
	}
	scope := TimeScope(scopeRaw)
	switch scope {
	case ScopeSameDay, ScopeSameWeek, ScopeSameMonth:
	default:
		return nil, fmt.Errorf("非法的 scope: %s", scopeRaw)
	}

	out := &FrequencyGoalValue{Scope: scope}
	if v, ok := value.GetFloat("minCount"); ok {
		n := maxInt(0, int(math.Floor(v)))
		out.MinCount = &n
	}
	if v, ok := value.GetFloat("maxCount"); ok {
		n := maxInt(0, int(math.Floor(v)))
		out.MaxCount = &n
	}
	if out.MinCount == nil && out.MaxCount == nil {
		return nil, fmt.Errorf("minCount 与 maxCount 至少需要一个")
	}
	if out.MinCount != nil && out.MaxCount != nil && *out.MaxCount < *out.MinCount {
		return nil, fmt.Errorf("maxCount(%d) 小于 minCount(%d)", *out.MaxCount, *out.MinCount)
	}
	return out, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
