package solver

import (
	"fmt"

	"github.com/yuqie6/TimeLoom/internal/schema"
	"github.com/yuqie6/TimeLoom/internal/timeslot"
)

const (
	// hardBindingWeight 用户显式顺序约束的绑定权重，远高于任何启发式绑定
	hardBindingWeight = 1_000_000
	// userFrequencyPenaltyWeight 用户频次目标的违反罚分
	userFrequencyPenaltyWeight = 50_000
)

// ConstraintMapper 把持久化的声明式约束翻译为求解器格式。
// 约束数据来自用户输入，任何一条的失败都不应拖垮整次构建：
// 非法或无法解析的约束降级为告警并跳过。
type ConstraintMapper struct {
	activityIDs DenseIDMaps
	categoryIDs DenseIDMaps
}

// NewConstraintMapper 创建约束翻译器
func NewConstraintMapper(activityIDs, categoryIDs DenseIDMaps) *ConstraintMapper {
	return &ConstraintMapper{activityIDs: activityIDs, categoryIDs: categoryIDs}
}

// Map 翻译一批约束。全局约束进入返回值，活动级约束直接写入
// activitiesByNumericID 中对应的活动。
func (m *ConstraintMapper) Map(constraints []schema.Constraint, activitiesByNumericID map[int]*Activity) ([]GlobalConstraint, []string) {
	globals := make([]GlobalConstraint, 0, len(constraints))
	var warnings []string

	for _, c := range constraints {
		if !c.IsActive {
			continue
		}
		parsed, err := c.ParseValue()
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("约束 %s 解析失败，已跳过: %v", c.ID, err))
			continue
		}

		switch {
		case parsed.ForbiddenZone != nil:
			globals = append(globals, GlobalConstraint{ForbiddenZone: &ForbiddenZone{
				Start: parsed.ForbiddenZone.StartSlot,
				End:   parsed.ForbiddenZone.EndSlot,
			}})
		case parsed.Cumulative != nil:
			globals = append(globals, GlobalConstraint{CumulativeTime: m.mapCumulative(c, parsed.Cumulative, &warnings)})
		case parsed.Sequence != nil:
			m.mapSequence(c, parsed.Sequence, activitiesByNumericID, &warnings)
		case parsed.Frequency != nil:
			m.mapFrequencyGoal(c, parsed.Frequency, activitiesByNumericID, &warnings)
		default:
			warnings = append(warnings, fmt.Sprintf("约束 %s 类型不受支持: %s", c.ID, c.Type))
		}
	}
	return globals, warnings
}

func (m *ConstraintMapper) mapCumulative(c schema.Constraint, v *schema.CumulativeTimeValue, warnings *[]string) *CumulativeTime {
	out := &CumulativeTime{
		PeriodSlots: v.PeriodSlots,
		MinDuration: v.MinDuration,
		MaxDuration: v.MaxDuration,
	}
	if c.CategoryID != "" {
		if num, ok := m.categoryIDs.Forward[c.CategoryID]; ok {
			out.CategoryID = &num
		} else {
			*warnings = append(*warnings, fmt.Sprintf("约束 %s 引用的分类 %s 不在本次问题中，按全分类处理", c.ID, c.CategoryID))
		}
	}
	return out
}

func (m *ConstraintMapper) mapSequence(c schema.Constraint, v *schema.SequenceValue, activities map[int]*Activity, warnings *[]string) {
	predNum, okPred := m.activityIDs.Forward[v.PredecessorID]
	succNum, okSucc := m.activityIDs.Forward[v.SuccessorID]
	if !okPred || !okSucc {
		*warnings = append(*warnings, fmt.Sprintf("约束 %s 引用的活动不在本次问题中（前驱=%s 后继=%s），已跳过", c.ID, v.PredecessorID, v.SuccessorID))
		return
	}
	pred, okPred := activities[predNum]
	succ, okSucc := activities[succNum]
	if !okPred || !okSucc {
		*warnings = append(*warnings, fmt.Sprintf("约束 %s 引用的活动未构建成功，已跳过", c.ID))
		return
	}
	if v.MinGapSlots != nil || v.MaxGapSlots != nil {
		*warnings = append(*warnings, fmt.Sprintf("约束 %s 的间隔上下限暂不支持，仅保留先后顺序", c.ID))
	}

	// 后继要求前驱出现在其输入侧，前驱要求后继出现在其输出侧，
	// 两个方向共同表达同日内的硬顺序。
	succ.InputBindings = append(succ.InputBindings, Binding{
		RequiredSets:  [][]int{{predNum}},
		TimeScope:     schema.ScopeSameDay,
		ValidWeekdays: timeslot.AllWeekdaysMask(),
		Weight:        hardBindingWeight,
	})
	pred.OutputBindings = append(pred.OutputBindings, Binding{
		RequiredSets:  [][]int{{succNum}},
		TimeScope:     schema.ScopeSameDay,
		ValidWeekdays: timeslot.AllWeekdaysMask(),
		Weight:        hardBindingWeight,
	})
}

func (m *ConstraintMapper) mapFrequencyGoal(c schema.Constraint, v *schema.FrequencyGoalValue, activities map[int]*Activity, warnings *[]string) {
	num, ok := m.activityIDs.Forward[c.ActivityID]
	if !ok {
		*warnings = append(*warnings, fmt.Sprintf("约束 %s 引用的活动 %s 不在本次问题中，已跳过", c.ID, c.ActivityID))
		return
	}
	target, ok := activities[num]
	if !ok {
		*warnings = append(*warnings, fmt.Sprintf("约束 %s 引用的活动 %s 未构建成功，已跳过", c.ID, c.ActivityID))
		return
	}
	target.UserFrequencyConstraints = append(target.UserFrequencyConstraints, UserFrequencyConstraint{
		Scope:         v.Scope,
		MinCount:      v.MinCount,
		MaxCount:      v.MaxCount,
		PenaltyWeight: userFrequencyPenaltyWeight,
	})
}
