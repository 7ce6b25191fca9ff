package solver

import (
	"strings"

	"github.com/yuqie6/TimeLoom/internal/timeslot"
)

// ParseSolveResult 把求解元组翻译回外部活动 ID 与绝对时间。
// 稠密表里找不到的数值 ID 以及合成的固定事件静默丢弃：
// 前者是求解器的幻觉输出，后者本来就不是排期对象。
func ParseSolveResult(tuples []ResultTuple, built *BuiltProblem) []ParsedScheduleResult {
	results := make([]ParsedScheduleResult, 0, len(tuples))
	for _, tuple := range tuples {
		externalID, ok := built.ActivityIDToNumeric.Reverse[tuple[0]]
		if !ok {
			continue
		}
		if strings.HasPrefix(externalID, "scheduled:") {
			continue
		}
		results = append(results, ParsedScheduleResult{
			ActivityID: externalID,
			StartSlot:  tuple[1],
			StartTime:  timeslot.SlotToDate(tuple[1], built.HorizonStart),
		})
	}
	return results
}
