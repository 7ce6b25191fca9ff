package mining

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/yuqie6/TimeLoom/internal/schema"
)

// ErrInvalidEventBatch 完成事件批次不合法（调用方契约违规，硬失败）
var ErrInvalidEventBatch = errors.New("完成事件批次不合法")

// CompletedActivityEvent 一次已完成的活动，挖掘器的统一输入
type CompletedActivityEvent struct {
	ActivityID      string
	StartTime       time.Time
	DurationMinutes float64
}

// EndTime 事件结束时刻
func (e CompletedActivityEvent) EndTime() time.Time {
	return e.StartTime.Add(time.Duration(e.DurationMinutes * float64(time.Minute)))
}

// AssertBatch 校验批次形状：时长必须为正且有限，时间必须有效。
// 违规视为调用方契约错误，整批拒绝。
func AssertBatch(events []CompletedActivityEvent, source string) error {
	for i, e := range events {
		if e.ActivityID == "" {
			return fmt.Errorf("%w: %s[%d] 缺少活动 ID", ErrInvalidEventBatch, source, i)
		}
		if e.DurationMinutes <= 0 || math.IsNaN(e.DurationMinutes) || math.IsInf(e.DurationMinutes, 0) {
			return fmt.Errorf("%w: %s[%d] 时长必须为正的有限值", ErrInvalidEventBatch, source, i)
		}
		if e.StartTime.IsZero() {
			return fmt.Errorf("%w: %s[%d] 开始时间无效", ErrInvalidEventBatch, source, i)
		}
	}
	return nil
}

// MarkovUpdate 一条 (from, to) 转移计数增量
type MarkovUpdate struct {
	FromActivityID string
	ToActivityID   string
	Count          int
	LastObservedAt time.Time
}

// ArcUpdate 一条依赖弧计数增量
type ArcUpdate struct {
	PredecessorActivityID string
	SuccessorActivityID   string
	TimeScope             schema.TimeScope
	WeekdayMask           int
	Count                 int
	LastObservedAt        time.Time
}

// PairUpdate 一条共现对计数增量，first/second 恒为字典序
type PairUpdate struct {
	AnchorActivityID  string
	FirstActivityID   string
	SecondActivityID  string
	PairType          schema.HNetPairType
	TimeScope         schema.TimeScope
	WeekdayMask       int
	CoOccurrenceCount int
	AnchorSampleSize  int
	LastObservedAt    time.Time
}

// HeuristicBatch 一次启发式网挖掘的全部增量
type HeuristicBatch struct {
	Arcs  []ArcUpdate
	Pairs []PairUpdate
}

// EventFromHistory 将历史行转为挖掘输入。
// 未完成、缺实际开始时间或时长非正的行返回 false。
func EventFromHistory(h schema.ActivityHistory) (CompletedActivityEvent, bool) {
	if !h.WasCompleted || h.ActualStartTime == nil {
		return CompletedActivityEvent{}, false
	}
	dur := h.DurationMinutes()
	if dur <= 0 {
		return CompletedActivityEvent{}, false
	}
	return CompletedActivityEvent{
		ActivityID:      h.ActivityID,
		StartTime:       *h.ActualStartTime,
		DurationMinutes: dur,
	}, true
}
