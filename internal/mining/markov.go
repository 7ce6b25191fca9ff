package mining

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/yuqie6/TimeLoom/internal/timeslot"
)

// DefaultGapToleranceSlots 相邻事件仍算转移的最大槽位间隔
const DefaultGapToleranceSlots = 2

// MarkovStore 转移计数的写端，repository.MarkovRepository 满足该接口
type MarkovStore interface {
	Increment(ctx context.Context, from, to string, delta int, observedAt time.Time) error
}

// MarkovMiner 相邻完成活动的转移计数挖掘器。
// 按开始时间排序后只看相邻对：间隔在容忍槽位内才视作一次转移。
type MarkovMiner struct {
	gapToleranceSlots int
}

// NewMarkovMiner 创建挖掘器，tolerance < 0 时取默认值
func NewMarkovMiner(gapToleranceSlots int) *MarkovMiner {
	if gapToleranceSlots < 0 {
		gapToleranceSlots = DefaultGapToleranceSlots
	}
	return &MarkovMiner{gapToleranceSlots: gapToleranceSlots}
}

// MineCounts 纯计算：返回批次产生的转移计数增量，不触库
func (m *MarkovMiner) MineCounts(events []CompletedActivityEvent) ([]MarkovUpdate, error) {
	if err := AssertBatch(events, "MarkovMiner.events"); err != nil {
		return nil, err
	}

	sorted := make([]CompletedActivityEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime.Before(sorted[j].StartTime)
	})

	acc := make(map[[2]string]*MarkovUpdate)
	var order [][2]string

	for i := 0; i+1 < len(sorted); i++ {
		cur, next := sorted[i], sorted[i+1]

		gapMinutes := next.StartTime.Sub(cur.EndTime()).Minutes()
		gapSlots := int(math.Floor(gapMinutes / timeslot.SlotMinutes))
		if gapSlots < 0 || gapSlots > m.gapToleranceSlots {
			continue
		}

		key := [2]string{cur.ActivityID, next.ActivityID}
		if existing, ok := acc[key]; ok {
			existing.Count++
			existing.LastObservedAt = next.StartTime
			continue
		}
		acc[key] = &MarkovUpdate{
			FromActivityID: cur.ActivityID,
			ToActivityID:   next.ActivityID,
			Count:          1,
			LastObservedAt: next.StartTime,
		}
		order = append(order, key)
	}

	updates := make([]MarkovUpdate, 0, len(order))
	for _, key := range order {
		updates = append(updates, *acc[key])
	}
	return updates, nil
}

// Persist 挖掘并把增量写入仓储
func (m *MarkovMiner) Persist(ctx context.Context, events []CompletedActivityEvent, store MarkovStore) ([]MarkovUpdate, error) {
	updates, err := m.MineCounts(events)
	if err != nil {
		return nil, err
	}
	for _, u := range updates {
		if err := store.Increment(ctx, u.FromActivityID, u.ToActivityID, u.Count, u.LastObservedAt); err != nil {
			return nil, err
		}
	}
	return updates, nil
}
