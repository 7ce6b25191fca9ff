package mining

import (
	"context"
	"sort"
	"time"

	"github.com/yuqie6/TimeLoom/internal/bucket"
	"github.com/yuqie6/TimeLoom/internal/schema"
	"github.com/yuqie6/TimeLoom/internal/timeslot"
)

// DefaultHNetWindow 单桶内回看/前瞻窗口的事件数上限，
// 防止单个巨桶把成本推到平方级
const DefaultHNetWindow = 256

// HNetStore 启发式网计数的写端，repository.HNetRepository 满足该接口
type HNetStore interface {
	IncrementArc(ctx context.Context, pred, succ string, scope schema.TimeScope, weekdayMask, delta int, observedAt time.Time) error
	IncrementPair(ctx context.Context, anchor, first, second string, pairType schema.HNetPairType, scope schema.TimeScope, weekdayMask, coDelta, sampleDelta int, observedAt time.Time) error
}

// HNetMiner 启发式网挖掘器：三个日历刻度下的依赖弧与共现对计数。
// 桶键按 UTC 日历切分。
type HNetMiner struct {
	window int
}

// NewHNetMiner 创建挖掘器，window <= 0 时取默认值
func NewHNetMiner(window int) *HNetMiner {
	if window <= 0 {
		window = DefaultHNetWindow
	}
	return &HNetMiner{window: window}
}

type enrichedEvent struct {
	CompletedActivityEvent
	weekdayMask int
	keys        bucket.Keys
}

type arcKey struct {
	pred  string
	succ  string
	scope schema.TimeScope
	mask  int
}

type pairKey struct {
	anchor string
	first  string
	second string
	typ    schema.HNetPairType
	scope  schema.TimeScope
	mask   int
}

type hnetAccumulator struct {
	arcs      map[arcKey]*ArcUpdate
	arcOrder  []arcKey
	pairs     map[pairKey]*PairUpdate
	pairOrder []pairKey
}

// MineCounts 纯计算：返回批次产生的弧/对计数增量，不触库
func (m *HNetMiner) MineCounts(events []CompletedActivityEvent) (HeuristicBatch, error) {
	if err := AssertBatch(events, "HNetMiner.events"); err != nil {
		return HeuristicBatch{}, err
	}

	sorted := make([]enrichedEvent, 0, len(events))
	for _, e := range events {
		mask, _ := timeslot.WeekdayToMask(timeslot.MondayIndex(e.StartTime.UTC()))
		sorted = append(sorted, enrichedEvent{
			CompletedActivityEvent: e,
			weekdayMask:            mask,
			keys:                   bucket.DeriveKeys(e.StartTime, "UTC"),
		})
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime.Before(sorted[j].StartTime)
	})

	acc := &hnetAccumulator{
		arcs:  make(map[arcKey]*ArcUpdate),
		pairs: make(map[pairKey]*PairUpdate),
	}

	for _, scope := range bucket.Scopes {
		m.mineScope(sorted, scope, acc)
	}

	batch := HeuristicBatch{
		Arcs:  make([]ArcUpdate, 0, len(acc.arcOrder)),
		Pairs: make([]PairUpdate, 0, len(acc.pairOrder)),
	}
	for _, k := range acc.arcOrder {
		batch.Arcs = append(batch.Arcs, *acc.arcs[k])
	}
	for _, k := range acc.pairOrder {
		batch.Pairs = append(batch.Pairs, *acc.pairs[k])
	}
	return batch, nil
}

// Persist 挖掘并把增量写入仓储
func (m *HNetMiner) Persist(ctx context.Context, events []CompletedActivityEvent, store HNetStore) (HeuristicBatch, error) {
	batch, err := m.MineCounts(events)
	if err != nil {
		return HeuristicBatch{}, err
	}
	for _, arc := range batch.Arcs {
		if err := store.IncrementArc(ctx, arc.PredecessorActivityID, arc.SuccessorActivityID, arc.TimeScope, arc.WeekdayMask, arc.Count, arc.LastObservedAt); err != nil {
			return HeuristicBatch{}, err
		}
	}
	for _, pair := range batch.Pairs {
		if err := store.IncrementPair(ctx, pair.AnchorActivityID, pair.FirstActivityID, pair.SecondActivityID, pair.PairType, pair.TimeScope, pair.WeekdayMask, pair.CoOccurrenceCount, pair.AnchorSampleSize, pair.LastObservedAt); err != nil {
			return HeuristicBatch{}, err
		}
	}
	return batch, nil
}

func scopeToTimeScope(scope bucket.Scope) schema.TimeScope {
	switch scope {
	case bucket.ScopeWeekly:
		return schema.ScopeSameWeek
	case bucket.ScopeMonthly:
		return schema.ScopeSameMonth
	default:
		return schema.ScopeSameDay
	}
}

func (m *HNetMiner) mineScope(events []enrichedEvent, scope bucket.Scope, acc *hnetAccumulator) {
	buckets := make(map[string][]enrichedEvent)
	var order []string
	for _, e := range events {
		key := e.keys.ForScope(scope)
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], e)
	}

	timeScope := scopeToTimeScope(scope)
	for _, key := range order {
		m.mineBucket(buckets[key], timeScope, acc)
	}
}

func (m *HNetMiner) mineBucket(events []enrichedEvent, timeScope schema.TimeScope, acc *hnetAccumulator) {
	// 回看窗口：每个前驱事件都对目标贡献一条弧，前驱集合内的无序对
	// 记为锚定在目标上的 PREDECESSOR_PAIR
	for targetIdx, target := range events {
		cutoff := targetIdx - m.window
		if cutoff < 0 {
			cutoff = 0
		}

		predSet := make(map[string]struct{})
		var predOrder []string
		for i := cutoff; i < targetIdx; i++ {
			pred := events[i]
			if _, seen := predSet[pred.ActivityID]; !seen {
				predSet[pred.ActivityID] = struct{}{}
				predOrder = append(predOrder, pred.ActivityID)
			}
			acc.addArc(pred.ActivityID, target.ActivityID, timeScope, target.weekdayMask, target.StartTime)
		}

		for i := 0; i < len(predOrder); i++ {
			for j := i + 1; j < len(predOrder); j++ {
				acc.addPair(target.ActivityID, predOrder[i], predOrder[j], schema.PairPredecessor, timeScope, target.weekdayMask, target.StartTime)
			}
		}
	}

	// 前瞻窗口：后继集合内的无序对记为锚定在源上的 SUCCESSOR_PAIR
	for sourceIdx, source := range events {
		end := sourceIdx + m.window
		if end > len(events) {
			end = len(events)
		}

		succSet := make(map[string]struct{})
		var succOrder []string
		for i := sourceIdx + 1; i < end; i++ {
			succ := events[i]
			if _, seen := succSet[succ.ActivityID]; !seen {
				succSet[succ.ActivityID] = struct{}{}
				succOrder = append(succOrder, succ.ActivityID)
			}
		}

		for i := 0; i < len(succOrder); i++ {
			for j := i + 1; j < len(succOrder); j++ {
				acc.addPair(source.ActivityID, succOrder[i], succOrder[j], schema.PairSuccessor, timeScope, source.weekdayMask, source.StartTime)
			}
		}
	}
}

func (a *hnetAccumulator) addArc(pred, succ string, scope schema.TimeScope, mask int, observedAt time.Time) {
	key := arcKey{pred: pred, succ: succ, scope: scope, mask: mask}
	if existing, ok := a.arcs[key]; ok {
		existing.Count++
		existing.LastObservedAt = observedAt
		return
	}
	a.arcs[key] = &ArcUpdate{
		PredecessorActivityID: pred,
		SuccessorActivityID:   succ,
		TimeScope:             scope,
		WeekdayMask:           mask,
		Count:                 1,
		LastObservedAt:        observedAt,
	}
	a.arcOrder = append(a.arcOrder, key)
}

func (a *hnetAccumulator) addPair(anchor, first, second string, typ schema.HNetPairType, scope schema.TimeScope, mask int, observedAt time.Time) {
	first, second = schema.SortPair(first, second)
	key := pairKey{anchor: anchor, first: first, second: second, typ: typ, scope: scope, mask: mask}
	if existing, ok := a.pairs[key]; ok {
		existing.CoOccurrenceCount++
		existing.AnchorSampleSize++
		existing.LastObservedAt = observedAt
		return
	}
	a.pairs[key] = &PairUpdate{
		AnchorActivityID:  anchor,
		FirstActivityID:   first,
		SecondActivityID:  second,
		PairType:          typ,
		TimeScope:         scope,
		WeekdayMask:       mask,
		CoOccurrenceCount: 1,
		AnchorSampleSize:  1,
		LastObservedAt:    observedAt,
	}
	a.pairOrder = append(a.pairOrder, key)
}
