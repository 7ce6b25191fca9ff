package mining

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yuqie6/TimeLoom/internal/bucket"
	"github.com/yuqie6/TimeLoom/internal/repository"
	"github.com/yuqie6/TimeLoom/internal/schema"
)

// EMA 平滑系数默认值：刻度越粗，移动越慢
const (
	DefaultDailyAlpha   = 0.25
	DefaultWeeklyAlpha  = 0.20
	DefaultMonthlyAlpha = 0.15
	DefaultStaleAfter   = 24 * time.Hour
)

// EmaStateStore EMA 状态的读写端，repository.EmaStateRepository 满足该接口
type EmaStateStore interface {
	Get(ctx context.Context, activityID, scope string) (*schema.FrequencyEmaState, error)
	Upsert(ctx context.Context, st *schema.FrequencyEmaState) error
	GetDirtyOrStale(ctx context.Context, cutoff time.Time) ([]schema.FrequencyEmaState, error)
}

// BehaviorStore 行为统计的发布端，repository.BehaviorRepository 满足该接口
type BehaviorStore interface {
	Upsert(ctx context.Context, b *schema.UserBehavior) error
}

// BucketCountSource 校准时的历史桶计数快照源，
// repository.HistoryRepository 满足该接口
type BucketCountSource interface {
	DistinctCompletedActivityIDs(ctx context.Context, timezone string) ([]string, error)
	BucketCountsForActivities(ctx context.Context, activityIDs []string, scope bucket.Scope, timezone string) ([]repository.ActivityBucketCount, error)
}

// EmaMiner 频次 EMA 挖掘器。
// 每 (活动, 刻度) 一个状态机：增量摄取逐事件滚动，
// 校准从历史快照整体重放，两者产出一致的 EMA。
type EmaMiner struct {
	dailyAlpha   float64
	weeklyAlpha  float64
	monthlyAlpha float64
	staleAfter   time.Duration
	now          func() time.Time
}

// EmaMinerOptions 挖掘器参数，零值取默认
type EmaMinerOptions struct {
	DailyAlpha   float64
	WeeklyAlpha  float64
	MonthlyAlpha float64
	StaleAfter   time.Duration
	Now          func() time.Time
}

// NewEmaMiner 创建挖掘器
func NewEmaMiner(opts EmaMinerOptions) *EmaMiner {
	m := &EmaMiner{
		dailyAlpha:   opts.DailyAlpha,
		weeklyAlpha:  opts.WeeklyAlpha,
		monthlyAlpha: opts.MonthlyAlpha,
		staleAfter:   opts.StaleAfter,
		now:          opts.Now,
	}
	if m.dailyAlpha <= 0 || m.dailyAlpha > 1 {
		m.dailyAlpha = DefaultDailyAlpha
	}
	if m.weeklyAlpha <= 0 || m.weeklyAlpha > 1 {
		m.weeklyAlpha = DefaultWeeklyAlpha
	}
	if m.monthlyAlpha <= 0 || m.monthlyAlpha > 1 {
		m.monthlyAlpha = DefaultMonthlyAlpha
	}
	if m.staleAfter <= 0 {
		m.staleAfter = DefaultStaleAfter
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

func (m *EmaMiner) alphaFor(scope bucket.Scope) float64 {
	switch scope {
	case bucket.ScopeWeekly:
		return m.weeklyAlpha
	case bucket.ScopeMonthly:
		return m.monthlyAlpha
	default:
		return m.dailyAlpha
	}
}

func periodForScope(scope bucket.Scope) schema.BehaviorPeriod {
	switch scope {
	case bucket.ScopeWeekly:
		return schema.PeriodWeekly
	case bucket.ScopeMonthly:
		return schema.PeriodMonthly
	default:
		return schema.PeriodDaily
	}
}

// emaAccumulator 折叠用的纯内存累加器
type emaAccumulator struct {
	emaValue      float64
	sampleSize    int
	lastClosedKey string
}

// fold 把一个已关闭桶的观测值折入 EMA。
// 首个样本直接以观测值作为 EMA 起点。
func (a *emaAccumulator) fold(observed float64, alpha float64, bucketKey string) {
	if observed < 0 {
		observed = 0
	}
	if a.sampleSize == 0 {
		a.emaValue = observed
		a.sampleSize = 1
		a.lastClosedKey = bucketKey
		return
	}
	a.emaValue = a.emaValue*(1-alpha) + observed*alpha
	a.sampleSize++
	a.lastClosedKey = bucketKey
}

// IngestResult 一次增量摄取各刻度的处理结果
type IngestResult struct {
	UpdatedScopes   int
	PublishedScopes int
	DirtyScopes     int
}

// IngestCompletion 增量摄取一次完成事件。
// 同一活动的调用必须串行：折叠逻辑不是并发安全的读改写。
func (m *EmaMiner) IngestCompletion(ctx context.Context, event CompletedActivityEvent, states EmaStateStore, behaviors BehaviorStore, timeZone string) (IngestResult, error) {
	now := m.now()
	keys := bucket.DeriveKeys(event.StartTime, timeZone)
	var result IngestResult

	for _, scope := range bucket.Scopes {
		incoming := keys.ForScope(scope)
		alpha := m.alphaFor(scope)

		existing, err := states.Get(ctx, event.ActivityID, string(scope))
		if err != nil {
			return result, err
		}
		st := schema.FrequencyEmaState{
			ActivityID: event.ActivityID,
			Scope:      string(scope),
		}
		if existing != nil {
			st = *existing
		}
		st.UpdatedAt = now

		// 脏状态只维护开放桶计数，EMA 等待校准
		if st.Dirty {
			if st.OpenBucketKey == incoming {
				st.OpenBucketCount++
			} else if newer, cmpErr := isNewerBucket(scope, incoming, st.OpenBucketKey); cmpErr != nil {
				return result, cmpErr
			} else if newer {
				st.OpenBucketKey = incoming
				st.OpenBucketCount = 1
			}
			if err := states.Upsert(ctx, &st); err != nil {
				return result, err
			}
			result.UpdatedScopes++
			result.DirtyScopes++
			continue
		}

		// 尚无开放桶：直接开桶
		if st.OpenBucketKey == "" {
			st.OpenBucketKey = incoming
			st.OpenBucketCount = 1
			if err := states.Upsert(ctx, &st); err != nil {
				return result, err
			}
			result.UpdatedScopes++
			continue
		}

		cmp, err := bucket.Compare(scope, incoming, st.OpenBucketKey)
		if err != nil {
			return result, err
		}

		// 乱序到达：折叠会破坏顺序，标脏等待校准
		if cmp < 0 {
			st.Dirty = true
			if err := states.Upsert(ctx, &st); err != nil {
				return result, err
			}
			result.UpdatedScopes++
			result.DirtyScopes++
			continue
		}

		// 命中开放桶：累加计数
		if cmp == 0 {
			st.OpenBucketCount++
			if err := states.Upsert(ctx, &st); err != nil {
				return result, err
			}
			result.UpdatedScopes++
			continue
		}

		// 更新的桶：关闭旧桶折入 EMA，空档桶以 0 观测补折，再开新桶
		acc := emaAccumulator{
			emaValue:      st.EmaValue,
			sampleSize:    st.SampleSize,
			lastClosedKey: st.LastClosedBucketKey,
		}
		acc.fold(float64(st.OpenBucketCount), alpha, st.OpenBucketKey)
		cursor, err := bucket.Next(scope, st.OpenBucketKey)
		if err != nil {
			return result, err
		}
		for {
			c, err := bucket.Compare(scope, cursor, incoming)
			if err != nil {
				return result, err
			}
			if c >= 0 {
				break
			}
			acc.fold(0, alpha, cursor)
			cursor, err = bucket.Next(scope, cursor)
			if err != nil {
				return result, err
			}
		}

		st.EmaValue = acc.emaValue
		st.SampleSize = acc.sampleSize
		st.LastClosedBucketKey = acc.lastClosedKey
		st.OpenBucketKey = incoming
		st.OpenBucketCount = 1
		if err := states.Upsert(ctx, &st); err != nil {
			return result, err
		}
		if err := behaviors.Upsert(ctx, &schema.UserBehavior{
			ActivityID:  event.ActivityID,
			Metric:      schema.MetricObservedFrequency,
			KeyParam:    string(periodForScope(scope)),
			Value:       acc.emaValue,
			SampleSize:  acc.sampleSize,
			LastUpdated: now,
		}); err != nil {
			return result, err
		}
		result.UpdatedScopes++
		result.PublishedScopes++
	}

	return result, nil
}

// ReconcileInput 一次校准的输入
type ReconcileInput struct {
	States          EmaStateStore
	Behaviors       BehaviorStore
	History         BucketCountSource
	TimeZone        string
	StaleActivities []string
}

// ReconcileResult 校准统计
type ReconcileResult struct {
	Activities      int
	RebuiltScopes   int
	PublishedScopes int
}

// Reconcile 全量重建脏或过期的 EMA 状态：
// 从历史桶计数快照按刻度重放折叠，产出与无故障增量摄取一致的结果，
// 当前桶成为新的开放桶，脏标记清除。
func (m *EmaMiner) Reconcile(ctx context.Context, input ReconcileInput) (ReconcileResult, error) {
	now := m.now()
	cutoff := now.Add(-m.staleAfter)

	dirtyOrStale, err := input.States.GetDirtyOrStale(ctx, cutoff)
	if err != nil {
		return ReconcileResult{}, err
	}

	idSet := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := idSet[id]; !ok {
			idSet[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, id := range input.StaleActivities {
		add(id)
	}
	for _, row := range dirtyOrStale {
		add(row.ActivityID)
	}
	if len(input.StaleActivities) == 0 {
		bootstrap, err := input.History.DistinctCompletedActivityIDs(ctx, input.TimeZone)
		if err != nil {
			return ReconcileResult{}, err
		}
		for _, id := range bootstrap {
			add(id)
		}
	}

	if len(ids) == 0 {
		return ReconcileResult{}, nil
	}

	result := ReconcileResult{Activities: len(ids)}
	nowKeys := bucket.DeriveKeys(now, input.TimeZone)

	for _, scope := range bucket.Scopes {
		rows, err := input.History.BucketCountsForActivities(ctx, ids, scope, input.TimeZone)
		if err != nil {
			return ReconcileResult{}, err
		}
		byActivity := make(map[string][]repository.ActivityBucketCount)
		for _, row := range rows {
			byActivity[row.ActivityID] = append(byActivity[row.ActivityID], row)
		}

		currentOpen := nowKeys.ForScope(scope)
		alpha := m.alphaFor(scope)

		for _, activityID := range ids {
			ordered := byActivity[activityID] // 仓储已按桶键升序返回
			var acc emaAccumulator
			openCount := 0
			prevClosed := ""

			for _, row := range ordered {
				cmp, err := bucket.Compare(scope, row.BucketKey, currentOpen)
				if err != nil {
					slog.Warn("桶键非法，跳过", "activity", activityID, "bucket", row.BucketKey, "error", err)
					continue
				}
				if cmp > 0 {
					continue // 未来桶不参与
				}
				if cmp == 0 {
					openCount = row.Count
					continue
				}

				if prevClosed != "" {
					if err := m.fillGaps(scope, prevClosed, row.BucketKey, alpha, &acc); err != nil {
						return ReconcileResult{}, err
					}
				}
				acc.fold(float64(row.Count), alpha, row.BucketKey)
				prevClosed = row.BucketKey
			}

			// 末段空档一直补到当前开放桶之前
			if prevClosed != "" {
				if err := m.fillGaps(scope, prevClosed, currentOpen, alpha, &acc); err != nil {
					return ReconcileResult{}, err
				}
			}

			st := schema.FrequencyEmaState{
				ActivityID:          activityID,
				Scope:               string(scope),
				EmaValue:            acc.emaValue,
				SampleSize:          acc.sampleSize,
				OpenBucketKey:       currentOpen,
				OpenBucketCount:     openCount,
				LastClosedBucketKey: acc.lastClosedKey,
				Dirty:               false,
				UpdatedAt:           now,
			}
			if err := input.States.Upsert(ctx, &st); err != nil {
				return ReconcileResult{}, err
			}
			if err := input.Behaviors.Upsert(ctx, &schema.UserBehavior{
				ActivityID:  activityID,
				Metric:      schema.MetricObservedFrequency,
				KeyParam:    string(periodForScope(scope)),
				Value:       acc.emaValue,
				SampleSize:  acc.sampleSize,
				LastUpdated: now,
			}); err != nil {
				return ReconcileResult{}, err
			}
			result.RebuiltScopes++
			result.PublishedScopes++
		}
	}

	return result, nil
}

// fillGaps 为 (from, to) 之间的每个空档桶折入 0 观测
func (m *EmaMiner) fillGaps(scope bucket.Scope, from, to string, alpha float64, acc *emaAccumulator) error {
	cursor, err := bucket.Next(scope, from)
	if err != nil {
		return err
	}
	for {
		cmp, err := bucket.Compare(scope, cursor, to)
		if err != nil {
			return err
		}
		if cmp >= 0 {
			return nil
		}
		acc.fold(0, alpha, cursor)
		cursor, err = bucket.Next(scope, cursor)
		if err != nil {
			return err
		}
	}
}

func isNewerBucket(scope bucket.Scope, candidate, reference string) (bool, error) {
	if reference == "" {
		return true, nil
	}
	cmp, err := bucket.Compare(scope, candidate, reference)
	if err != nil {
		return false, fmt.Errorf("比较桶键失败: %w", err)
	}
	return cmp > 0, nil
}
