package mining

import (
	"context"
	"time"

	"github.com/yuqie6/TimeLoom/internal/bucket"
	"github.com/yuqie6/TimeLoom/internal/repository"
	"github.com/yuqie6/TimeLoom/internal/schema"
)

// RecordCompletionInput 一次活动完成的写入参数
type RecordCompletionInput struct {
	ActivityID         string
	PredictedStartTime time.Time
	PredictedDuration  float64
	ActualStartTime    time.Time
	ActualDuration     float64
	Notes              string
	TimeZone           string
	WasSkipped         bool
	WasReplaced        bool
}

// HistoryWriter 完成历史的写入服务：落一行历史（带预先算好的本地桶键），
// 再做一次增量 EMA 摄取
type HistoryWriter struct {
	miner     *EmaMiner
	history   *repository.HistoryRepository
	states    *repository.EmaStateRepository
	behaviors *repository.BehaviorRepository
}

// NewHistoryWriter 创建写入服务
func NewHistoryWriter(miner *EmaMiner, history *repository.HistoryRepository, states *repository.EmaStateRepository, behaviors *repository.BehaviorRepository) *HistoryWriter {
	if miner == nil {
		miner = NewEmaMiner(EmaMinerOptions{})
	}
	return &HistoryWriter{
		miner:     miner,
		history:   history,
		states:    states,
		behaviors: behaviors,
	}
}

// RecordCompletion 写入一条完成记录并摄取进 EMA 状态机，返回历史行 ID
func (w *HistoryWriter) RecordCompletion(ctx context.Context, input RecordCompletionInput) (string, error) {
	keys := bucket.DeriveKeys(input.ActualStartTime, input.TimeZone)
	actualStart := input.ActualStartTime
	actualDuration := input.ActualDuration

	row := schema.ActivityHistory{
		ActivityID:         input.ActivityID,
		PredictedStartTime: input.PredictedStartTime,
		PredictedDuration:  input.PredictedDuration,
		ActualStartTime:    &actualStart,
		ActualDuration:     &actualDuration,
		LocalDayBucket:     keys.Day,
		LocalWeekBucket:    keys.Week,
		LocalMonthBucket:   keys.Month,
		BucketTimezone:     keys.TimeZone,
		WasCompleted:       true,
		WasSkipped:         input.WasSkipped,
		WasReplaced:        input.WasReplaced,
		Notes:              input.Notes,
	}
	if err := w.history.Append(ctx, &row); err != nil {
		return "", err
	}

	event := CompletedActivityEvent{
		ActivityID:      input.ActivityID,
		StartTime:       input.ActualStartTime,
		DurationMinutes: input.ActualDuration,
	}
	if _, err := w.miner.IngestCompletion(ctx, event, w.states, w.behaviors, keys.TimeZone); err != nil {
		return "", err
	}

	return row.ID, nil
}

// MarkActivityDirty 历史被改写后标脏，等待下一次校准
func (w *HistoryWriter) MarkActivityDirty(ctx context.Context, activityID string) error {
	return w.states.MarkDirtyForActivity(ctx, activityID)
}

// ReconcileLearnedFrequency 对脏或过期的 EMA 状态做一次校准
func (w *HistoryWriter) ReconcileLearnedFrequency(ctx context.Context, timeZone string, staleActivities []string) (ReconcileResult, error) {
	return w.miner.Reconcile(ctx, ReconcileInput{
		States:          w.states,
		Behaviors:       w.behaviors,
		History:         w.history,
		TimeZone:        timeZone,
		StaleActivities: staleActivities,
	})
}
