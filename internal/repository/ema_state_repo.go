package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/yuqie6/TimeLoom/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EmaStateRepository 频次 EMA 状态机仓储
type EmaStateRepository struct {
	db *gorm.DB
}

// NewEmaStateRepository 创建仓储
func NewEmaStateRepository(db *gorm.DB) *EmaStateRepository {
	return &EmaStateRepository{db: db}
}

// Get 获取 (活动, 刻度) 的状态行，不存在返回 nil
func (r *EmaStateRepository) Get(ctx context.Context, activityID, scope string) (*schema.FrequencyEmaState, error) {
	var st schema.FrequencyEmaState
	err := r.db.WithContext(ctx).
		Where("activity_id = ? AND scope = ?", activityID, scope).
		First(&st).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询 EMA 状态失败: %w", err)
	}
	return &st, nil
}

// Upsert 按 (activity_id, scope) 幂等写入状态
func (r *EmaStateRepository) Upsert(ctx context.Context, st *schema.FrequencyEmaState) error {
	st.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "activity_id"},
			{Name: "scope"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"ema_value", "sample_size",
			"open_bucket_key", "open_bucket_count",
			"last_closed_bucket_key", "dirty", "updated_at",
		}),
	}).Create(st).Error
}

// GetAll 获取全部状态行
func (r *EmaStateRepository) GetAll(ctx context.Context) ([]schema.FrequencyEmaState, error) {
	var rows []schema.FrequencyEmaState
	err := r.db.WithContext(ctx).
		Order("activity_id ASC, scope ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询 EMA 状态失败: %w", err)
	}
	return rows, nil
}

// GetDirtyOrStale 获取脏行或更新时间早于 cutoff 的行（周期性校准的工作清单）
func (r *EmaStateRepository) GetDirtyOrStale(ctx context.Context, cutoff time.Time) ([]schema.FrequencyEmaState, error) {
	var rows []schema.FrequencyEmaState
	err := r.db.WithContext(ctx).
		Where("dirty = ? OR updated_at < ?", true, cutoff).
		Order("activity_id ASC, scope ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询待校准 EMA 状态失败: %w", err)
	}
	return rows, nil
}

// MarkDirtyForActivity 将某活动全部刻度的状态标脏（历史被改写时调用）
func (r *EmaStateRepository) MarkDirtyForActivity(ctx context.Context, activityID string) error {
	return r.db.WithContext(ctx).Model(&schema.FrequencyEmaState{}).
		Where("activity_id = ?", activityID).
		Updates(map[string]interface{}{
			"dirty":      true,
			"updated_at": time.Now(),
		}).Error
}

// DeleteForActivity 删除某活动的全部状态行
func (r *EmaStateRepository) DeleteForActivity(ctx context.Context, activityID string) error {
	return r.db.WithContext(ctx).
		Where("activity_id = ?", activityID).
		Delete(&schema.FrequencyEmaState{}).Error
}
