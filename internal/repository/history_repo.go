package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yuqie6/TimeLoom/internal/bucket"
	"github.com/yuqie6/TimeLoom/internal/schema"
	"gorm.io/gorm"
)

// HistoryRepository 活动完成历史仓储
type HistoryRepository struct {
	db *gorm.DB
}

// NewHistoryRepository 创建仓储
func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Append 追加一条历史记录，ID 为空时自动生成
func (r *HistoryRepository) Append(ctx context.Context, h *schema.ActivityHistory) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(h).Error; err != nil {
		return fmt.Errorf("写入历史失败: %w", err)
	}
	return nil
}

// GetCompleted 按实际开始时间升序获取全部已完成记录（重放挖掘的输入）
func (r *HistoryRepository) GetCompleted(ctx context.Context) ([]schema.ActivityHistory, error) {
	var rows []schema.ActivityHistory
	err := r.db.WithContext(ctx).
		Where("was_completed = ? AND actual_start_time IS NOT NULL", true).
		Order("actual_start_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询历史失败: %w", err)
	}
	return rows, nil
}

// GetCompletedForActivity 获取某活动的已完成记录
func (r *HistoryRepository) GetCompletedForActivity(ctx context.Context, activityID string) ([]schema.ActivityHistory, error) {
	var rows []schema.ActivityHistory
	err := r.db.WithContext(ctx).
		Where("activity_id = ? AND was_completed = ? AND actual_start_time IS NOT NULL", activityID, true).
		Order("actual_start_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询历史失败: %w", err)
	}
	return rows, nil
}

// DistinctCompletedActivityIDs 获取在给定时区下出现过已完成记录的活动 ID 集合
func (r *HistoryRepository) DistinctCompletedActivityIDs(ctx context.Context, timezone string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&schema.ActivityHistory{}).
		Where("was_completed = ? AND actual_start_time IS NOT NULL AND bucket_timezone = ?", true, timezone).
		Distinct("activity_id").
		Order("activity_id ASC").
		Pluck("activity_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("查询活动集合失败: %w", err)
	}
	return ids, nil
}

func bucketColumn(scope bucket.Scope) (string, error) {
	switch scope {
	case bucket.ScopeDaily:
		return "local_day_bucket", nil
	case bucket.ScopeWeekly:
		return "local_week_bucket", nil
	case bucket.ScopeMonthly:
		return "local_month_bucket", nil
	default:
		return "", fmt.Errorf("未知刻度: %s", scope)
	}
}

// BucketCount 单个本地桶的完成次数
type BucketCount struct {
	BucketKey string
	Count     int
}

// BucketCounts 按本地桶聚合某活动的完成次数。
// 只统计用同一时区写入的行，避免混合时区的桶键互相污染。
func (r *HistoryRepository) BucketCounts(ctx context.Context, activityID string, scope bucket.Scope, timezone string) ([]BucketCount, error) {
	col, err := bucketColumn(scope)
	if err != nil {
		return nil, err
	}

	var rows []BucketCount
	err = r.db.WithContext(ctx).Model(&schema.ActivityHistory{}).
		Select(col+" AS bucket_key, COUNT(*) AS count").
		Where("activity_id = ? AND was_completed = ? AND bucket_timezone = ?", activityID, true, timezone).
		Group(col).
		Order("bucket_key ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("聚合桶计数失败: %w", err)
	}
	return rows, nil
}

// ActivityBucketCount 某活动在某本地桶内的完成次数
type ActivityBucketCount struct {
	ActivityID string
	BucketKey  string
	Count      int
}

// BucketCountsForActivities 一次查询多个活动的桶计数（校准时的输入快照）。
// activityIDs 为空表示不限活动。
func (r *HistoryRepository) BucketCountsForActivities(ctx context.Context, activityIDs []string, scope bucket.Scope, timezone string) ([]ActivityBucketCount, error) {
	col, err := bucketColumn(scope)
	if err != nil {
		return nil, err
	}

	q := r.db.WithContext(ctx).Model(&schema.ActivityHistory{}).
		Select("activity_id, "+col+" AS bucket_key, COUNT(*) AS count").
		Where("was_completed = ? AND actual_start_time IS NOT NULL AND "+col+" <> '' AND bucket_timezone = ?", true, timezone)
	if len(activityIDs) > 0 {
		q = q.Where("activity_id IN ?", activityIDs)
	}

	var rows []ActivityBucketCount
	err = q.Group("activity_id").Group(col).
		Order("activity_id ASC, bucket_key ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("聚合桶计数失败: %w", err)
	}
	return rows, nil
}

// CountCompleted 统计已完成记录总数
func (r *HistoryRepository) CountCompleted(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&schema.ActivityHistory{}).
		Where("was_completed = ?", true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("统计历史失败: %w", err)
	}
	return count, nil
}

// GetByTimeRange 按实际开始时间范围查询已完成记录
func (r *HistoryRepository) GetByTimeRange(ctx context.Context, start, end time.Time) ([]schema.ActivityHistory, error) {
	var rows []schema.ActivityHistory
	err := r.db.WithContext(ctx).
		Where("was_completed = ? AND actual_start_time >= ? AND actual_start_time < ?", true, start, end).
		Order("actual_start_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询历史失败: %w", err)
	}
	return rows, nil
}
