package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/yuqie6/TimeLoom/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BehaviorRepository 行为统计仓储
type BehaviorRepository struct {
	db *gorm.DB
}

// NewBehaviorRepository 创建仓储
func NewBehaviorRepository(db *gorm.DB) *BehaviorRepository {
	return &BehaviorRepository{db: db}
}

// Upsert 按 (activity_id, metric, key_param) 幂等写入一条统计
func (r *BehaviorRepository) Upsert(ctx context.Context, b *schema.UserBehavior) error {
	if b.LastUpdated.IsZero() {
		b.LastUpdated = time.Now()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "activity_id"},
			{Name: "metric"},
			{Name: "key_param"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"category_id", "value", "sample_size", "last_updated"}),
	}).Create(b).Error
}

// UpsertBatch 批量写入（事务中）
func (r *BehaviorRepository) UpsertBatch(ctx context.Context, rows []*schema.UserBehavior) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, b := range rows {
			if b.LastUpdated.IsZero() {
				b.LastUpdated = time.Now()
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "activity_id"},
					{Name: "metric"},
					{Name: "key_param"},
				},
				DoUpdates: clause.AssignmentColumns([]string{"category_id", "value", "sample_size", "last_updated"}),
			}).Create(b).Error; err != nil {
				return fmt.Errorf("批量写入行为统计失败: %w", err)
			}
		}
		return nil
	})
}

// GetByMetric 获取某类统计的全部行
func (r *BehaviorRepository) GetByMetric(ctx context.Context, metric schema.BehaviorMetric) ([]schema.UserBehavior, error) {
	var rows []schema.UserBehavior
	err := r.db.WithContext(ctx).
		Where("metric = ?", metric).
		Order("activity_id ASC, key_param ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询行为统计失败: %w", err)
	}
	return rows, nil
}

// GetForActivity 获取某活动的全部统计
func (r *BehaviorRepository) GetForActivity(ctx context.Context, activityID string) ([]schema.UserBehavior, error) {
	var rows []schema.UserBehavior
	err := r.db.WithContext(ctx).
		Where("activity_id = ?", activityID).
		Order("metric ASC, key_param ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询行为统计失败: %w", err)
	}
	return rows, nil
}

// DeleteForActivity 删除某活动某类统计（重建前清场）
func (r *BehaviorRepository) DeleteForActivity(ctx context.Context, activityID string, metric schema.BehaviorMetric) error {
	return r.db.WithContext(ctx).
		Where("activity_id = ? AND metric = ?", activityID, metric).
		Delete(&schema.UserBehavior{}).Error
}
