package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/yuqie6/TimeLoom/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MarkovRepository 马尔可夫转移计数仓储
type MarkovRepository struct {
	db *gorm.DB
}

// NewMarkovRepository 创建仓储
func NewMarkovRepository(db *gorm.DB) *MarkovRepository {
	return &MarkovRepository{db: db}
}

// Increment 累加一条 (from, to) 转移计数
func (r *MarkovRepository) Increment(ctx context.Context, from, to string, delta int, observedAt time.Time) error {
	row := schema.MarkovTransitionCount{
		FromActivityID: from,
		ToActivityID:   to,
		Count:          delta,
		LastObservedAt: observedAt,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "from_activity_id"},
			{Name: "to_activity_id"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count":            gorm.Expr("count + ?", delta),
			"last_observed_at": observedAt,
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("累加转移计数失败: %w", err)
	}
	return nil
}

// GetAll 获取全部转移计数
func (r *MarkovRepository) GetAll(ctx context.Context) ([]schema.MarkovTransitionCount, error) {
	var rows []schema.MarkovTransitionCount
	err := r.db.WithContext(ctx).
		Order("from_activity_id ASC, to_activity_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询转移计数失败: %w", err)
	}
	return rows, nil
}

// GetFrom 获取某活动出边的全部转移计数
func (r *MarkovRepository) GetFrom(ctx context.Context, from string) ([]schema.MarkovTransitionCount, error) {
	var rows []schema.MarkovTransitionCount
	err := r.db.WithContext(ctx).
		Where("from_activity_id = ?", from).
		Order("to_activity_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询转移计数失败: %w", err)
	}
	return rows, nil
}

// Reset 清空全部转移计数（全量重建前调用）
func (r *MarkovRepository) Reset(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Where("1 = 1").
		Delete(&schema.MarkovTransitionCount{}).Error
}
