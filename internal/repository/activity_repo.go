package repository

import (
	"context"
	"fmt"

	"github.com/yuqie6/TimeLoom/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ActivityRepository 活动模板仓储
type ActivityRepository struct {
	db *gorm.DB
}

// NewActivityRepository 创建仓储
func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// GetByID 根据 ID 获取活动
func (r *ActivityRepository) GetByID(ctx context.Context, id string) (*schema.Activity, error) {
	var act schema.Activity
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&act).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询活动失败: %w", err)
	}
	return &act, nil
}

// GetAll 获取所有活动
func (r *ActivityRepository) GetAll(ctx context.Context) ([]schema.Activity, error) {
	var acts []schema.Activity
	err := r.db.WithContext(ctx).Order("id ASC").Find(&acts).Error
	if err != nil {
		return nil, fmt.Errorf("查询活动失败: %w", err)
	}
	return acts, nil
}

// Upsert 插入或更新活动
func (r *ActivityRepository) Upsert(ctx context.Context, act *schema.Activity) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(act).Error
}

// Count 统计活动数量
func (r *ActivityRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&schema.Activity{}).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("统计活动失败: %w", err)
	}
	return count, nil
}
