package repository

import (
	"context"
	"fmt"

	"github.com/yuqie6/TimeLoom/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConstraintRepository 声明式约束仓储
type ConstraintRepository struct {
	db *gorm.DB
}

// NewConstraintRepository 创建仓储
func NewConstraintRepository(db *gorm.DB) *ConstraintRepository {
	return &ConstraintRepository{db: db}
}

// GetActive 获取所有启用中的约束
func (r *ConstraintRepository) GetActive(ctx context.Context) ([]schema.Constraint, error) {
	var cs []schema.Constraint
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at ASC").
		Find(&cs).Error
	if err != nil {
		return nil, fmt.Errorf("查询约束失败: %w", err)
	}
	return cs, nil
}

// GetByType 按类型获取启用中的约束
func (r *ConstraintRepository) GetByType(ctx context.Context, typ schema.ConstraintType) ([]schema.Constraint, error) {
	var cs []schema.Constraint
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND type = ?", true, typ).
		Order("created_at ASC").
		Find(&cs).Error
	if err != nil {
		return nil, fmt.Errorf("查询约束失败: %w", err)
	}
	return cs, nil
}

// Upsert 插入或更新约束
func (r *ConstraintRepository) Upsert(ctx context.Context, c *schema.Constraint) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(c).Error
}

// SetActive 启用/停用约束
func (r *ConstraintRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.db.WithContext(ctx).Model(&schema.Constraint{}).
		Where("id = ?", id).
		Update("is_active", active).Error
}
