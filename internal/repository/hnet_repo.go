package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/yuqie6/TimeLoom/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HNetRepository 启发式网（依赖弧 + 共现对）计数仓储
type HNetRepository struct {
	db *gorm.DB
}

// NewHNetRepository 创建仓储
func NewHNetRepository(db *gorm.DB) *HNetRepository {
	return &HNetRepository{db: db}
}

// IncrementArc 累加一条依赖弧计数
func (r *HNetRepository) IncrementArc(ctx context.Context, pred, succ string, scope schema.TimeScope, weekdayMask, delta int, observedAt time.Time) error {
	row := schema.HNetArcCount{
		PredecessorActivityID: pred,
		SuccessorActivityID:   succ,
		TimeScope:             scope,
		WeekdayMask:           weekdayMask,
		Count:                 delta,
		LastObservedAt:        observedAt,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "predecessor_activity_id"},
			{Name: "successor_activity_id"},
			{Name: "time_scope"},
			{Name: "weekday_mask"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count":            gorm.Expr("count + ?", delta),
			"last_observed_at": observedAt,
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("累加依赖弧计数失败: %w", err)
	}
	return nil
}

// IncrementPair 累加一条共现对计数。first/second 会先归一为字典序。
func (r *HNetRepository) IncrementPair(ctx context.Context, anchor, first, second string, pairType schema.HNetPairType, scope schema.TimeScope, weekdayMask, coDelta, sampleDelta int, observedAt time.Time) error {
	first, second = schema.SortPair(first, second)
	row := schema.HNetPairCount{
		AnchorActivityID:  anchor,
		FirstActivityID:   first,
		SecondActivityID:  second,
		PairType:          pairType,
		TimeScope:         scope,
		WeekdayMask:       weekdayMask,
		CoOccurrenceCount: coDelta,
		AnchorSampleSize:  sampleDelta,
		LastObservedAt:    observedAt,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "anchor_activity_id"},
			{Name: "first_activity_id"},
			{Name: "second_activity_id"},
			{Name: "pair_type"},
			{Name: "time_scope"},
			{Name: "weekday_mask"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"co_occurrence_count": gorm.Expr("co_occurrence_count + ?", coDelta),
			"anchor_sample_size":  gorm.Expr("anchor_sample_size + ?", sampleDelta),
			"last_observed_at":    observedAt,
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("累加共现对计数失败: %w", err)
	}
	return nil
}

// GetArcs 获取全部依赖弧计数
func (r *HNetRepository) GetArcs(ctx context.Context) ([]schema.HNetArcCount, error) {
	var rows []schema.HNetArcCount
	err := r.db.WithContext(ctx).
		Order("predecessor_activity_id ASC, successor_activity_id ASC, time_scope ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询依赖弧计数失败: %w", err)
	}
	return rows, nil
}

// GetPairs 获取全部共现对计数
func (r *HNetRepository) GetPairs(ctx context.Context) ([]schema.HNetPairCount, error) {
	var rows []schema.HNetPairCount
	err := r.db.WithContext(ctx).
		Order("anchor_activity_id ASC, first_activity_id ASC, second_activity_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询共现对计数失败: %w", err)
	}
	return rows, nil
}

// GetPairsForAnchor 获取某锚点活动的共现对计数
func (r *HNetRepository) GetPairsForAnchor(ctx context.Context, anchor string) ([]schema.HNetPairCount, error) {
	var rows []schema.HNetPairCount
	err := r.db.WithContext(ctx).
		Where("anchor_activity_id = ?", anchor).
		Order("first_activity_id ASC, second_activity_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询共现对计数失败: %w", err)
	}
	return rows, nil
}

// Reset 清空全部弧与对计数（全量重建前调用）
func (r *HNetRepository) Reset(ctx context.Context) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&schema.HNetArcCount{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&schema.HNetPairCount{}).Error
	})
}
