package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yuqie6/TimeLoom/internal/schema"
	"github.com/yuqie6/TimeLoom/internal/timeslot"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventRepository 日程事件仓储
type EventRepository struct {
	db *gorm.DB
}

// NewEventRepository 创建事件仓储
func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create 创建单个事件
func (r *EventRepository) Create(ctx context.Context, event *schema.ScheduledEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// BatchInsert 批量插入事件（事务包裹）
func (r *EventRepository) BatchInsert(ctx context.Context, events []schema.ScheduledEvent) error {
	if len(events) == 0 {
		return nil
	}

	start := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(events, 100).Error
	})

	if err != nil {
		slog.Error("批量插入事件失败", "count", len(events), "error", err)
		return fmt.Errorf("批量插入事件失败: %w", err)
	}

	slog.Debug("批量插入事件成功", "count", len(events), "duration", time.Since(start))
	return nil
}

// GetByID 根据 ID 获取事件
func (r *EventRepository) GetByID(ctx context.Context, id string) (*schema.ScheduledEvent, error) {
	var event schema.ScheduledEvent
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询事件失败: %w", err)
	}
	return &event, nil
}

// GetByTimeRange 按时间范围查询事件（半开区间 [start, end)）
func (r *EventRepository) GetByTimeRange(ctx context.Context, start, end time.Time) ([]schema.ScheduledEvent, error) {
	var events []schema.ScheduledEvent
	err := r.db.WithContext(ctx).
		Where("start_time >= ? AND start_time < ?", start, end).
		Order("start_time ASC").
		Find(&events).Error

	if err != nil {
		return nil, fmt.Errorf("查询事件失败: %w", err)
	}

	return events, nil
}

// GetInHorizon 查询排期窗口内的事件。窗口从 horizonStart 起共 totalSlots 个槽位。
func (r *EventRepository) GetInHorizon(ctx context.Context, horizonStart time.Time, totalSlots int) ([]schema.ScheduledEvent, error) {
	end := horizonStart.Add(time.Duration(totalSlots) * timeslot.SlotMinutes * time.Minute)
	return r.GetByTimeRange(ctx, horizonStart, end)
}

// Upsert 插入或更新事件
func (r *EventRepository) Upsert(ctx context.Context, event *schema.ScheduledEvent) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(event).Error
}

// UpdateTimes 将求解结果写回事件的起止时间
func (r *EventRepository) UpdateTimes(ctx context.Context, id string, start, end time.Time) error {
	res := r.db.WithContext(ctx).Model(&schema.ScheduledEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"start_time": start,
			"end_time":   end,
			"duration":   end.Sub(start).Minutes(),
		})
	if res.Error != nil {
		return fmt.Errorf("更新事件时间失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		slog.Warn("求解结果指向不存在的事件", "event_id", id)
	}
	return nil
}

// UpdateStatus 更新事件状态
func (r *EventRepository) UpdateStatus(ctx context.Context, id string, status schema.EventStatus) error {
	return r.db.WithContext(ctx).Model(&schema.ScheduledEvent{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// Count 统计事件数量
func (r *EventRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&schema.ScheduledEvent{}).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("统计事件失败: %w", err)
	}
	return count, nil
}
