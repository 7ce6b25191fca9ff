package schema

import "time"

// Activity 活动模板
// 数据量级：百级
type Activity struct {
	ID              string    `gorm:"primaryKey;size:36"`
	CategoryID      string    `gorm:"size:36;index"` // 所属分类
	Name            string    `gorm:"size:255"`
	Priority        int       `gorm:"default:0"`  // 基础优先级
	DefaultDuration float64   `gorm:"default:30"` // 默认时长（分钟）
	IsReplaceable   bool      `gorm:"default:true"`
	Color           string    `gorm:"size:20"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
}

// TableName 指定表名
func (Activity) TableName() string {
	return "activities"
}

// Replaceability 日程事件的可替换级别
type Replaceability string

const (
	ReplaceabilityHard Replaceability = "HARD" // 不可被求解器移动
	ReplaceabilitySoft Replaceability = "SOFT"
)

// EventStatus 日程事件状态
type EventStatus string

const (
	EventStatusPredicted EventStatus = "PREDICTED"
	EventStatusConfirmed EventStatus = "CONFIRMED"
	EventStatusCompleted EventStatus = "COMPLETED"
	EventStatusSkipped   EventStatus = "SKIPPED"
	EventStatusReplaced  EventStatus = "REPLACED"
)

// ScheduledEvent 日历上的一次日程实例
// 数据量级：千级/年
type ScheduledEvent struct {
	ID                   string         `gorm:"primaryKey;size:36"`
	ActivityID           string         `gorm:"size:36;index"` // 关联的活动模板，可为空
	CategoryID           string         `gorm:"size:36;index"`
	Title                string         `gorm:"size:255"`
	StartTime            time.Time      `gorm:"index"`
	EndTime              time.Time      `gorm:"index"`
	Duration             float64        `gorm:"default:0"` // 分钟
	Status               EventStatus    `gorm:"size:20"`
	ReplaceabilityStatus Replaceability `gorm:"size:10"`
	Priority             int            `gorm:"default:0"`
	IsLocked             bool           `gorm:"default:false"` // 锁定后对求解器固定
	CreatedAt            time.Time      `gorm:"autoCreateTime"`
	UpdatedAt            time.Time      `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (ScheduledEvent) TableName() string {
	return "scheduled_events"
}

// IsFixed 求解器视角：锁定或硬可替换的事件是固定时间锚点
func (e ScheduledEvent) IsFixed() bool {
	return e.IsLocked || e.ReplaceabilityStatus == ReplaceabilityHard
}
