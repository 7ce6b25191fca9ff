package schema

import "time"

// ActivityHistory 活动完成历史，挖掘管线的唯一事实来源
// 数据量级：万级/年
type ActivityHistory struct {
	ID                 string     `gorm:"primaryKey;size:36"`
	ActivityID         string     `gorm:"size:36;index"`
	PredictedStartTime time.Time  ``
	PredictedDuration  float64    `gorm:"default:0"` // 分钟
	ActualStartTime    *time.Time `gorm:"index"`
	ActualDuration     *float64   ``
	// 写入时按完成时刻所在时区预先算好的本地桶键，聚合查询直接 GROUP BY 这些列
	LocalDayBucket   string    `gorm:"size:10;index"`
	LocalWeekBucket  string    `gorm:"size:10;index"`
	LocalMonthBucket string    `gorm:"size:7;index"`
	BucketTimezone   string    `gorm:"size:40;index"`
	WasCompleted     bool      `gorm:"default:false;index"`
	WasSkipped       bool      `gorm:"default:false"`
	WasReplaced      bool      `gorm:"default:false"`
	Notes            string    `gorm:"type:text"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
}

// TableName 指定表名
func (ActivityHistory) TableName() string {
	return "activity_history"
}

// DurationMinutes 取实际时长，缺失时回退预测时长，两者皆无回退一个槽位
func (h ActivityHistory) DurationMinutes() float64 {
	if h.ActualDuration != nil && *h.ActualDuration > 0 {
		return *h.ActualDuration
	}
	if h.PredictedDuration > 0 {
		return h.PredictedDuration
	}
	return 15
}
