package schema

import "time"

// BehaviorMetric UserBehavior 行里统计画像的类型
type BehaviorMetric string

const (
	// MetricHeatmapProbability 活动出现在某时段的概率，key_param 为槽位下标
	MetricHeatmapProbability BehaviorMetric = "HEATMAP_PROBABILITY"
	// MetricObservedFrequency 周期内观测到的活动频次（EMA 平滑），key_param 为周期枚举
	MetricObservedFrequency BehaviorMetric = "OBSERVED_FREQUENCY"
)

// BehaviorPeriod OBSERVED_FREQUENCY 的周期键。
// MON..SUN 为数据模型保留值，注入器当前不消费（见注入器告警）。
type BehaviorPeriod string

const (
	PeriodDaily   BehaviorPeriod = "DAILY"
	PeriodWeekly  BehaviorPeriod = "WEEKLY"
	PeriodMonthly BehaviorPeriod = "MONTHLY"
	PeriodMon     BehaviorPeriod = "MON"
	PeriodTue     BehaviorPeriod = "TUE"
	PeriodWed     BehaviorPeriod = "WED"
	PeriodThu     BehaviorPeriod = "THU"
	PeriodFri     BehaviorPeriod = "FRI"
	PeriodSat     BehaviorPeriod = "SAT"
	PeriodSun     BehaviorPeriod = "SUN"
)

// UserBehavior 挖掘产出的行为统计事实
// 数据量级：千级
type UserBehavior struct {
	ID          int64          `gorm:"primaryKey;autoIncrement"`
	ActivityID  string         `gorm:"size:36;index:idx_behavior_key,unique"`
	CategoryID  string         `gorm:"size:36;index"`
	Metric      BehaviorMetric `gorm:"size:30;index:idx_behavior_key,unique"`
	KeyParam    string         `gorm:"size:20;index:idx_behavior_key,unique"` // 槽位下标或周期枚举
	Value       float64        `gorm:"default:0"`
	SampleSize  int            `gorm:"default:0"`
	LastUpdated time.Time      `gorm:"index"`
}

// TableName 指定表名
func (UserBehavior) TableName() string {
	return "user_behavior"
}
