package schema

import "time"

// FrequencyEmaState 每 (活动, 刻度) 一行的 EMA 增量状态机。
// open_bucket 为尚未折入 EMA 的当前桶；dirty 表示增量更新不可信，
// 需要一次全量重建（reconcile）后才继续滚动。
// 不变量：open_bucket_key 非空时总不早于 last_closed_bucket_key。
type FrequencyEmaState struct {
	ID                  int64     `gorm:"primaryKey;autoIncrement"`
	ActivityID          string    `gorm:"size:36;index:idx_ema_key,unique"`
	Scope               string    `gorm:"size:10;index:idx_ema_key,unique"` // DAILY / WEEKLY / MONTHLY
	EmaValue            float64   `gorm:"default:0"`
	SampleSize          int       `gorm:"default:0"` // 已折入 EMA 的桶数
	OpenBucketKey       string    `gorm:"size:10"`
	OpenBucketCount     int       `gorm:"default:0"`
	LastClosedBucketKey string    `gorm:"size:10"`
	Dirty               bool      `gorm:"default:false;index"`
	UpdatedAt           time.Time `gorm:"index"`
}

// TableName 指定表名
func (FrequencyEmaState) TableName() string {
	return "frequency_ema_state"
}
