package schema

import "time"

// MarkovTransitionCount 相邻完成活动的转移计数，(from,to) 唯一
// 只追加、只递增
type MarkovTransitionCount struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	FromActivityID string    `gorm:"size:36;index:idx_markov_edge,unique"`
	ToActivityID   string    `gorm:"size:36;index:idx_markov_edge,unique"`
	Count          int       `gorm:"default:0"`
	LastObservedAt time.Time `gorm:"index"`
}

// TableName 指定表名
func (MarkovTransitionCount) TableName() string {
	return "markov_transition_counts"
}

// HNetPairType 共现对的方向语义
type HNetPairType string

const (
	PairPredecessor HNetPairType = "PREDECESSOR_PAIR" // 两者共同出现在锚点之前
	PairSuccessor   HNetPairType = "SUCCESSOR_PAIR"   // 两者共同出现在锚点之后
)

// HNetArcCount 启发式网依赖弧计数，按 (前驱, 后继, 范围, 周几掩码) 唯一
type HNetArcCount struct {
	ID                    int64     `gorm:"primaryKey;autoIncrement"`
	PredecessorActivityID string    `gorm:"size:36;index:idx_hnet_arc,unique"`
	SuccessorActivityID   string    `gorm:"size:36;index:idx_hnet_arc,unique"`
	TimeScope             TimeScope `gorm:"size:10;index:idx_hnet_arc,unique"`
	WeekdayMask           int       `gorm:"index:idx_hnet_arc,unique"`
	Count                 int       `gorm:"default:0"`
	LastObservedAt        time.Time `gorm:"index"`
}

// TableName 指定表名
func (HNetArcCount) TableName() string {
	return "hnet_arc_counts"
}

// HNetPairCount 启发式网共现对计数。
// first/second 恒为字典序，语义相同的无序对落到同一行。
type HNetPairCount struct {
	ID                int64        `gorm:"primaryKey;autoIncrement"`
	AnchorActivityID  string       `gorm:"size:36;index:idx_hnet_pair,unique"`
	FirstActivityID   string       `gorm:"size:36;index:idx_hnet_pair,unique"`
	SecondActivityID  string       `gorm:"size:36;index:idx_hnet_pair,unique"`
	PairType          HNetPairType `gorm:"size:20;index:idx_hnet_pair,unique"`
	TimeScope         TimeScope    `gorm:"size:10;index:idx_hnet_pair,unique"`
	WeekdayMask       int          `gorm:"index:idx_hnet_pair,unique"`
	CoOccurrenceCount int          `gorm:"default:0"`
	AnchorSampleSize  int          `gorm:"default:0"`
	LastObservedAt    time.Time    `gorm:"index"`
}

// TableName 指定表名
func (HNetPairCount) TableName() string {
	return "hnet_pair_counts"
}

// SortPair 返回无序对的规范（字典序）排列
func SortPair(first, second string) (string, string) {
	if first <= second {
		return first, second
	}
	return second, first
}
