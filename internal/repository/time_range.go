package repository

import (
	"fmt"
	"time"

	"github.com/yuqie6/TimeLoom/internal/bucket"
)

// DayRange 将 YYYY-MM-DD 按给定 IANA 时区解析为本地日区间 [start, end)。
// 时区无效时回退 UTC。
func DayRange(date, timeZone string) (start time.Time, end time.Time, err error) {
	loc := bucket.LoadLocation(timeZone)
	t, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("解析日期失败: %w", err)
	}
	return t, t.AddDate(0, 0, 1), nil
}
