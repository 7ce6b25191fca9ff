package bucket

import (
	"fmt"
	"time"

	"github.com/yuqie6/TimeLoom/internal/timeslot"
)

// Scope 频率统计的日历刻度
type Scope string

const (
	ScopeDaily   Scope = "DAILY"
	ScopeWeekly  Scope = "WEEKLY"
	ScopeMonthly Scope = "MONTHLY"
)

// Scopes 全部刻度，按从细到粗排列
var Scopes = []Scope{ScopeDaily, ScopeWeekly, ScopeMonthly}

const dateKeyLayout = "2006-01-02"
const monthKeyLayout = "2006-01"

// Keys 一个时间点在某时区下的三个本地桶键
type Keys struct {
	Day      string // YYYY-MM-DD
	Week     string // 所在周的本地周一，YYYY-MM-DD
	Month    string // YYYY-MM
	TimeZone string // 实际使用的时区（非法输入回退 UTC）
}

// ForScope 取指定刻度的桶键
func (k Keys) ForScope(scope Scope) string {
	switch scope {
	case ScopeWeekly:
		return k.Week
	case ScopeMonthly:
		return k.Month
	default:
		return k.Day
	}
}

// LoadLocation 解析 IANA 时区名，非法时回退 UTC
func LoadLocation(timeZone string) *time.Location {
	if timeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DeriveKeys 计算时间点在给定时区下的本地日/周/月桶键
func DeriveKeys(t time.Time, timeZone string) Keys {
	loc := LoadLocation(timeZone)
	local := t.In(loc)
	year, month, day := local.Date()

	// 周键取本地周一；日键减去周一起下标即可，跨月/跨年由 time 包处理
	midnight := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	monday := midnight.AddDate(0, 0, -timeslot.MondayIndex(local))

	return Keys{
		Day:      midnight.Format(dateKeyLayout),
		Week:     monday.Format(dateKeyLayout),
		Month:    midnight.Format(monthKeyLayout),
		TimeZone: loc.String(),
	}
}

// Index 桶键的整数序号：日/周按纪元起天数，月按 year*12+month
func Index(scope Scope, key string) (int, error) {
	switch scope {
	case ScopeMonthly:
		t, err := time.ParseInLocation(monthKeyLayout, key, time.UTC)
		if err != nil {
			return 0, fmt.Errorf("非法的月桶键 %q: %w", key, err)
		}
		return t.Year()*12 + int(t.Month()) - 1, nil
	default:
		t, err := time.ParseInLocation(dateKeyLayout, key, time.UTC)
		if err != nil {
			return 0, fmt.Errorf("非法的日期桶键 %q: %w", key, err)
		}
		return int(t.Unix() / 86400), nil
	}
}

// Compare 按刻度比较两个桶键，返回负/零/正
func Compare(scope Scope, left, right string) (int, error) {
	li, err := Index(scope, left)
	if err != nil {
		return 0, err
	}
	ri, err := Index(scope, right)
	if err != nil {
		return 0, err
	}
	return li - ri, nil
}

// Next 指定刻度下的后继桶键
func Next(scope Scope, key string) (string, error) {
	switch scope {
	case ScopeMonthly:
		t, err := time.ParseInLocation(monthKeyLayout, key, time.UTC)
		if err != nil {
			return "", fmt.Errorf("非法的月桶键 %q: %w", key, err)
		}
		return t.AddDate(0, 1, 0).Format(monthKeyLayout), nil
	case ScopeWeekly:
		t, err := time.ParseInLocation(dateKeyLayout, key, time.UTC)
		if err != nil {
			return "", fmt.Errorf("非法的周桶键 %q: %w", key, err)
		}
		return t.AddDate(0, 0, 7).Format(dateKeyLayout), nil
	default:
		t, err := time.ParseInLocation(dateKeyLayout, key, time.UTC)
		if err != nil {
			return "", fmt.Errorf("非法的日桶键 %q: %w", key, err)
		}
		return t.AddDate(0, 0, 1).Format(dateKeyLayout), nil
	}
}
