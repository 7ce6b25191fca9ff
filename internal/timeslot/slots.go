package timeslot

import (
	"fmt"
	"math"
	"time"
)

// SlotMinutes 求解器的原生时间粒度：15 分钟一格
const SlotMinutes = 15

// SlotsPerDay 一天的槽位数量
const SlotsPerDay = 24 * 60 / SlotMinutes

// ClampWeekday 校验周几下标（0=周一 .. 6=周日）
func ClampWeekday(weekday int) (int, error) {
	if weekday < 0 || weekday > 6 {
		return 0, fmt.Errorf("非法的周几下标: %d", weekday)
	}
	return weekday, nil
}

// WeekdayToMask 将周几下标转换为位掩码（bit i = 周一起第 i 天）
func WeekdayToMask(weekday int) (int, error) {
	safe, err := ClampWeekday(weekday)
	if err != nil {
		return 0, err
	}
	return 1 << safe, nil
}

// AllWeekdaysMask 全周七天的位掩码
func AllWeekdaysMask() int {
	return 0b1111111
}

// MondayIndex 将 time.Weekday（0=周日）换算为周一起的下标
func MondayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// MinutesToSlots 将分钟数换算为槽位数，向最近取整且永不为零
func MinutesToSlots(minutes float64) int {
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) {
		return 1
	}
	slots := int(math.Round(minutes / SlotMinutes))
	if slots < 1 {
		return 1
	}
	return slots
}

// DateToSlot 将时间点换算为相对规划起点的槽位下标，起点之前收敛到 0
func DateToSlot(t, horizonStart time.Time) int {
	deltaMinutes := t.Sub(horizonStart).Minutes()
	slot := int(math.Floor(deltaMinutes / SlotMinutes))
	if slot < 0 {
		return 0
	}
	return slot
}

// SlotToDate DateToSlot 在非负槽位上的精确逆运算
func SlotToDate(slot int, horizonStart time.Time) time.Time {
	return horizonStart.Add(time.Duration(slot) * SlotMinutes * time.Minute)
}
