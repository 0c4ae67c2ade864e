package evaluator

import (
	"fmt"
	"time"
)

// ResolveDoseTime 将 "HH:MM" 解析为 now 所在日历日的具体时刻
// 剂量计划只有当日时间、不带日期，因此每日重复；纯函数，无副作用
func ResolveDoseTime(timeOfDay string, now time.Time) (time.Time, error) {
	parsed, err := time.Parse("15:04", timeOfDay)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid dose time %q: %w", timeOfDay, err)
	}

	return time.Date(
		now.Year(), now.Month(), now.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0,
		now.Location(),
	), nil
}

// Elapsed 返回 now 相对剂量时刻经过的时长（剂量时刻在未来时为负）
func Elapsed(doseTime, now time.Time) time.Duration {
	return now.Sub(doseTime)
}
