package model

import "time"

// DailyActivity 每日绑定/转移统计
type DailyActivity struct {
	Date      time.Time `json:"date"`
	Binds     int       `json:"binds"`
	Transfers int       `json:"transfers"`
}

// LicenseStats 许可证统计信息
type LicenseStats struct {
	TotalLicenses   int64           `json:"total_licenses"`
	ActiveLicenses  int64           `json:"active_licenses"`
	ExpiredLicenses int64           `json:"expired_licenses"`
	BoundLicenses   int64           `json:"bound_licenses"`
	LicensesByPlan  map[string]int  `json:"licenses_by_plan"`
	DailyActivity   []DailyActivity `json:"daily_activity"`
}

// BoundRate 计算已绑定比例
func (ls *LicenseStats) BoundRate() float64 {
	if ls.TotalLicenses == 0 {
		return 0
	}
	return float64(ls.BoundLicenses) / float64(ls.TotalLicenses)
}

// CountByPlan 获取指定套餐的许可证数量
func (ls *LicenseStats) CountByPlan(plan string) int {
	if count, ok := ls.LicensesByPlan[plan]; ok {
		return count
	}
	return 0
}
