package model

import "time"

// Target 每个key对应的旋转目标，ThetaDeg始终归一化到[0,360)
type Target struct {
	Key       string    `json:"key" gorm:"primaryKey"`
	ThetaDeg  float64   `json:"theta_deg"`
	PhiDeg    float64   `json:"phi_deg"`
	Tolerance float64   `json:"tolerance"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Observation 客户端上报的角度记录，只追加不修改
type Observation struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Key       string    `json:"key" gorm:"index"`
	ThetaDeg  float64   `json:"theta_deg"`
	PhiDeg    float64   `json:"phi_deg"`
	CreatedAt time.Time `json:"created_at"`
}
