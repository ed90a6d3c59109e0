package model

import "time"

// StatEvent 客户端上报的统计事件（/stat接口）
type StatEvent struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UID       string    `json:"uid" gorm:"index"`
	Event     string    `json:"event"`
	Status    string    `json:"status"`
	Meta      string    `json:"meta"`
	CreatedAt time.Time `json:"created_at"`
}
