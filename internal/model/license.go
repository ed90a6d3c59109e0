package model

import "time"

type License struct {
	Key  string  `json:"key" gorm:"primaryKey"`
	Plan string  `json:"plan" gorm:"default:'pro'"`
	UID  *string `json:"uid" gorm:"index"`
	// max_devices 仅存储，单uid字段结构上限制为一台设备
	MaxDevices int        `json:"max_devices" gorm:"default:1"`
	ExpiresAt  *time.Time `json:"expires_at"`
	Active     bool       `json:"active" gorm:"default:true"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Bound 返回当前绑定的设备ID，未绑定返回空字符串
func (l *License) Bound() string {
	if l.UID == nil {
		return ""
	}
	return *l.UID
}

// 历史动作类型，每次状态变更写入一条记录
const (
	ActionCreate     = "create"
	ActionUpsert     = "upsert"
	ActionBind       = "bind"
	ActionTransfer   = "transfer"
	ActionActivate   = "activate"
	ActionDeactivate = "deactivate"
	ActionRenew      = "renew"
)

type LicenseHistory struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Key       string    `json:"key" gorm:"index"`
	Action    string    `json:"action"`
	FromUID   *string   `json:"from_uid"`
	ToUID     *string   `json:"to_uid"`
	Info      string    `json:"info"`
	CreatedAt time.Time `json:"created_at"`
}
