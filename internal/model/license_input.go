package model

import "time"

// LicenseUpsert upsert调用的输入，nil字段更新时不变、创建时取默认值
type LicenseUpsert struct {
	Key        string
	Plan       *string
	ExpiresAt  *time.Time
	MaxDevices *int
	Active     *bool
	UID        *string
}
