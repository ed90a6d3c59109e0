package store

import "mpbot-backend/internal/model"

// Store 存储适配层，sqlite和JSON文件两种实现可互换。
// Get系列查不到时返回(nil, nil)，不作为错误处理。
type Store interface {
	GetTarget(key string) (*model.Target, error)
	PutTarget(t *model.Target) error
	ListTargets() ([]model.Target, error)
	DeleteTarget(key string) (bool, error)

	AppendObservation(o *model.Observation) error
	ListObservations(key string, limit int) ([]model.Observation, error)
	CountObservations(key string) (int64, error)
	PruneObservations(key string, keep int) (int64, error)
	DeleteObservations(key string) (int64, error)

	GetLicense(key string) (*model.License, error)
	GetLicenseByUID(uid string) (*model.License, error)
	PutLicense(l *model.License) error
	// BindLicenseUID 以compare-and-swap方式更新uid：当前uid与fromUID一致
	// （nil表示未绑定）才写入toUID，并发绑定在这里串行化。
	BindLicenseUID(key string, fromUID *string, toUID string) (bool, error)
	ListLicenses() ([]model.License, error)

	AppendHistory(h *model.LicenseHistory) error
	ListHistory(key string, limit int) ([]model.LicenseHistory, error)

	AppendStat(e *model.StatEvent) error
	ListStats(page, pageSize int) ([]model.StatEvent, int64, error)

	Close() error
}
