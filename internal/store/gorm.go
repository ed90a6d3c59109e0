package store

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mpbot-backend/internal/model"
)

type gormStore struct {
	db *gorm.DB
}

// NewSQLite 打开data目录下的sqlite数据库并迁移表结构
func NewSQLite(dataDir string) (Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	db, err := gorm.Open(sqlite.Open(filepath.Join(dataDir, "mpbot.db")), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return newGormStore(db)
}

// NewMemory 内存sqlite，测试用
func NewMemory() (Store, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	// 内存库每个连接各自独立，必须限制为单连接
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return newGormStore(db)
}

func newGormStore(db *gorm.DB) (Store, error) {
	err := db.AutoMigrate(
		&model.Target{},
		&model.Observation{},
		&model.License{},
		&model.LicenseHistory{},
		&model.StatEvent{},
	)
	if err != nil {
		return nil, err
	}
	return &gormStore{db: db}, nil
}

func (s *gormStore) GetTarget(key string) (*model.Target, error) {
	var t model.Target
	err := s.db.Where("key = ?", key).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *gormStore) PutTarget(t *model.Target) error {
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(t).Error
}

func (s *gormStore) ListTargets() ([]model.Target, error) {
	var ts []model.Target
	err := s.db.Order("updated_at DESC").Find(&ts).Error
	return ts, err
}

func (s *gormStore) DeleteTarget(key string) (bool, error) {
	res := s.db.Where("key = ?", key).Delete(&model.Target{})
	return res.RowsAffected > 0, res.Error
}

func (s *gormStore) AppendObservation(o *model.Observation) error {
	return s.db.Create(o).Error
}

func (s *gormStore) ListObservations(key string, limit int) ([]model.Observation, error) {
	var obs []model.Observation
	err := s.db.Where("key = ?", key).Order("id DESC").Limit(limit).Find(&obs).Error
	return obs, err
}

func (s *gormStore) CountObservations(key string) (int64, error) {
	var n int64
	err := s.db.Model(&model.Observation{}).Where("key = ?", key).Count(&n).Error
	return n, err
}

func (s *gormStore) PruneObservations(key string, keep int) (int64, error) {
	recent := s.db.Model(&model.Observation{}).Select("id").
		Where("key = ?", key).Order("id DESC").Limit(keep)
	res := s.db.Where("key = ? AND id NOT IN (?)", key, recent).Delete(&model.Observation{})
	return res.RowsAffected, res.Error
}

func (s *gormStore) DeleteObservations(key string) (int64, error) {
	res := s.db.Where("key = ?", key).Delete(&model.Observation{})
	return res.RowsAffected, res.Error
}

func (s *gormStore) GetLicense(key string) (*model.License, error) {
	var l model.License
	err := s.db.Where("key = ?", key).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *gormStore) GetLicenseByUID(uid string) (*model.License, error) {
	var l model.License
	err := s.db.Where("uid = ? AND active = ?", uid, true).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *gormStore) PutLicense(l *model.License) error {
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(l).Error
}

func (s *gormStore) BindLicenseUID(key string, fromUID *string, toUID string) (bool, error) {
	q := s.db.Model(&model.License{}).Where("key = ?", key)
	if fromUID == nil {
		q = q.Where("uid IS NULL OR uid = ''")
	} else {
		q = q.Where("uid = ?", *fromUID)
	}
	res := q.Updates(map[string]interface{}{
		"uid":        toUID,
		"updated_at": time.Now().UTC(),
	})
	return res.RowsAffected > 0, res.Error
}

func (s *gormStore) ListLicenses() ([]model.License, error) {
	var ls []model.License
	err := s.db.Order("created_at DESC").Find(&ls).Error
	return ls, err
}

func (s *gormStore) AppendHistory(h *model.LicenseHistory) error {
	return s.db.Create(h).Error
}

func (s *gormStore) ListHistory(key string, limit int) ([]model.LicenseHistory, error) {
	var hs []model.LicenseHistory
	err := s.db.Where("key = ?", key).Order("id DESC").Limit(limit).Find(&hs).Error
	return hs, err
}

func (s *gormStore) AppendStat(e *model.StatEvent) error {
	return s.db.Create(e).Error
}

func (s *gormStore) ListStats(page, pageSize int) ([]model.StatEvent, int64, error) {
	var events []model.StatEvent
	var total int64
	if err := s.db.Model(&model.StatEvent{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * pageSize
	err := s.db.Order("id DESC").Offset(offset).Limit(pageSize).Find(&events).Error
	return events, total, err
}

func (s *gormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
