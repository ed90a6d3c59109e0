package service

import (
	"math"
	"time"

	"mpbot-backend/internal/model"
	"mpbot-backend/internal/store"
)

const (
	DefaultObservationLimit = 200
	maxCompactKeep          = 2000
)

// TargetDefaults 未知key的默认目标
type TargetDefaults struct {
	ThetaDeg  float64
	PhiDeg    float64
	Tolerance float64
}

type TargetService struct {
	store    store.Store
	defaults TargetDefaults
	maxObs   int
}

func NewTargetService(st store.Store, defaults TargetDefaults, maxObservations int) *TargetService {
	if defaults.Tolerance <= 0 {
		defaults.Tolerance = 10
	}
	if maxObservations <= 0 {
		maxObservations = 5000
	}
	return &TargetService{store: st, defaults: defaults, maxObs: maxObservations}
}

// NormalizeDeg 角度归一化到[0,360)
func NormalizeDeg(deg float64) float64 {
	return math.Mod(math.Mod(deg, 360)+360, 360)
}

// GetTarget 读取目标，未知key返回默认值，不写库
func (s *TargetService) GetTarget(key string) (*model.Target, error) {
	t, err := s.store.GetTarget(key)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return &model.Target{
			Key:       key,
			ThetaDeg:  NormalizeDeg(s.defaults.ThetaDeg),
			PhiDeg:    s.defaults.PhiDeg,
			Tolerance: s.defaults.Tolerance,
		}, nil
	}
	return t, nil
}

// SetTarget 写入目标，theta归一化，phi原样保存
func (s *TargetService) SetTarget(key string, thetaDeg, phiDeg, tolerance float64) (*model.Target, error) {
	if tolerance <= 0 {
		tolerance = s.defaults.Tolerance
	}
	t := &model.Target{
		Key:       key,
		ThetaDeg:  NormalizeDeg(thetaDeg),
		PhiDeg:    phiDeg,
		Tolerance: tolerance,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.store.PutTarget(t); err != nil {
		return nil, err
	}
	return t, nil
}

// SaveObservation 追加一条观测并执行上限裁剪
func (s *TargetService) SaveObservation(key string, thetaDeg, phiDeg float64) error {
	o := &model.Observation{
		Key:       key,
		ThetaDeg:  NormalizeDeg(thetaDeg),
		PhiDeg:    phiDeg,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AppendObservation(o); err != nil {
		return err
	}
	n, err := s.store.CountObservations(key)
	if err != nil {
		return err
	}
	if n > int64(s.maxObs) {
		if _, err := s.store.PruneObservations(key, s.maxObs); err != nil {
			return err
		}
	}
	return nil
}

func (s *TargetService) ListObservations(key string, limit int) ([]model.Observation, error) {
	if limit <= 0 {
		limit = DefaultObservationLimit
	}
	return s.store.ListObservations(key, limit)
}

// RecomputeTarget 用最近limit条观测重算目标：theta取圆均值，phi取算术平均，
// tolerance保持不变。没有观测时返回当前（或默认）目标，不写库。
func (s *TargetService) RecomputeTarget(key string, limit int) (*model.Target, error) {
	if limit <= 0 {
		limit = DefaultObservationLimit
	}
	obs, err := s.store.ListObservations(key, limit)
	if err != nil {
		return nil, err
	}
	current, err := s.GetTarget(key)
	if err != nil {
		return nil, err
	}
	if len(obs) == 0 {
		return current, nil
	}

	// 角度均值不能直接算术平均（350°和10°的均值是0°不是180°），
	// 按单位向量求和后取atan2
	var sinSum, cosSum, phiSum float64
	for _, o := range obs {
		rad := o.ThetaDeg * math.Pi / 180
		sinSum += math.Sin(rad)
		cosSum += math.Cos(rad)
		phiSum += o.PhiDeg
	}
	theta := NormalizeDeg(math.Atan2(sinSum, cosSum) * 180 / math.Pi)
	phi := phiSum / float64(len(obs))

	return s.SetTarget(key, theta, phi, current.Tolerance)
}

// ListChallenges 全部目标，按更新时间倒序
func (s *TargetService) ListChallenges() ([]model.Target, error) {
	return s.store.ListTargets()
}

// DeleteKey 删除目标及其全部观测，返回是否确有数据被删。许可证不受影响。
func (s *TargetService) DeleteKey(key string) (bool, error) {
	deleted, err := s.store.DeleteTarget(key)
	if err != nil {
		return false, err
	}
	n, err := s.store.DeleteObservations(key)
	if err != nil {
		return deleted, err
	}
	return deleted || n > 0, nil
}

// CompactKey 裁剪到最近keep条后重算目标，keep限制在[1,2000]
func (s *TargetService) CompactKey(key string, keep int) (*model.Target, error) {
	if keep <= 0 {
		keep = DefaultObservationLimit
	}
	if keep > maxCompactKeep {
		keep = maxCompactKeep
	}
	if _, err := s.store.PruneObservations(key, keep); err != nil {
		return nil, err
	}
	return s.RecomputeTarget(key, keep)
}
