package service

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"mpbot-backend/internal/model"
	"mpbot-backend/internal/store"
)

// 冲突是可恢复结果不是致命错误，由接口层翻译成403/404
var (
	ErrNotFound     = errors.New("license not found")
	ErrBoundToOther = errors.New("bound-to-other")
	ErrValidation   = errors.New("invalid input")
)

// Check返回的状态值
const (
	StatusNotFound = "not_found"
	StatusInactive = "inactive"
	StatusExpired  = "expired"
	StatusValid    = "valid"
)

// LicenseStatus 设备轮询check得到的授权状态
type LicenseStatus struct {
	OK        bool
	Status    string
	Plan      string
	Key       string
	ExpiresAt *time.Time
}

type LicenseService struct {
	store store.Store
	now   func() time.Time
}

func NewLicenseService(st store.Store) *LicenseService {
	return &LicenseService{store: st, now: time.Now}
}

// Upsert 创建或更新许可证，key创建后不可变。输入带uid时追加执行一次绑定，
// 绑定冲突时返回当前记录和ErrBoundToOther。
func (s *LicenseService) Upsert(in model.LicenseUpsert) (*model.License, error) {
	if in.Key == "" {
		return nil, fmt.Errorf("%w: key required", ErrValidation)
	}
	cur, err := s.store.GetLicense(in.Key)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if cur == nil {
		l := &model.License{
			Key:        in.Key,
			Plan:       "pro",
			MaxDevices: 1,
			Active:     true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		applyUpsert(l, in)
		if err := s.store.PutLicense(l); err != nil {
			return nil, err
		}
		s.record(in.Key, model.ActionCreate, nil, nil, "plan="+l.Plan)
		cur = l
	} else {
		applyUpsert(cur, in)
		cur.UpdatedAt = now
		if err := s.store.PutLicense(cur); err != nil {
			return nil, err
		}
		s.record(in.Key, model.ActionUpsert, nil, nil, "plan="+cur.Plan)
	}

	if in.UID != nil && *in.UID != "" {
		return s.SetUID(in.Key, *in.UID)
	}
	return cur, nil
}

func applyUpsert(l *model.License, in model.LicenseUpsert) {
	if in.Plan != nil && *in.Plan != "" {
		l.Plan = *in.Plan
	}
	if in.ExpiresAt != nil {
		l.ExpiresAt = in.ExpiresAt
	}
	if in.MaxDevices != nil && *in.MaxDevices > 0 {
		l.MaxDevices = *in.MaxDevices
	}
	if in.Active != nil {
		l.Active = *in.Active
	}
}

// Generate 签发一个新key的许可证
func (s *LicenseService) Generate(plan string, expiresAt *time.Time, maxDevices int) (*model.License, error) {
	in := model.LicenseUpsert{Key: newLicenseKey(), ExpiresAt: expiresAt}
	if plan != "" {
		in.Plan = &plan
	}
	if maxDevices > 0 {
		in.MaxDevices = &maxDevices
	}
	return s.Upsert(in)
}

func newLicenseKey() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return raw[0:4] + "-" + raw[4:8] + "-" + raw[8:12] + "-" + raw[12:16]
}

func (s *LicenseService) GetByKey(key string) (*model.License, error) {
	l, err := s.store.GetLicense(key)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, ErrNotFound
	}
	return l, nil
}

// GetByUID 查找绑定到该设备的有效许可证，已停用的不参与解析
func (s *LicenseService) GetByUID(uid string) (*model.License, error) {
	l, err := s.store.GetLicenseByUID(uid)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, ErrNotFound
	}
	return l, nil
}

// SetUID 绑定设备。已绑定同一uid时幂等返回，绑定了其他uid时返回ErrBoundToOther。
func (s *LicenseService) SetUID(key, uid string) (*model.License, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: uid required", ErrValidation)
	}
	cur, err := s.store.GetLicense(key)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, ErrNotFound
	}
	if cur.Bound() == uid {
		return cur, nil
	}
	if cur.Bound() != "" {
		return cur, ErrBoundToOther
	}
	ok, err := s.store.BindLicenseUID(key, nil, uid)
	if err != nil {
		return nil, err
	}
	if !ok {
		// 并发绑定竞争失败
		cur, _ = s.store.GetLicense(key)
		return cur, ErrBoundToOther
	}
	s.record(key, model.ActionBind, nil, &uid, "")
	return s.store.GetLicense(key)
}

// Transfer 转移绑定。fromUID为nil是首次使用自动绑定路径，仅在未绑定时成功；
// fromUID与当前绑定不一致时返回冲突且不做任何修改。
func (s *LicenseService) Transfer(key string, fromUID *string, toUID string) (*model.License, error) {
	if toUID == "" {
		return nil, fmt.Errorf("%w: toUid required", ErrValidation)
	}
	cur, err := s.store.GetLicense(key)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, ErrNotFound
	}

	current := cur.Bound()
	if fromUID == nil {
		if current != "" {
			return cur, ErrBoundToOther
		}
	} else if current != "" && current != *fromUID {
		return cur, ErrBoundToOther
	}

	var expect *string
	if current != "" {
		expect = &current
	}
	ok, err := s.store.BindLicenseUID(key, expect, toUID)
	if err != nil {
		return nil, err
	}
	if !ok {
		cur, _ = s.store.GetLicense(key)
		return cur, ErrBoundToOther
	}
	s.record(key, model.ActionTransfer, fromUID, &toUID, "")
	return s.store.GetLicense(key)
}

// Check 设备轮询的只读路径，任何uid都不报错
func (s *LicenseService) Check(uid string) (*LicenseStatus, error) {
	l, err := s.store.GetLicenseByUID(uid)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return &LicenseStatus{OK: false, Status: StatusNotFound}, nil
	}
	if !l.Active {
		return &LicenseStatus{OK: false, Status: StatusInactive}, nil
	}
	// 过期判定严格大于，expires_at恰好等于当前时刻视为未过期
	if l.ExpiresAt != nil && s.now().After(*l.ExpiresAt) {
		return &LicenseStatus{OK: false, Status: StatusExpired, Plan: l.Plan, ExpiresAt: l.ExpiresAt}, nil
	}
	return &LicenseStatus{OK: true, Status: StatusValid, Plan: l.Plan, Key: l.Key, ExpiresAt: l.ExpiresAt}, nil
}

func (s *LicenseService) Activate(key string) (*model.License, error) {
	return s.setActive(key, true, model.ActionActivate)
}

func (s *LicenseService) Deactivate(key string) (*model.License, error) {
	return s.setActive(key, false, model.ActionDeactivate)
}

func (s *LicenseService) setActive(key string, active bool, action string) (*model.License, error) {
	l, err := s.store.GetLicense(key)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, ErrNotFound
	}
	l.Active = active
	l.UpdatedAt = s.now().UTC()
	if err := s.store.PutLicense(l); err != nil {
		return nil, err
	}
	s.record(key, action, nil, nil, "")
	return l, nil
}

// Renew 更新有效期，expiresAt为nil表示改为永不过期
func (s *LicenseService) Renew(key string, expiresAt *time.Time) (*model.License, error) {
	l, err := s.store.GetLicense(key)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, ErrNotFound
	}
	l.ExpiresAt = expiresAt
	l.UpdatedAt = s.now().UTC()
	if err := s.store.PutLicense(l); err != nil {
		return nil, err
	}
	info := "never"
	if expiresAt != nil {
		info = expiresAt.UTC().Format(time.RFC3339)
	}
	s.record(key, model.ActionRenew, nil, nil, "expires="+info)
	return l, nil
}

func (s *LicenseService) List() ([]model.License, error) {
	return s.store.ListLicenses()
}

func (s *LicenseService) History(key string, limit int) ([]model.LicenseHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.store.ListHistory(key, limit)
}

// Stats 汇总许可证状态及近30天的绑定/转移活动
func (s *LicenseService) Stats() (*model.LicenseStats, error) {
	all, err := s.store.ListLicenses()
	if err != nil {
		return nil, err
	}
	now := s.now()
	stats := &model.LicenseStats{
		LicensesByPlan: make(map[string]int),
		DailyActivity:  make([]model.DailyActivity, 0),
	}
	for _, l := range all {
		stats.TotalLicenses++
		if l.Active {
			stats.ActiveLicenses++
		}
		if l.ExpiresAt != nil && now.After(*l.ExpiresAt) {
			stats.ExpiredLicenses++
		}
		if l.Bound() != "" {
			stats.BoundLicenses++
		}
		stats.LicensesByPlan[l.Plan]++
	}

	cutoff := now.AddDate(0, 0, -30)
	byDay := make(map[string]*model.DailyActivity)
	for _, l := range all {
		hs, err := s.store.ListHistory(l.Key, 1000)
		if err != nil {
			return nil, err
		}
		for _, h := range hs {
			if h.CreatedAt.Before(cutoff) {
				continue
			}
			day := h.CreatedAt.UTC().Format("2006-01-02")
			d, ok := byDay[day]
			if !ok {
				date, _ := time.Parse("2006-01-02", day)
				d = &model.DailyActivity{Date: date}
				byDay[day] = d
			}
			switch h.Action {
			case model.ActionBind:
				d.Binds++
			case model.ActionTransfer:
				d.Transfers++
			}
		}
	}
	for _, d := range byDay {
		stats.DailyActivity = append(stats.DailyActivity, *d)
	}
	sort.Slice(stats.DailyActivity, func(i, j int) bool {
		return stats.DailyActivity[i].Date.Before(stats.DailyActivity[j].Date)
	})
	return stats, nil
}

// record 历史写入失败只记日志，不影响主流程
func (s *LicenseService) record(key, action string, fromUID, toUID *string, info string) {
	h := &model.LicenseHistory{
		Key:       key,
		Action:    action,
		FromUID:   fromUID,
		ToUID:     toUID,
		Info:      info,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.AppendHistory(h); err != nil {
		log.Printf("写入许可证历史失败: %v", err)
	}
}
