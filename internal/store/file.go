package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"mpbot-backend/internal/model"
)

func nowUTC() time.Time { return time.Now().UTC() }

// fileDoc 整个库的JSON快照，每次写操作整体重写文件
type fileDoc struct {
	Targets      map[string]model.Target           `json:"targets"`
	Observations map[string][]model.Observation    `json:"observations"`
	Licenses     map[string]model.License          `json:"licenses"`
	History      map[string][]model.LicenseHistory `json:"history"`
	Stats        []model.StatEvent                 `json:"stats"`
	NextID       uint                              `json:"next_id"`
}

type fileStore struct {
	mu   sync.Mutex
	path string
	doc  fileDoc
}

// NewFile 打开（或初始化）JSON文件存储
func NewFile(path string) (Store, error) {
	s := &fileStore{path: path}
	b, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// 首次启动，空库
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(b, &s.doc); err != nil {
			return nil, err
		}
	}
	if s.doc.Targets == nil {
		s.doc.Targets = map[string]model.Target{}
	}
	if s.doc.Observations == nil {
		s.doc.Observations = map[string][]model.Observation{}
	}
	if s.doc.Licenses == nil {
		s.doc.Licenses = map[string]model.License{}
	}
	if s.doc.History == nil {
		s.doc.History = map[string][]model.LicenseHistory{}
	}
	if s.doc.NextID == 0 {
		s.doc.NextID = 1
	}
	return s, nil
}

// save 先写临时文件再rename，避免写一半进程退出损坏数据
func (s *fileStore) save() error {
	b, err := json.MarshalIndent(&s.doc, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *fileStore) nextID() uint {
	id := s.doc.NextID
	s.doc.NextID++
	return id
}

func (s *fileStore) GetTarget(key string) (*model.Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.doc.Targets[key]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *fileStore) PutTarget(t *model.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Targets[t.Key] = *t
	return s.save()
}

func (s *fileStore) ListTargets() ([]model.Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := make([]model.Target, 0, len(s.doc.Targets))
	for _, t := range s.doc.Targets {
		ts = append(ts, t)
	}
	sort.Slice(ts, func(i, j int) bool {
		if !ts[i].UpdatedAt.Equal(ts[j].UpdatedAt) {
			return ts[i].UpdatedAt.After(ts[j].UpdatedAt)
		}
		return ts[i].Key < ts[j].Key
	})
	return ts, nil
}

func (s *fileStore) DeleteTarget(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doc.Targets[key]; !ok {
		return false, nil
	}
	delete(s.doc.Targets, key)
	return true, s.save()
}

func (s *fileStore) AppendObservation(o *model.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = s.nextID()
	s.doc.Observations[o.Key] = append(s.doc.Observations[o.Key], *o)
	return s.save()
}

func (s *fileStore) ListObservations(key string, limit int) ([]model.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obs := s.doc.Observations[key]
	if limit > len(obs) {
		limit = len(obs)
	}
	out := make([]model.Observation, 0, limit)
	for i := len(obs) - 1; i >= len(obs)-limit; i-- {
		out = append(out, obs[i])
	}
	return out, nil
}

func (s *fileStore) CountObservations(key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.doc.Observations[key])), nil
}

func (s *fileStore) PruneObservations(key string, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obs := s.doc.Observations[key]
	if len(obs) <= keep {
		return 0, nil
	}
	deleted := len(obs) - keep
	s.doc.Observations[key] = append([]model.Observation(nil), obs[deleted:]...)
	return int64(deleted), s.save()
}

func (s *fileStore) DeleteObservations(key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.doc.Observations[key]))
	if n == 0 {
		return 0, nil
	}
	delete(s.doc.Observations, key)
	return n, s.save()
}

func (s *fileStore) GetLicense(key string) (*model.License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.doc.Licenses[key]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (s *fileStore) GetLicenseByUID(uid string) (*model.License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.doc.Licenses {
		if l.Active && l.Bound() == uid && uid != "" {
			found := l
			return &found, nil
		}
	}
	return nil, nil
}

func (s *fileStore) PutLicense(l *model.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Licenses[l.Key] = *l
	return s.save()
}

func (s *fileStore) BindLicenseUID(key string, fromUID *string, toUID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.doc.Licenses[key]
	if !ok {
		return false, nil
	}
	expect := ""
	if fromUID != nil {
		expect = *fromUID
	}
	if l.Bound() != expect {
		return false, nil
	}
	uid := toUID
	l.UID = &uid
	l.UpdatedAt = nowUTC()
	s.doc.Licenses[key] = l
	return true, s.save()
}

func (s *fileStore) ListLicenses() ([]model.License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ls := make([]model.License, 0, len(s.doc.Licenses))
	for _, l := range s.doc.Licenses {
		ls = append(ls, l)
	}
	sort.Slice(ls, func(i, j int) bool {
		if !ls[i].CreatedAt.Equal(ls[j].CreatedAt) {
			return ls[i].CreatedAt.After(ls[j].CreatedAt)
		}
		return ls[i].Key < ls[j].Key
	})
	return ls, nil
}

func (s *fileStore) AppendHistory(h *model.LicenseHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h.ID = s.nextID()
	s.doc.History[h.Key] = append(s.doc.History[h.Key], *h)
	return s.save()
}

func (s *fileStore) ListHistory(key string, limit int) ([]model.LicenseHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hs := s.doc.History[key]
	if limit > len(hs) {
		limit = len(hs)
	}
	out := make([]model.LicenseHistory, 0, limit)
	for i := len(hs) - 1; i >= len(hs)-limit; i-- {
		out = append(out, hs[i])
	}
	return out, nil
}

func (s *fileStore) AppendStat(e *model.StatEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID()
	s.doc.Stats = append(s.doc.Stats, *e)
	return s.save()
}

func (s *fileStore) ListStats(page, pageSize int) ([]model.StatEvent, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := int64(len(s.doc.Stats))
	start := (page - 1) * pageSize
	out := make([]model.StatEvent, 0, pageSize)
	for i := len(s.doc.Stats) - 1 - start; i >= 0 && len(out) < pageSize; i-- {
		out = append(out, s.doc.Stats[i])
	}
	return out, total, nil
}

func (s *fileStore) Close() error {
	return nil
}
