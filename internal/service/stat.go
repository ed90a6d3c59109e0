package service

import (
	"encoding/json"
	"time"

	"mpbot-backend/internal/model"
	"mpbot-backend/internal/store"
)

type StatService struct {
	store store.Store
}

func NewStatService(st store.Store) *StatService {
	return &StatService{store: st}
}

// Record 记录一条客户端统计事件，meta序列化为JSON字符串存储
func (s *StatService) Record(uid, event, status string, meta interface{}) error {
	metaJSON := ""
	if meta != nil {
		b, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		metaJSON = string(b)
	}
	e := &model.StatEvent{
		UID:       uid,
		Event:     event,
		Status:    status,
		Meta:      metaJSON,
		CreatedAt: time.Now().UTC(),
	}
	return s.store.AppendStat(e)
}

// List 分页获取统计事件，倒序
func (s *StatService) List(page, pageSize int) ([]model.StatEvent, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	// 限制页面大小
	if pageSize > 100 {
		pageSize = 100
	}
	return s.store.ListStats(page, pageSize)
}
