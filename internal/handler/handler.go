package handler

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"mpbot-backend/internal/model"
	"mpbot-backend/internal/service"
)

var (
	targets   *service.TargetService
	licenses  *service.LicenseService
	stats     *service.StatService
	sheetSync *service.SheetSyncService

	recomputeOnObserve bool
)

type Services struct {
	Targets            *service.TargetService
	Licenses           *service.LicenseService
	Stats              *service.StatService
	SheetSync          *service.SheetSyncService
	RecomputeOnObserve bool
}

func Init(s Services) {
	targets = s.Targets
	licenses = s.Licenses
	stats = s.Stats
	sheetSync = s.SheetSync
	recomputeOnObserve = s.RecomputeOnObserve
}

// 对外时间戳统一为epoch毫秒，内部一律time.Time，转换只发生在这一层

func epochMS(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func epochMSPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

// parseExpiry 外部expiresAt允许epoch毫秒或ISO-8601字符串，
// 解析不了的值按永不过期处理，不报错
func parseExpiry(v interface{}) *time.Time {
	switch x := v.(type) {
	case float64:
		if x <= 0 {
			return nil
		}
		t := time.UnixMilli(int64(x)).UTC()
		return &t
	case string:
		if x == "" {
			return nil
		}
		if t, err := time.Parse(time.RFC3339, x); err == nil {
			u := t.UTC()
			return &u
		}
		if t, err := time.Parse("2006-01-02", x); err == nil {
			u := t.UTC()
			return &u
		}
		if n, err := strconv.ParseInt(x, 10, 64); err == nil && n > 0 {
			t := time.UnixMilli(n).UTC()
			return &t
		}
		return nil
	default:
		return nil
	}
}

func targetJSON(t *model.Target) fiber.Map {
	return fiber.Map{
		"key": t.Key,
		"target": fiber.Map{
			"thetaDeg": t.ThetaDeg,
			"phiDeg":   t.PhiDeg,
		},
		"tolerance": t.Tolerance,
		"updatedAt": epochMS(t.UpdatedAt),
	}
}

func observationJSON(o *model.Observation) fiber.Map {
	return fiber.Map{
		"id":        o.ID,
		"key":       o.Key,
		"thetaDeg":  o.ThetaDeg,
		"phiDeg":    o.PhiDeg,
		"timestamp": epochMS(o.CreatedAt),
	}
}

func licenseJSON(l *model.License) fiber.Map {
	var uid interface{}
	if l.Bound() != "" {
		uid = l.Bound()
	}
	return fiber.Map{
		"key":        l.Key,
		"plan":       l.Plan,
		"uid":        uid,
		"expiresAt":  epochMSPtr(l.ExpiresAt),
		"maxDevices": l.MaxDevices,
		"active":     l.Active,
		"createdAt":  epochMS(l.CreatedAt),
		"updatedAt":  epochMS(l.UpdatedAt),
	}
}

func historyJSON(h *model.LicenseHistory) fiber.Map {
	return fiber.Map{
		"id":        h.ID,
		"key":       h.Key,
		"action":    h.Action,
		"fromUid":   h.FromUID,
		"toUid":     h.ToUID,
		"info":      h.Info,
		"timestamp": epochMS(h.CreatedAt),
	}
}

func statusJSON(st *service.LicenseStatus) fiber.Map {
	m := fiber.Map{
		"ok":     st.OK,
		"status": st.Status,
	}
	if st.Plan != "" {
		m["plan"] = st.Plan
	}
	if st.Key != "" {
		m["key"] = st.Key
	}
	if st.Status == service.StatusValid || st.Status == service.StatusExpired {
		m["expiresAt"] = epochMSPtr(st.ExpiresAt)
	}
	return m
}
