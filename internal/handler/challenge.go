package handler

import (
	"github.com/gofiber/fiber/v2"
)

// 未指定key的旧版客户端都落在这个key上
const defaultChallengeKey = "default"

func HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}

// HandleAloha 旧版popup的UI样式接口，保留原样
func HandleAloha(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true, "name": "bundle"})
}

// HandleChallenge 下发当前旋转目标，禁止缓存
func HandleChallenge(c *fiber.Ctx) error {
	key := c.Query("key", defaultChallengeKey)
	t, err := targets.GetTarget(key)
	if err != nil {
		return err
	}
	c.Set("Cache-Control", "no-store")
	return c.JSON(fiber.Map{
		"key": t.Key,
		"target": fiber.Map{
			"thetaDeg": t.ThetaDeg,
			"phiDeg":   t.PhiDeg,
		},
		"tolerance": t.Tolerance,
	})
}

type ObserveInput struct {
	Key      string   `json:"key"`
	ThetaDeg *float64 `json:"thetaDeg"`
	PhiDeg   *float64 `json:"phiDeg"`
}

// HandleObserve 记录一条观测，按配置决定是否立即重算目标
func HandleObserve(c *fiber.Ctx) error {
	input := new(ObserveInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的输入数据",
		})
	}
	if input.ThetaDeg == nil || input.PhiDeg == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "thetaDeg和phiDeg必须为数值",
		})
	}
	if input.Key == "" {
		input.Key = defaultChallengeKey
	}

	if err := targets.SaveObservation(input.Key, *input.ThetaDeg, *input.PhiDeg); err != nil {
		return err
	}

	if !recomputeOnObserve {
		return c.JSON(fiber.Map{"ok": true})
	}

	t, err := targets.RecomputeTarget(input.Key, 0)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"ok": true,
		"target": fiber.Map{
			"thetaDeg": t.ThetaDeg,
			"phiDeg":   t.PhiDeg,
		},
		"tolerance": t.Tolerance,
	})
}

type StatInput struct {
	UID    string      `json:"uid"`
	Status string      `json:"status"`
	Event  string      `json:"event"`
	Meta   interface{} `json:"meta"`
}

// HandleStat 客户端上报统计事件
func HandleStat(c *fiber.Ctx) error {
	input := new(StatInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的输入数据",
		})
	}
	if err := stats.Record(input.UID, input.Event, input.Status, input.Meta); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true})
}
