package handler

import (
	"github.com/gofiber/fiber/v2"
)

// HandleListChallenges 全部目标，按更新时间倒序
func HandleListChallenges(c *fiber.Ctx) error {
	ts, err := targets.ListChallenges()
	if err != nil {
		return err
	}
	out := make([]fiber.Map, 0, len(ts))
	for i := range ts {
		out = append(out, targetJSON(&ts[i]))
	}
	return c.JSON(fiber.Map{"challenges": out})
}

// HandleGetTarget 单个目标，未知key返回默认值
func HandleGetTarget(c *fiber.Ctx) error {
	t, err := targets.GetTarget(c.Params("key"))
	if err != nil {
		return err
	}
	return c.JSON(targetJSON(t))
}

type SetTargetInput struct {
	Key       string   `json:"key"`
	ThetaDeg  *float64 `json:"thetaDeg"`
	PhiDeg    *float64 `json:"phiDeg"`
	Tolerance float64  `json:"tolerance"`
}

// HandleSetTarget 手动设置目标
func HandleSetTarget(c *fiber.Ctx) error {
	input := new(SetTargetInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的输入数据",
		})
	}
	if input.Key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "key不能为空",
		})
	}
	if input.ThetaDeg == nil || input.PhiDeg == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "thetaDeg和phiDeg必须为数值",
		})
	}

	t, err := targets.SetTarget(input.Key, *input.ThetaDeg, *input.PhiDeg, input.Tolerance)
	if err != nil {
		return err
	}
	return c.JSON(targetJSON(t))
}

// HandleDeleteTarget 删除目标及其观测记录，许可证不受影响
func HandleDeleteTarget(c *fiber.Ctx) error {
	existed, err := targets.DeleteKey(c.Params("key"))
	if err != nil {
		return err
	}
	if !existed {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "key不存在",
		})
	}
	return c.JSON(fiber.Map{"ok": true})
}

// HandleListObservations 最近的观测记录，倒序
func HandleListObservations(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 200)
	obs, err := targets.ListObservations(c.Params("key"), limit)
	if err != nil {
		return err
	}
	out := make([]fiber.Map, 0, len(obs))
	for i := range obs {
		out = append(out, observationJSON(&obs[i]))
	}
	return c.JSON(fiber.Map{
		"observations": out,
		"count":        len(out),
	})
}

// HandleRecomputeTarget 按最近观测重算目标
func HandleRecomputeTarget(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 200)
	t, err := targets.RecomputeTarget(c.Params("key"), limit)
	if err != nil {
		return err
	}
	return c.JSON(targetJSON(t))
}

// HandleCompactKey 裁剪观测记录并重算
func HandleCompactKey(c *fiber.Ctx) error {
	keep := c.QueryInt("keep", 200)
	t, err := targets.CompactKey(c.Params("key"), keep)
	if err != nil {
		return err
	}
	return c.JSON(targetJSON(t))
}
