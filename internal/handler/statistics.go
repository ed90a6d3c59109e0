package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// HandleLicenseStats 处理许可证统计信息请求
func HandleLicenseStats(c *fiber.Ctx) error {
	st, err := licenses.Stats()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取统计信息失败",
		})
	}
	return c.JSON(st)
}

// HandleListEvents 分页查询客户端统计事件
func HandleListEvents(c *fiber.Ctx) error {
	// 获取分页参数
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "10"))

	events, total, err := stats.List(page, pageSize)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取事件失败",
		})
	}

	out := make([]fiber.Map, 0, len(events))
	for _, e := range events {
		out = append(out, fiber.Map{
			"id":        e.ID,
			"uid":       e.UID,
			"event":     e.Event,
			"status":    e.Status,
			"meta":      e.Meta,
			"timestamp": epochMS(e.CreatedAt),
		})
	}

	return c.JSON(fiber.Map{
		"events": out,
		"total":  total,
		"page":   page,
	})
}
