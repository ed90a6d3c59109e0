package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

// Admin 管理接口的静态令牌校验。支持 X-Admin-Token 头或 Bearer token，
// 配置了tokenHash（bcrypt）时优先用哈希比对，否则恒定时间比较明文。
func Admin(token, tokenHash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		supplied := c.Get("X-Admin-Token")
		if supplied == "" {
			authHeader := c.Get("Authorization")
			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) == 2 && tokenParts[0] == "Bearer" {
				supplied = tokenParts[1]
			}
		}
		if supplied == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "未提供认证令牌",
			})
		}

		if tokenHash != "" {
			if bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(supplied)) != nil {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "无效的认证令牌",
				})
			}
		} else if token == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(supplied)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "无效的认证令牌",
			})
		}

		return c.Next()
	}
}
