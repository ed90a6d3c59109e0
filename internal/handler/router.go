package handler

import (
	"github.com/gofiber/fiber/v2"
)

// Register 挂载全部路由。公开接口在/api/*和根路径各挂一份，
// 旧版background.js两种前缀都在用；管理接口只挂/api/admin并由adminAuth保护。
func Register(app *fiber.App, adminAuth fiber.Handler) {
	for _, p := range []string{"/api", ""} {
		app.Get(p+"/health", HandleHealth)
		app.Get(p+"/challenge", HandleChallenge)
		app.Post(p+"/observe", HandleObserve)
		app.Get(p+"/aloha/:uid", HandleAloha)
		app.Get(p+"/check/:uid", HandleCheck)
		// 旧版路由名是tranfer，新旧拼写都保留
		app.Get(p+"/tranfer/:fromUid", HandleTransfer)
		app.Get(p+"/transfer/:fromUid", HandleTransfer)
		app.Post(p+"/key", HandleKey)
		app.Post(p+"/stat", HandleStat)
	}

	admin := app.Group("/api/admin", adminAuth)
	admin.Get("/challenges", HandleListChallenges)
	admin.Post("/targets", HandleSetTarget)
	admin.Get("/targets/:key", HandleGetTarget)
	admin.Delete("/targets/:key", HandleDeleteTarget)
	admin.Get("/observations/:key", HandleListObservations)
	admin.Post("/recompute/:key", HandleRecomputeTarget)
	admin.Post("/compact/:key", HandleCompactKey)

	admin.Get("/licenses", HandleListLicenses)
	admin.Post("/licenses", HandleUpsertLicense)
	admin.Post("/licenses/generate", HandleGenerateLicense)
	admin.Get("/licenses/:key", HandleGetLicense)
	admin.Post("/licenses/:key/bind", HandleBindLicense)
	admin.Post("/licenses/:key/activate", HandleActivateLicense)
	admin.Post("/licenses/:key/deactivate", HandleDeactivateLicense)
	admin.Post("/licenses/:key/renew", HandleRenewLicense)
	admin.Get("/licenses/:key/history", HandleLicenseHistory)
	admin.Get("/check/:uid", HandleAdminCheck)
	admin.Get("/stats", HandleLicenseStats)
	admin.Get("/events", HandleListEvents)
	admin.Post("/export", HandleExportLicenses)
}
