package main

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"mpbot-backend/internal/config"
	"mpbot-backend/internal/handler"
	"mpbot-backend/internal/middleware"
	"mpbot-backend/internal/service"
	"mpbot-backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("加载配置失败:", err)
	}

	// 初始化存储后端
	var st store.Store
	switch cfg.StoreBackend {
	case "file":
		st, err = store.NewFile(cfg.StoreFile)
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.DataDir)
	default:
		log.Fatalf("未知的存储后端: %s", cfg.StoreBackend)
	}
	if err != nil {
		log.Fatal("初始化存储失败:", err)
	}

	sheetSync, err := service.NewSheetSyncService(
		cfg.SheetSyncEnabled, cfg.SheetCredentials, cfg.SheetSpreadsheetID, cfg.SheetName)
	if err != nil {
		log.Fatal("初始化Sheet同步失败:", err)
	}

	handler.Init(handler.Services{
		Targets: service.NewTargetService(st, service.TargetDefaults{
			ThetaDeg:  cfg.DefaultTheta,
			PhiDeg:    cfg.DefaultPhi,
			Tolerance: cfg.DefaultTolerance,
		}, cfg.MaxObservations),
		Licenses:           service.NewLicenseService(st),
		Stats:              service.NewStatService(st),
		SheetSync:          sheetSync,
		RecomputeOnObserve: cfg.RecomputeOnObserve,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// 中间件
	app.Use(logger.New())
	app.Use(cors.New())

	handler.Register(app, middleware.Admin(cfg.AdminToken, cfg.AdminTokenHash))

	log.Fatal(app.Listen(cfg.Listen))
}
