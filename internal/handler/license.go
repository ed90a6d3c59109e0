package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"mpbot-backend/internal/model"
	"mpbot-backend/internal/service"
)

type KeyInput struct {
	Key        string      `json:"key"`
	Plan       *string     `json:"plan"`
	ExpiresAt  interface{} `json:"expiresAt"`
	MaxDevices *int        `json:"maxDevices"`
	Active     *bool       `json:"active"`
	UID        *string     `json:"uid"`
}

func (in *KeyInput) toUpsert() model.LicenseUpsert {
	up := model.LicenseUpsert{
		Key:        in.Key,
		Plan:       in.Plan,
		MaxDevices: in.MaxDevices,
		Active:     in.Active,
		UID:        in.UID,
	}
	if in.ExpiresAt != nil {
		up.ExpiresAt = parseExpiry(in.ExpiresAt)
	}
	return up
}

// HandleKey 客户端上报许可证key，可附带uid立即绑定。
// 绑定冲突不算失败，bound=false告知调用方当前归属未变。
func HandleKey(c *fiber.Ctx) error {
	input := new(KeyInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的输入数据",
		})
	}
	if input.Key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "许可证密钥不能为空",
		})
	}

	lic, err := licenses.Upsert(input.toUpsert())
	if err != nil && !errors.Is(err, service.ErrBoundToOther) {
		if errors.Is(err, service.ErrValidation) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return err
	}

	if sheetSync != nil {
		go sheetSync.SyncLicense(lic)
	}

	resp := licenseJSON(lic)
	resp["ok"] = true
	if input.UID != nil && *input.UID != "" {
		resp["bound"] = err == nil && lic.Bound() == *input.UID
	}
	return c.JSON(resp)
}

// HandleCheck 设备轮询授权状态。带key参数时先走一次首次使用自动绑定，
// 绑定冲突或key不存在不影响后面的状态查询。
func HandleCheck(c *fiber.Ctx) error {
	uid := c.Params("uid")

	if key := c.Query("key"); key != "" {
		lic, err := licenses.Transfer(key, nil, uid)
		switch {
		case err == nil:
			if sheetSync != nil {
				go sheetSync.SyncLicense(lic)
			}
		case errors.Is(err, service.ErrBoundToOther),
			errors.Is(err, service.ErrNotFound),
			errors.Is(err, service.ErrValidation):
			// 自动绑定失败按未绑定继续查询
		default:
			return err
		}
	}

	st, err := licenses.Check(uid)
	if err != nil {
		return err
	}
	resp := statusJSON(st)
	resp["uid"] = uid
	return c.JSON(resp)
}

// HandleTransfer 显式转移绑定。路由沿用旧版拼写/tranfer，
// 查询参数tranferTo/transferTo/toUid都认。
func HandleTransfer(c *fiber.Ctx) error {
	fromParam := c.Params("fromUid")
	toUID := c.Query("tranferTo")
	if toUID == "" {
		toUID = c.Query("transferTo")
	}
	if toUID == "" {
		toUID = c.Query("toUid")
	}
	key := c.Query("key")

	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "许可证密钥不能为空",
		})
	}
	if toUID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "缺少目标设备ID",
		})
	}

	// fromUid传null表示接受任何未绑定状态（自动绑定路径）
	var fromUID *string
	if fromParam != "" && fromParam != "null" && fromParam != "none" {
		fromUID = &fromParam
	}

	lic, err := licenses.Transfer(key, fromUID, toUID)
	switch {
	case errors.Is(err, service.ErrBoundToOther):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"ok":    false,
			"error": "bound-to-other",
		})
	case errors.Is(err, service.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "许可证不存在",
		})
	case errors.Is(err, service.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case err != nil:
		return err
	}

	if sheetSync != nil {
		go sheetSync.SyncLicense(lic)
	}

	resp := licenseJSON(lic)
	resp["ok"] = true
	resp["fromUid"] = fromParam
	resp["toUid"] = toUID
	return c.JSON(resp)
}

// HandleListLicenses 管理员获取所有许可证数据
func HandleListLicenses(c *fiber.Ctx) error {
	all, err := licenses.List()
	if err != nil {
		return err
	}
	out := make([]fiber.Map, 0, len(all))
	for i := range all {
		out = append(out, licenseJSON(&all[i]))
	}
	return c.JSON(fiber.Map{"licenses": out})
}

// HandleUpsertLicense 管理员创建/更新许可证，带uid时绑定冲突返回403
func HandleUpsertLicense(c *fiber.Ctx) error {
	input := new(KeyInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的输入数据",
		})
	}
	if input.Key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "许可证密钥不能为空",
		})
	}

	lic, err := licenses.Upsert(input.toUpsert())
	switch {
	case errors.Is(err, service.ErrBoundToOther):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"ok":    false,
			"error": "bound-to-other",
		})
	case errors.Is(err, service.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case err != nil:
		return err
	}

	if sheetSync != nil {
		go sheetSync.SyncLicense(lic)
	}
	return c.JSON(licenseJSON(lic))
}

type GenerateInput struct {
	Plan       string      `json:"plan"`
	ExpiresAt  interface{} `json:"expiresAt"`
	MaxDevices int         `json:"maxDevices"`
}

// HandleGenerateLicense 签发一个新的许可证密钥
func HandleGenerateLicense(c *fiber.Ctx) error {
	input := new(GenerateInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的输入数据",
		})
	}

	lic, err := licenses.Generate(input.Plan, parseExpiry(input.ExpiresAt), input.MaxDevices)
	if err != nil {
		return err
	}
	if sheetSync != nil {
		go sheetSync.SyncLicense(lic)
	}
	return c.Status(fiber.StatusCreated).JSON(licenseJSON(lic))
}

// HandleGetLicense 获取单个许可证详情
func HandleGetLicense(c *fiber.Ctx) error {
	lic, err := licenses.GetByKey(c.Params("key"))
	if errors.Is(err, service.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "许可证不存在",
		})
	}
	if err != nil {
		return err
	}
	return c.JSON(licenseJSON(lic))
}

type BindInput struct {
	UID string `json:"uid"`
}

// HandleBindLicense 管理员手动绑定设备
func HandleBindLicense(c *fiber.Ctx) error {
	input := new(BindInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的输入数据",
		})
	}

	lic, err := licenses.SetUID(c.Params("key"), input.UID)
	switch {
	case errors.Is(err, service.ErrBoundToOther):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"ok":    false,
			"error": "bound-to-other",
		})
	case errors.Is(err, service.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "许可证不存在",
		})
	case errors.Is(err, service.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case err != nil:
		return err
	}

	if sheetSync != nil {
		go sheetSync.SyncLicense(lic)
	}
	return c.JSON(licenseJSON(lic))
}

func HandleActivateLicense(c *fiber.Ctx) error {
	return handleSetActive(c, true)
}

func HandleDeactivateLicense(c *fiber.Ctx) error {
	return handleSetActive(c, false)
}

func handleSetActive(c *fiber.Ctx, active bool) error {
	var lic *model.License
	var err error
	if active {
		lic, err = licenses.Activate(c.Params("key"))
	} else {
		lic, err = licenses.Deactivate(c.Params("key"))
	}
	if errors.Is(err, service.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "许可证不存在",
		})
	}
	if err != nil {
		return err
	}
	if sheetSync != nil {
		go sheetSync.SyncLicense(lic)
	}
	return c.JSON(licenseJSON(lic))
}

type RenewInput struct {
	ExpiresAt interface{} `json:"expiresAt"`
}

// HandleRenewLicense 续期，expiresAt为空改为永不过期
func HandleRenewLicense(c *fiber.Ctx) error {
	input := new(RenewInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的输入数据",
		})
	}

	lic, err := licenses.Renew(c.Params("key"), parseExpiry(input.ExpiresAt))
	if errors.Is(err, service.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "许可证不存在",
		})
	}
	if err != nil {
		return err
	}
	if sheetSync != nil {
		go sheetSync.SyncLicense(lic)
	}
	return c.JSON(licenseJSON(lic))
}

// HandleLicenseHistory 查询许可证操作历史
func HandleLicenseHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	hs, err := licenses.History(c.Params("key"), limit)
	if err != nil {
		return err
	}
	out := make([]fiber.Map, 0, len(hs))
	for i := range hs {
		out = append(out, historyJSON(&hs[i]))
	}
	return c.JSON(fiber.Map{"history": out})
}

// HandleAdminCheck 管理员查询设备授权状态，不触发自动绑定
func HandleAdminCheck(c *fiber.Ctx) error {
	uid := c.Params("uid")
	st, err := licenses.Check(uid)
	if err != nil {
		return err
	}
	resp := statusJSON(st)
	resp["uid"] = uid
	return c.JSON(resp)
}

// HandleExportLicenses 全量导出到Google Sheet
func HandleExportLicenses(c *fiber.Ctx) error {
	if sheetSync == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"error": "Sheet同步未启用",
		})
	}
	all, err := licenses.List()
	if err != nil {
		return err
	}
	if err := sheetSync.BatchSyncLicenses(all); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "exported": len(all)})
}
