package handler

import (
	"github.com/gofiber/fiber/v2"

	"docsign/internal/http/middleware"
	"docsign/internal/service"
)

// ListTemplates godoc
// @Summary  List templates visible to the caller
// @Tags     templates
// @Param    limit  query int false "page size" default(10)
// @Param    offset query int false "offset" default(0)
// @Success  200 {object} service.TemplateListResult
// @Router   /api/templates [get]
func ListTemplates(svc service.TemplateService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		own, err := owner(c)
		if err != nil {
			return err
		}
		limit, err := queryInt(c, "limit", 10)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit", nil)
		}
		offset, err := queryInt(c, "offset", 0)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset", nil)
		}
		res, err := svc.List(c.UserContext(), own, limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// UploadTemplate godoc
// @Summary  Upload a DOCX template (multipart field "file")
// @Tags     templates
// @Accept   multipart/form-data
// @Success  201 {object} model.Template
// @Router   /api/templates [post]
func UploadTemplate(svc service.TemplateService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		own, err := owner(c)
		if err != nil {
			return err
		}
		if own == "" {
			// admins upload on behalf of a customer
			own = c.FormValue("customerId")
			if own == "" {
				p, _ := middleware.GetPrincipal(c)
				own = p.CustomerID
			}
		}

		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required", nil)
		}
		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file", nil)
		}
		defer f.Close()

		tpl, err := svc.Upload(c.UserContext(), own, f, fh.Filename)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(tpl)
	}
}

func GetTemplate(svc service.TemplateService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		own, err := owner(c)
		if err != nil {
			return err
		}
		id, ok := idParam(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format", nil)
		}
		tpl, err := svc.Get(c.UserContext(), own, id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(tpl)
	}
}

func DownloadTemplate(svc service.TemplateService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		own, err := owner(c)
		if err != nil {
			return err
		}
		id, ok := idParam(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format", nil)
		}
		rc, tpl, err := svc.Download(c.UserContext(), own, id)
		if err != nil {
			return writeServiceError(c, err)
		}
		c.Attachment(tpl.FileName)
		c.Type("docx")
		return c.SendStream(rc)
	}
}

func DeleteTemplate(svc service.TemplateService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		own, err := owner(c)
		if err != nil {
			return err
		}
		id, ok := idParam(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format", nil)
		}
		if err := svc.Delete(c.UserContext(), own, id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DetectTemplateFields godoc
// @Summary  Rescan a template for fields and signature anchors
// @Tags     templates
// @Success  200 {object} service.Detection
// @Router   /api/templates/{id}/detect [post]
func DetectTemplateFields(svc service.TemplateService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		own, err := owner(c)
		if err != nil {
			return err
		}
		id, ok := idParam(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format", nil)
		}
		det, err := svc.DetectFields(c.UserContext(), own, id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(det)
	}
}

func GetTemplateFields(svc service.TemplateService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		own, err := owner(c)
		if err != nil {
			return err
		}
		id, ok := idParam(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format", nil)
		}
		det, err := svc.Fields(c.UserContext(), own, id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(det)
	}
}
