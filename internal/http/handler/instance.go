package handler

import (
	"github.com/gofiber/fiber/v2"

	"docsign/internal/service"
)

// FillTemplate godoc
// @Summary  Fill a template, locate signature slots and invite the signer
// @Tags     instances
// @Accept   json
// @Param    body body service.FillRequest true "values and recipient"
// @Success  201 {object} service.FillResult
// @Failure  422 {object} errorPayload
// @Router   /api/templates/{id}/fill [post]
func FillTemplate(svc service.InstanceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		own, err := owner(c)
		if err != nil {
			return err
		}
		id, ok := idParam(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format", nil)
		}
		var req service.FillRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body", nil)
		}
		res, err := svc.Fill(c.UserContext(), own, id, req, fingerprint(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

func GetInstance(svc service.InstanceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		own, err := owner(c)
		if err != nil {
			return err
		}
		id, ok := idParam(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format", nil)
		}
		view, err := svc.Get(c.UserContext(), own, id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(view)
	}
}

// ReissueInvite revokes the active invites of an instance and sends a new one.
func ReissueInvite(svc service.InstanceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		own, err := owner(c)
		if err != nil {
			return err
		}
		id, ok := idParam(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format", nil)
		}
		var r service.Recipient
		if err := c.BodyParser(&r); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body", nil)
		}
		issued, err := svc.Reissue(c.UserContext(), own, id, r, fingerprint(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(issued)
	}
}

func RevokeInvites(svc service.InstanceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		own, err := owner(c)
		if err != nil {
			return err
		}
		id, ok := idParam(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format", nil)
		}
		ids, err := svc.Revoke(c.UserContext(), own, id, fingerprint(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"revoked": ids})
	}
}

func GetAuditTrail(svc service.InstanceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		own, err := owner(c)
		if err != nil {
			return err
		}
		id, ok := idParam(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format", nil)
		}
		events, err := svc.AuditTrail(c.UserContext(), own, id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"data": events})
	}
}

func ExportAuditTrail(svc service.InstanceService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		own, err := owner(c)
		if err != nil {
			return err
		}
		id, ok := idParam(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format", nil)
		}
		b, err := svc.AuditWorkbook(c.UserContext(), own, id)
		if err != nil {
			return writeServiceError(c, err)
		}
		c.Attachment("audit-" + id + ".xlsx")
		c.Type("xlsx")
		return c.Send(b)
	}
}
