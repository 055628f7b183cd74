package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"docsign/internal/service"
)

// GrantCookie names the cookie that proves OTP verification for token.
func GrantCookie(token string) string {
	return "sign_" + token + "_ok"
}

type verifyOtpRequest struct {
	Otp string `json:"otp"`
}

// SignBootstrap godoc
// @Summary  Invite summary for the signing page
// @Tags     sign
// @Param    token path string true "invite token"
// @Success  200 {object} service.BootstrapView
// @Failure  404 {object} errorPayload
// @Router   /api/sign/{token}/bootstrap [get]
func SignBootstrap(svc service.SignService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, err := svc.Bootstrap(c.UserContext(), c.Params("token"), fingerprint(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(view)
	}
}

// SignVerifyOtp godoc
// @Summary  Verify the one-time passcode and set the grant cookie
// @Tags     sign
// @Accept   json
// @Param    token path string true "invite token"
// @Param    body body verifyOtpRequest true "passcode"
// @Success  200
// @Failure  401 {object} errorPayload
// @Router   /api/sign/{token}/verify-otp [post]
func SignVerifyOtp(svc service.SignService, grantTTL time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req verifyOtpRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body", nil)
		}
		token := c.Params("token")
		grantID, err := svc.VerifyOtp(c.UserContext(), token, req.Otp, fingerprint(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		c.Cookie(&fiber.Cookie{
			Name:     GrantCookie(token),
			Value:    grantID,
			Path:     "/",
			Expires:  time.Now().Add(grantTTL),
			HTTPOnly: true,
			Secure:   c.Protocol() == "https",
			SameSite: fiber.CookieSameSiteLaxMode,
		})
		return c.JSON(fiber.Map{"verified": true})
	}
}

func SignPdf(svc service.SignService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Params("token")
		rc, err := svc.OpenPdf(c.UserContext(), token, c.Cookies(GrantCookie(token)))
		if err != nil {
			return writeServiceError(c, err)
		}
		c.Type("pdf")
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.SendStream(rc)
	}
}

// SignSubmit godoc
// @Summary  Submit the drawn signature
// @Tags     sign
// @Accept   json
// @Param    token path string true "invite token"
// @Param    body body service.Submission true "signature and placement"
// @Success  200 {object} service.SubmitResult
// @Failure  409 {object} errorPayload
// @Failure  422 {object} errorPayload
// @Router   /api/sign/{token}/submit [post]
func SignSubmit(svc service.SignService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var sub service.Submission
		if err := c.BodyParser(&sub); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body", nil)
		}
		token := c.Params("token")
		res, err := svc.Submit(c.UserContext(), token, c.Cookies(GrantCookie(token)), sub, fingerprint(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		c.ClearCookie(GrantCookie(token))
		return c.JSON(res)
	}
}
