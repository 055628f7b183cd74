package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"docsign/internal/service"
)

// Routes carries what RegisterRoutes wires.
type Routes struct {
	DB        Pinger
	Auth      fiber.Handler
	Templates service.TemplateService
	Instances service.InstanceService
	Sign      service.SignService
	GrantTTL  time.Duration
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app. Staff routes
// sit behind r.Auth; signing routes are public and gated by the invite token.
func RegisterRoutes(app *fiber.App, r Routes) {
	app.Get("/health", HealthCheck(r.DB))
	app.Get("/healthz", LivenessProbe())

	api := app.Group("/api")

	sign := api.Group("/sign/:token")
	sign.Get("/bootstrap", SignBootstrap(r.Sign))
	sign.Post("/verify-otp", SignVerifyOtp(r.Sign, r.GrantTTL))
	sign.Get("/pdf", SignPdf(r.Sign))
	sign.Post("/submit", SignSubmit(r.Sign))

	auth := r.Auth
	if auth == nil {
		auth = func(c *fiber.Ctx) error { return fiber.ErrUnauthorized }
	}

	tpl := api.Group("/templates", auth)
	tpl.Get("/", ListTemplates(r.Templates))
	tpl.Post("/", UploadTemplate(r.Templates))
	tpl.Get("/:id", GetTemplate(r.Templates))
	tpl.Get("/:id/download", DownloadTemplate(r.Templates))
	tpl.Delete("/:id", DeleteTemplate(r.Templates))
	tpl.Post("/:id/detect", DetectTemplateFields(r.Templates))
	tpl.Get("/:id/fields", GetTemplateFields(r.Templates))
	tpl.Post("/:id/fill", FillTemplate(r.Instances))

	inst := api.Group("/instances", auth)
	inst.Get("/:id", GetInstance(r.Instances))
	inst.Post("/:id/invites", ReissueInvite(r.Instances))
	inst.Delete("/:id/invites", RevokeInvites(r.Instances))
	inst.Get("/:id/audit", GetAuditTrail(r.Instances))
	inst.Get("/:id/audit.xlsx", ExportAuditTrail(r.Instances))
}
