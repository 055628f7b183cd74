package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"docsign/docs"
	"docsign/internal/config"
	"docsign/internal/database"
	"docsign/internal/database/migration"
	"docsign/internal/grant"
	handlers "docsign/internal/http/handler"
	"docsign/internal/http/middleware"
	"docsign/internal/logger"
	"docsign/internal/metrics"
	"docsign/internal/notify"
	"docsign/internal/otel"
	"docsign/internal/pdfdoc"
	"docsign/internal/render"
	"docsign/internal/repository/postgres"
	"docsign/internal/seal"
	"docsign/internal/service"
	"docsign/internal/storage"
)

// @title DocSign API
// @version 1.0
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Service)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, log)
	if err != nil {
		log.Fatal("failed to initialize tracing", zap.Error(err))
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, log); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		log.Fatal("failed to initialize object storage", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	mailer, err := notify.New(cfg.SMTP, log)
	if err != nil {
		log.Fatal("failed to initialize mailer", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewPrometheus(reg)
	if err != nil {
		log.Fatal("failed to register metrics", zap.Error(err))
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.Fatal("failed to register http metrics", zap.Error(err))
	}

	templates := postgres.NewTemplatePostgres(db)
	instances := postgres.NewInstancePostgres(db)
	invites := postgres.NewInvitePostgres(db)
	auditRepo := postgres.NewAuditPostgres(db)
	grants := grant.NewRedis(rdb)
	engine := pdfdoc.NewEngine()
	locator := service.NewLocator(render.NewGotenberg(cfg.Gotenberg), engine, cfg.Locator, recorder, log)

	templateSvc := service.NewTemplateService(objStore, templates, cfg.Upload.MaxDocxBytes)
	instanceSvc := service.NewInstanceService(service.InstanceDeps{
		Store:     objStore,
		Templates: templates,
		Instances: instances,
		Invites:   invites,
		Audit:     auditRepo,
		Grants:    grants,
		Locator:   locator,
		Notifier:  mailer,
		Invite:    cfg.Invite,
		BaseURL:   cfg.WebBaseURL,
		Log:       log,
	})
	signSvc := service.NewSignService(service.SignDeps{
		Store:        objStore,
		Templates:    templates,
		Instances:    instances,
		Invites:      invites,
		Audit:        auditRepo,
		Grants:       grants,
		Locker:       postgres.NewAdvisoryLocker(db),
		Engine:       engine,
		Sealer:       seal.NewSealer(seal.NewCertProvider(cfg.Signing), cfg.Signing.Reason, cfg.Signing.Location, log),
		Notifier:     mailer,
		Metrics:      recorder,
		Invite:       cfg.Invite,
		SealRequired: cfg.Signing.Required,
		Log:          log,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    int(cfg.Upload.MaxDocxBytes) + 1<<20,
	})

	// Register global middleware
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.Logger(log))
	app.Use(httpMetrics.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	handlers.RegisterRoutes(app, handlers.Routes{
		DB:        db,
		Auth:      middleware.Auth(cfg.Auth),
		Templates: templateSvc,
		Instances: instanceSvc,
		Sign:      signSvc,
		GrantTTL:  cfg.Invite.GrantTTL,
	})

	// Swagger UI with dynamic host and scheme
	docs.SwaggerInfo.Host = cfg.AppHost
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error("server shutdown failed", zap.Error(err))
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error("tracing shutdown failed", zap.Error(err))
		}
	}()

	addr := ":" + cfg.Port
	log.Info("server starting", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("failed to start server", zap.Error(err))
	}
}
