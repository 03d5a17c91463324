package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agencydesk/internal/cache"
	"agencydesk/internal/config"
	"agencydesk/internal/database"
	"agencydesk/internal/handlers"
	"agencydesk/internal/logging"
	"agencydesk/internal/middleware"
	"agencydesk/internal/models"
	"agencydesk/internal/services"
	"agencydesk/internal/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	log := logging.New(os.Getenv("LOG_LEVEL"))

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// Log pool stats periodically
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stats := db.Stats()
			log.WithFields(logrus.Fields{
				"open":   stats.OpenConnections,
				"idle":   stats.Idle,
				"in_use": stats.InUse,
				"waits":  stats.WaitCount,
			}).Debug("db pool")
		}
	}()

	statsCache := cache.New(&cfg.Redis, log)
	defer statsCache.Close()

	authService := services.NewAuthService(db, cfg, log)
	clientService := services.NewClientService(db)
	projectService := services.NewProjectService(db)
	invoiceService := services.NewInvoiceService(db, log)
	pdfService := services.NewPDFService()
	fileService := services.NewFileService(db, cfg, log)
	settingsService := services.NewSettingsService(db)
	dashboardService := services.NewDashboardService(db, statsCache)
	reportService := services.NewReportService(db)

	handler := handlers.NewHandler(cfg, log,
		authService, clientService, projectService, invoiceService,
		pdfService, fileService, settingsService, dashboardService, reportService)

	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit)
	defer rateLimiter.Stop()

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go services.NewSweeperService(invoiceService, log, time.Hour).Run(sweepCtx)

	if cfg.Server.Mode == "release" || cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      setupRouter(cfg, log, db, handler, rateLimiter, authService),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("server forced to shutdown: %v", err)
	}

	log.Info("server exited")
}

func setupRouter(cfg *config.Config, log *logrus.Logger, db *database.DB,
	handler *handlers.Handler, rateLimiter *middleware.RateLimiter,
	authService *services.AuthService) *gin.Engine {

	r := gin.New()

	r.Use(utils.RecoveryMiddleware(log))
	r.Use(utils.RequestIDMiddleware())
	r.Use(utils.LoggerMiddleware(log))
	r.Use(middleware.Metrics())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", healthCheckHandler(db))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Browser pages behind the role guard
	pages := r.Group("/")
	pages.Use(middleware.RoleGuard(authService, cfg))
	{
		pages.GET("/login", handler.PageLogin)
		pages.GET("/signup", handler.PageSignup)
		pages.GET("/select-role", handler.PageSelectRole)
		pages.GET("/dashboard", handler.PageDashboard)
		pages.GET("/dashboard/employee", handler.PageDashboardEmployee)
		pages.GET("/dashboard/employee/*path", handler.PageDashboardEmployee)
		pages.GET("/dashboard/client", handler.PageDashboardClient)
		pages.GET("/dashboard/client/*path", handler.PageDashboardClient)
	}

	rateLimit := middleware.RateLimitMiddleware(rateLimiter)

	public := r.Group("/api/v1")
	{
		public.POST("/auth/signup", rateLimit, handler.Signup)
		public.POST("/auth/login", rateLimit, handler.Login)
		public.POST("/auth/refresh", handler.RefreshToken)
	}

	anyRole := middleware.RequireAuth(authService, cfg)
	staffOnly := middleware.RequireAuth(authService, cfg, models.RoleAdmin, models.RoleProjectManager)
	adminOnly := middleware.RequireAuth(authService, cfg, models.RoleAdmin)

	protected := r.Group("/api/v1")
	protected.Use(rateLimit)
	{
		// Account
		protected.GET("/me", anyRole, handler.GetMe)
		protected.POST("/logout", anyRole, handler.Logout)
		protected.GET("/users", adminOnly, handler.ListUsers)
		protected.PUT("/users/:id/role", adminOnly, handler.ChangeUserRole)

		// Clients
		protected.POST("/clients", staffOnly, handler.CreateClient)
		protected.GET("/clients", staffOnly, handler.ListClients)
		protected.GET("/clients/:id", anyRole, handler.GetClient)
		protected.PUT("/clients/:id", staffOnly, handler.UpdateClient)
		protected.DELETE("/clients/:id", adminOnly, handler.DeleteClient)
		protected.GET("/clients/:id/stats", anyRole, handler.GetClientStats)

		// Projects
		protected.POST("/projects", staffOnly, handler.CreateProject)
		protected.GET("/projects", anyRole, handler.ListProjects)
		protected.GET("/projects/:id", anyRole, handler.GetProject)
		protected.PUT("/projects/:id", staffOnly, handler.UpdateProject)
		protected.PUT("/projects/:id/status", staffOnly, handler.ChangeProjectStatus)
		protected.PUT("/projects/:id/progress", staffOnly, handler.SetProjectProgress)
		protected.DELETE("/projects/:id", adminOnly, handler.DeleteProject)
		protected.POST("/projects/:id/milestones", staffOnly, handler.AddMilestone)
		protected.PUT("/milestones/:id/status", staffOnly, handler.ChangeMilestoneStatus)

		// Invoices
		protected.POST("/invoices", staffOnly, handler.CreateInvoice)
		protected.GET("/invoices", anyRole, handler.ListInvoices)
		protected.GET("/invoices/:id", anyRole, handler.GetInvoice)
		protected.PUT("/invoices/:id", staffOnly, handler.UpdateInvoice)
		protected.POST("/invoices/:id/send", staffOnly, handler.SendInvoice)
		protected.POST("/invoices/:id/viewed", anyRole, handler.MarkInvoiceViewed)
		protected.POST("/invoices/:id/payments", staffOnly, handler.RecordPayment)
		protected.POST("/invoices/:id/cancel", staffOnly, handler.CancelInvoice)
		protected.DELETE("/invoices/:id", adminOnly, handler.DeleteInvoice)
		protected.GET("/invoices/:id/pdf", anyRole, handler.DownloadInvoicePDF)

		// Files
		protected.POST("/files", staffOnly, handler.UploadFile)
		protected.GET("/files", anyRole, handler.ListFiles)
		protected.GET("/files/:id/download", anyRole, handler.DownloadFile)
		protected.DELETE("/files/:id", staffOnly, handler.DeleteFile)

		// Settings
		protected.GET("/settings/company", adminOnly, handler.GetCompanySettings)
		protected.PUT("/settings/company", adminOnly, handler.UpdateCompanySettings)

		// Dashboard stats
		protected.GET("/dashboard/stats", anyRole, handler.GetDashboardStats)

		// Reports
		protected.GET("/reports/invoices.xlsx", adminOnly, handler.ExportInvoiceReport)
	}

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}
