package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crestline-hq/crestline-api/internal/middleware"
	"github.com/crestline-hq/crestline-api/internal/models"
	"github.com/crestline-hq/crestline-api/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Clients       *ClientHandler
	Staff         *StaffHandler
	Partners      *PartnerHandler
	Departments   *DepartmentHandler
	Notifications *NotificationHandler
	Events        *EventsHandler
	Ledgers       *LedgerHandler
	Assets        *AssetHandler
	Targets       *TargetHandler
	Reports       *ReportHandler
	Certificates  *CertificateHandler
	Files         *FilesHandler
	Metrics       *MetricsHandler
}

// RegisterRoutes mounts all API routes under the given prefix. Destructive
// admin routes additionally record an audit row through the sink.
func RegisterRoutes(r *gin.Engine, prefix string, authService *service.AuthService, audit middleware.AuditSink, h Handlers) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if h.Metrics != nil {
		r.GET("/metrics", h.Metrics.Prometheus)
	}

	api := r.Group(prefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)

		authed := auth.Group("", middleware.JWT(authService))
		authed.POST("/logout", h.Auth.Logout)
		authed.POST("/change-password", h.Auth.ChangePassword)
		authed.GET("/me", h.Auth.Me)
	}

	// Signed tokens carry their own authentication.
	api.GET("/files/download", h.Files.Download)

	protected := api.Group("", middleware.JWT(authService))

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	managers := middleware.RequireRoles(models.RoleAdmin, models.RoleDeptHead)
	internalUsers := middleware.RequireRoles(models.RoleAdmin, models.RoleDeptHead, models.RoleStaff)

	if h.Metrics != nil {
		protected.GET("/status", adminOnly, h.Metrics.Status)
	}

	users := protected.Group("/users")
	{
		users.GET("", adminOnly, h.Users.List)
		users.POST("", adminOnly, h.Users.Create)
		users.GET("/:id", middleware.RBAC("ADMIN", "SELF"), h.Users.Get)
		users.PUT("/:id", adminOnly, h.Users.Update)
		users.DELETE("/:id", adminOnly, middleware.Audit(audit, "user.delete", "users"), h.Users.Delete)
	}

	clients := protected.Group("/clients")
	{
		clients.GET("/me", middleware.RequireRoles(models.RoleClient), h.Clients.GetOwn)
		clients.GET("", internalUsers, h.Clients.List)
		clients.POST("", managers, h.Clients.Create)
		clients.GET("/:id", h.Clients.Get)
		clients.PUT("/:id", managers, h.Clients.Update)
		clients.DELETE("/:id", adminOnly, middleware.Audit(audit, "client.delete", "clients"), h.Clients.Delete)
	}

	staff := protected.Group("/staff", internalUsers)
	{
		staff.GET("", h.Staff.List)
		staff.POST("", adminOnly, h.Staff.Create)
		staff.GET("/:id", h.Staff.Get)
		staff.PUT("/:id", managers, h.Staff.Update)
		staff.DELETE("/:id", adminOnly, middleware.Audit(audit, "staff.delete", "staff"), h.Staff.Delete)
	}

	partners := protected.Group("/partners", internalUsers)
	{
		partners.GET("", h.Partners.List)
		partners.POST("", managers, h.Partners.Create)
		partners.GET("/:id", h.Partners.Get)
		partners.PUT("/:id", managers, h.Partners.Update)
		partners.DELETE("/:id", adminOnly, middleware.Audit(audit, "partner.delete", "partners"), h.Partners.Delete)
	}

	departments := protected.Group("/departments", internalUsers)
	{
		departments.GET("", h.Departments.List)
		departments.POST("", adminOnly, h.Departments.Create)
		departments.GET("/:id", h.Departments.Get)
		departments.PUT("/:id", adminOnly, h.Departments.Update)
		departments.DELETE("/:id", adminOnly, middleware.Audit(audit, "department.delete", "departments"), h.Departments.Delete)
	}

	notifications := protected.Group("/notifications")
	{
		notifications.POST("", managers, h.Notifications.Send)
		notifications.GET("", h.Notifications.Inbox)
		notifications.GET("/unread-count", h.Notifications.UnreadCount)
		notifications.GET("/:id/thread", h.Notifications.Thread)
		notifications.POST("/:id/reply", h.Notifications.Reply)
		notifications.POST("/:id/read", h.Notifications.MarkRead)
		notifications.POST("/:id/acknowledge", h.Notifications.Acknowledge)
		notifications.POST("/:id/attachments", h.Notifications.UploadAttachment)
		notifications.GET("/:id/attachments", h.Notifications.ListAttachments)
	}

	// EventSource clients pass the token as a query parameter.
	api.GET("/events", middleware.JWTAllowQuery(authService), h.Events.Stream)

	ledgers := protected.Group("/ledgers", internalUsers)
	{
		ledgers.GET("", h.Ledgers.List)
		ledgers.POST("", h.Ledgers.Create)
		ledgers.GET("/:id", h.Ledgers.Get)
		ledgers.GET("/:id/transactions", h.Ledgers.Transactions)
		ledgers.GET("/:id/export", h.Ledgers.Export)
		ledgers.POST("/:id/transactions", h.Ledgers.AddTransaction)
		ledgers.POST("/:id/decision", managers, h.Ledgers.Decide)
	}

	assets := protected.Group("/assets", internalUsers)
	{
		assets.GET("", h.Assets.List)
		assets.POST("", h.Assets.Create)
		assets.GET("/:id", h.Assets.Get)
		assets.GET("/:id/depreciation", h.Assets.Depreciation)
		assets.POST("/:id/decision", managers, h.Assets.Decide)
	}

	targets := protected.Group("/targets", internalUsers)
	{
		targets.GET("", h.Targets.ListByUser)
		targets.POST("", managers, h.Targets.Create)
		targets.GET("/:id", h.Targets.Get)
		targets.POST("/:id/close", managers, h.Targets.Close)
		targets.GET("/:id/progress", h.Targets.Progress)
	}

	reports := protected.Group("/progress-reports", internalUsers)
	{
		reports.GET("", h.Reports.List)
		reports.POST("", h.Reports.Create)
		reports.GET("/export", h.Reports.Export)
		reports.GET("/:id", h.Reports.Get)
	}

	certificates := protected.Group("/certificates")
	{
		certificates.GET("", h.Certificates.List)
		certificates.POST("", h.Certificates.Request)
		certificates.GET("/:id", h.Certificates.Get)
	}
}
