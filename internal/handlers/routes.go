package handlers

import (
	"reviewdesk/internal/access"
	"reviewdesk/internal/middleware"
	"reviewdesk/internal/models"

	"github.com/labstack/echo/v4"
)

// Handlers groups every HTTP handler set served by the API.
type Handlers struct {
	Auth        *AuthHandlers
	Tenants     *TenantHandlers
	Users       *UserHandlers
	Invitations *InvitationHandlers
	Reviews     *ReviewHandlers
	Invoices    *InvoiceHandlers
	Settings    *SettingsHandlers
	AuditLogs   *AuditLogsHandlers
	Jobs        *JobHandlers
	Health      *HealthHandlers
}

// RouteDeps are the middlewares the routes are guarded with.
type RouteDeps struct {
	Tokens  middleware.IdentityParser
	Guard   *middleware.RouteGuard
	Audit   *middleware.AuditMiddleware
	Version *middleware.VersionMiddleware
}

// RegisterRoutes mounts the API on e. Everything under /v1 first gets an
// optional identity; each group's guard then decides.
func RegisterRoutes(e *echo.Echo, h *Handlers, deps RouteDeps) {
	e.GET("/health", h.Health.HealthCheck)
	e.GET("/health/ready", h.Health.ReadinessCheck)
	e.GET("/health/live", h.Health.LivenessCheck)

	v1 := deps.Version.VersionRoute(e, "v1")
	v1.Use(middleware.OptionalJWTMiddleware(deps.Tokens))
	requireIdentity := middleware.JWTMiddleware(deps.Tokens)

	auth := v1.Group("/auth")
	auth.POST("/sign-in", h.Auth.SignIn)
	auth.POST("/magic-link", h.Auth.SendMagicLink)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/sign-out", h.Auth.SignOut)
	auth.GET("/accept", h.Auth.AcceptLink)
	auth.POST("/accept", h.Auth.AcceptInvitation, requireIdentity)
	auth.POST("/accept/session", h.Auth.AcceptSession)
	auth.POST("/password", h.Auth.SetPassword, requireIdentity)
	auth.GET("/me", h.Auth.Me, deps.Guard.RequireRole(access.AnyRole))

	public := v1.Group("/public")
	public.GET("/tenants/:tenant_id", h.Reviews.PublicProfile)
	public.POST("/tenants/:tenant_id/reviews", h.Reviews.SubmitReview)

	member := v1.Group("", deps.Guard.RequireRole(models.RoleUser))
	member.GET("/tenant", h.Tenants.GetOwnTenant)
	member.GET("/reviews", h.Reviews.ListReviews)
	member.GET("/reviews/summary", h.Reviews.ReviewSummary)
	member.GET("/reviews/stream", h.Reviews.StreamReviews)
	member.GET("/reviews/:id", h.Reviews.GetReview)
	member.GET("/settings", h.Settings.GetSettings)

	invoices := member.Group("/invoices", deps.Audit.AuditDenied("invoices"))
	invoices.GET("", h.Invoices.ListInvoices)
	invoices.POST("", h.Invoices.CreateInvoice)
	invoices.GET("/:id", h.Invoices.GetInvoice)
	invoices.PUT("/:id", h.Invoices.UpdateInvoice)
	invoices.PUT("/:id/status", h.Invoices.UpdateInvoiceStatus)
	invoices.DELETE("/:id", h.Invoices.DeleteInvoice)
	invoices.POST("/:id/pdf", h.Invoices.GenerateInvoicePDF)

	admin := v1.Group("", deps.Guard.RequireRole(models.RoleTenantAdmin))
	admin.PUT("/tenant", h.Tenants.UpdateOwnTenant)
	admin.PUT("/settings", h.Settings.UpsertSettings)
	admin.POST("/settings/logo", h.Settings.UploadLogo)
	admin.GET("/audit-logs", h.AuditLogs.ListAuditLogs)

	users := admin.Group("/users", deps.Audit.AuditDenied("profiles"))
	users.GET("", h.Users.ListUsers)
	users.GET("/:id", h.Users.GetUser)
	users.PUT("/:id/role", h.Users.ChangeRole)
	users.PUT("/:id/status", h.Users.SetUserStatus)

	invitations := admin.Group("/invitations", deps.Audit.AuditDenied("invitations"))
	invitations.GET("", h.Invitations.ListInvitations)
	invitations.POST("", h.Invitations.IssueInvitation)
	invitations.DELETE("/:id", h.Invitations.RevokeInvitation)

	master := v1.Group("/master", deps.Guard.RequireRole(models.RoleSuperAdmin))
	master.GET("/tenants", h.Tenants.ListTenants)
	master.POST("/tenants", h.Tenants.CreateTenant)
	master.GET("/tenants/:id", h.Tenants.GetTenant)
	master.PUT("/tenants/:id", h.Tenants.UpdateTenant)
	master.PUT("/tenants/:id/status", h.Tenants.SetTenantStatus)
	master.GET("/users", h.Users.ListUsers)
	if h.Jobs != nil {
		master.GET("/jobs", h.Jobs.ListJobs)
		master.POST("/jobs/:name/run", h.Jobs.RunJob)
	}
}
