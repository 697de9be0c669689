package main

import (
	"log"
	"time"

	"github.com/clearcomply/compliance-api/internal/audit"
	"github.com/clearcomply/compliance-api/internal/config"
	"github.com/clearcomply/compliance-api/internal/constants"
	"github.com/clearcomply/compliance-api/internal/database"
	"github.com/clearcomply/compliance-api/internal/handlers"
	"github.com/clearcomply/compliance-api/internal/middleware"
	"github.com/clearcomply/compliance-api/internal/models"
	"github.com/clearcomply/compliance-api/internal/repository"
	"github.com/clearcomply/compliance-api/internal/services"
	"github.com/gin-contrib/sessions"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Connect to database
	if err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db := database.GetDB()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	auditLogRepo := repository.NewAuditLogRepository(db)

	// Services
	dispatcher := audit.NewDispatcher(db)
	notifier := services.NewLogNotifier()
	tokens := services.NewTokenService(cfg.TokenSecret, time.Duration(cfg.TokenTTLMinutes)*time.Minute)
	authService := services.NewAuthService(userRepo)
	orgService := services.NewOrganizationService(db, orgRepo, dispatcher)
	membershipService := services.NewMembershipService(db, dispatcher)
	invitationService := services.NewInvitationService(
		db, invitationRepo, orgRepo, userRepo, notifier, dispatcher,
		time.Duration(cfg.InvitationTTLDays)*24*time.Hour,
	)
	projectService := services.NewProjectService(db, projectRepo, orgRepo, dispatcher)

	var analysisService *services.AnalysisService
	if cfg.OpenAIAPIKey != "" {
		analysisService = services.NewAnalysisService(cfg.OpenAIAPIKey)
	}

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, orgService, tokens)
	orgHandler := handlers.NewOrganizationHandler(orgService, auditLogRepo)
	memberHandler := handlers.NewMemberHandler(membershipService, orgService)
	invitationHandler := handlers.NewInvitationHandler(invitationService, authService)
	projectHandler := handlers.NewProjectHandler(projectService, analysisService)

	// Initialize Gin router
	r := gin.Default()
	r.Use(middleware.RequestID())

	// Setup session middleware with Redis
	redisAddr := cfg.RedisHost + ":" + cfg.RedisPort
	store, err := redisStore.NewStore(
		10,
		"tcp",
		redisAddr,
		"",
		"",
		[]byte(cfg.SessionSecret),
	)
	if err != nil {
		log.Fatalf("Failed to create Redis store: %v", err)
	}
	isProduction := cfg.GinMode == "release"
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: 2, // SameSite=Lax
	})
	r.Use(sessions.Sessions(constants.SessionCookieName, store))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Compliance Audit API is running",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", middleware.RequireAuth(tokens), authHandler.GetCurrentUser)
			auth.POST("/switch-workspace", middleware.RequireAuth(tokens), authHandler.SwitchWorkspace)
		}

		// Invitation accept/decline (authenticated, cross-workspace)
		invites := api.Group("/invitations")
		invites.Use(middleware.RequireAuth(tokens))
		{
			invites.POST("/:token/accept", invitationHandler.AcceptInvitation)
			invites.POST("/:token/decline", invitationHandler.DeclineInvitation)
		}

		// Workspace routes (protected)
		orgs := api.Group("/organizations")
		orgs.Use(middleware.RequireAuth(tokens), middleware.ResolveTenant(db))
		{
			orgs.POST("", orgHandler.CreateWorkspace)
			orgs.GET("", orgHandler.ListWorkspaces)

			scoped := orgs.Group("/:id")
			scoped.Use(middleware.RequireWorkspaceAccess(db))
			{
				scoped.GET("", orgHandler.GetWorkspace)
				scoped.PUT("", middleware.RequireWorkspaceRole(models.RoleOwner), orgHandler.UpdateWorkspace)
				scoped.DELETE("", middleware.RequireWorkspaceRole(models.RoleOwner), orgHandler.DeleteWorkspace)

				scoped.GET("/audit-log", middleware.RequireWorkspaceRole(models.RoleOwner, models.RoleAdmin), orgHandler.ListAuditLog)

				scoped.GET("/members", memberHandler.ListMembers)
				scoped.PUT("/members/:userId/role", memberHandler.ChangeMemberRole)
				scoped.DELETE("/members/:userId", memberHandler.RemoveMember)
				scoped.POST("/leave", memberHandler.LeaveWorkspace)

				scoped.POST("/invitations", invitationHandler.CreateInvitation)
				scoped.GET("/invitations", middleware.RequireWorkspaceRole(models.RoleOwner, models.RoleAdmin), invitationHandler.ListInvitations)
				scoped.DELETE("/invitations/:invitationId", invitationHandler.RevokeInvitation)

				scoped.POST("/projects", projectHandler.CreateProject)
				scoped.GET("/projects", projectHandler.ListProjects)
			}
		}

		// Project routes (protected)
		projects := api.Group("/projects")
		projects.Use(middleware.RequireAuth(tokens), middleware.ResolveTenant(db))
		{
			scoped := projects.Group("/:id")
			scoped.Use(middleware.RequireProjectAccess(db))
			{
				scoped.GET("", projectHandler.GetProject)
				scoped.PATCH("", projectHandler.UpdateProject)
				scoped.DELETE("", projectHandler.DeleteProject)

				scoped.GET("/members", projectHandler.ListProjectMembers)
				scoped.POST("/members", projectHandler.AddProjectMember)
				scoped.PUT("/members/:userId/role", projectHandler.ChangeProjectMemberRole)
				scoped.DELETE("/members/:userId", projectHandler.RemoveProjectMember)

				scoped.POST("/analyze", projectHandler.AnalyzeDocument)
			}
		}
	}

	// Start server
	log.Println("Server starting on :8080")
	if err := r.Run(":8080"); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
