package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"whosehouse/api/internal/authz"
	"whosehouse/api/internal/config"
	"whosehouse/api/internal/middleware"
	"whosehouse/api/internal/models"
	"whosehouse/api/internal/realtime"
	"whosehouse/api/internal/repository"
	"whosehouse/api/internal/service"
	"whosehouse/api/internal/storage"
)

type HandlerSet struct {
	log         zerolog.Logger
	cfg         *config.AppConfig
	db          *pgxpool.Pool
	cache       *redis.Client
	store       *storage.ObjectStore
	hub         *realtime.Hub
	profiles    *repository.ProfileRepository
	sessions    *repository.SessionRepository
	households  *repository.HouseholdRepository
	placements  *repository.PlacementRepository
	audit       *repository.AuditRepository
	authService *service.AuthService
	placement   *service.PlacementService
	messaging   *service.MessagingService
	childAccess *service.ChildAccessService
	notify      *service.NotificationService
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, store *storage.ObjectStore, cfg *config.AppConfig) HandlerSet {
	profileRepo := repository.NewProfileRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	householdRepo := repository.NewHouseholdRepository(db)
	caseRepo := repository.NewCaseRepository(db)
	placementRepo := repository.NewPlacementRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	childTokenRepo := repository.NewChildTokenRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	hub := realtime.NewHub(cache, log)
	evaluator := authz.Default(&profileRoleEnv{profiles: profileRepo})

	notify := service.NewNotificationService(notificationRepo, cache, log)
	auth := service.NewAuthService(profileRepo, sessionRepo, householdRepo, auditRepo, cfg, log)
	placement := service.NewPlacementService(caseRepo, placementRepo, householdRepo, evaluator, hub, notify, cfg, log)
	messaging := service.NewMessagingService(messageRepo, caseRepo, evaluator, cache, hub, notify, log)
	childAccess := service.NewChildAccessService(childTokenRepo, caseRepo, cfg)

	return HandlerSet{
		log:         log,
		cfg:         cfg,
		db:          db,
		cache:       cache,
		store:       store,
		hub:         hub,
		profiles:    profileRepo,
		sessions:    sessionRepo,
		households:  householdRepo,
		placements:  placementRepo,
		audit:       auditRepo,
		authService: auth,
		placement:   placement,
		messaging:   messaging,
		childAccess: childAccess,
		notify:      notify,
	}
}

// PlacementSweeper exposes the store the scheduler sweeps.
func (h HandlerSet) PlacementSweeper() *repository.PlacementRepository { return h.placements }

// ChildTokenPurger exposes the purge entry point for the scheduler.
func (h HandlerSet) ChildTokenPurger() *service.ChildAccessService { return h.childAccess }

func (h HandlerSet) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", h.Register)
	auth.POST("/login", h.Login)
	auth.POST("/refresh", h.Refresh)
	auth.POST("/logout", h.Logout)

	authed := v1.Group("")
	authed.Use(middleware.Auth(h.cfg, h.profiles, h.sessions))

	authed.GET("/auth/me", h.Me)
	authed.GET("/auth/sessions", h.ListSessions)
	authed.DELETE("/auth/sessions/:deviceId", h.RevokeSession)

	authed.GET("/me/unread", h.UnreadCount)
	authed.POST("/me/push-tokens", h.RegisterPushToken)
	authed.GET("/me/notifications", h.ListNotifications)
	authed.GET("/me/notification-preferences", h.GetNotificationPreferences)
	authed.PUT("/me/notification-preferences", h.UpdateNotificationPreferences)
	authed.GET("/events", h.Events)

	cases := authed.Group("/cases")
	cases.POST("", middleware.RequireRoles(models.RoleSocialWorker), h.CreateCase)
	cases.GET("", h.ListCases)
	cases.GET("/:id", h.GetCase)
	cases.POST("/:id/close", h.CloseCase)
	cases.GET("/:id/households", middleware.RequireRoles(models.RoleSocialWorker), h.SearchHouseholds)
	cases.POST("/:id/placement-requests", middleware.RequireRoles(models.RoleSocialWorker), h.SendPlacementRequest)
	cases.GET("/:id/messages", h.Thread)
	cases.POST("/:id/messages", h.SendMessage)
	cases.POST("/:id/media", middleware.RequireRoles(models.RoleSocialWorker), h.UploadCaseMedia)
	cases.GET("/:id/media", h.CaseMediaURL)
	cases.POST("/:id/child-tokens", middleware.RequireRoles(models.RoleSocialWorker), h.IssueChildToken)

	requests := authed.Group("/placement-requests")
	requests.Use(middleware.RequireRoles(models.RoleFosterCarer))
	requests.GET("", h.ListPlacementRequests)
	requests.POST("/:id/accept", h.AcceptPlacementRequest)
	requests.POST("/:id/decline", h.DeclinePlacementRequest)

	households := authed.Group("/households")
	households.GET("/:id", h.GetHousehold)
	households.PUT("/:id", middleware.RequireRoles(models.RoleFosterCarer), h.UpdateHousehold)
	households.POST("/:id/photos", middleware.RequireRoles(models.RoleFosterCarer), h.UploadHousePhoto)

	authed.POST("/messages/:id/read", h.MarkMessageRead)

	admin := v1.Group("/admin")
	admin.Use(
		middleware.Auth(h.cfg, h.profiles, h.sessions),
		middleware.RequireRoles(models.RoleAdmin),
	)
	admin.GET("/profiles", h.AdminListProfiles)
	admin.POST("/profiles/:id/deactivate", h.AdminDeactivateProfile)
	admin.POST("/profiles/:id/reactivate", h.AdminReactivateProfile)
	admin.GET("/audit-logs", h.AdminListAuditLogs)

	child := v1.Group("/child/:token")
	child.Use(middleware.ChildToken(h.childAccess))
	child.GET("/case", h.ChildCaseView)
	child.GET("/messages", h.ChildThread)
	child.POST("/messages", h.ChildSendMessage)
}

// profileRoleEnv is the privileged role lookup handed to authorization
// predicates. It reads the profiles table directly, never back through
// policy evaluation.
type profileRoleEnv struct {
	profiles *repository.ProfileRepository
}

func (e *profileRoleEnv) RoleOf(ctx context.Context, userID string) (models.Role, error) {
	profile, err := e.profiles.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return profile.Role, nil
}

// sendError maps service and repository errors onto HTTP status codes.
func sendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotAllowed):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, repository.ErrRequestExpired):
		c.JSON(http.StatusGone, gin.H{"error": "request_expired"})
	case errors.Is(err, repository.ErrRequestDecided):
		c.JSON(http.StatusConflict, gin.H{"error": "request_decided"})
	case errors.Is(err, repository.ErrCaseConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "case_conflict"})
	case errors.Is(err, repository.ErrCaseNotFound),
		errors.Is(err, repository.ErrRequestNotFound),
		errors.Is(err, repository.ErrHouseholdNotFound),
		errors.Is(err, repository.ErrProfileNotFound),
		errors.Is(err, repository.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, repository.ErrNotRecipient):
		c.JSON(http.StatusForbidden, gin.H{"error": "not_recipient"})
	case errors.Is(err, service.ErrDuplicateMessage):
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate_message"})
	case errors.Is(err, service.ErrAccessDenied):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "access_denied"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
