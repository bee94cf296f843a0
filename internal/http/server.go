package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/complaintflow/backend/internal/apperr"
	"github.com/example/complaintflow/backend/internal/models"
	"github.com/example/complaintflow/backend/internal/repository"
	"github.com/example/complaintflow/backend/internal/service"
)

const userContextKey = "currentUser"

// Server wraps the gin engine and the services handling API requests.
type Server struct {
	Engine        *gin.Engine
	users         *repository.UserRepository
	complaints    *service.ComplaintService
	shipping      *service.ShippingService
	notifications *service.NotificationService
}

// NewServer constructs the API server and registers routes.
func NewServer(
	users *repository.UserRepository,
	complaints *service.ComplaintService,
	shipping *service.ShippingService,
	notifications *service.NotificationService,
) *Server {
	router := gin.Default()
	srv := &Server{
		Engine:        router,
		users:         users,
		complaints:    complaints,
		shipping:      shipping,
		notifications: notifications,
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) registerRoutes() {
	api := s.Engine.Group("/api")
	api.Use(s.identify)

	api.GET("/me", s.me)
	api.GET("/dashboard", s.dashboard)

	api.GET("/users", s.listUsers)
	api.POST("/users", s.createUser)

	api.POST("/complaints", s.createComplaint)
	api.GET("/complaints", s.listComplaints)
	api.GET("/complaints/:id", s.getComplaint)

	api.POST("/complaints/:id/set-type-installer", s.setTypeInstaller)
	api.POST("/complaints/:id/set-type-manager", s.setTypeManager)
	api.POST("/complaints/:id/set-type-factory", s.setTypeFactory)
	api.POST("/complaints/:id/plan-installation", s.planInstallation)
	api.POST("/complaints/:id/plan-installation-by-sm", s.planInstallationBySM)
	api.POST("/complaints/:id/mark-completed", s.markCompleted)
	api.POST("/complaints/:id/approve", s.approveBySM)
	api.POST("/complaints/:id/start-production", s.startProduction)
	api.POST("/complaints/:id/mark-on-warehouse", s.markOnWarehouse)
	api.POST("/complaints/:id/mark-on-warehouse-or", s.markOnWarehouseOR)
	api.POST("/complaints/:id/plan-shipping", s.planShipping)
	api.POST("/complaints/:id/factory-approve", s.factoryApprove)
	api.POST("/complaints/:id/factory-reject", s.factoryReject)
	api.POST("/complaints/:id/agree-with-client", s.smAgreeWithClient)
	api.POST("/complaints/:id/dispute-factory", s.smDisputeFactory)
	api.POST("/complaints/:id/close", s.closeComplaint)
	api.POST("/complaints/:id/change-installer", s.changeInstaller)
	api.POST("/complaints/:id/reschedule-installation", s.rescheduleInstallation)
	api.POST("/complaints/:id/client-contact", s.updateClientContact)
	api.POST("/complaints/:id/send-factory-email", s.sendFactoryEmail)

	api.GET("/complaints/:id/comments", s.listComments)
	api.POST("/complaints/:id/comments", s.addComment)
	api.POST("/complaints/:id/attachments", s.addAttachment)

	api.GET("/notifications", s.listNotifications)
	api.POST("/notifications/:id/read", s.markNotificationRead)
	api.POST("/notifications/read-all", s.markAllNotificationsRead)

	api.GET("/shipping", s.listShipping)
	api.GET("/shipping/stats", s.shippingStats)
	api.POST("/shipping", s.createShipping)
	api.GET("/shipping/:id", s.getShipping)
	api.PATCH("/shipping/:id", s.updateShipping)
}

// identify resolves the acting user from the X-User-ID header. A missing or
// unknown id yields 401.
func (s *Server) identify(c *gin.Context) {
	raw := c.GetHeader("X-User-ID")
	if raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "X-User-ID header is required"})
		return
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
		return
	}
	user, err := s.users.FindByID(c.Request.Context(), uint(id))
	if err != nil || !user.IsActive {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}
	c.Set(userContextKey, user)
	c.Next()
}

func currentUser(c *gin.Context) *models.User {
	return c.MustGet(userContextKey).(*models.User)
}

// fail converts service errors to HTTP responses using the error kind.
func fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	body := gin.H{"error": err.Error()}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		body["kind"] = appErr.Kind
		if appErr.Field != "" {
			body["field"] = appErr.Field
		}
	}
	c.JSON(status, body)
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

// parseDate accepts RFC3339 or a plain calendar date.
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func (s *Server) me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

func (s *Server) dashboard(c *gin.Context) {
	stats, err := s.complaints.Dashboard(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
