package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/complaintflow/backend/internal/models"
)

// listUsers backs the installer/manager pickers in the client. The role
// query narrows to one role; without it every active role group would be a
// large payload, so role is required.
func (s *Server) listUsers(c *gin.Context) {
	role := models.Role(c.Query("role"))
	switch role {
	case models.RoleServiceManager, models.RoleManager, models.RoleInstaller,
		models.RoleComplaintDepartment, models.RoleAdmin, models.RoleLeader:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "a valid role query parameter is required"})
		return
	}
	users, err := s.users.ListByRole(c.Request.Context(), role)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// createUser adds a directory entry. Admin only.
func (s *Server) createUser(c *gin.Context) {
	if currentUser(c).Role != models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "only admin may manage the user directory"})
		return
	}
	var payload struct {
		Username    string      `json:"username" binding:"required"`
		FullName    string      `json:"fullName"`
		Role        models.Role `json:"role" binding:"required"`
		City        string      `json:"city"`
		PhoneNumber string      `json:"phoneNumber"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user := &models.User{
		Username:    payload.Username,
		FullName:    payload.FullName,
		Role:        payload.Role,
		City:        payload.City,
		PhoneNumber: payload.PhoneNumber,
		IsActive:    true,
	}
	if err := s.users.Create(c.Request.Context(), user); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}
