package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/example/complaintflow/backend/internal/models"
	"github.com/example/complaintflow/backend/internal/repository"
	"github.com/example/complaintflow/backend/internal/service"
)

func (s *Server) listShipping(c *gin.Context) {
	filter := repository.ShippingFilter{
		OrderType:      models.OrderType(c.Query("order_type")),
		DeliveryStatus: models.DeliveryStatus(c.Query("delivery_status")),
		Search:         c.Query("search"),
	}
	if raw := c.Query("manager_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			filter.ManagerID = uint(id)
		}
	}
	entries, err := s.shipping.List(c.Request.Context(), currentUser(c), filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) shippingStats(c *gin.Context) {
	stats, err := s.shipping.Stats(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) createShipping(c *gin.Context) {
	var payload service.CreateStandaloneInput
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, err := s.shipping.CreateStandalone(c.Request.Context(), currentUser(c), payload)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) getShipping(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	entry, err := s.shipping.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) updateShipping(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var payload service.UpdateEntryInput
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, err := s.shipping.Update(c.Request.Context(), currentUser(c), id, payload)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) listNotifications(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true"
	list, err := s.notifications.List(c.Request.Context(), currentUser(c), unreadOnly)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) markNotificationRead(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.notifications.MarkRead(c.Request.Context(), currentUser(c), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) markAllNotificationsRead(c *gin.Context) {
	n, err := s.notifications.MarkAllRead(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}
