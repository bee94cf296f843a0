package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/complaintflow/backend/internal/apperr"
	"github.com/example/complaintflow/backend/internal/models"
	"github.com/example/complaintflow/backend/internal/service"
)

func (s *Server) createComplaint(c *gin.Context) {
	var payload service.CreateComplaintInput
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	complaint, err := s.complaints.Create(c.Request.Context(), currentUser(c), payload)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, complaint)
}

func (s *Server) listComplaints(c *gin.Context) {
	opts := service.ListOptions{
		Status:        models.ComplaintStatus(c.Query("status")),
		ComplaintType: models.ComplaintType(c.Query("type")),
		Search:        c.Query("search"),
		CreatedByMe:   c.Query("created_by_me") == "true",
		MyOrders:      c.Query("my_orders") == "true",
		NeedsPlanning: c.Query("needs_planning") == "true",
		MyTasks:       c.Query("my_tasks"),
		ExcludeClosed: c.DefaultQuery("exclude_closed", "true") == "true",
		City:          c.Query("city"),
		Sort:          c.Query("sort"),
	}
	complaints, err := s.complaints.List(c.Request.Context(), currentUser(c), opts)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, complaints)
}

func (s *Server) getComplaint(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	complaint, err := s.complaints.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

func (s *Server) setTypeInstaller(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var payload struct {
		InstallerID uint `json:"installerId"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	complaint, err := s.complaints.SetTypeInstaller(c.Request.Context(), currentUser(c), id, payload.InstallerID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

func (s *Server) setTypeManager(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	complaint, err := s.complaints.SetTypeManager(c.Request.Context(), currentUser(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

func (s *Server) setTypeFactory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	complaint, err := s.complaints.SetTypeFactory(c.Request.Context(), currentUser(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

// dateBody reads a single date field from the request body.
func dateBody(c *gin.Context, field string) (t time.Time, ok bool) {
	var payload map[string]string
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return t, false
	}
	raw := payload[field]
	if raw == "" {
		fail(c, apperr.MissingField(field, "required"))
		return t, false
	}
	parsed, err := parseDate(raw)
	if err != nil {
		fail(c, apperr.MissingField(field, "invalid date format"))
		return t, false
	}
	return parsed, true
}

func (s *Server) planInstallation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	date, ok := dateBody(c, "installationDate")
	if !ok {
		return
	}
	complaint, err := s.complaints.PlanInstallation(c.Request.Context(), currentUser(c), id, date)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

func (s *Server) planInstallationBySM(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var payload struct {
		InstallerID      uint   `json:"installerId"`
		InstallationDate string `json:"installationDate"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if payload.InstallationDate == "" {
		fail(c, apperr.MissingField("installationDate", "required"))
		return
	}
	date, err := parseDate(payload.InstallationDate)
	if err != nil {
		fail(c, apperr.MissingField("installationDate", "invalid date format"))
		return
	}
	complaint, err := s.complaints.PlanInstallationBySM(c.Request.Context(), currentUser(c), id, payload.InstallerID, date)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

func (s *Server) markCompleted(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	complaint, err := s.complaints.MarkCompleted(c.Request.Context(), currentUser(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

func (s *Server) approveBySM(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	complaint, err := s.complaints.ApproveBySM(c.Request.Context(), currentUser(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

func (s *Server) startProduction(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	date, ok := dateBody(c, "productionDeadline")
	if !ok {
		return
	}
	complaint, err := s.complaints.StartProduction(c.Request.Context(), currentUser(c), id, date)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

func (s *Server) markOnWarehouse(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	complaint, err := s.complaints.MarkOnWarehouse(c.Request.Context(), currentUser(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

func (s *Server) markOnWarehouseOR(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	complaint, err := s.complaints.MarkOnWarehouseOR(c.Request.Context(), currentUser(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

func (s *Server) planShipping(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	date, ok := dateBody(c, "shippingDate")
	if !ok {
		return
	}
	complaint, err := s.complaints.PlanShipping(c.Request.Context(), currentUser(c), id, date)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

func (s *Server) factoryApprove(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	complaint, err := s.complaints.FactoryApprove(c.Request.Context(), currentUser(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

func (s *Server) factoryReject(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var payload struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	complaint, err := s.complaints.FactoryReject(c.Request.Context(), currentUser(c), id, payload.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

func (s *Server) smAgreeWithClient(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	date, ok := dateBody(c, "productionDeadline")
	if !ok {
		return
	}
	complaint, err := s.complaints.SMAgreeWithClient(c.Request.Context(), currentUser(c), id, date)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

func (s *Server) smDisputeFactory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var payload struct {
		Arguments string `json:"arguments"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	complaint, err := s.complaints.SMDisputeFactory(c.Request.Context(), currentUser(c), id, payload.Arguments)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

func (s *Server) closeComplaint(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var payload struct {
		Reason string `json:"reason"`
	}
	// Body is optional for close.
	_ = c.ShouldBindJSON(&payload)
	complaint, err := s.complaints.Close(c.Request.Context(), currentUser(c), id, payload.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

func (s *Server) changeInstaller(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var payload struct {
		InstallerID uint `json:"installerId"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	complaint, err := s.complaints.ChangeInstaller(c.Request.Context(), currentUser(c), id, payload.InstallerID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

func (s *Server) rescheduleInstallation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	date, ok := dateBody(c, "installationDate")
	if !ok {
		return
	}
	complaint, err := s.complaints.RescheduleInstallation(c.Request.Context(), currentUser(c), id, date)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

func (s *Server) updateClientContact(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var payload service.UpdateClientContactInput
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	complaint, err := s.complaints.UpdateClientContact(c.Request.Context(), currentUser(c), id, payload)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

func (s *Server) sendFactoryEmail(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.complaints.SendFactoryEmail(c.Request.Context(), currentUser(c), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listComments(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	comments, err := s.complaints.ListComments(c.Request.Context(), currentUser(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (s *Server) addComment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var payload struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	comment, err := s.complaints.AddComment(c.Request.Context(), currentUser(c), id, payload.Text)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (s *Server) addAttachment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var payload service.AttachmentInput
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	attachment, err := s.complaints.AddAttachment(c.Request.Context(), currentUser(c), id, payload)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, attachment)
}
