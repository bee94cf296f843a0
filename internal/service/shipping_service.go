package service

import (
	"context"
	"time"

	"github.com/example/complaintflow/backend/internal/apperr"
	"github.com/example/complaintflow/backend/internal/models"
	"github.com/example/complaintflow/backend/internal/repository"
)

// ShippingService exposes the shipping registry: the flat, cross-city list
// logistics works from. Complaint-linked rows are created by the complaint
// workflow; standalone rows can be added here directly.
type ShippingService struct {
	shipping *repository.ShippingRepository
	users    *repository.UserRepository
}

func NewShippingService(shipping *repository.ShippingRepository, users *repository.UserRepository) *ShippingService {
	return &ShippingService{shipping: shipping, users: users}
}

func registryAccessible(role models.Role) bool {
	switch role {
	case models.RoleManager, models.RoleServiceManager, models.RoleComplaintDepartment,
		models.RoleAdmin, models.RoleLeader:
		return true
	}
	return false
}

// List returns registry rows matching the filter.
func (s *ShippingService) List(ctx context.Context, actor *models.User, filter repository.ShippingFilter) ([]models.ShippingEntry, error) {
	if !registryAccessible(actor.Role) {
		return nil, apperr.Forbidden("you have no access to the shipping registry")
	}
	return s.shipping.List(ctx, filter)
}

// Get loads one registry row. Service managers with a city only see rows
// whose manager belongs to their city.
func (s *ShippingService) Get(ctx context.Context, actor *models.User, id uint) (*models.ShippingEntry, error) {
	if !registryAccessible(actor.Role) {
		return nil, apperr.Forbidden("you have no access to the shipping registry")
	}
	entry, err := s.shipping.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleServiceManager && actor.City != "" &&
		entry.Manager != nil && entry.Manager.City != "" && entry.Manager.City != actor.City {
		return nil, apperr.Forbidden("this shipment belongs to another city")
	}
	return entry, nil
}

// CreateStandaloneInput describes a shipment not linked to a complaint.
type CreateStandaloneInput struct {
	OrderNumber         string          `json:"orderNumber"`
	ClientName          string          `json:"clientName"`
	Address             string          `json:"address"`
	ContactPerson       string          `json:"contactPerson"`
	ContactPhone        string          `json:"contactPhone"`
	ManagerID           uint            `json:"managerId"`
	DoorsCount          int             `json:"doorsCount"`
	LiftType            models.LiftType `json:"liftType"`
	LiftMethod          string          `json:"liftMethod"`
	PaymentStatus       string          `json:"paymentStatus"`
	DeliveryDestination string          `json:"deliveryDestination"`
	Comments            string          `json:"comments"`
	PlannedShippingDate *time.Time      `json:"plannedShippingDate"`
}

// CreateStandalone adds a non-complaint shipment to the registry.
func (s *ShippingService) CreateStandalone(ctx context.Context, actor *models.User, in CreateStandaloneInput) (*models.ShippingEntry, error) {
	if !registryAccessible(actor.Role) {
		return nil, apperr.Forbidden("you have no access to the shipping registry")
	}
	if in.OrderNumber == "" {
		return nil, apperr.MissingField("orderNumber", "required")
	}
	if in.ClientName == "" {
		return nil, apperr.MissingField("clientName", "required")
	}
	entry := &models.ShippingEntry{
		OrderType:           models.OrderTypeStandalone,
		OrderNumber:         in.OrderNumber,
		ClientName:          in.ClientName,
		Address:             in.Address,
		ContactPerson:       in.ContactPerson,
		ContactPhone:        in.ContactPhone,
		DoorsCount:          in.DoorsCount,
		LiftType:            in.LiftType,
		LiftMethod:          in.LiftMethod,
		PaymentStatus:       in.PaymentStatus,
		DeliveryDestination: in.DeliveryDestination,
		Comments:            in.Comments,
		DeliveryStatus:      models.DeliveryPending,
	}
	if in.ManagerID != 0 {
		manager, err := s.users.FindByID(ctx, in.ManagerID)
		if err != nil {
			return nil, apperr.NotFound("manager not found")
		}
		entry.ManagerID = &manager.ID
	}
	if entry.DoorsCount == 0 {
		entry.DoorsCount = 1
	}
	if entry.LiftType == "" {
		entry.LiftType = models.LiftOur
	}
	if entry.LiftMethod == "" {
		entry.LiftMethod = "elevator"
	}
	if entry.DeliveryDestination == "" {
		entry.DeliveryDestination = "client"
	}
	if in.PlannedShippingDate != nil {
		entry.PlannedShippingDate = in.PlannedShippingDate
	}
	if err := s.shipping.Create(ctx, entry); err != nil {
		return nil, err
	}
	return s.shipping.FindByID(ctx, entry.ID)
}

// UpdateEntryInput carries the editable logistics fields. Nil pointers mean
// leave unchanged.
type UpdateEntryInput struct {
	DeliveryStatus      *models.DeliveryStatus `json:"deliveryStatus"`
	DoorsCount          *int                   `json:"doorsCount"`
	LiftType            *models.LiftType       `json:"liftType"`
	LiftMethod          *string                `json:"liftMethod"`
	DeliveryDestination *string                `json:"deliveryDestination"`
	PlannedShippingDate *time.Time             `json:"plannedShippingDate"`
	ActualShippingDate  *time.Time             `json:"actualShippingDate"`
	ClientRating        *int                   `json:"clientRating"`
	PaymentStatus       *string                `json:"paymentStatus"`
	Comments            *string                `json:"comments"`
}

// Update edits a registry row.
func (s *ShippingService) Update(ctx context.Context, actor *models.User, id uint, in UpdateEntryInput) (*models.ShippingEntry, error) {
	entry, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if in.DeliveryStatus != nil {
		switch *in.DeliveryStatus {
		case models.DeliveryPending, models.DeliveryInTransit, models.DeliveryDelivered, models.DeliveryCancelled:
		default:
			return nil, apperr.MissingField("deliveryStatus", "unknown delivery status")
		}
		entry.DeliveryStatus = *in.DeliveryStatus
	}
	if in.DoorsCount != nil {
		if *in.DoorsCount < 1 {
			return nil, apperr.MissingField("doorsCount", "must be at least 1")
		}
		entry.DoorsCount = *in.DoorsCount
	}
	if in.LiftType != nil {
		entry.LiftType = *in.LiftType
	}
	if in.LiftMethod != nil {
		entry.LiftMethod = *in.LiftMethod
	}
	if in.DeliveryDestination != nil {
		entry.DeliveryDestination = *in.DeliveryDestination
	}
	if in.PlannedShippingDate != nil {
		entry.PlannedShippingDate = in.PlannedShippingDate
	}
	if in.ActualShippingDate != nil {
		entry.ActualShippingDate = in.ActualShippingDate
	}
	if in.ClientRating != nil {
		if *in.ClientRating < 1 || *in.ClientRating > 5 {
			return nil, apperr.MissingField("clientRating", "rating must be between 1 and 5")
		}
		entry.ClientRating = in.ClientRating
	}
	if in.PaymentStatus != nil {
		entry.PaymentStatus = *in.PaymentStatus
	}
	if in.Comments != nil {
		entry.Comments = *in.Comments
	}
	if err := s.shipping.Update(ctx, entry); err != nil {
		return nil, err
	}
	return s.shipping.FindByID(ctx, entry.ID)
}

// Stats returns delivery-status counters for the registry dashboard.
func (s *ShippingService) Stats(ctx context.Context, actor *models.User) (*repository.ShippingStats, error) {
	if !registryAccessible(actor.Role) {
		return nil, apperr.Forbidden("you have no access to the shipping registry")
	}
	return s.shipping.Stats(ctx, repository.ShippingFilter{})
}
