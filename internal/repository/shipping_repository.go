package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/example/complaintflow/backend/internal/apperr"
	"github.com/example/complaintflow/backend/internal/models"
)

// ShippingFilter narrows shipping registry listings.
type ShippingFilter struct {
	OrderType      models.OrderType
	DeliveryStatus models.DeliveryStatus
	ManagerID      uint
	Search         string
}

// ShippingStats is the registry dashboard summary.
type ShippingStats struct {
	Total      int64 `json:"total"`
	Pending    int64 `json:"pending"`
	InTransit  int64 `json:"in_transit"`
	Delivered  int64 `json:"delivered"`
	Complaints int64 `json:"complaints"`
}

// ShippingRepository persists shipping registry entries.
type ShippingRepository struct {
	db *gorm.DB
}

// NewShippingRepository constructs a repository using the provided gorm DB.
func NewShippingRepository(db *gorm.DB) *ShippingRepository {
	return &ShippingRepository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *ShippingRepository) WithTx(tx *gorm.DB) *ShippingRepository {
	return &ShippingRepository{db: tx}
}

// Create persists a registry entry.
func (r *ShippingRepository) Create(ctx context.Context, entry *models.ShippingEntry) error {
	return errors.WithStack(r.db.WithContext(ctx).Create(entry).Error)
}

// Update persists the modified entry.
func (r *ShippingRepository) Update(ctx context.Context, entry *models.ShippingEntry) error {
	return errors.WithStack(r.db.WithContext(ctx).Save(entry).Error)
}

// FindByID returns the entry by id.
func (r *ShippingRepository) FindByID(ctx context.Context, id uint) (*models.ShippingEntry, error) {
	var entry models.ShippingEntry
	err := r.db.WithContext(ctx).Preload("Manager").First(&entry, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("shipping entry not found")
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &entry, nil
}

// FindByComplaintID returns the entry derived from the complaint, or nil
// without error when none exists yet.
func (r *ShippingRepository) FindByComplaintID(ctx context.Context, complaintID uint) (*models.ShippingEntry, error) {
	var entry models.ShippingEntry
	err := r.db.WithContext(ctx).First(&entry, "complaint_id = ?", complaintID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &entry, nil
}

// List returns registry entries newest first, narrowed by the filter.
func (r *ShippingRepository) List(ctx context.Context, filter ShippingFilter) ([]models.ShippingEntry, error) {
	q := r.filtered(ctx, filter)
	var entries []models.ShippingEntry
	err := q.Preload("Manager").Order("created_at desc").Find(&entries).Error
	return entries, errors.WithStack(err)
}

// Stats summarizes the registry for the dashboard.
func (r *ShippingRepository) Stats(ctx context.Context, filter ShippingFilter) (*ShippingStats, error) {
	stats := &ShippingStats{}
	counts := []struct {
		dest  *int64
		where []any
	}{
		{&stats.Total, nil},
		{&stats.Pending, []any{"delivery_status = ?", models.DeliveryPending}},
		{&stats.InTransit, []any{"delivery_status = ?", models.DeliveryInTransit}},
		{&stats.Delivered, []any{"delivery_status = ?", models.DeliveryDelivered}},
		{&stats.Complaints, []any{"order_type = ?", models.OrderTypeComplaint}},
	}
	for _, c := range counts {
		q := r.filtered(ctx, filter).Model(&models.ShippingEntry{})
		if c.where != nil {
			q = q.Where(c.where[0], c.where[1:]...)
		}
		if err := q.Count(c.dest).Error; err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return stats, nil
}

func (r *ShippingRepository) filtered(ctx context.Context, filter ShippingFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.ShippingEntry{})
	if filter.OrderType != "" {
		q = q.Where("order_type = ?", filter.OrderType)
	}
	if filter.DeliveryStatus != "" {
		q = q.Where("delivery_status = ?", filter.DeliveryStatus)
	}
	if filter.ManagerID != 0 {
		q = q.Where("manager_id = ?", filter.ManagerID)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where(
			"order_number LIKE ? OR client_name LIKE ? OR contact_person LIKE ? OR address LIKE ?",
			like, like, like, like,
		)
	}
	return q
}
