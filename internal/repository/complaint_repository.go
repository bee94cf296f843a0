package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/complaintflow/backend/internal/apperr"
	"github.com/example/complaintflow/backend/internal/models"
)

// Scope narrows a complaint query. The service layer builds role-visibility
// and task-filter scopes; the repository just applies them.
type Scope func(*gorm.DB) *gorm.DB

// ComplaintRepository provides persistence access for Complaint entities.
type ComplaintRepository struct {
	db *gorm.DB
}

// NewComplaintRepository constructs a repository using the provided gorm DB.
func NewComplaintRepository(db *gorm.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

// WithTx returns a repository bound to the given transaction so that reads
// and writes inside a service transaction share one connection.
func (r *ComplaintRepository) WithTx(tx *gorm.DB) *ComplaintRepository {
	return &ComplaintRepository{db: tx}
}

func (r *ComplaintRepository) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Initiator").
		Preload("Recipient").
		Preload("Manager").
		Preload("InstallerAssigned").
		Preload("ProductionSite").
		Preload("Reason").
		Preload("DefectiveProducts", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc")
		}).
		Preload("Attachments").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at asc")
		}).
		Preload("Comments.Author").
		Preload("ShippingEntry")
}

// Create persists the complaint together with its child collections.
func (r *ComplaintRepository) Create(ctx context.Context, complaint *models.Complaint) error {
	return errors.WithStack(r.db.WithContext(ctx).Create(complaint).Error)
}

// FindByID returns the complaint with its full object graph.
func (r *ComplaintRepository) FindByID(ctx context.Context, id uint) (*models.Complaint, error) {
	var complaint models.Complaint
	err := r.preloaded(ctx).First(&complaint, "complaints.id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("complaint not found")
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &complaint, nil
}

// SaveVersioned writes all complaint columns guarded by the optimistic
// lock_version check. A concurrent transition that committed first makes
// this return a Conflict without touching the row.
func (r *ComplaintRepository) SaveVersioned(ctx context.Context, complaint *models.Complaint) error {
	prev := complaint.LockVersion
	complaint.LockVersion = prev + 1
	res := r.db.WithContext(ctx).
		Model(&models.Complaint{}).
		Where("id = ? AND lock_version = ?", complaint.ID, prev).
		Select("*").
		Omit("id", "created_at", clause.Associations).
		Updates(complaint)
	if res.Error != nil {
		complaint.LockVersion = prev
		return errors.WithStack(res.Error)
	}
	if res.RowsAffected == 0 {
		complaint.LockVersion = prev
		return apperr.Conflict("complaint was modified concurrently, reload and retry")
	}
	return nil
}

// AddComment appends an audit comment.
func (r *ComplaintRepository) AddComment(ctx context.Context, comment *models.Comment) error {
	return errors.WithStack(r.db.WithContext(ctx).Create(comment).Error)
}

// ListComments returns the audit trail oldest first.
func (r *ComplaintRepository) ListComments(ctx context.Context, complaintID uint) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("complaint_id = ?", complaintID).
		Order("created_at asc").
		Find(&comments).Error
	return comments, errors.WithStack(err)
}

// AddAttachment appends a file metadata row.
func (r *ComplaintRepository) AddAttachment(ctx context.Context, attachment *models.Attachment) error {
	return errors.WithStack(r.db.WithContext(ctx).Create(attachment).Error)
}

// List returns complaints matching all scopes, newest first unless a scope
// orders differently. Scope-supplied ordering wins because gorm keeps the
// first Order clause in front.
func (r *ComplaintRepository) List(ctx context.Context, scopes ...Scope) ([]models.Complaint, error) {
	q := r.preloaded(ctx)
	for _, scope := range scopes {
		q = scope(q)
	}
	q = q.Order("complaints.created_at desc")
	var complaints []models.Complaint
	err := q.Find(&complaints).Error
	return complaints, errors.WithStack(err)
}

// Count returns the number of complaints matching all scopes.
func (r *ComplaintRepository) Count(ctx context.Context, scopes ...Scope) (int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Complaint{})
	for _, scope := range scopes {
		q = scope(q)
	}
	var n int64
	err := q.Count(&n).Error
	return n, errors.WithStack(err)
}
