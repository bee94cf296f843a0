package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/example/complaintflow/backend/internal/models"
)

// UserRepository is the user/role directory. Lookups are deterministic:
// when several users match, the lowest id wins.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a repository using the provided gorm DB.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns the user by id.
func (r *UserRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, errors.WithStack(err)
	}
	return &user, nil
}

// FindFirstByRole returns the lowest-id active user with the role,
// optionally restricted to a city. Returns nil without error when nobody
// matches.
func (r *UserRepository) FindFirstByRole(ctx context.Context, role models.Role, city string) (*models.User, error) {
	q := r.db.WithContext(ctx).Where("role = ? AND is_active = ?", role, true)
	if city != "" {
		q = q.Where("city = ?", city)
	}
	var user models.User
	err := q.Order("id asc").First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &user, nil
}

// ListByRole returns all active users with the role, ordered by id.
func (r *UserRepository) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("role = ? AND is_active = ?", role, true).
		Order("id asc").
		Find(&users).Error
	return users, errors.WithStack(err)
}

// Create persists a directory entry.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return errors.WithStack(r.db.WithContext(ctx).Create(user).Error)
}
