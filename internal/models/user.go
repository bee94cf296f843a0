package models

import "time"

// Role identifies what a user is allowed to do in the complaint workflow.
type Role string

const (
	RoleServiceManager      Role = "service_manager"
	RoleManager             Role = "manager"
	RoleInstaller           Role = "installer"
	RoleComplaintDepartment Role = "complaint_department"
	RoleAdmin               Role = "admin"
	RoleLeader              Role = "leader"
)

// User is a directory entry. Authentication and sessions live outside this
// service; the API trusts the identity resolved by the middleware.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Username    string    `gorm:"uniqueIndex;size:150" json:"username"`
	FullName    string    `gorm:"size:255" json:"fullName"`
	Role        Role      `gorm:"size:50;index" json:"role"`
	City        string    `gorm:"size:255;index" json:"city"`
	PhoneNumber string    `gorm:"size:20" json:"phoneNumber"`
	IsActive    bool      `gorm:"default:true" json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

// DisplayName returns the full name when set, the username otherwise.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}
