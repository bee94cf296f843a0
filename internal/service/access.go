package service

import (
	"gorm.io/gorm"

	"github.com/example/complaintflow/backend/internal/models"
	"github.com/example/complaintflow/backend/internal/repository"
)

// activeStatuses are the statuses a complaint can still move from.
func activeStatuses() []models.ComplaintStatus {
	statuses := make([]models.ComplaintStatus, 0, len(models.AllStatuses))
	for _, s := range models.AllStatuses {
		if !s.IsTerminal() {
			statuses = append(statuses, s)
		}
	}
	return statuses
}

// VisibilityScope narrows a complaint list query to what the user's role may
// see. It is applied before every other list filter.
func VisibilityScope(user *models.User) repository.Scope {
	return func(q *gorm.DB) *gorm.DB {
		switch user.Role {
		case models.RoleInstaller:
			return q.Where("complaints.initiator_id = ? OR complaints.installer_assigned_id = ?", user.ID, user.ID)
		case models.RoleComplaintDepartment:
			return q.Where("complaints.complaint_type = ?", models.TypeFactory)
		case models.RoleLeader:
			if user.City == "" {
				return q
			}
			return q.Where("complaints.initiator_id IN (SELECT id FROM users WHERE city = ?)", user.City)
		case models.RoleServiceManager:
			if user.City == "" {
				return q.Where("complaints.initiator_id = ?", user.ID)
			}
			return q.Where(
				"complaints.initiator_id IN (SELECT id FROM users WHERE city = ?) OR complaints.initiator_id = ?",
				user.City, user.ID,
			)
		case models.RoleManager:
			if user.City == "" {
				return q
			}
			return q.Where("complaints.initiator_id IN (SELECT id FROM users WHERE city = ?)", user.City)
		default: // admin
			return q
		}
	}
}

// CanView grants object-level access: direct participants always pass, the
// rest follow the role rules. Admin and leader always pass.
func CanView(user *models.User, complaint *models.Complaint) bool {
	switch user.Role {
	case models.RoleAdmin, models.RoleLeader:
		return true
	}
	if complaint.InitiatorID == user.ID || complaint.RecipientID == user.ID {
		return true
	}
	if complaint.ManagerID != nil && *complaint.ManagerID == user.ID {
		return true
	}
	if complaint.InstallerAssignedID != nil && *complaint.InstallerAssignedID == user.ID {
		return true
	}
	switch user.Role {
	case models.RoleManager:
		return true
	case models.RoleComplaintDepartment:
		return complaint.ComplaintType == models.TypeFactory
	case models.RoleServiceManager:
		if user.City == "" {
			return true
		}
		return complaint.Initiator != nil && complaint.Initiator.City == user.City
	}
	return false
}

// TaskScope resolves a role-specific "my tasks" quick filter key into a
// query scope. The second return is false for unknown keys.
func TaskScope(user *models.User, key string) (repository.Scope, bool) {
	active := activeStatuses()
	where := func(cond string, args ...any) repository.Scope {
		return func(q *gorm.DB) *gorm.DB { return q.Where(cond, args...) }
	}

	switch user.Role {
	case models.RoleInstaller:
		mine := "(complaints.installer_assigned_id = ? OR complaints.initiator_id = ?)"
		switch key {
		case "in_work":
			return where(mine+" AND complaints.status IN ?", user.ID, user.ID, active), true
		case "needs_planning":
			return where("complaints.installer_assigned_id = ? AND complaints.status IN ?", user.ID,
				[]models.ComplaintStatus{
					models.StatusWaitingInstallerDate,
					models.StatusNeedsPlanning,
					models.StatusInstallerNotPlanned,
				}), true
		case "planned":
			return where("complaints.installer_assigned_id = ? AND complaints.status IN ?", user.ID,
				[]models.ComplaintStatus{models.StatusInstallationPlanned, models.StatusBothPlanned}), true
		case "completed":
			return where("complaints.installer_assigned_id = ? AND complaints.status IN ?", user.ID,
				[]models.ComplaintStatus{models.StatusUnderSMReview, models.StatusCompleted}), true
		}
	case models.RoleManager:
		switch key {
		case "in_work":
			return where(
				"(complaints.manager_id = ? OR complaints.initiator_id = ? OR complaints.recipient_id = ?) AND complaints.status IN ?",
				user.ID, user.ID, user.ID, active), true
		case "in_progress":
			return where("complaints.manager_id = ? AND complaints.status = ?", user.ID, models.StatusInProgress), true
		case "on_warehouse":
			return where("complaints.manager_id = ? AND complaints.status = ?", user.ID, models.StatusOnWarehouse), true
		}
	case models.RoleServiceManager:
		switch key {
		case "in_work":
			return where("complaints.status IN ?", active), true
		case "new":
			return where("complaints.status = ?", models.StatusNew), true
		case "review":
			return where("complaints.status IN ?", []models.ComplaintStatus{
				models.StatusUnderSMReview,
				models.StatusFactoryApproved,
				models.StatusFactoryRejected,
			}), true
		case "overdue":
			return where("complaints.status = ?", models.StatusSMResponseOverdue), true
		}
	case models.RoleComplaintDepartment:
		factory := "complaints.complaint_type = ?"
		switch key {
		case "in_work":
			return where(factory+" AND complaints.status IN ?", models.TypeFactory, active), true
		case "pending":
			return where(factory+" AND complaints.status = ?", models.TypeFactory, models.StatusSent), true
		case "overdue":
			return where(factory+" AND complaints.status = ?", models.TypeFactory, models.StatusFactoryResponseOverdue), true
		}
	case models.RoleAdmin, models.RoleLeader:
		switch key {
		case "new":
			return where("complaints.status = ?", models.StatusNew), true
		case "factory_overdue":
			return where("complaints.status = ?", models.StatusFactoryResponseOverdue), true
		case "shipping_overdue":
			return where("complaints.status = ?", models.StatusShippingOverdue), true
		case "sm_overdue":
			return where("complaints.status = ?", models.StatusSMResponseOverdue), true
		}
	}
	return nil, false
}
