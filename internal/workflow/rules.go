// Package workflow holds the pure decision rules of the complaint state
// machine: which role may run which operation from which status. It performs
// no I/O; persistence and notifications live in the service layer.
package workflow

import (
	"fmt"

	"github.com/example/complaintflow/backend/internal/apperr"
	"github.com/example/complaintflow/backend/internal/models"
)

// Op names one workflow operation. The set is closed: handlers dispatch to
// exactly one service method per Op, there is no stringly-typed routing.
type Op string

const (
	OpSetTypeInstaller       Op = "set_type_installer"
	OpSetTypeManager         Op = "set_type_manager"
	OpSetTypeFactory         Op = "set_type_factory"
	OpPlanInstallation       Op = "plan_installation"
	OpPlanInstallationBySM   Op = "plan_installation_by_sm"
	OpMarkCompleted          Op = "mark_completed"
	OpApproveBySM            Op = "approve_by_sm"
	OpStartProduction        Op = "start_production"
	OpMarkOnWarehouse        Op = "mark_on_warehouse"
	OpMarkWarehouseOR        Op = "mark_warehouse_or"
	OpPlanShipping           Op = "plan_shipping"
	OpFactoryApprove         Op = "factory_approve"
	OpFactoryReject          Op = "factory_reject"
	OpSMAgreeWithClient      Op = "sm_agree_with_client"
	OpSMDisputeFactory       Op = "sm_dispute_factory_decision"
	OpClose                  Op = "close"
	OpChangeInstaller        Op = "change_installer"
	OpRescheduleInstallation Op = "reschedule_installation"
	OpUpdateClientContact    Op = "update_client_contact"
)

// Rule gates one operation. Roles is the allowed role set. When From is nil
// the operation is allowed from any non-terminal status except those in
// NotFrom; otherwise the current status must be listed in From.
// Relationship checks (assigned manager, assigned installer) are enforced by
// the service on top of these rules.
type Rule struct {
	Roles         []models.Role
	From          []models.ComplaintStatus
	NotFrom       []models.ComplaintStatus
	AllowTerminal bool
}

var planningStatuses = []models.ComplaintStatus{
	models.StatusWaitingInstallerDate,
	models.StatusNeedsPlanning,
	models.StatusInstallerNotPlanned,
	models.StatusOnWarehouse,
	models.StatusShippingPlanned,
}

var factoryResponseStatuses = []models.ComplaintStatus{
	models.StatusSent,
	models.StatusFactoryResponseOverdue,
	models.StatusFactoryDispute,
}

var rules = map[Op]Rule{
	OpSetTypeInstaller: {
		Roles: []models.Role{models.RoleServiceManager, models.RoleAdmin},
	},
	OpSetTypeManager: {
		Roles: []models.Role{models.RoleServiceManager, models.RoleAdmin},
	},
	OpSetTypeFactory: {
		Roles: []models.Role{models.RoleServiceManager, models.RoleAdmin},
	},
	OpPlanInstallation: {
		Roles: []models.Role{models.RoleInstaller},
		From:  planningStatuses,
	},
	OpPlanInstallationBySM: {
		Roles: []models.Role{models.RoleServiceManager, models.RoleAdmin},
		From:  planningStatuses,
	},
	OpMarkCompleted: {
		Roles: []models.Role{models.RoleInstaller},
		From: []models.ComplaintStatus{
			models.StatusInstallationPlanned,
			models.StatusBothPlanned,
		},
	},
	OpApproveBySM: {
		Roles: []models.Role{models.RoleServiceManager, models.RoleAdmin},
		From:  []models.ComplaintStatus{models.StatusUnderSMReview},
	},
	OpStartProduction: {
		Roles: []models.Role{models.RoleManager},
		From:  []models.ComplaintStatus{models.StatusInProgress},
	},
	OpMarkOnWarehouse: {
		Roles: []models.Role{models.RoleManager},
		From:  []models.ComplaintStatus{models.StatusInProduction},
	},
	OpMarkWarehouseOR: {
		Roles: []models.Role{models.RoleComplaintDepartment},
		From:  []models.ComplaintStatus{models.StatusInProduction},
	},
	OpPlanShipping: {
		Roles: []models.Role{models.RoleManager},
		From:  []models.ComplaintStatus{models.StatusOnWarehouse},
	},
	OpFactoryApprove: {
		Roles: []models.Role{models.RoleComplaintDepartment},
		From:  factoryResponseStatuses,
	},
	OpFactoryReject: {
		Roles: []models.Role{models.RoleComplaintDepartment},
		From:  factoryResponseStatuses,
	},
	OpSMAgreeWithClient: {
		Roles: []models.Role{models.RoleServiceManager, models.RoleAdmin},
		From: []models.ComplaintStatus{
			models.StatusFactoryApproved,
			models.StatusSMResponseOverdue,
		},
	},
	OpSMDisputeFactory: {
		Roles: []models.Role{models.RoleServiceManager, models.RoleAdmin},
		From: []models.ComplaintStatus{
			models.StatusFactoryApproved,
			models.StatusSMResponseOverdue,
			models.StatusFactoryRejected,
		},
	},
	OpClose: {
		Roles:   []models.Role{models.RoleServiceManager, models.RoleAdmin},
		NotFrom: []models.ComplaintStatus{models.StatusUnderSMReview},
	},
	OpChangeInstaller: {
		Roles: []models.Role{models.RoleServiceManager, models.RoleAdmin},
	},
	OpRescheduleInstallation: {
		Roles: []models.Role{models.RoleInstaller},
	},
	OpUpdateClientContact: {
		Roles: []models.Role{
			models.RoleServiceManager,
			models.RoleManager,
			models.RoleAdmin,
			models.RoleLeader,
		},
		AllowTerminal: true,
	},
}

// Check validates role and current status against the rule for op. A nil
// return means the operation may proceed to relationship and parameter
// validation. Check never mutates anything.
func Check(op Op, role models.Role, status models.ComplaintStatus) error {
	rule, ok := rules[op]
	if !ok {
		return apperr.InvalidState(fmt.Sprintf("unknown operation %q", op))
	}
	if !roleAllowed(rule, role) {
		return apperr.Forbidden(fmt.Sprintf("role %s may not perform %s", role, op))
	}
	if !statusAllowed(rule, status) {
		return apperr.InvalidState(fmt.Sprintf("%s is not allowed from status %s", op, status))
	}
	return nil
}

func roleAllowed(rule Rule, role models.Role) bool {
	for _, r := range rule.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func statusAllowed(rule Rule, status models.ComplaintStatus) bool {
	if rule.AllowTerminal {
		return true
	}
	if status.IsTerminal() {
		return false
	}
	if rule.From == nil {
		for _, s := range rule.NotFrom {
			if s == status {
				return false
			}
		}
		return true
	}
	for _, s := range rule.From {
		if s == status {
			return true
		}
	}
	return false
}
