package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/complaintflow/backend/internal/apperr"
	"github.com/example/complaintflow/backend/internal/models"
)

func TestCheckRoleGates(t *testing.T) {
	cases := []struct {
		name   string
		op     Op
		role   models.Role
		status models.ComplaintStatus
		kind   apperr.Kind
	}{
		{"installer cannot set type", OpSetTypeInstaller, models.RoleInstaller, models.StatusNew, apperr.KindForbidden},
		{"manager cannot approve review", OpApproveBySM, models.RoleManager, models.StatusUnderSMReview, apperr.KindForbidden},
		{"department cannot close", OpClose, models.RoleComplaintDepartment, models.StatusSent, apperr.KindForbidden},
		{"installer cannot plan for others", OpPlanInstallationBySM, models.RoleInstaller, models.StatusWaitingInstallerDate, apperr.KindForbidden},
		{"manager cannot report factory response", OpFactoryApprove, models.RoleManager, models.StatusSent, apperr.KindForbidden},
		{"leader cannot change installer", OpChangeInstaller, models.RoleLeader, models.StatusWaitingInstallerDate, apperr.KindForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Check(tc.op, tc.role, tc.status)
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.KindOf(err))
		})
	}
}

func TestCheckStatusGates(t *testing.T) {
	cases := []struct {
		name   string
		op     Op
		role   models.Role
		status models.ComplaintStatus
		ok     bool
	}{
		{"set type from new", OpSetTypeInstaller, models.RoleServiceManager, models.StatusNew, true},
		{"set type again mid-flow", OpSetTypeFactory, models.RoleServiceManager, models.StatusWaitingInstallerDate, true},
		{"set type on closed", OpSetTypeManager, models.RoleServiceManager, models.StatusClosed, false},
		{"plan from waiting", OpPlanInstallation, models.RoleInstaller, models.StatusWaitingInstallerDate, true},
		{"plan from overdue", OpPlanInstallation, models.RoleInstaller, models.StatusInstallerNotPlanned, true},
		{"plan from warehouse", OpPlanInstallation, models.RoleInstaller, models.StatusOnWarehouse, true},
		{"plan from production", OpPlanInstallation, models.RoleInstaller, models.StatusInProduction, false},
		{"complete from planned", OpMarkCompleted, models.RoleInstaller, models.StatusInstallationPlanned, true},
		{"complete from both planned", OpMarkCompleted, models.RoleInstaller, models.StatusBothPlanned, true},
		{"complete from waiting", OpMarkCompleted, models.RoleInstaller, models.StatusWaitingInstallerDate, false},
		{"approve from review", OpApproveBySM, models.RoleServiceManager, models.StatusUnderSMReview, true},
		{"approve from new", OpApproveBySM, models.RoleServiceManager, models.StatusNew, false},
		{"production from in progress", OpStartProduction, models.RoleManager, models.StatusInProgress, true},
		{"warehouse from production", OpMarkOnWarehouse, models.RoleManager, models.StatusInProduction, true},
		{"department warehouse from production", OpMarkWarehouseOR, models.RoleComplaintDepartment, models.StatusInProduction, true},
		{"shipping from warehouse", OpPlanShipping, models.RoleManager, models.StatusOnWarehouse, true},
		{"shipping from production", OpPlanShipping, models.RoleManager, models.StatusInProduction, false},
		{"factory approve from sent", OpFactoryApprove, models.RoleComplaintDepartment, models.StatusSent, true},
		{"factory approve from dispute", OpFactoryApprove, models.RoleComplaintDepartment, models.StatusFactoryDispute, true},
		{"factory reject from overdue", OpFactoryReject, models.RoleComplaintDepartment, models.StatusFactoryResponseOverdue, true},
		{"agree from approved", OpSMAgreeWithClient, models.RoleServiceManager, models.StatusFactoryApproved, true},
		{"agree from rejected", OpSMAgreeWithClient, models.RoleServiceManager, models.StatusFactoryRejected, false},
		{"dispute from rejected", OpSMDisputeFactory, models.RoleServiceManager, models.StatusFactoryRejected, true},
		{"close from warehouse", OpClose, models.RoleServiceManager, models.StatusOnWarehouse, true},
		{"close during review", OpClose, models.RoleServiceManager, models.StatusUnderSMReview, false},
		{"close closed", OpClose, models.RoleServiceManager, models.StatusClosed, false},
		{"contact update on completed", OpUpdateClientContact, models.RoleManager, models.StatusCompleted, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Check(tc.op, tc.role, tc.status)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
		})
	}
}

func TestCheckUnknownOp(t *testing.T) {
	err := Check(Op("frobnicate"), models.RoleAdmin, models.StatusNew)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
}
