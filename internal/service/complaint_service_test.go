package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/complaintflow/backend/internal/apperr"
	"github.com/example/complaintflow/backend/internal/models"
)

func TestCreateResolvesRecipientByCity(t *testing.T) {
	env := newTestEnv(t)
	c := env.newComplaint(t, env.installer)

	assert.Equal(t, env.sm.ID, c.RecipientID)
	assert.Equal(t, models.StatusNew, c.Status)
	assert.Equal(t, models.TypeUnset, c.ComplaintType)
	require.Len(t, c.DefectiveProducts, 1)
}

func TestCreateLinksDirectoryEntries(t *testing.T) {
	env := newTestEnv(t)
	site := &models.ProductionSite{Name: "Tver plant", IsActive: true}
	reason := &models.ComplaintReason{Name: "Damaged in transit", IsActive: true}
	require.NoError(t, env.db.Create(site).Error)
	require.NoError(t, env.db.Create(reason).Error)

	c, err := env.complaints.Create(context.Background(), env.installer, CreateComplaintInput{
		OrderNumber:      "ORD-3",
		ClientName:       "Sidorov",
		Address:          "Mira 2",
		ContactPerson:    "Sidorov",
		ContactPhone:     "+70000000003",
		ManagerID:        env.manager.ID,
		ProductionSiteID: &site.ID,
		ReasonID:         &reason.ID,
	})
	require.NoError(t, err)

	reloaded, err := env.complaints.Get(context.Background(), env.installer, c.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.ProductionSite)
	assert.Equal(t, "Tver plant", reloaded.ProductionSite.Name)
	require.NotNil(t, reloaded.Reason)
	assert.Equal(t, "Damaged in transit", reloaded.Reason.Name)
}

func TestCreateRequiresManager(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.complaints.Create(context.Background(), env.installer, CreateComplaintInput{
		OrderNumber:   "ORD-1",
		ClientName:    "Ivanov",
		Address:       "Lenina 5",
		ContactPerson: "Ivanov",
		ContactPhone:  "+70000000001",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindMissingField, apperr.KindOf(err))
}

func TestCreateByServiceManagerWithTypeEntersBranch(t *testing.T) {
	env := newTestEnv(t)
	c, err := env.complaints.Create(context.Background(), env.sm, CreateComplaintInput{
		OrderNumber:   "ORD-2",
		ClientName:    "Petrov",
		Address:       "Mira 1",
		ContactPerson: "Petrov",
		ContactPhone:  "+70000000002",
		ManagerID:     env.manager.ID,
		ComplaintType: models.TypeInstaller,
		InstallerID:   env.installer.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaitingInstallerDate, c.Status)
	assert.Equal(t, models.TypeInstaller, c.ComplaintType)
	require.NotNil(t, c.InstallerAssignedID)
	assert.Equal(t, env.installer.ID, *c.InstallerAssignedID)
}

func TestSetTypeInstallerAssignsAndNotifies(t *testing.T) {
	env := newTestEnv(t)
	c := env.newComplaint(t, env.manager)

	updated, err := env.complaints.SetTypeInstaller(context.Background(), env.sm, c.ID, env.installer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaitingInstallerDate, updated.Status)
	require.NotNil(t, updated.InstallerAssignedAt)

	list := env.notificationsFor(t, c.ID)
	assert.ElementsMatch(t,
		[]models.NotificationChannel{models.ChannelPush, models.ChannelSMS},
		channelsTo(list, env.installer.ID))
	assert.ElementsMatch(t,
		[]models.NotificationChannel{models.ChannelPush},
		channelsTo(list, env.manager.ID))

	texts := env.commentTexts(t, c.ID)
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "installer")

	assert.Contains(t, env.publisher.published(), "complaint.set_type_installer")
}

func TestSetTypeManagerWithoutManagerFails(t *testing.T) {
	env := newTestEnv(t)
	orphan := &models.Complaint{
		InitiatorID:   env.manager.ID,
		RecipientID:   env.sm.ID,
		OrderNumber:   "ORD-3",
		ClientName:    "Sidorov",
		Address:       "Mira 2",
		ContactPerson: "Sidorov",
		ContactPhone:  "+70000000003",
		Status:        models.StatusNew,
	}
	require.NoError(t, env.db.Create(orphan).Error)

	_, err := env.complaints.SetTypeManager(context.Background(), env.sm, orphan.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindMissingField, apperr.KindOf(err))
	assert.Equal(t, models.StatusNew, env.reload(t, orphan.ID).Status)
}

func TestForbiddenRoleLeavesComplaintUntouched(t *testing.T) {
	env := newTestEnv(t)
	c := env.newComplaint(t, env.manager)

	_, err := env.complaints.SetTypeFactory(context.Background(), env.installer, c.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	reloaded := env.reload(t, c.ID)
	assert.Equal(t, models.StatusNew, reloaded.Status)
	assert.Empty(t, env.notificationsFor(t, c.ID))
	assert.Empty(t, env.commentTexts(t, c.ID))
}

func TestInvalidStateLeavesComplaintUntouched(t *testing.T) {
	env := newTestEnv(t)
	c := env.newComplaint(t, env.manager)

	_, err := env.complaints.StartProduction(context.Background(), env.manager, c.ID, time.Now().AddDate(0, 0, 10))
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
	assert.Equal(t, models.StatusNew, env.reload(t, c.ID).Status)
}

func TestInstallerBranchEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newComplaint(t, env.manager)

	_, err := env.complaints.SetTypeInstaller(ctx, env.sm, c.ID, env.installer.ID)
	require.NoError(t, err)

	date := time.Now().AddDate(0, 0, 3)
	planned, err := env.complaints.PlanInstallation(ctx, env.installer, c.ID, date)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInstallationPlanned, planned.Status)
	require.NotNil(t, planned.PlannedInstallationDate)

	reviewed, err := env.complaints.MarkCompleted(ctx, env.installer, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnderSMReview, reviewed.Status)

	done, err := env.complaints.ApproveBySM(ctx, env.sm, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
	require.NotNil(t, done.CompletionDate)

	texts := env.commentTexts(t, c.ID)
	assert.Contains(t, texts[len(texts)-1], "approved")
}

func TestPlanInstallationByAnotherInstallerForbidden(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	other := env.user(t, "installer-2", models.RoleInstaller, "Moscow")
	c := env.newComplaint(t, env.manager)
	_, err := env.complaints.SetTypeInstaller(ctx, env.sm, c.ID, env.installer.ID)
	require.NoError(t, err)

	_, err = env.complaints.PlanInstallation(ctx, other, c.ID, time.Now().AddDate(0, 0, 1))
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestFactoryBranch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newComplaint(t, env.manager)

	sent, err := env.complaints.SetTypeFactory(ctx, env.sm, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, sent.Status)

	list := env.notificationsFor(t, c.ID)
	for _, u := range []*models.User{env.orUser, env.orUser2} {
		channels := channelsTo(list, u.ID)
		require.Len(t, channels, 1, "department user %d", u.ID)
		assert.Equal(t, models.ChannelPush, channels[0])
	}
	for _, n := range list {
		if n.RecipientID == env.orUser.ID {
			assert.Contains(t, n.Message, "2 business days")
		}
	}

	_, err = env.complaints.FactoryReject(ctx, env.orUser, c.ID, "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindMissingField, apperr.KindOf(err))

	rejected, err := env.complaints.FactoryReject(ctx, env.orUser, c.ID, "not a warranty case")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFactoryRejected, rejected.Status)
	assert.Equal(t, "not a warranty case", rejected.FactoryRejectReason)
	require.NotNil(t, rejected.FactoryResponseDate)

	disputed, err := env.complaints.SMDisputeFactory(ctx, env.sm, c.ID, "photos prove a factory defect")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFactoryDispute, disputed.Status)

	approved, err := env.complaints.FactoryApprove(ctx, env.orUser, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFactoryApproved, approved.Status)

	deadline := time.Now().AddDate(0, 0, 14)
	inProduction, err := env.complaints.SMAgreeWithClient(ctx, env.sm, c.ID, deadline)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProduction, inProduction.Status)
	require.NotNil(t, inProduction.ClientAgreementDate)
	require.NotNil(t, inProduction.ProductionDeadline)
}

func TestWarehouseCreatesShippingEntryOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newComplaint(t, env.manager)

	_, err := env.complaints.SetTypeManager(ctx, env.sm, c.ID)
	require.NoError(t, err)
	_, err = env.complaints.StartProduction(ctx, env.manager, c.ID, time.Now().AddDate(0, 0, 7))
	require.NoError(t, err)

	onWarehouse, err := env.complaints.MarkOnWarehouse(ctx, env.manager, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnWarehouse, onWarehouse.Status)
	require.NotNil(t, onWarehouse.AddedToShippingRegistryAt)

	var entries []models.ShippingEntry
	require.NoError(t, env.db.Where("complaint_id = ?", c.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, models.OrderTypeComplaint, entries[0].OrderType)
	assert.Equal(t, "ORD-100", entries[0].OrderNumber)

	shipDate := time.Now().AddDate(0, 0, 5)
	planned, err := env.complaints.PlanShipping(ctx, env.manager, c.ID, shipDate)
	require.NoError(t, err)
	assert.Equal(t, models.StatusShippingPlanned, planned.Status)

	require.NoError(t, env.db.Where("complaint_id = ?", c.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].PlannedShippingDate)
}

func TestMarkOnWarehouseORRequiresFactoryType(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newComplaint(t, env.manager)

	_, err := env.complaints.SetTypeManager(ctx, env.sm, c.ID)
	require.NoError(t, err)
	_, err = env.complaints.StartProduction(ctx, env.manager, c.ID, time.Now().AddDate(0, 0, 7))
	require.NoError(t, err)

	_, err = env.complaints.MarkOnWarehouseOR(ctx, env.orUser, c.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
	assert.Equal(t, models.StatusInProduction, env.reload(t, c.ID).Status)
}

func TestCloseRecordsReason(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newComplaint(t, env.manager)

	_, err := env.complaints.SetTypeManager(ctx, env.sm, c.ID)
	require.NoError(t, err)

	closed, err := env.complaints.Close(ctx, env.sm, c.ID, "client withdrew the claim")
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, closed.Status)
	require.NotNil(t, closed.CompletionDate)

	texts := env.commentTexts(t, c.ID)
	assert.Contains(t, texts[len(texts)-1], "client withdrew the claim")

	_, err = env.complaints.Close(ctx, env.sm, c.ID, "again")
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
}

func TestChangeInstallerNotifiesBoth(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	replacement := env.user(t, "installer-2", models.RoleInstaller, "Moscow")
	c := env.newComplaint(t, env.manager)
	_, err := env.complaints.SetTypeInstaller(ctx, env.sm, c.ID, env.installer.ID)
	require.NoError(t, err)
	before := len(env.notificationsFor(t, c.ID))

	updated, err := env.complaints.ChangeInstaller(ctx, env.sm, c.ID, replacement.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.InstallerAssignedID)
	assert.Equal(t, replacement.ID, *updated.InstallerAssignedID)

	list := env.notificationsFor(t, c.ID)[before:]
	assert.ElementsMatch(t,
		[]models.NotificationChannel{models.ChannelPush, models.ChannelSMS},
		channelsTo(list, env.installer.ID))
	assert.ElementsMatch(t,
		[]models.NotificationChannel{models.ChannelPush, models.ChannelSMS},
		channelsTo(list, replacement.ID))
}

func TestRescheduleRequiresPlannedDate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newComplaint(t, env.manager)
	_, err := env.complaints.SetTypeInstaller(ctx, env.sm, c.ID, env.installer.ID)
	require.NoError(t, err)

	_, err = env.complaints.RescheduleInstallation(ctx, env.installer, c.ID, time.Now().AddDate(0, 0, 2))
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	_, err = env.complaints.PlanInstallation(ctx, env.installer, c.ID, time.Now().AddDate(0, 0, 2))
	require.NoError(t, err)

	moved, err := env.complaints.RescheduleInstallation(ctx, env.installer, c.ID, time.Now().AddDate(0, 0, 4))
	require.NoError(t, err)
	assert.Equal(t, models.StatusInstallationPlanned, moved.Status)
}

func TestUpdateClientContactCityGate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newComplaint(t, env.manager)

	_, err := env.complaints.UpdateClientContact(ctx, env.smOther, c.ID, UpdateClientContactInput{
		ContactPerson: "New Person",
		ContactPhone:  "+70000000009",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	updated, err := env.complaints.UpdateClientContact(ctx, env.sm, c.ID, UpdateClientContactInput{
		ContactPerson: "New Person",
		ContactPhone:  "+70000000009",
	})
	require.NoError(t, err)
	assert.Equal(t, "New Person", updated.ContactPerson)

	texts := env.commentTexts(t, c.ID)
	assert.Contains(t, texts[len(texts)-1], "New Person")
}

func TestSendFactoryEmailOnlyForFactoryComplaints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.newComplaint(t, env.manager)

	err := env.complaints.SendFactoryEmail(ctx, env.sm, c.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	_, err = env.complaints.SetTypeFactory(ctx, env.sm, c.ID)
	require.NoError(t, err)
	before := len(env.notificationsFor(t, c.ID))

	require.NoError(t, env.complaints.SendFactoryEmail(ctx, env.sm, c.ID))
	list := env.notificationsFor(t, c.ID)[before:]
	require.Len(t, list, 2)
	for _, n := range list {
		assert.Equal(t, models.ChannelEmail, n.Channel)
	}
}
