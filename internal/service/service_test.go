package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/complaintflow/backend/internal/models"
	"github.com/example/complaintflow/backend/internal/repository"
)

var testDBSeq int64

// recordingPublisher captures routing keys published during a test.
type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

type testEnv struct {
	db            *gorm.DB
	publisher     *recordingPublisher
	complaints    *ComplaintService
	shipping      *ShippingService
	notifications *NotificationService

	sm        *models.User
	smOther   *models.User
	manager   *models.User
	installer *models.User
	orUser    *models.User
	orUser2   *models.User
	admin     *models.User
	leader    *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:svc%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Complaint{},
		&models.DefectiveProduct{},
		&models.Attachment{},
		&models.Comment{},
		&models.Notification{},
		&models.ShippingEntry{},
		&models.ProductionSite{},
		&models.ComplaintReason{},
	))

	userRepo := repository.NewUserRepository(db)
	complaintRepo := repository.NewComplaintRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	shippingRepo := repository.NewShippingRepository(db)

	publisher := &recordingPublisher{}
	notifier := NewNotifier(notificationRepo, publisher)

	env := &testEnv{
		db:            db,
		publisher:     publisher,
		complaints:    NewComplaintService(db, complaintRepo, userRepo, shippingRepo, notifier, publisher),
		shipping:      NewShippingService(shippingRepo, userRepo),
		notifications: NewNotificationService(notificationRepo),
	}

	env.sm = env.user(t, "sm", models.RoleServiceManager, "Moscow")
	env.smOther = env.user(t, "sm-spb", models.RoleServiceManager, "Petersburg")
	env.manager = env.user(t, "manager", models.RoleManager, "Moscow")
	env.installer = env.user(t, "installer", models.RoleInstaller, "Moscow")
	env.orUser = env.user(t, "department-1", models.RoleComplaintDepartment, "")
	env.orUser2 = env.user(t, "department-2", models.RoleComplaintDepartment, "")
	env.admin = env.user(t, "admin", models.RoleAdmin, "")
	env.leader = env.user(t, "leader", models.RoleLeader, "")
	return env
}

func (e *testEnv) user(t *testing.T, username string, role models.Role, city string) *models.User {
	t.Helper()
	u := &models.User{
		Username: username,
		FullName: username,
		Role:     role,
		City:     city,
		IsActive: true,
	}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

// newComplaint opens a complaint through the service on behalf of initiator.
func (e *testEnv) newComplaint(t *testing.T, initiator *models.User) *models.Complaint {
	t.Helper()
	c, err := e.complaints.Create(context.Background(), initiator, CreateComplaintInput{
		OrderNumber:   "ORD-100",
		ClientName:    "Ivanov",
		Address:       "Lenina 5",
		ContactPerson: "Ivanov",
		ContactPhone:  "+70000000001",
		ManagerID:     e.manager.ID,
		DefectiveProducts: []DefectiveProductInput{
			{ProductName: "Entry door", Size: "900x2100", ProblemDescription: "scratched"},
		},
	})
	require.NoError(t, err)
	return c
}

func (e *testEnv) reload(t *testing.T, id uint) *models.Complaint {
	t.Helper()
	var c models.Complaint
	require.NoError(t, e.db.First(&c, id).Error)
	return &c
}

func (e *testEnv) notificationsFor(t *testing.T, complaintID uint) []models.Notification {
	t.Helper()
	var list []models.Notification
	require.NoError(t, e.db.Where("complaint_id = ?", complaintID).Order("id asc").Find(&list).Error)
	return list
}

func (e *testEnv) commentTexts(t *testing.T, complaintID uint) []string {
	t.Helper()
	var comments []models.Comment
	require.NoError(t, e.db.Where("complaint_id = ?", complaintID).Order("id asc").Find(&comments).Error)
	texts := make([]string, 0, len(comments))
	for _, c := range comments {
		texts = append(texts, c.Text)
	}
	return texts
}

func channelsTo(list []models.Notification, recipientID uint) []models.NotificationChannel {
	var channels []models.NotificationChannel
	for _, n := range list {
		if n.RecipientID == recipientID {
			channels = append(channels, n.Channel)
		}
	}
	return channels
}
