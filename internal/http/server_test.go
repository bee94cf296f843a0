package http

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/complaintflow/backend/internal/models"
	"github.com/example/complaintflow/backend/internal/repository"
	"github.com/example/complaintflow/backend/internal/service"
)

var httpDBSeq int64

type apiEnv struct {
	server    *Server
	sm        *models.User
	manager   *models.User
	installer *models.User
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:api%d?mode=memory&cache=shared", atomic.AddInt64(&httpDBSeq, 1))
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
	notifier := service.NewNotifier(notificationRepo, nil)

	complaints := service.NewComplaintService(db, complaintRepo, userRepo, shippingRepo, notifier, nil)
	shipping := service.NewShippingService(shippingRepo, userRepo)
	notifications := service.NewNotificationService(notificationRepo)

	env := &apiEnv{server: NewServer(userRepo, complaints, shipping, notifications)}
	env.sm = seedUser(t, db, "sm", models.RoleServiceManager, "Moscow")
	env.manager = seedUser(t, db, "manager", models.RoleManager, "Moscow")
	env.installer = seedUser(t, db, "installer", models.RoleInstaller, "Moscow")
	return env
}

func seedUser(t *testing.T, db *gorm.DB, username string, role models.Role, city string) *models.User {
	t.Helper()
	u := &models.User{Username: username, FullName: username, Role: role, City: city, IsActive: true}
	require.NoError(t, db.Create(u).Error)
	return u
}

func (e *apiEnv) do(t *testing.T, user *models.User, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set("X-User-ID", fmt.Sprintf("%d", user.ID))
	}
	rec := httptest.NewRecorder()
	e.server.Engine.ServeHTTP(rec, req)
	return rec
}

const createBody = `{
	"orderNumber": "ORD-100",
	"clientName": "Ivanov",
	"address": "Lenina 5",
	"contactPerson": "Ivanov",
	"contactPhone": "+70000000001",
	"managerId": %d
}`

func TestIdentityRequired(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, nil, http.MethodGet, "/api/complaints", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	unknown := &models.User{ID: 4242}
	rec = env.do(t, unknown, http.MethodGet, "/api/complaints", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, env.manager, http.MethodGet, "/api/complaints", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateAndTransitionOverHTTP(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, env.manager, http.MethodPost, "/api/complaints",
		fmt.Sprintf(createBody, env.manager.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"new"`)

	rec = env.do(t, env.sm, http.MethodPost, "/api/complaints/1/set-type-installer",
		fmt.Sprintf(`{"installerId": %d}`, env.installer.ID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"waiting_installer_date"`)
}

func TestErrorKindsMapToStatusCodes(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, env.manager, http.MethodPost, "/api/complaints",
		fmt.Sprintf(createBody, env.manager.ID))
	require.Equal(t, http.StatusCreated, rec.Code)

	// Installer may not route complaints: forbidden.
	rec = env.do(t, env.installer, http.MethodPost, "/api/complaints/1/set-type-factory", "{}")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"forbidden"`)

	// Production cannot start from status new: invalid state.
	rec = env.do(t, env.manager, http.MethodPost, "/api/complaints/1/start-production",
		`{"productionDeadline": "2026-09-20"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"invalid_state"`)

	// Unknown complaint: not found.
	rec = env.do(t, env.sm, http.MethodPost, "/api/complaints/99/set-type-manager", "{}")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Missing required parameter: bad request with the field name.
	rec = env.do(t, env.sm, http.MethodPost, "/api/complaints/1/set-type-installer", "{}")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"installerId"`)
}

func TestVisibilityOverHTTP(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, env.manager, http.MethodPost, "/api/complaints",
		fmt.Sprintf(createBody, env.manager.ID))
	require.Equal(t, http.StatusCreated, rec.Code)

	// The installer is neither initiator nor assigned.
	rec = env.do(t, env.installer, http.MethodGet, "/api/complaints/1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, env.installer, http.MethodGet, "/api/complaints", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}
