package handlers

import (
	"context"
	"net/http"

	"alert_console/internal/engine"
	"alert_console/internal/models"
	"alert_console/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(_ context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(_ context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockAlertLog struct {
	resp        []models.AlertRecord
	err         error
	lastAccount int
	lastFilter  service.LogFilter
}

func (m *mockAlertLog) List(_ context.Context, accountID int, f service.LogFilter) ([]models.AlertRecord, error) {
	m.lastAccount = accountID
	m.lastFilter = f
	return m.resp, m.err
}

type mockPreferences struct {
	prefs      models.Preferences
	err        error
	lastUpdate *models.Preferences
}

func (m *mockPreferences) Get(_ context.Context, accountID int) (models.Preferences, error) {
	p := m.prefs
	p.AccountID = accountID
	return p, m.err
}

func (m *mockPreferences) Update(_ context.Context, accountID int, sound, notifications bool) (models.Preferences, error) {
	p := models.Preferences{AccountID: accountID, SoundEnabled: sound, NotificationsEnabled: notifications}
	m.lastUpdate = &p
	return p, m.err
}

type mockIngest struct {
	delivered     int
	emergencyErr  error
	lastSerial    string
	lastDeviceID  string
	lastReading   models.SensorReading
	lastAlarm     models.DeviceAlarm
	lastEmergency models.GlobalAlert
	lastAccount   int
}

func (m *mockIngest) PublishReading(serial, deviceID string, r models.SensorReading) int {
	m.lastSerial, m.lastDeviceID, m.lastReading = serial, deviceID, r
	return m.delivered
}

func (m *mockIngest) PublishAlarm(serial, deviceID string, a models.DeviceAlarm) int {
	m.lastSerial, m.lastDeviceID, m.lastAlarm = serial, deviceID, a
	return m.delivered
}

func (m *mockIngest) PublishEmergency(_ context.Context, accountID int, g models.GlobalAlert) (models.GlobalAlert, error) {
	m.lastAccount, m.lastEmergency = accountID, g
	if g.ID == "" {
		g.ID = "generated"
	}
	return g, m.emergencyErr
}

func (m *mockIngest) Evaluate(r models.SensorReading) engine.Evaluation {
	return engine.Evaluate(r, models.DefaultThresholds())
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
