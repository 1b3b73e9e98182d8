package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	appointmenthandler "github.com/jwalitptl/vip-booking/internal/handler/appointment"
	authhandler "github.com/jwalitptl/vip-booking/internal/handler/auth"
	clienthandler "github.com/jwalitptl/vip-booking/internal/handler/client"
	healthhandler "github.com/jwalitptl/vip-booking/internal/handler/health"
	settingshandler "github.com/jwalitptl/vip-booking/internal/handler/settings"
	slothandler "github.com/jwalitptl/vip-booking/internal/handler/slot"
	"github.com/jwalitptl/vip-booking/internal/middleware"
	"github.com/jwalitptl/vip-booking/internal/model"
	authservice "github.com/jwalitptl/vip-booking/internal/service/auth"
	"github.com/jwalitptl/vip-booking/internal/service/servicetest"
	"github.com/jwalitptl/vip-booking/pkg/auth"
	apperrors "github.com/jwalitptl/vip-booking/pkg/errors"
	"github.com/jwalitptl/vip-booking/pkg/logger"
	"github.com/jwalitptl/vip-booking/pkg/metrics"
	"github.com/jwalitptl/vip-booking/pkg/security"
)

const adminPassword = "s3cret-passw0rd"

type envelope struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t       *testing.T
	handler http.Handler
	h       *servicetest.Harness
	admin   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := servicetest.New()
	jwtSvc, err := auth.NewJWTService(auth.Config{
		Secret: "router-test-secret",
		Issuer: "vip-booking",
		TTL:    time.Hour,
		Now:    h.Clock.Now,
	})
	require.NoError(t, err)

	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash(adminPassword)
	require.NoError(t, err)
	authSvc := authservice.NewService(authservice.Admin{Username: "admin", PasswordHash: hash}, jwtSvc, hasher, logger.Nop())

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg, "vip", "api")

	r := NewRouter(middleware.NewAuthMiddleware(jwtSvc), Handlers{
		Auth:        authhandler.NewHandler(authSvc),
		Slots:       slothandler.NewHandler(h.Slots),
		Appointment: appointmenthandler.NewHandler(h.Appointments, h.Booking, h.Negotiation),
		Clients:     clienthandler.NewHandler(h.History),
		Settings:    settingshandler.NewHandler(h.Settings),
		Health: healthhandler.NewHandler(map[string]healthhandler.Pinger{
			"database": h.Store,
		}, reg),
	}, m, RouterConfig{
		RateLimit:      false,
		RequestTimeout: 5 * time.Second,
	})

	s := &testServer{t: t, handler: r.Handler(), h: h}
	s.admin = s.login()
	return s
}

func (s *testServer) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (s *testServer) login() string {
	s.t.Helper()
	w, env := s.do(http.MethodPost, "/api/v1/auth/token", "", gin.H{"username": "admin", "password": adminPassword})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var tok model.TokenResponse
	require.NoError(s.t, json.Unmarshal(env.Data, &tok))
	return tok.AccessToken
}

func (s *testServer) clientToken(clientID string) string {
	s.t.Helper()
	w, env := s.do(http.MethodPost, "/api/v1/auth/client-token", s.admin, gin.H{"client_id": clientID})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var tok model.TokenResponse
	require.NoError(s.t, json.Unmarshal(env.Data, &tok))
	return tok.AccessToken
}

func (s *testServer) createSlot(date, start, end string) model.Slot {
	s.t.Helper()
	w, env := s.do(http.MethodPost, "/api/v1/slots", s.admin, gin.H{"date": date, "start_time": start, "end_time": end})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var slot model.Slot
	require.NoError(s.t, json.Unmarshal(env.Data, &slot))
	return slot
}

func (s *testServer) book(token, slotID string, modality model.Modality) model.Appointment {
	s.t.Helper()
	w, env := s.do(http.MethodPost, "/api/v1/appointments", token, gin.H{
		"slot_id":  slotID,
		"modality": modality,
		"subject":  "Villa viewing",
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return decodeAppointment(s.t, env)
}

func decodeAppointment(t *testing.T, env envelope) model.Appointment {
	t.Helper()
	var a model.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &a))
	return a
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(http.MethodPost, "/api/v1/auth/token", "", gin.H{"username": "admin", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, string(apperrors.CodeUnauthorized), env.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/slots/bookable", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	client := s.clientToken("client-1")
	w, _ = s.do(http.MethodPost, "/api/v1/auth/client-token", client, gin.H{"client_id": "client-2"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(http.MethodPost, "/api/v1/slots", client, gin.H{"date": "2030-05-10", "start_time": "09:00", "end_time": "10:00"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestFreeBookingConfirmedByAdmin(t *testing.T) {
	s := newTestServer(t)
	client := s.clientToken("client-1")
	slot := s.createSlot("2030-05-10", "09:00", "10:00")

	w, env := s.do(http.MethodGet, "/api/v1/slots/bookable", client, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var bookable []model.Slot
	require.NoError(t, json.Unmarshal(env.Data, &bookable))
	require.Len(t, bookable, 1)
	assert.Equal(t, slot.ID, bookable[0].ID)

	a := s.book(client, slot.ID, model.ModalityInPerson)
	assert.Equal(t, model.AppointmentStatusPending, a.Status)
	assert.Equal(t, model.PaymentStatusFree, a.PaymentStatus)
	assert.Zero(t, a.Price)
	assert.True(t, a.IsFreeFirstAppointment)

	w, env = s.do(http.MethodGet, "/api/v1/slots/bookable", client, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", string(env.Data))

	w, env = s.do(http.MethodPost, "/api/v1/appointments/"+a.ID+"/confirm", s.admin, gin.H{"response": "See you there"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	confirmed := decodeAppointment(t, env)
	assert.Equal(t, model.AppointmentStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.AdminResponse)
	assert.Equal(t, "See you there", *confirmed.AdminResponse)

	w, env = s.do(http.MethodGet, "/api/v1/clients/client-1/history", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var hist model.ClientAppointmentHistory
	require.NoError(t, json.Unmarshal(env.Data, &hist))
	assert.True(t, hist.HasUsedFreeAppointment)
	assert.Equal(t, 1, hist.TotalAppointments)
}

func TestPaidBookingWithAlternative(t *testing.T) {
	s := newTestServer(t)
	s.h.UseFreeAppointment(t, "client-2")
	client := s.clientToken("client-2")
	original := s.createSlot("2030-05-10", "09:00", "10:00")
	alternative := s.createSlot("2030-05-11", "14:00", "15:00")

	a := s.book(client, original.ID, model.ModalityOnline)
	assert.Equal(t, model.AppointmentStatusPendingPayment, a.Status)
	assert.Equal(t, int64(50000), a.Price)

	w, env := s.do(http.MethodPost, "/api/v1/appointments/"+a.ID+"/confirm", s.admin, nil)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, string(apperrors.CodePaymentRequired), env.Code)

	w, env = s.do(http.MethodPost, "/api/v1/appointments/"+a.ID+"/pay", client, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	paid := decodeAppointment(t, env)
	assert.Equal(t, model.AppointmentStatusPending, paid.Status)
	assert.Equal(t, model.PaymentStatusPaid, paid.PaymentStatus)

	w, _ = s.do(http.MethodPost, "/api/v1/appointments/"+a.ID+"/alternative", s.admin, gin.H{"slot_id": alternative.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(http.MethodPost, "/api/v1/appointments/"+a.ID+"/alternative", s.admin, gin.H{
		"slot_id": alternative.ID,
		"reason":  "Agent unavailable that morning",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.AppointmentStatusAlternativeProposed, decodeAppointment(t, env).Status)

	w, env = s.do(http.MethodPost, "/api/v1/appointments/"+a.ID+"/alternative/response", client, gin.H{"accept": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	accepted := decodeAppointment(t, env)
	assert.Equal(t, model.AppointmentStatusConfirmed, accepted.Status)
	assert.Equal(t, alternative.ID, accepted.SlotID)
	assert.Equal(t, "14:00", accepted.StartTime)

	w, env = s.do(http.MethodGet, "/api/v1/appointments/"+a.ID+"/alternatives", client, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var proposals []model.AlternativeSlotProposal
	require.NoError(t, json.Unmarshal(env.Data, &proposals))
	require.Len(t, proposals, 1)
	assert.Equal(t, model.ProposalStatusAccepted, proposals[0].Status)

	// The original slot is free again.
	w, env = s.do(http.MethodGet, "/api/v1/slots/bookable", client, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var bookable []model.Slot
	require.NoError(t, json.Unmarshal(env.Data, &bookable))
	require.Len(t, bookable, 1)
	assert.Equal(t, original.ID, bookable[0].ID)
}

func TestAppointmentAccessControl(t *testing.T) {
	s := newTestServer(t)
	owner := s.clientToken("client-1")
	stranger := s.clientToken("client-9")
	slot := s.createSlot("2030-05-10", "09:00", "10:00")
	a := s.book(owner, slot.ID, model.ModalityOnline)

	w, _ := s.do(http.MethodPut, "/api/v1/appointments/"+a.ID+"/notes", s.admin, gin.H{"notes": "VIP, prefers mornings"})
	require.Equal(t, http.StatusOK, w.Code)

	w, env := s.do(http.MethodGet, "/api/v1/appointments/"+a.ID, owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decodeAppointment(t, env).AdminNotes)

	w, env = s.do(http.MethodGet, "/api/v1/appointments/"+a.ID, s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, decodeAppointment(t, env).AdminNotes)

	w, _ = s.do(http.MethodGet, "/api/v1/appointments/"+a.ID, stranger, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(http.MethodPost, "/api/v1/appointments/"+a.ID+"/cancel", stranger, gin.H{"reason": "not mine"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(http.MethodPost, "/api/v1/appointments/"+a.ID+"/confirm", owner, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = s.do(http.MethodGet, "/api/v1/appointments", stranger, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"total":0`)

	w, env = s.do(http.MethodGet, "/api/v1/appointments?status=pending", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"total":1`)

	w, _ = s.do(http.MethodGet, "/api/v1/appointments?status=archived", s.admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodPost, "/api/v1/appointments/"+a.ID+"/cancel", owner, gin.H{"reason": "Change of plans"})
	require.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(http.MethodGet, "/api/v1/appointments/stats", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var counts map[string]int
	require.NoError(t, json.Unmarshal(env.Data, &counts))
	assert.Equal(t, 1, counts["cancelled"])
}

func TestSlotAdministration(t *testing.T) {
	s := newTestServer(t)
	client := s.clientToken("client-1")

	w, env := s.do(http.MethodPost, "/api/v1/slots", s.admin, gin.H{"date": "2030-05-10", "start_time": "9:00", "end_time": "10:00"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(apperrors.CodeValidation), env.Code)
	assert.Contains(t, string(env.Data), "start_time")

	w, _ = s.do(http.MethodPost, "/api/v1/slots", s.admin, gin.H{"date": "2030-04-30", "start_time": "09:00", "end_time": "10:00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	slot := s.createSlot("2030-05-10", "09:00", "10:00")
	w, _ = s.do(http.MethodPost, "/api/v1/slots", s.admin, gin.H{"date": "2030-05-10", "start_time": "09:00", "end_time": "10:00"})
	assert.Equal(t, http.StatusConflict, w.Code)

	s.book(client, slot.ID, model.ModalityInPerson)

	w, env = s.do(http.MethodDelete, "/api/v1/slots/"+slot.ID, s.admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(apperrors.CodeSlotConflict), env.Code)

	w, env = s.do(http.MethodGet, "/api/v1/slots", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var views []model.SlotView
	require.NoError(t, json.Unmarshal(env.Data, &views))
	require.Len(t, views, 1)
	assert.True(t, views[0].IsBooked)

	w, env = s.do(http.MethodPatch, "/api/v1/slots/"+slot.ID+"/availability", s.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var toggled model.Slot
	require.NoError(t, json.Unmarshal(env.Data, &toggled))
	assert.False(t, toggled.IsAvailable)

	w, _ = s.do(http.MethodDelete, "/api/v1/slots/slot-2030-05-12-0900", s.admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSettingsAndHealth(t *testing.T) {
	s := newTestServer(t)
	client := s.clientToken("client-1")

	w, env := s.do(http.MethodGet, "/api/v1/settings", client, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var settings model.AppointmentSettings
	require.NoError(t, json.Unmarshal(env.Data, &settings))
	assert.Equal(t, servicetest.DefaultSettings.InPersonPrice, settings.InPersonPrice)

	w, _ = s.do(http.MethodGet, "/api/v1/health/live", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(http.MethodGet, "/api/v1/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/health/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "vip_api_http_requests_total")

	w, env = s.do(http.MethodGet, "/api/v1/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(apperrors.CodeNotFound), env.Code)
}
