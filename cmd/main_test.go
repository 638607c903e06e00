package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-compliance/internal/auth"
	"github.com/ukydev/fleet-compliance/internal/config"
	"github.com/ukydev/fleet-compliance/internal/db"
	"github.com/ukydev/fleet-compliance/internal/events"
	"github.com/ukydev/fleet-compliance/internal/handlers"
	"github.com/ukydev/fleet-compliance/internal/middleware"
	"github.com/ukydev/fleet-compliance/internal/models"
	"github.com/ukydev/fleet-compliance/internal/scheduling"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	handler     http.Handler
	authService *auth.Service
	store       *db.MemoryScheduleStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("runner-key"), bcrypt.MinCost)
	require.NoError(t, err)
	authService, err := auth.NewService(auth.Options{JWTSecret: "test-secret", ServiceKeyHash: string(hash)})
	require.NoError(t, err)

	store := db.NewMemoryScheduleStore()
	h := handlers.NewScheduleHandler(scheduling.NewEngine(store), events.NewLogPublisher("fleet"), 52)
	return &testServer{
		handler:     newRouter(h, middleware.NewAuthMiddleware(authService), middleware.NewRateLimitMiddleware(false)),
		authService: authService,
		store:       store,
	}
}

func (s *testServer) do(t *testing.T, req *http.Request, tenant string, role models.Role) *httptest.ResponseRecorder {
	t.Helper()
	if tenant != "" {
		token, err := s.authService.GenerateToken(models.Claims{UserID: "u-1", TenantID: tenant, Role: role})
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func seriesBody(t *testing.T) *bytes.Buffer {
	body, err := json.Marshal(handlers.CreateSeriesRequest{
		VehicleID:      "veh-1",
		InspectionType: models.InspectionMOT,
		StartDate:      "2030-03-04",
		Count:          2,
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestHealthHandler(t *testing.T) {
	srv := newTestServer(t)
	w := srv.do(t, httptest.NewRequest(http.MethodGet, "/health", nil), "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRouter_PublicInspectionTypes(t *testing.T) {
	srv := newTestServer(t)
	w := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/inspection-types", nil), "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_SchedulesRequireToken(t *testing.T) {
	srv := newTestServer(t)
	w := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/schedules", nil), "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_CreateAndListSeries(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, httptest.NewRequest(http.MethodPost, "/api/schedules/series", seriesBody(t)), "tenant-a", models.RoleOperator)
	require.Equal(t, http.StatusCreated, w.Code)

	w = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/schedules", nil), "tenant-a", models.RoleViewer)
	require.Equal(t, http.StatusOK, w.Code)
	var list handlers.ScheduleListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Schedules, 2)

	// Other tenants see nothing.
	w = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/schedules", nil), "tenant-b", models.RoleViewer)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Empty(t, list.Schedules)
}

func TestRouter_Permissions(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, httptest.NewRequest(http.MethodPost, "/api/schedules/series", seriesBody(t)), "tenant-a", models.RoleViewer)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = srv.do(t, httptest.NewRequest(http.MethodPost, "/api/schedules/maintain", nil), "tenant-a", models.RoleOperator)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = srv.do(t, httptest.NewRequest(http.MethodPost, "/api/schedules/maintain", nil), "tenant-a", models.RoleManager)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_InternalMaintainRequiresServiceKey(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, httptest.NewRequest(http.MethodPost, "/api/schedules/series", seriesBody(t)), "tenant-a", models.RoleManager)

	req := httptest.NewRequest(http.MethodPost, "/api/internal/tenants/tenant-a/maintain", nil)
	w := srv.do(t, req, "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/internal/tenants/tenant-a/maintain", nil)
	req.Header.Set(middleware.ServiceKeyHeader, "runner-key")
	w = srv.do(t, req, "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp handlers.MaintainResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "tenant-a", resp.TenantID)
	assert.Equal(t, 1, resp.SeriesProcessed)
	assert.Equal(t, 1, resp.SchedulesCreated)
}

func TestOpenStore_Memory(t *testing.T) {
	cfg := config.Defaults()
	cfg.StoreDriver = config.StoreMemory

	store, closeStore, err := openStore(t.Context(), cfg)
	require.NoError(t, err)
	defer closeStore()
	assert.IsType(t, &db.MemoryScheduleStore{}, store)
}

func TestNewPublisher_FallsBackToLog(t *testing.T) {
	cfg := config.Defaults()
	assert.IsType(t, &events.LogPublisher{}, newPublisher(cfg))
}
