package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-compliance/internal/db"
	"github.com/ukydev/fleet-compliance/internal/events"
	"github.com/ukydev/fleet-compliance/internal/middleware"
	"github.com/ukydev/fleet-compliance/internal/models"
	"github.com/ukydev/fleet-compliance/internal/scheduling"
)

const dateLayout = "2006-01-02"

// ScheduleHandler exposes the scheduling engine over HTTP.
type ScheduleHandler struct {
	engine       *scheduling.Engine
	publisher    events.Publisher
	horizonWeeks int
	now          func() time.Time
}

// NewScheduleHandler creates a schedule handler. A nil publisher logs events instead.
func NewScheduleHandler(engine *scheduling.Engine, publisher events.Publisher, horizonWeeks int) *ScheduleHandler {
	if publisher == nil {
		publisher = events.NewLogPublisher(events.DefaultTopicPrefix)
	}
	return &ScheduleHandler{
		engine:       engine,
		publisher:    publisher,
		horizonWeeks: horizonWeeks,
		now:          time.Now,
	}
}

// CreateSeriesRequest is the body of POST /api/schedules/series.
type CreateSeriesRequest struct {
	VehicleID             string                `json:"vehicle_id"`
	InspectionType        models.InspectionType `json:"inspection_type"`
	StartDate             string                `json:"start_date,omitempty"`
	FrequencyWeeks        int                   `json:"frequency_weeks,omitempty"`
	MaintenanceProviderID string                `json:"maintenance_provider_id,omitempty"`
	Notes                 string                `json:"notes,omitempty"`
	Count                 int                   `json:"count,omitempty"`
}

// CreateSeriesResponse reports the schedules a series request produced.
type CreateSeriesResponse struct {
	Created []models.Schedule `json:"created"`
	Skipped int               `json:"skipped"`
	Errors  []string          `json:"errors,omitempty"`
}

// MaintainRequest is the optional body of the maintenance endpoints.
type MaintainRequest struct {
	HorizonWeeks int `json:"horizon_weeks,omitempty"`
}

// MaintainResponse wraps a horizon report with readable errors.
type MaintainResponse struct {
	scheduling.HorizonReport
	Errors []string `json:"errors,omitempty"`
}

// ScheduleListResponse is returned by GET /api/schedules.
type ScheduleListResponse struct {
	Schedules []scheduling.ClassifiedSchedule `json:"schedules"`
	Summary   scheduling.Summary              `json:"summary"`
}

// InspectionTypeInfo describes one inspection type.
type InspectionTypeInfo struct {
	Type                  models.InspectionType `json:"type"`
	DefaultFrequencyWeeks int                   `json:"default_frequency_weeks"`
}

// ListSchedules returns the tenant's active schedules with their due status
func (h *ScheduleHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	filter := db.ScheduleFilter{
		VehicleID:      r.URL.Query().Get("vehicle_id"),
		InspectionType: models.InspectionType(r.URL.Query().Get("inspection_type")),
	}
	if filter.InspectionType != "" && !models.IsValidInspectionType(filter.InspectionType) {
		http.Error(w, "Invalid inspection type", http.StatusBadRequest)
		return
	}

	classified, summary, err := h.engine.DueSchedules(r.Context(), claims.TenantID, filter, h.now())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if classified == nil {
		classified = []scheduling.ClassifiedSchedule{}
	}
	writeJSON(w, http.StatusOK, ScheduleListResponse{Schedules: classified, Summary: summary})
}

// Summary returns only the due-status counts of the tenant
func (h *ScheduleHandler) Summary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	_, summary, err := h.engine.DueSchedules(r.Context(), claims.TenantID, db.ScheduleFilter{}, h.now())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// CreateSeries materializes a new recurring series for one vehicle
func (h *ScheduleHandler) CreateSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req CreateSeriesRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	seriesReq, err := h.seriesRequest(claims.TenantID, req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.engine.Materialize(r.Context(), seriesReq)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.publishCreated(r, claims.TenantID, result.Created)

	status := http.StatusCreated
	if len(result.Errors) > 0 {
		status = http.StatusMultiStatus
	}
	created := result.Created
	if created == nil {
		created = []models.Schedule{}
	}
	writeJSON(w, status, CreateSeriesResponse{
		Created: created,
		Skipped: result.Skipped,
		Errors:  errorStrings(result.Errors),
	})
}

// Maintain tops up the horizon of the caller's tenant
func (h *ScheduleHandler) Maintain(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}
	h.maintain(w, r, claims.TenantID)
}

// MaintainTenant tops up the horizon of the tenant named in the path. It is
// meant for external schedulers and must sit behind RequireServiceKey.
func (h *ScheduleHandler) MaintainTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant_id")
	if tenantID == "" {
		http.Error(w, "Tenant ID is required", http.StatusBadRequest)
		return
	}
	h.maintain(w, r, tenantID)
}

func (h *ScheduleHandler) maintain(w http.ResponseWriter, r *http.Request, tenantID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	var req MaintainRequest
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
	}
	horizon := req.HorizonWeeks
	if horizon == 0 {
		horizon = h.horizonWeeks
	}

	report, err := h.engine.MaintainHorizon(r.Context(), tenantID, horizon, h.now())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.publishCreated(r, tenantID, report.Created)

	status := http.StatusOK
	if !report.OK() {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, MaintainResponse{HorizonReport: report, Errors: errorStrings(report.Errors)})
}

// InspectionTypes lists the known inspection types and their default frequencies
func (h *ScheduleHandler) InspectionTypes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	types := models.InspectionTypes()
	infos := make([]InspectionTypeInfo, 0, len(types))
	for _, t := range types {
		infos = append(infos, InspectionTypeInfo{Type: t, DefaultFrequencyWeeks: t.DefaultFrequencyWeeks()})
	}
	writeJSON(w, http.StatusOK, infos)
}

func (h *ScheduleHandler) seriesRequest(tenantID string, req CreateSeriesRequest) (scheduling.SeriesRequest, error) {
	seriesReq := scheduling.SeriesRequest{
		TenantID:              tenantID,
		VehicleID:             req.VehicleID,
		InspectionType:        req.InspectionType,
		FrequencyWeeks:        req.FrequencyWeeks,
		MaintenanceProviderID: req.MaintenanceProviderID,
		Notes:                 req.Notes,
		Count:                 req.Count,
		Now:                   h.now(),
	}
	if req.StartDate != "" {
		start, err := time.Parse(dateLayout, req.StartDate)
		if err != nil {
			return seriesReq, errors.New("start_date must be formatted as YYYY-MM-DD")
		}
		seriesReq.StartDate = start
	}
	if seriesReq.FrequencyWeeks == 0 {
		seriesReq.FrequencyWeeks = req.InspectionType.DefaultFrequencyWeeks()
	}
	if seriesReq.Count == 0 && seriesReq.FrequencyWeeks > 0 {
		seriesReq.Count = (scheduling.DefaultHorizonWeeks + seriesReq.FrequencyWeeks - 1) / seriesReq.FrequencyWeeks
	}
	return seriesReq, nil
}

func (h *ScheduleHandler) publishCreated(r *http.Request, tenantID string, created []models.Schedule) {
	if len(created) == 0 {
		return
	}
	event := events.SchedulesCreated(tenantID, "", created, h.now())
	if err := h.publisher.Publish(r.Context(), event); err != nil {
		log.WithError(err).WithField("tenant_id", tenantID).Warn("Failed to publish schedules created event")
	}
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, scheduling.ErrStoreUnavailable):
		log.WithError(err).Error("Schedule store unavailable")
		http.Error(w, "Schedule store unavailable", http.StatusServiceUnavailable)
	default:
		log.WithError(err).Error("Scheduling request failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}

func errorStrings(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}
