package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-compliance/internal/db"
	"github.com/ukydev/fleet-compliance/internal/models"
)

// SeriesRequest asks for Count occurrences of one series, starting the chain
// at StartDate. A zero StartDate seeds the chain from Now, so the first
// occurrence is NextDate(Now, FrequencyWeeks).
type SeriesRequest struct {
	TenantID              string                `json:"tenant_id"`
	VehicleID             string                `json:"vehicle_id"`
	InspectionType        models.InspectionType `json:"inspection_type"`
	StartDate             time.Time             `json:"start_date"`
	FrequencyWeeks        int                   `json:"frequency_weeks"`
	MaintenanceProviderID string                `json:"maintenance_provider_id,omitempty"`
	Notes                 string                `json:"notes,omitempty"`
	Count                 int                   `json:"count"`
	Now                   time.Time             `json:"-"`
}

// Series returns the key of the requested series.
func (r SeriesRequest) Series() models.SeriesKey {
	return models.SeriesKey{TenantID: r.TenantID, VehicleID: r.VehicleID, InspectionType: r.InspectionType}
}

// Validate checks the request without touching the store.
func (r SeriesRequest) Validate() error {
	if err := r.validateSeries(); err != nil {
		return err
	}
	if r.Count > models.MaxSeriesCount {
		return &ValidationError{Field: "count", Reason: fmt.Sprintf("must be at most %d, got %d", models.MaxSeriesCount, r.Count)}
	}
	return nil
}

// validateSeries checks everything but the count cap. Horizon maintenance
// sizes its own counts, including catch-up occurrences for stale series.
func (r SeriesRequest) validateSeries() error {
	switch {
	case r.TenantID == "":
		return &ValidationError{Field: "tenant_id", Reason: "is required"}
	case r.VehicleID == "":
		return &ValidationError{Field: "vehicle_id", Reason: "is required"}
	case r.InspectionType == "":
		return &ValidationError{Field: "inspection_type", Reason: "is required"}
	case !models.IsValidInspectionType(r.InspectionType):
		return &ValidationError{Field: "inspection_type", Reason: fmt.Sprintf("unknown type %q", r.InspectionType)}
	}
	if err := ValidateFrequency(r.FrequencyWeeks); err != nil {
		return err
	}
	if r.Count <= 0 {
		return &ValidationError{Field: "count", Reason: "must be positive"}
	}
	if r.StartDate.IsZero() && r.Now.IsZero() {
		return &ValidationError{Field: "start_date", Reason: "start date or current date is required"}
	}
	return nil
}

// ValidateFrequency checks that weeks is within the allowed recurrence range.
func ValidateFrequency(weeks int) error {
	if weeks < models.MinFrequencyWeeks || weeks > models.MaxFrequencyWeeks {
		return &ValidationError{
			Field:  "frequency_weeks",
			Reason: fmt.Sprintf("must be between %d and %d, got %d", models.MinFrequencyWeeks, models.MaxFrequencyWeeks, weeks),
		}
	}
	return nil
}

// MaterializeResult reports the outcome of one Materialize call.
type MaterializeResult struct {
	Created []models.Schedule `json:"created"`
	Skipped int               `json:"skipped"`
	Errors  []error           `json:"-"`
}

// Materialize inserts up to req.Count occurrences of a series, skipping dates
// the series already has. Calling it again with the same request creates
// nothing new.
//
// The returned error is non-nil only for invalid input or when the series
// could not be read; in both cases nothing was inserted. Individual insert
// failures are collected in the result and do not stop later occurrences.
func (e *Engine) Materialize(ctx context.Context, req SeriesRequest) (MaterializeResult, error) {
	if err := req.Validate(); err != nil {
		return MaterializeResult{}, err
	}
	return e.materialize(ctx, req)
}

func (e *Engine) materialize(ctx context.Context, req SeriesRequest) (MaterializeResult, error) {
	var res MaterializeResult

	series := req.Series()
	existing, err := e.store.ListActiveSchedules(ctx, req.TenantID, db.ScheduleFilter{
		VehicleID:      req.VehicleID,
		InspectionType: req.InspectionType,
	})
	if err != nil {
		return res, &StoreError{Op: "list " + series.String(), Err: err}
	}

	dates := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		dates[dateKey(s.ScheduledDate)] = struct{}{}
	}

	cursor := DateOf(req.StartDate)
	if req.StartDate.IsZero() {
		cursor = NextDate(req.Now, req.FrequencyWeeks)
	}

	for i := 0; i < req.Count; i++ {
		key := dateKey(cursor)
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("stopped before %s: %w", key, err))
			break
		}

		if _, ok := dates[key]; ok {
			res.Skipped++
			cursor = NextDate(cursor, req.FrequencyWeeks)
			continue
		}

		created, err := e.store.InsertSchedule(ctx, models.Schedule{
			TenantID:              req.TenantID,
			VehicleID:             req.VehicleID,
			MaintenanceProviderID: req.MaintenanceProviderID,
			InspectionType:        req.InspectionType,
			ScheduledDate:         cursor,
			FrequencyWeeks:        req.FrequencyWeeks,
			Notes:                 req.Notes,
			IsActive:              true,
		})
		switch {
		case err == nil:
			res.Created = append(res.Created, created)
			dates[key] = struct{}{}
		case errors.Is(err, ErrDuplicateOccurrence):
			// Another writer got there first.
			res.Skipped++
			dates[key] = struct{}{}
		default:
			res.Errors = append(res.Errors, &StoreError{Op: "insert " + key, Err: err})
		}
		cursor = NextDate(cursor, req.FrequencyWeeks)
	}

	e.logger.WithFields(log.Fields{
		"series":  series.String(),
		"created": len(res.Created),
		"skipped": res.Skipped,
		"errors":  len(res.Errors),
	}).Debug("Materialized series")

	return res, nil
}
