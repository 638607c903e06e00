package scheduling

import (
	"context"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-compliance/internal/db"
	"github.com/ukydev/fleet-compliance/internal/models"
)

// HorizonReport summarizes one MaintainHorizon run for a tenant.
type HorizonReport struct {
	TenantID          string            `json:"tenant_id"`
	HorizonWeeks      int               `json:"horizon_weeks"`
	SeriesProcessed   int               `json:"series_processed"`
	SchedulesCreated  int               `json:"schedules_created"`
	DuplicatesSkipped int               `json:"duplicates_skipped"`
	Created           []models.Schedule `json:"created,omitempty"`
	Errors            []error           `json:"-"`
}

// OK reports whether every series was topped up without error.
func (r HorizonReport) OK() bool { return len(r.Errors) == 0 }

// seriesTip is the latest active schedule of a series.
type seriesTip struct {
	key models.SeriesKey
	tip models.Schedule
}

// MaintainHorizon tops up every active series of tenantID so that it has
// ceil(horizonWeeks / frequency) occurrences beyond its current tip.
// A horizonWeeks of 0 means DefaultHorizonWeeks.
//
// A series whose tip is already in the past also gets the occurrences needed
// to bring the chain up to today, so it never stays without a future date.
//
// Each series is handled independently: a failure is recorded in the report
// and the remaining series are still processed. The returned error is non-nil
// only for invalid input or when the tenant's schedules could not be read.
func (e *Engine) MaintainHorizon(ctx context.Context, tenantID string, horizonWeeks int, now time.Time) (HorizonReport, error) {
	if horizonWeeks == 0 {
		horizonWeeks = DefaultHorizonWeeks
	}
	report := HorizonReport{TenantID: tenantID, HorizonWeeks: horizonWeeks}

	if tenantID == "" {
		return report, &ValidationError{Field: "tenant_id", Reason: "is required"}
	}
	if horizonWeeks < 0 || horizonWeeks > models.MaxHorizonWeeks {
		return report, &ValidationError{
			Field:  "horizon_weeks",
			Reason: fmt.Sprintf("must be between 1 and %d, got %d", models.MaxHorizonWeeks, horizonWeeks),
		}
	}
	if now.IsZero() {
		return report, &ValidationError{Field: "now", Reason: "is required"}
	}

	schedules, err := e.store.ListActiveSchedules(ctx, tenantID, db.ScheduleFilter{})
	if err != nil {
		return report, &StoreError{Op: "list tenant " + tenantID, Err: err}
	}

	today := DateOf(now)
	logger := e.logger.WithFields(log.Fields{"tenant_id": tenantID, "horizon_weeks": horizonWeeks})

	for _, st := range groupTips(schedules) {
		if err := ctx.Err(); err != nil {
			report.Errors = append(report.Errors, &SeriesError{Series: st.key, Err: err})
			break
		}
		report.SeriesProcessed++

		freq := st.tip.FrequencyWeeks
		if err := ValidateFrequency(freq); err != nil {
			logger.WithField("series", st.key.String()).WithError(err).Warn("Skipping series with invalid frequency")
			report.Errors = append(report.Errors, &SeriesError{Series: st.key, Err: err})
			continue
		}

		count := ceilDiv(horizonWeeks, freq) + catchUpSteps(st.tip.ScheduledDate, today, freq)
		req := SeriesRequest{
			TenantID:              tenantID,
			VehicleID:             st.key.VehicleID,
			InspectionType:        st.key.InspectionType,
			StartDate:             NextDate(st.tip.ScheduledDate, freq),
			FrequencyWeeks:        freq,
			MaintenanceProviderID: st.tip.MaintenanceProviderID,
			Notes:                 st.tip.Notes,
			Count:                 count,
			Now:                   now,
		}
		if err := req.validateSeries(); err != nil {
			logger.WithField("series", st.key.String()).WithError(err).Warn("Skipping invalid series")
			report.Errors = append(report.Errors, &SeriesError{Series: st.key, Err: err})
			continue
		}
		res, err := e.materialize(ctx, req)
		if err != nil {
			logger.WithField("series", st.key.String()).WithError(err).Warn("Failed to materialize series")
			report.Errors = append(report.Errors, &SeriesError{Series: st.key, Err: err})
			continue
		}

		report.SchedulesCreated += len(res.Created)
		report.DuplicatesSkipped += res.Skipped
		report.Created = append(report.Created, res.Created...)
		for _, insertErr := range res.Errors {
			logger.WithField("series", st.key.String()).WithError(insertErr).Warn("Failed to insert occurrence")
			report.Errors = append(report.Errors, &SeriesError{Series: st.key, Err: insertErr})
		}
	}

	logger.WithFields(log.Fields{
		"series_processed":  report.SeriesProcessed,
		"schedules_created": report.SchedulesCreated,
		"errors":            len(report.Errors),
	}).Info("Horizon maintenance finished")

	return report, nil
}

// groupTips groups schedules into series and returns each series' tip,
// ordered by vehicle then inspection type.
func groupTips(schedules []models.Schedule) []seriesTip {
	tips := make(map[models.SeriesKey]models.Schedule)
	for _, s := range schedules {
		key := s.Series()
		cur, ok := tips[key]
		if !ok || s.ScheduledDate.After(cur.ScheduledDate) ||
			(s.ScheduledDate.Equal(cur.ScheduledDate) && s.CreatedAt.After(cur.CreatedAt)) {
			tips[key] = s
		}
	}

	out := make([]seriesTip, 0, len(tips))
	for k, s := range tips {
		out = append(out, seriesTip{key: k, tip: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].key.VehicleID != out[j].key.VehicleID {
			return out[i].key.VehicleID < out[j].key.VehicleID
		}
		return out[i].key.InspectionType < out[j].key.InspectionType
	})
	return out
}

// catchUpSteps is the number of occurrences needed after tip for the chain
// to reach today. Zero when the tip is today or later.
func catchUpSteps(tip, today time.Time, frequencyWeeks int) int {
	lag := daysBetween(tip, today)
	if lag <= 0 {
		return 0
	}
	return ceilDiv(lag, frequencyWeeks*daysPerWeek)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
