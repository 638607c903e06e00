package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InspectionType identifies a periodic regulatory event for a vehicle.
type InspectionType string

const (
	InspectionSafety     InspectionType = "safety_inspection"
	InspectionTax        InspectionType = "tax"
	InspectionMOT        InspectionType = "mot"
	InspectionTachoCalib InspectionType = "tacho_calibration"
)

// Frequency bounds for a recurring series, in weeks.
const (
	MinFrequencyWeeks = 1
	MaxFrequencyWeeks = 104
)

// Request bounds. A horizon covers at most five of the longest recurrence
// periods, and one series request creates at most one weekly occurrence per
// week of that horizon.
const (
	MaxHorizonWeeks = 5 * MaxFrequencyWeeks
	MaxSeriesCount  = MaxHorizonWeeks / MinFrequencyWeeks
)

// defaultFrequencyWeeks are UI defaults only. The engine never enforces them.
var defaultFrequencyWeeks = map[InspectionType]int{
	InspectionSafety:     6,
	InspectionTax:        52,
	InspectionMOT:        52,
	InspectionTachoCalib: 104,
}

// InspectionTypes returns every inspection type in display order.
func InspectionTypes() []InspectionType {
	return []InspectionType{InspectionSafety, InspectionTax, InspectionMOT, InspectionTachoCalib}
}

// IsValidInspectionType checks if an inspection type is one of the known values
func IsValidInspectionType(t InspectionType) bool {
	_, ok := defaultFrequencyWeeks[t]
	return ok
}

// DefaultFrequencyWeeks returns the recommended frequency for t, or 0 if t is unknown.
func (t InspectionType) DefaultFrequencyWeeks() int {
	return defaultFrequencyWeeks[t]
}

// Schedule is one due date (occurrence) of a recurring inspection series.
type Schedule struct {
	ID                    primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TenantID              string             `json:"tenant_id" bson:"tenant_id"`
	VehicleID             string             `json:"vehicle_id" bson:"vehicle_id"`
	MaintenanceProviderID string             `json:"maintenance_provider_id,omitempty" bson:"maintenance_provider_id,omitempty"`
	InspectionType        InspectionType     `json:"inspection_type" bson:"inspection_type"`
	ScheduledDate         time.Time          `json:"scheduled_date" bson:"scheduled_date"` // UTC midnight
	FrequencyWeeks        int                `json:"frequency_weeks" bson:"frequency_weeks"`
	Notes                 string             `json:"notes,omitempty" bson:"notes,omitempty"`
	IsActive              bool               `json:"is_active" bson:"is_active"`
	CreatedAt             time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at" bson:"updated_at"`
}

// Series returns the key of the series this schedule belongs to.
func (s Schedule) Series() SeriesKey {
	return SeriesKey{TenantID: s.TenantID, VehicleID: s.VehicleID, InspectionType: s.InspectionType}
}

// SeriesKey identifies a series: all schedules sharing tenant, vehicle and inspection type.
type SeriesKey struct {
	TenantID       string         `json:"tenant_id"`
	VehicleID      string         `json:"vehicle_id"`
	InspectionType InspectionType `json:"inspection_type"`
}

func (k SeriesKey) String() string {
	return k.TenantID + "/" + k.VehicleID + "/" + string(k.InspectionType)
}

// CalendarDate truncates t to its calendar date, expressed as UTC midnight.
// The calendar date is taken in t's own location, so stores and the engine
// agree on which day a schedule falls on.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
