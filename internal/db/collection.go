package db

import (
	"context"
	"errors"

	"github.com/ukydev/fleet-compliance/internal/models"
)

// ErrDuplicateSchedule is returned by InsertSchedule when an active schedule
// with the same tenant, vehicle, inspection type and date already exists.
var ErrDuplicateSchedule = errors.New("duplicate schedule occurrence")

// ErrMissingTenant is returned when a query is not scoped to a tenant.
var ErrMissingTenant = errors.New("tenant id is required")

// ScheduleFilter narrows a tenant-scoped schedule read. Empty fields match all.
type ScheduleFilter struct {
	VehicleID      string
	InspectionType models.InspectionType
}

// ScheduleCollection defines the interface for schedule data operations.
// Every read is scoped to one tenant; reads return active schedules only,
// ordered by scheduled date ascending.
type ScheduleCollection interface {
	ListActiveSchedules(ctx context.Context, tenantID string, filter ScheduleFilter) ([]models.Schedule, error)
	InsertSchedule(ctx context.Context, schedule models.Schedule) (models.Schedule, error)
}

// TenantLister lists the tenants that own at least one active schedule.
type TenantLister interface {
	ListTenantIDs(ctx context.Context) ([]string, error)
}

// ScheduleStore is implemented by both the Mongo and in-memory stores.
type ScheduleStore interface {
	ScheduleCollection
	TenantLister
}
