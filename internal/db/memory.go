package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ukydev/fleet-compliance/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryScheduleStore is an in-process ScheduleStore for local runs and tests.
// It enforces the same active-occurrence uniqueness as the Mongo index.
type MemoryScheduleStore struct {
	mu        sync.RWMutex
	schedules []models.Schedule
	now       func() time.Time
}

// NewMemoryScheduleStore creates an empty in-memory store.
func NewMemoryScheduleStore() *MemoryScheduleStore {
	return &MemoryScheduleStore{now: time.Now}
}

type occurrenceKey struct {
	series models.SeriesKey
	date   string
}

func keyOf(s models.Schedule) occurrenceKey {
	return occurrenceKey{series: s.Series(), date: models.CalendarDate(s.ScheduledDate).Format(time.DateOnly)}
}

// ListActiveSchedules returns the tenant's active schedules ordered by date.
func (m *MemoryScheduleStore) ListActiveSchedules(_ context.Context, tenantID string, filter ScheduleFilter) ([]models.Schedule, error) {
	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Schedule
	for _, s := range m.schedules {
		if s.TenantID != tenantID || !s.IsActive {
			continue
		}
		if filter.VehicleID != "" && s.VehicleID != filter.VehicleID {
			continue
		}
		if filter.InspectionType != "" && s.InspectionType != filter.InspectionType {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ScheduledDate.Before(out[j].ScheduledDate)
	})
	return out, nil
}

// InsertSchedule stores a copy of schedule with a fresh ID and timestamps.
func (m *MemoryScheduleStore) InsertSchedule(_ context.Context, schedule models.Schedule) (models.Schedule, error) {
	if schedule.TenantID == "" {
		return models.Schedule{}, ErrMissingTenant
	}
	schedule.ScheduledDate = models.CalendarDate(schedule.ScheduledDate)

	m.mu.Lock()
	defer m.mu.Unlock()

	if schedule.IsActive {
		k := keyOf(schedule)
		for _, s := range m.schedules {
			if s.IsActive && keyOf(s) == k {
				return models.Schedule{}, fmt.Errorf("%s on %s: %w", k.series, k.date, ErrDuplicateSchedule)
			}
		}
	}

	now := m.now().UTC()
	schedule.ID = primitive.NewObjectID()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now
	m.schedules = append(m.schedules, schedule)
	return schedule, nil
}

// ListTenantIDs returns the distinct tenants owning active schedules, sorted.
func (m *MemoryScheduleStore) ListTenantIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	var tenants []string
	for _, s := range m.schedules {
		if !s.IsActive {
			continue
		}
		if _, ok := seen[s.TenantID]; ok {
			continue
		}
		seen[s.TenantID] = struct{}{}
		tenants = append(tenants, s.TenantID)
	}
	sort.Strings(tenants)
	return tenants, nil
}

// All returns every stored schedule, active or not, in insertion order.
func (m *MemoryScheduleStore) All() []models.Schedule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Schedule, len(m.schedules))
	copy(out, m.schedules)
	return out
}
