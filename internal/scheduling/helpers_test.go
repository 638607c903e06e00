package scheduling

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-compliance/internal/db"
	"github.com/ukydev/fleet-compliance/internal/models"
)

// today is a fixed clock for every engine test.
var today = time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

func weeks(n int) time.Duration { return time.Duration(n) * 7 * 24 * time.Hour }

// MockScheduleStore is a mock implementation of db.ScheduleCollection
type MockScheduleStore struct {
	mock.Mock
}

func (m *MockScheduleStore) ListActiveSchedules(ctx context.Context, tenantID string, filter db.ScheduleFilter) ([]models.Schedule, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Schedule), args.Error(1)
}

func (m *MockScheduleStore) InsertSchedule(ctx context.Context, schedule models.Schedule) (models.Schedule, error) {
	args := m.Called(ctx, schedule)
	return args.Get(0).(models.Schedule), args.Error(1)
}

// recordingStore wraps a store and remembers which tenants were touched.
type recordingStore struct {
	db.ScheduleCollection
	mu      sync.Mutex
	reads   []string
	inserts []string
	failFor map[string]error // vehicle id -> insert error
}

func (r *recordingStore) ListActiveSchedules(ctx context.Context, tenantID string, filter db.ScheduleFilter) ([]models.Schedule, error) {
	r.mu.Lock()
	r.reads = append(r.reads, tenantID)
	r.mu.Unlock()
	return r.ScheduleCollection.ListActiveSchedules(ctx, tenantID, filter)
}

func (r *recordingStore) InsertSchedule(ctx context.Context, s models.Schedule) (models.Schedule, error) {
	r.mu.Lock()
	r.inserts = append(r.inserts, s.TenantID)
	err := r.failFor[s.VehicleID]
	r.mu.Unlock()
	if err != nil {
		return models.Schedule{}, err
	}
	return r.ScheduleCollection.InsertSchedule(ctx, s)
}

func seed(t *testing.T, store db.ScheduleCollection, s models.Schedule) models.Schedule {
	t.Helper()
	if s.FrequencyWeeks == 0 {
		s.FrequencyWeeks = 8
	}
	s.IsActive = true
	created, err := store.InsertSchedule(context.Background(), s)
	require.NoError(t, err)
	return created
}

func seriesDates(t *testing.T, store db.ScheduleCollection, tenant, vehicle string, it models.InspectionType) []time.Time {
	t.Helper()
	list, err := store.ListActiveSchedules(context.Background(), tenant, db.ScheduleFilter{VehicleID: vehicle, InspectionType: it})
	require.NoError(t, err)
	out := make([]time.Time, len(list))
	for i, s := range list {
		out[i] = s.ScheduledDate
	}
	return out
}
