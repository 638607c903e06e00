package db

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-compliance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

func TestConnectMongo_BadURI(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := ConnectMongo(ctx, "mongodb://bad:uri")
	if err == nil {
		t.Error("expected error for bad URI, got nil")
	}
	if client != nil {
		t.Error("expected nil client on error")
	}
}

func TestMongoScheduleCollection_NilCollection(t *testing.T) {
	coll := &MongoScheduleCollection{Collection: nil}
	ctx := context.Background()

	_, err := coll.InsertSchedule(ctx, models.Schedule{TenantID: "t1"})
	assert.Error(t, err)

	_, err = coll.ListActiveSchedules(ctx, "t1", ScheduleFilter{})
	assert.Error(t, err)

	_, err = coll.ListTenantIDs(ctx)
	assert.Error(t, err)

	assert.Error(t, coll.EnsureIndexes(ctx))
}

// integrationStore connects to MONGO_URI or skips the test.
func integrationStore(t *testing.T) *MongoScheduleCollection {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" || uri == "uri" {
		t.Skip("MONGO_URI not set or invalid, skipping integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := ConnectMongo(ctx, uri)
	if err != nil {
		t.Skipf("failed to connect: %v, skipping integration test", err)
	}
	t.Cleanup(func() { client.Disconnect(context.Background()) })

	collection := client.Database("test_fleet").Collection(ScheduleCollectionName)
	collection.Drop(context.Background())

	store, err := NewMongoScheduleStore(context.Background(), client, "test_fleet")
	require.NoError(t, err)
	return store
}

func TestMongoScheduleCollection_InsertAndList_Integration(t *testing.T) {
	store := integrationStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	for _, d := range []time.Time{base.AddDate(0, 0, 14), base, base.AddDate(0, 0, 7)} {
		_, err := store.InsertSchedule(ctx, models.Schedule{
			TenantID:       "tenant-a",
			VehicleID:      "veh-1",
			InspectionType: models.InspectionSafety,
			ScheduledDate:  d,
			FrequencyWeeks: 1,
			IsActive:       true,
		})
		require.NoError(t, err)
	}
	_, err := store.InsertSchedule(ctx, models.Schedule{
		TenantID: "tenant-b", VehicleID: "veh-9", InspectionType: models.InspectionTax,
		ScheduledDate: base, FrequencyWeeks: 52, IsActive: true,
	})
	require.NoError(t, err)

	got, err := store.ListActiveSchedules(ctx, "tenant-a", ScheduleFilter{VehicleID: "veh-1"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].ScheduledDate.Equal(base))
	assert.True(t, got[2].ScheduledDate.Equal(base.AddDate(0, 0, 14)))
	assert.False(t, got[0].ID.IsZero())
	assert.NotZero(t, got[0].CreatedAt)

	tenants, err := store.ListTenantIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tenant-a", "tenant-b"}, tenants)
}

func TestMongoScheduleCollection_DuplicateOccurrence_Integration(t *testing.T) {
	store := integrationStore(t)
	ctx := context.Background()
	s := models.Schedule{
		TenantID:       "tenant-a",
		VehicleID:      "veh-1",
		InspectionType: models.InspectionMOT,
		ScheduledDate:  time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		FrequencyWeeks: 52,
		IsActive:       true,
	}
	_, err := store.InsertSchedule(ctx, s)
	require.NoError(t, err)

	_, err = store.InsertSchedule(ctx, s)
	assert.True(t, errors.Is(err, ErrDuplicateSchedule), "got %v", err)

	// Inactive history may share the date.
	s.IsActive = false
	_, err = store.InsertSchedule(ctx, s)
	assert.NoError(t, err)

	n, err := store.Collection.CountDocuments(ctx, bson.M{"tenant_id": "tenant-a"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
