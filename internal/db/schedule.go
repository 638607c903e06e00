package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ukydev/fleet-compliance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoScheduleCollection implements ScheduleStore for MongoDB
type MongoScheduleCollection struct {
	Collection *mongo.Collection
}

// EnsureIndexes creates the series uniqueness index and the tenant listing index.
// The unique index only covers active schedules so deactivated history may
// share a date with its replacement.
func (c *MongoScheduleCollection) EnsureIndexes(ctx context.Context) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "vehicle_id", Value: 1},
				{Key: "inspection_type", Value: 1},
				{Key: "scheduled_date", Value: 1},
			},
			Options: options.Index().
				SetName("uniq_active_series_date").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"is_active": true}),
		},
		{
			Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "is_active", Value: 1},
				{Key: "scheduled_date", Value: 1},
			},
			Options: options.Index().SetName("tenant_active_date"),
		},
	}
	if _, err := c.Collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create schedule indexes: %w", err)
	}
	return nil
}

// ListActiveSchedules returns the tenant's active schedules ordered by date.
func (c *MongoScheduleCollection) ListActiveSchedules(ctx context.Context, tenantID string, filter ScheduleFilter) ([]models.Schedule, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	if tenantID == "" {
		return nil, ErrMissingTenant
	}

	query := bson.M{"tenant_id": tenantID, "is_active": true}
	if filter.VehicleID != "" {
		query["vehicle_id"] = filter.VehicleID
	}
	if filter.InspectionType != "" {
		query["inspection_type"] = filter.InspectionType
	}

	opts := options.Find().SetSort(bson.D{{Key: "scheduled_date", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := c.Collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var schedules []models.Schedule
	if err := cursor.All(ctx, &schedules); err != nil {
		return nil, err
	}
	return schedules, nil
}

// InsertSchedule inserts a schedule, assigning its ID and audit timestamps.
// A unique index violation is reported as ErrDuplicateSchedule.
func (c *MongoScheduleCollection) InsertSchedule(ctx context.Context, schedule models.Schedule) (models.Schedule, error) {
	if c.Collection == nil {
		return models.Schedule{}, fmt.Errorf("mongo collection is nil")
	}
	if schedule.TenantID == "" {
		return models.Schedule{}, ErrMissingTenant
	}

	now := time.Now().UTC()
	schedule.ScheduledDate = models.CalendarDate(schedule.ScheduledDate)
	schedule.ID = primitive.NewObjectID()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now

	if _, err := c.Collection.InsertOne(ctx, schedule); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.Schedule{}, fmt.Errorf("%s on %s: %w",
				schedule.Series(), schedule.ScheduledDate.Format(time.DateOnly), ErrDuplicateSchedule)
		}
		return models.Schedule{}, err
	}
	return schedule, nil
}

// ListTenantIDs returns the distinct tenants that own active schedules, sorted.
func (c *MongoScheduleCollection) ListTenantIDs(ctx context.Context) ([]string, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	values, err := c.Collection.Distinct(ctx, "tenant_id", bson.M{"is_active": true})
	if err != nil {
		return nil, err
	}
	tenants := make([]string, 0, len(values))
	for _, v := range values {
		id, ok := v.(string)
		if !ok {
			return nil, errors.New("unexpected tenant_id type in schedules collection")
		}
		if id != "" {
			tenants = append(tenants, id)
		}
	}
	sort.Strings(tenants)
	return tenants, nil
}
