// Package events publishes schedule lifecycle notifications for downstream
// notification and calendar services.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ukydev/fleet-compliance/internal/models"
	"github.com/ukydev/fleet-compliance/internal/scheduling"
)

// Kind identifies an event and forms the last part of its topic.
type Kind string

const (
	KindSchedulesCreated Kind = "schedules/created"
	KindSchedulesDue     Kind = "schedules/due"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "fleet"

// Event is the JSON payload sent for every notification.
type Event struct {
	Kind       Kind                            `json:"kind"`
	RunID      string                          `json:"run_id,omitempty"`
	TenantID   string                          `json:"tenant_id"`
	OccurredAt time.Time                       `json:"occurred_at"`
	Created    []models.Schedule               `json:"created,omitempty"`
	Summary    *scheduling.Summary             `json:"summary,omitempty"`
	Due        []scheduling.ClassifiedSchedule `json:"due,omitempty"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}

// ErrInvalidTopicSegment is returned for tenant ids that would change the
// shape of the topic tree.
var ErrInvalidTopicSegment = errors.New("invalid mqtt topic segment")

// Topic builds the tenant-scoped topic for an event kind. The tenant id must
// be a single topic level without wildcards.
func Topic(prefix, tenantID string, kind Kind) (string, error) {
	if tenantID == "" || strings.ContainsAny(tenantID, "/+#\x00") {
		return "", fmt.Errorf("%w: tenant id %q", ErrInvalidTopicSegment, tenantID)
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return prefix + "/" + tenantID + "/" + string(kind), nil
}

// SchedulesCreated builds the event announcing newly materialized schedules.
func SchedulesCreated(tenantID, runID string, created []models.Schedule, at time.Time) Event {
	return Event{
		Kind:       KindSchedulesCreated,
		RunID:      runID,
		TenantID:   tenantID,
		OccurredAt: at.UTC(),
		Created:    created,
	}
}

// SchedulesDue builds the due digest of a tenant. Only overdue and due-this-week
// schedules are listed; the summary still counts everything.
func SchedulesDue(tenantID, runID string, classified []scheduling.ClassifiedSchedule, summary scheduling.Summary, at time.Time) Event {
	var due []scheduling.ClassifiedSchedule
	for _, c := range classified {
		if c.Status != scheduling.StatusUpcoming {
			due = append(due, c)
		}
	}
	return Event{
		Kind:       KindSchedulesDue,
		RunID:      runID,
		TenantID:   tenantID,
		OccurredAt: at.UTC(),
		Summary:    &summary,
		Due:        due,
	}
}
