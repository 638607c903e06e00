package scheduling

import (
	"context"
	"time"

	"github.com/ukydev/fleet-compliance/internal/db"
	"github.com/ukydev/fleet-compliance/internal/models"
)

// DueStatus buckets a due date relative to today.
type DueStatus string

const (
	StatusOverdue     DueStatus = "overdue"
	StatusDueThisWeek DueStatus = "due_this_week"
	StatusUpcoming    DueStatus = "upcoming"
)

// dueSoonDays is the inclusive width of the "this week" window.
const dueSoonDays = 7

// Classify buckets scheduledDate against now. Both are compared as calendar
// dates: before today is overdue, today through today+7 days is due this
// week, anything later is upcoming.
func Classify(scheduledDate, now time.Time) DueStatus {
	date := DateOf(scheduledDate)
	today := DateOf(now)
	switch {
	case date.Before(today):
		return StatusOverdue
	case !date.After(today.AddDate(0, 0, dueSoonDays)):
		return StatusDueThisWeek
	default:
		return StatusUpcoming
	}
}

// ClassifiedSchedule is a schedule with its due status.
type ClassifiedSchedule struct {
	models.Schedule
	Status DueStatus `json:"due_status"`
}

// Summary counts classified schedules. The three bucket counts always add up
// to TotalScheduled.
type Summary struct {
	TotalScheduled   int `json:"total_scheduled"`
	OverdueCount     int `json:"overdue_count"`
	DueThisWeekCount int `json:"due_this_week_count"`
	UpcomingCount    int `json:"upcoming_count"`
}

func (s *Summary) add(status DueStatus) {
	s.TotalScheduled++
	switch status {
	case StatusOverdue:
		s.OverdueCount++
	case StatusDueThisWeek:
		s.DueThisWeekCount++
	case StatusUpcoming:
		s.UpcomingCount++
	}
}

// ClassifyAll classifies the active schedules in schedules. Inactive ones are
// dropped.
func ClassifyAll(schedules []models.Schedule, now time.Time) ([]ClassifiedSchedule, Summary) {
	var sum Summary
	out := make([]ClassifiedSchedule, 0, len(schedules))
	for _, s := range schedules {
		if !s.IsActive {
			continue
		}
		status := Classify(s.ScheduledDate, now)
		sum.add(status)
		out = append(out, ClassifiedSchedule{Schedule: s, Status: status})
	}
	return out, sum
}

// Summarize returns only the counts of ClassifyAll.
func Summarize(schedules []models.Schedule, now time.Time) Summary {
	_, sum := ClassifyAll(schedules, now)
	return sum
}

// DueSchedules reads a tenant's active schedules and classifies them.
func (e *Engine) DueSchedules(ctx context.Context, tenantID string, filter db.ScheduleFilter, now time.Time) ([]ClassifiedSchedule, Summary, error) {
	if tenantID == "" {
		return nil, Summary{}, &ValidationError{Field: "tenant_id", Reason: "is required"}
	}
	schedules, err := e.store.ListActiveSchedules(ctx, tenantID, filter)
	if err != nil {
		return nil, Summary{}, &StoreError{Op: "list tenant " + tenantID, Err: err}
	}
	classified, sum := ClassifyAll(schedules, now)
	return classified, sum, nil
}
