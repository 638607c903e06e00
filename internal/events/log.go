package events

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// LogPublisher writes events to the log. It is used when no broker is configured.
type LogPublisher struct {
	logger *log.Entry
	prefix string
}

// NewLogPublisher creates a publisher logging under the given topic prefix.
func NewLogPublisher(prefix string) *LogPublisher {
	return &LogPublisher{
		logger: log.WithField("component", "events"),
		prefix: prefix,
	}
}

// Publish logs the event with its topic and counts.
func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	topic, err := Topic(p.prefix, event.TenantID, event.Kind)
	if err != nil {
		return err
	}
	fields := log.Fields{
		"topic":     topic,
		"tenant_id": event.TenantID,
		"created":   len(event.Created),
		"due":       len(event.Due),
	}
	if event.RunID != "" {
		fields["run_id"] = event.RunID
	}
	if event.Summary != nil {
		fields["overdue"] = event.Summary.OverdueCount
		fields["due_this_week"] = event.Summary.DueThisWeekCount
	}
	p.logger.WithFields(fields).Info("Schedule event")
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() {}
