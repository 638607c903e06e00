// Package scheduling keeps each vehicle's recurring inspection series
// populated with future due dates and classifies those dates for display.
package scheduling

import (
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-compliance/internal/db"
)

// DefaultHorizonWeeks is the forward window MaintainHorizon covers when the
// caller does not choose one.
const DefaultHorizonWeeks = 52

// Engine materializes and maintains inspection series against a store.
// It holds no state between calls; time is always passed in by the caller.
type Engine struct {
	store  db.ScheduleCollection
	logger *log.Entry
}

// NewEngine creates an engine reading and inserting through store.
func NewEngine(store db.ScheduleCollection) *Engine {
	return &Engine{
		store:  store,
		logger: log.WithField("component", "scheduling"),
	}
}

// WithLogger returns a copy of the engine logging through logger.
func (e *Engine) WithLogger(logger *log.Entry) *Engine {
	cp := *e
	cp.logger = logger
	return &cp
}
