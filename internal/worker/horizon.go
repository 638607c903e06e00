// Package worker runs periodic horizon maintenance for every tenant.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-compliance/internal/config"
	"github.com/ukydev/fleet-compliance/internal/db"
	"github.com/ukydev/fleet-compliance/internal/events"
	"github.com/ukydev/fleet-compliance/internal/scheduling"
)

// HorizonJobConfig controls when and how far ahead the job maintains schedules.
type HorizonJobConfig struct {
	Spec         string
	HorizonWeeks int
	RunOnStart   bool
	Location     *time.Location
}

// RunSummary describes one pass over all tenants.
type RunSummary struct {
	RunID            string
	Tenants          int
	SchedulesCreated int
	FailedTenants    []string
}

// HorizonJob keeps every tenant's schedules topped up on a cron schedule and
// publishes each tenant's due digest after maintenance.
type HorizonJob struct {
	engine    *scheduling.Engine
	tenants   db.TenantLister
	publisher events.Publisher
	config    HorizonJobConfig
	logger    *log.Entry

	now      func() time.Time
	newRunID func() string

	running bool
	cron    *cron.Cron
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	runMu   sync.Mutex
}

// NewHorizonJob creates a job. The cron spec is validated here so a bad
// schedule fails at startup.
func NewHorizonJob(engine *scheduling.Engine, tenants db.TenantLister, publisher events.Publisher, cfg HorizonJobConfig) (*HorizonJob, error) {
	if engine == nil || tenants == nil {
		return nil, errors.New("horizon job requires an engine and a tenant lister")
	}
	if _, err := config.ParseSchedule(cfg.Spec); err != nil {
		return nil, err
	}
	if publisher == nil {
		publisher = events.NewLogPublisher(events.DefaultTopicPrefix)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &HorizonJob{
		engine:    engine,
		tenants:   tenants,
		publisher: publisher,
		config:    cfg,
		logger:    log.WithField("component", "horizon_job"),
		now:       time.Now,
		newRunID:  uuid.NewString,
	}, nil
}

// Start registers the job with cron. It is a no-op when already running.
func (j *HorizonJob) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	cronLogger := cron.PrintfLogger(j.logger)
	c := cron.New(
		cron.WithParser(config.CronParser()),
		cron.WithLocation(j.config.Location),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	if _, err := c.AddFunc(j.config.Spec, func() { j.RunOnce(runCtx) }); err != nil {
		cancel()
		return err
	}
	c.Start()

	j.cron = c
	j.cancel = cancel
	j.running = true

	if j.config.RunOnStart {
		j.wg.Add(1)
		go func() {
			defer j.wg.Done()
			j.RunOnce(runCtx)
		}()
	}

	j.logger.WithFields(log.Fields{"spec": j.config.Spec, "horizon_weeks": j.config.HorizonWeeks}).Info("Horizon job started")
	return nil
}

// Stop cancels in-flight runs and waits for them to return. It is a no-op
// when not running.
func (j *HorizonJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	c, cancel := j.cron, j.cancel
	j.mu.Unlock()

	cancel()
	<-c.Stop().Done()
	j.wg.Wait()
	j.logger.Info("Horizon job stopped")
}

// RunOnce maintains every tenant once. Runs never overlap; a tenant failure
// is logged and the remaining tenants are still processed.
func (j *HorizonJob) RunOnce(ctx context.Context) RunSummary {
	j.runMu.Lock()
	defer j.runMu.Unlock()

	summary := RunSummary{RunID: j.newRunID()}
	logger := j.logger.WithField("run_id", summary.RunID)

	tenantIDs, err := j.tenants.ListTenantIDs(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to list tenants")
		return summary
	}
	summary.Tenants = len(tenantIDs)

	for _, tenantID := range tenantIDs {
		if ctx.Err() != nil {
			logger.WithError(ctx.Err()).Warn("Horizon run cancelled")
			break
		}
		created, err := j.maintainTenant(ctx, summary.RunID, tenantID)
		summary.SchedulesCreated += created
		if err != nil {
			logger.WithError(err).WithField("tenant_id", tenantID).Error("Tenant maintenance failed")
			summary.FailedTenants = append(summary.FailedTenants, tenantID)
		}
	}

	logger.WithFields(log.Fields{
		"tenants":           summary.Tenants,
		"schedules_created": summary.SchedulesCreated,
		"failed_tenants":    len(summary.FailedTenants),
	}).Info("Horizon run finished")
	return summary
}

func (j *HorizonJob) maintainTenant(ctx context.Context, runID, tenantID string) (int, error) {
	now := j.now()
	report, err := j.engine.MaintainHorizon(ctx, tenantID, j.config.HorizonWeeks, now)
	if err != nil {
		return 0, err
	}
	if len(report.Created) > 0 {
		j.publish(ctx, events.SchedulesCreated(tenantID, runID, report.Created, now))
	}

	classified, dueSummary, err := j.engine.DueSchedules(ctx, tenantID, db.ScheduleFilter{}, now)
	if err != nil {
		return report.SchedulesCreated, err
	}
	j.publish(ctx, events.SchedulesDue(tenantID, runID, classified, dueSummary, now))

	if !report.OK() {
		return report.SchedulesCreated, errors.Join(report.Errors...)
	}
	return report.SchedulesCreated, nil
}

func (j *HorizonJob) publish(ctx context.Context, event events.Event) {
	if err := j.publisher.Publish(ctx, event); err != nil {
		j.logger.WithError(err).WithFields(log.Fields{
			"tenant_id": event.TenantID,
			"kind":      event.Kind,
		}).Warn("Failed to publish event")
	}
}
