package export

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"govreport/internal/domain"
)

// cadenceSpecs maps rerun cadences to cron schedules, evaluated in UTC.
var cadenceSpecs = map[domain.Cadence]string{
	domain.CadenceDaily:     "@daily",
	domain.CadenceWeekly:    "@weekly",
	domain.CadenceMonthly:   "@monthly",
	domain.CadenceQuarterly: "0 0 1 1,4,7,10 *",
	domain.CadenceYearly:    "@yearly",
}

// Exporter starts an export of a report.
type Exporter interface {
	Export(ctx context.Context, principal string, reportID int64) (*domain.Export, error)
}

// ScheduledReports lists reports that carry a rerun cadence.
type ScheduledReports interface {
	ListScheduled(ctx context.Context) ([]domain.Report, error)
}

// Scheduler re-exports reports on their rerun cadence.
type Scheduler struct {
	cron     *cron.Cron
	exporter Exporter
	reports  ScheduledReports
	logger   *slog.Logger
	mu       sync.Mutex
	entries  map[int64]cron.EntryID // report ID → cron entry
}

// NewScheduler creates a rerun scheduler.
func NewScheduler(exporter Exporter, reports ScheduledReports, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		exporter: exporter,
		reports:  reports,
		logger:   logger.With("component", "rerun-scheduler"),
		entries:  make(map[int64]cron.EntryID),
	}
}

// Start loads all scheduled reports and starts the cron scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("rerun scheduler started")
	return nil
}

// Stop stops the cron scheduler and waits for in-flight export requests.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("rerun scheduler stopped")
}

// Reload clears all cron entries and reloads them from the report store.
func (s *Scheduler) Reload(ctx context.Context) error {
	reports, err := s.reports.ListScheduled(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.entries {
		s.cron.Remove(id)
	}
	s.entries = make(map[int64]cron.EntryID)

	for _, r := range reports {
		if r.RerunCadence == nil {
			continue
		}
		spec, ok := cadenceSpecs[*r.RerunCadence]
		if !ok {
			s.logger.Warn("unknown rerun cadence", "report_id", r.ID, "cadence", *r.RerunCadence)
			continue
		}
		reportID, owner := r.ID, r.CreatedBy
		entryID, err := s.cron.AddFunc(spec, func() { s.fire(reportID, owner) })
		if err != nil {
			s.logger.Warn("invalid rerun schedule", "report_id", reportID, "schedule", spec, "error", err)
			continue
		}
		s.entries[reportID] = entryID
	}
	s.logger.Info("rerun schedules loaded", "count", len(s.entries))
	return nil
}

// fire requests a scheduled export on behalf of the report owner.
func (s *Scheduler) fire(reportID int64, owner string) {
	if owner == "" {
		owner = domain.SystemPrincipal
	}
	exp, err := s.exporter.Export(context.Background(), owner, reportID)
	switch {
	case err == nil:
		s.logger.Info("scheduled export requested", "report_id", reportID, "export_id", exp.ID)
	case domain.KindOf(err) == domain.KindAlreadyRunning:
		s.logger.Info("scheduled export skipped, one is already running", "report_id", reportID)
	default:
		s.logger.Warn("scheduled export failed", "report_id", reportID, "error", err)
	}
}
