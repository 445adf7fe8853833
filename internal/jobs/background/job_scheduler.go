package background

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"reviewdesk/internal/access"
	"reviewdesk/internal/config"
	"reviewdesk/internal/logger"
	"reviewdesk/internal/metrics"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	jobInvitationPurge = "invitation-purge"
	jobOverdueInvoices = "overdue-invoices"

	// tenants are processed with bounded concurrency
	overdueWorkers = 5
)

// InvitationPurger deletes invitations that expired before a cutoff.
type InvitationPurger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// TenantLister lists tenants whose data the jobs should touch.
type TenantLister interface {
	ListActiveIDs(ctx context.Context) ([]uuid.UUID, error)
}

// OverdueMarker flips unpaid invoices past their due date.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, scope access.Scope, asOf time.Time) (int64, error)
}

// JobScheduler runs periodic maintenance.
type JobScheduler struct {
	scheduler   gocron.Scheduler
	invitations InvitationPurger
	tenants     TenantLister
	invoices    OverdueMarker
	cfg         config.JobsConfig
	purgeAfter  time.Duration
	now         func() time.Time

	mu   sync.RWMutex
	jobs map[string]gocron.Job
}

func NewJobScheduler(invitations InvitationPurger, tenants TenantLister, invoices OverdueMarker, cfg config.JobsConfig, purgeAfter time.Duration) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	js := &JobScheduler{
		scheduler:   scheduler,
		invitations: invitations,
		tenants:     tenants,
		invoices:    invoices,
		cfg:         cfg,
		purgeAfter:  purgeAfter,
		now:         time.Now,
		jobs:        make(map[string]gocron.Job),
	}
	if err := js.registerJobs(); err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	return js, nil
}

func (js *JobScheduler) Start() {
	logger.L().Info("starting background job scheduler", zap.Int("jobs", len(js.jobs)))
	js.scheduler.Start()
}

func (js *JobScheduler) Stop() error {
	logger.L().Info("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

// NextRun reports when a registered job fires next.
func (js *JobScheduler) NextRun(name string) (time.Time, error) {
	js.mu.RLock()
	job, ok := js.jobs[name]
	js.mu.RUnlock()
	if !ok {
		return time.Time{}, fmt.Errorf("%w %q", ErrUnknownJob, name)
	}
	return job.NextRun()
}

// ErrUnknownJob is returned for a job name that was never registered.
var ErrUnknownJob = errors.New("unknown job")

// JobStatus is what the master panel shows per job.
type JobStatus struct {
	Name    string     `json:"name"`
	NextRun *time.Time `json:"next_run,omitempty"`
	LastRun *time.Time `json:"last_run,omitempty"`
}

// Jobs lists the registered jobs by name.
func (js *JobScheduler) Jobs() []JobStatus {
	js.mu.RLock()
	defer js.mu.RUnlock()

	out := make([]JobStatus, 0, len(js.jobs))
	for name, job := range js.jobs {
		status := JobStatus{Name: name}
		if t, err := job.NextRun(); err == nil && !t.IsZero() {
			status.NextRun = &t
		}
		if t, err := job.LastRun(); err == nil && !t.IsZero() {
			status.LastRun = &t
		}
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RunNow triggers a registered job outside its schedule. The run is
// asynchronous; singleton mode still applies.
func (js *JobScheduler) RunNow(name string) error {
	js.mu.RLock()
	job, ok := js.jobs[name]
	js.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownJob, name)
	}
	return job.RunNow()
}

func (js *JobScheduler) registerJobs() error {
	specs := []struct {
		name string
		cron string
		task func(context.Context) error
	}{
		{jobInvitationPurge, js.cfg.InvitationPurgeCron, js.PurgeExpiredInvitations},
		{jobOverdueInvoices, js.cfg.OverdueInvoiceCron, js.MarkOverdueInvoices},
	}

	js.mu.Lock()
	defer js.mu.Unlock()
	for _, spec := range specs {
		if spec.cron == "" {
			continue
		}
		name, task := spec.name, spec.task
		job, err := js.scheduler.NewJob(
			gocron.CronJob(spec.cron, false),
			gocron.NewTask(func() { js.run(name, task) }),
			gocron.WithName(name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", name, err)
		}
		js.jobs[name] = job
	}
	return nil
}

func (js *JobScheduler) run(name string, task func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, logger.L().With(zap.String("job", name)))

	if err := task(ctx); err != nil {
		metrics.RecordJobRun(name, "failed")
		logger.FromContext(ctx).Error("job failed", zap.Error(err))
		return
	}
	metrics.RecordJobRun(name, "success")
}

// PurgeExpiredInvitations removes invitations that expired more than the
// retention period ago. Used invitations are kept as the audit trail of
// who joined.
func (js *JobScheduler) PurgeExpiredInvitations(ctx context.Context) error {
	cutoff := js.now().Add(-js.purgeAfter)
	n, err := js.invitations.PurgeExpired(ctx, cutoff)
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("purged expired invitations", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	return nil
}

// MarkOverdueInvoices walks every active tenant, each in its own scope. A
// failing tenant does not stop the others; the first error is returned.
func (js *JobScheduler) MarkOverdueInvoices(ctx context.Context) error {
	tenantIDs, err := js.tenants.ListActiveIDs(ctx)
	if err != nil {
		return err
	}
	asOf := js.now()

	var (
		mu       sync.Mutex
		firstErr error
		total    int64
		wg       sync.WaitGroup
	)
	sem := make(chan struct{}, overdueWorkers)
	for _, id := range tenantIDs {
		wg.Add(1)
		go func(tenantID uuid.UUID) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			n, err := js.invoices.MarkOverdue(ctx, access.TenantScope(tenantID), asOf)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.FromContext(ctx).Warn("overdue marking failed", zap.Stringer("tenant_id", tenantID), zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			total += n
		}(id)
	}
	wg.Wait()

	logger.FromContext(ctx).Info("marked overdue invoices", zap.Int64("updated", total), zap.Int("tenants", len(tenantIDs)))
	return firstErr
}
