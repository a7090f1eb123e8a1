package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Martin-Hayot/auctionhub/pkg/errors"
	"github.com/Martin-Hayot/auctionhub/pkg/types"
	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
)

// Cron is the timer the scheduler registers its jobs with. *cron.Cron satisfies it.
type Cron interface {
	AddFunc(spec string, cmd func()) (cron.EntryID, error)
	Entry(id cron.EntryID) cron.Entry
	Start()
	Stop() context.Context
}

// AuditLog persists one entry per job run.
type AuditLog interface {
	InsertJobLog(ctx context.Context, jobName string, status types.JobStatus, message string) (types.JobLog, error)
}

// Task is a job body. The returned message is logged on success.
type Task func(ctx context.Context) (string, error)

type Job struct {
	Name string
	// Spec is a standard 5-field cron expression. Jobs without one only run on demand.
	Spec string
	Task Task
}

type registeredJob struct {
	Job
	entryID cron.EntryID
}

// Listener observes every recorded run, including runs whose audit write failed.
type Listener func(types.JobLog)

type Scheduler struct {
	cron  Cron
	audit AuditLog
	now   func() time.Time

	mu        sync.RWMutex
	jobs      map[string]*registeredJob
	listeners []Listener

	ctx    context.Context
	cancel context.CancelFunc
}

// NewCron builds the production timer: standard 5-field specs evaluated in loc.
func NewCron(loc *time.Location) *cron.Cron {
	return cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger{}),
	)
}

func New(c Cron, audit AuditLog) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   c,
		audit:  audit,
		now:    time.Now,
		jobs:   make(map[string]*registeredJob),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Subscribe adds a listener called after each run is recorded.
func (s *Scheduler) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Register adds a job. Names are unique; a job with a Spec is armed on the timer.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Task == nil {
		return errors.New(errors.ErrBadRequest, "job needs a name and a task")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return errors.New(errors.ErrBadRequest, fmt.Sprintf("job %s already registered", job.Name))
	}

	rj := &registeredJob{Job: job}
	if job.Spec != "" {
		name := job.Name
		id, err := s.cron.AddFunc(job.Spec, func() {
			log.Debug("Cron triggered", "job", name)
			s.Fire(s.ctx, name)
		})
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("invalid schedule %q for job %s", job.Spec, job.Name))
		}
		rj.entryID = id
	}
	s.jobs[job.Name] = rj

	log.Info("Job registered", "job", job.Name, "spec", job.Spec)
	return nil
}

// Fire runs a registered job once and records its outcome. Job failures are
// recorded, never returned; the only error is an unknown job name.
func (s *Scheduler) Fire(ctx context.Context, name string) (types.JobLog, error) {
	s.mu.RLock()
	rj, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return types.JobLog{}, errors.New(errors.ErrUnknownJob, fmt.Sprintf("unknown job %s", name))
	}

	entry, _ := s.Run(ctx, name, rj.Task)
	return entry, nil
}

// Run executes task under name, records exactly one audit entry and returns the
// task's own error to the caller. On-demand operations use it directly.
func (s *Scheduler) Run(ctx context.Context, name string, task Task) (types.JobLog, error) {
	start := s.now()
	message, err := runSafely(ctx, task)

	status := types.JobStatusSuccess
	if err != nil {
		status = types.JobStatusError
		message = err.Error()
		log.Error("Job failed", "job", name, "error", err, "took", time.Since(start))
	} else {
		log.Info("Job done", "job", name, "message", message, "took", time.Since(start))
	}

	entry := s.record(ctx, name, status, message)
	s.notify(entry)
	return entry, err
}

// runSafely turns a panicking task into an error.
func runSafely(ctx context.Context, task Task) (message string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()
	return task(ctx)
}

// record makes a single attempt to write the audit entry. A failed write is
// reported on the operational log and otherwise ignored.
func (s *Scheduler) record(ctx context.Context, name string, status types.JobStatus, message string) types.JobLog {
	entry, err := s.audit.InsertJobLog(context.WithoutCancel(ctx), name, status, message)
	if err != nil {
		log.Error("Failed to record job run", "job", name, "status", status, "error", err)
		return types.JobLog{
			JobName:    name,
			Status:     status,
			Message:    message,
			ExecutedAt: s.now(),
		}
	}
	return entry
}

func (s *Scheduler) notify(entry types.JobLog) {
	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()

	for _, l := range listeners {
		l(entry)
	}
}

// Jobs lists the registered jobs by name with their next scheduled run.
func (s *Scheduler) Jobs() []types.JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]types.JobInfo, 0, len(s.jobs))
	for _, rj := range s.jobs {
		info := types.JobInfo{Name: rj.Name, Spec: rj.Spec}
		if rj.entryID != 0 {
			if next := s.cron.Entry(rj.entryID).Next; !next.IsZero() {
				info.NextRun = &next
			}
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info("Scheduler started", "jobs", len(s.jobs))
}

// Stop halts the timer, cancels running jobs' context and waits for them to return.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	s.cancel()
	<-done.Done()
	log.Info("Scheduler stopped")
}

// cronLogger routes robfig/cron's own logging into charmbracelet/log.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
