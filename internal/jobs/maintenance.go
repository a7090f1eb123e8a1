package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/Martin-Hayot/auctionhub/pkg/types"
	"github.com/charmbracelet/log"
)

// Store is the part of the database the housekeeping jobs touch.
type Store interface {
	DeleteExpiredAuctions(ctx context.Context, now time.Time) (int64, error)
	CountActiveAuctions(ctx context.Context, now time.Time) (int64, error)
}

// Snapshotter creates backups.
type Snapshotter interface {
	CreateSnapshot(ctx context.Context, backupType types.BackupType) (types.SnapshotDescriptor, error)
}

// Specs are the cron expressions of the three periodic jobs.
type Specs struct {
	Cleanup string
	Report  string
	Backup  string
}

var DefaultSpecs = Specs{
	Cleanup: "*/30 * * * *",
	Report:  "0 * * * *",
	Backup:  "0 2 * * *",
}

// Report is the hourly summary. It is only written to the log stream.
type Report struct {
	Timestamp           time.Time `json:"timestamp"`
	TotalActiveAuctions int64     `json:"totalActiveAuctions"`
	Message             string    `json:"message"`
}

// Maintenance owns the auction housekeeping jobs and their on-demand variants.
type Maintenance struct {
	sched    *Scheduler
	store    Store
	archiver Snapshotter
	now      func() time.Time
}

func NewMaintenance(sched *Scheduler, store Store, archiver Snapshotter) *Maintenance {
	return &Maintenance{
		sched:    sched,
		store:    store,
		archiver: archiver,
		now:      time.Now,
	}
}

// SetClock replaces the reference instant used for expiry decisions.
func (m *Maintenance) SetClock(now func() time.Time) {
	m.now = now
}

// Register arms the cleanup, report and backup jobs. Empty specs fall back to DefaultSpecs.
func (m *Maintenance) Register(specs Specs) error {
	if specs.Cleanup == "" {
		specs.Cleanup = DefaultSpecs.Cleanup
	}
	if specs.Report == "" {
		specs.Report = DefaultSpecs.Report
	}
	if specs.Backup == "" {
		specs.Backup = DefaultSpecs.Backup
	}

	for _, job := range []Job{
		{Name: types.JobCleanupExpired, Spec: specs.Cleanup, Task: m.cleanupTask},
		{Name: types.JobHourlyReport, Spec: specs.Report, Task: m.reportTask},
		{Name: types.JobDailyBackup, Spec: specs.Backup, Task: m.backupTask},
	} {
		if err := m.sched.Register(job); err != nil {
			return err
		}
	}
	return nil
}

// Cleanup deletes every auction that has expired at the current instant.
func (m *Maintenance) Cleanup(ctx context.Context) (int64, error) {
	return m.store.DeleteExpiredAuctions(ctx, m.now())
}

// ActiveReport counts the auctions still open.
func (m *Maintenance) ActiveReport(ctx context.Context) (Report, error) {
	now := m.now()
	total, err := m.store.CountActiveAuctions(ctx, now)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Timestamp:           now.UTC(),
		TotalActiveAuctions: total,
		Message:             fmt.Sprintf("Hourly Report: %d active auction(s)", total),
	}, nil
}

func (m *Maintenance) cleanupTask(ctx context.Context) (string, error) {
	deleted, err := m.Cleanup(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Deleted %d expired auction(s)", deleted), nil
}

func (m *Maintenance) reportTask(ctx context.Context) (string, error) {
	report, err := m.ActiveReport(ctx)
	if err != nil {
		return "", err
	}
	log.Info("Hourly report", "active", report.TotalActiveAuctions, "timestamp", report.Timestamp.Format(time.RFC3339))
	return report.Message, nil
}

func (m *Maintenance) backupTask(ctx context.Context) (string, error) {
	desc, err := m.archiver.CreateSnapshot(ctx, types.BackupAutomatic)
	if err != nil {
		return "", err
	}
	return "Backup created: " + desc.Filename, nil
}

// CleanupNow runs the cleanup on behalf of a user. The run is recorded as
// manual_cleanup and failures are returned.
func (m *Maintenance) CleanupNow(ctx context.Context) (int64, error) {
	var deleted int64
	_, err := m.sched.Run(ctx, types.JobManualCleanup, func(ctx context.Context) (string, error) {
		n, err := m.Cleanup(ctx)
		if err != nil {
			return "", err
		}
		deleted = n
		return fmt.Sprintf("Deleted %d expired auction(s)", n), nil
	})
	return deleted, err
}

// BackupNow creates a manual snapshot, recorded as manual_backup.
func (m *Maintenance) BackupNow(ctx context.Context) (types.SnapshotDescriptor, error) {
	var desc types.SnapshotDescriptor
	_, err := m.sched.Run(ctx, types.JobManualBackup, func(ctx context.Context) (string, error) {
		d, err := m.archiver.CreateSnapshot(ctx, types.BackupManual)
		if err != nil {
			return "", err
		}
		desc = d
		return "Backup created: " + d.Filename, nil
	})
	return desc, err
}
