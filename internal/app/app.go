// Package app wires the store, archiver and scheduler from a Config. The
// server and the admin CLI share it.
package app

import (
	"time"

	"github.com/Martin-Hayot/auctionhub/configs"
	"github.com/Martin-Hayot/auctionhub/internal/backup"
	"github.com/Martin-Hayot/auctionhub/internal/database"
	"github.com/Martin-Hayot/auctionhub/internal/jobs"
	"github.com/Martin-Hayot/auctionhub/pkg/errors"
	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

type App struct {
	Config      *configs.Config
	Store       database.Service
	Archiver    *backup.Archiver
	Scheduler   *jobs.Scheduler
	Maintenance *jobs.Maintenance
}

// New builds the application around store. Jobs are registered but the
// scheduler is not started.
func New(cfg *configs.Config, store database.Service, fs afero.Fs) (*App, error) {
	loc, err := Location(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, err
	}

	archiver := backup.New(store, fs, cfg.Backup.Dir, backup.WithLogLimit(cfg.Backup.LogLimit))
	sched := jobs.New(jobs.NewCron(loc), store)
	maint := jobs.NewMaintenance(sched, store, archiver)

	if err := maint.Register(jobs.Specs{
		Cleanup: cfg.Scheduler.CleanupSpec,
		Report:  cfg.Scheduler.ReportSpec,
		Backup:  cfg.Scheduler.BackupSpec,
	}); err != nil {
		return nil, err
	}

	return &App{
		Config:      cfg,
		Store:       store,
		Archiver:    archiver,
		Scheduler:   sched,
		Maintenance: maint,
	}, nil
}

// Open connects to the configured database, applies pending migrations and
// builds the application with snapshots on the local disk.
func Open(cfg *configs.Config) (*App, error) {
	if err := database.MigrateUp(cfg); err != nil {
		return nil, err
	}
	store, err := database.New(cfg)
	if err != nil {
		return nil, err
	}
	a, err := New(cfg, store, afero.NewOsFs())
	if err != nil {
		store.Close()
		return nil, err
	}
	return a, nil
}

// Close stops the scheduler and releases the store.
func (a *App) Close() {
	a.Scheduler.Stop()
	if err := a.Store.Close(); err != nil {
		log.Error("Error closing database", "error", err)
	}
}

// Location resolves a scheduler timezone. Empty means local time.
func Location(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrap(err, "invalid scheduler timezone "+name)
	}
	return loc, nil
}
