// Package backup writes and reads point-in-time JSON snapshots of the auction store.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Martin-Hayot/auctionhub/pkg/errors"
	"github.com/Martin-Hayot/auctionhub/pkg/types"
	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

// DefaultLogLimit is how many job log entries a snapshot embeds.
const DefaultLogLimit = 100

const (
	filePrefix = "backup-"
	fileSuffix = ".json"
	// RFC 3339 in UTC with milliseconds, e.g. 2026-10-17T02:00:00.123Z
	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

var (
	filenamePattern = regexp.MustCompile(`^backup-\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}-\d{3}Z\.json$`)
	unsafeChars     = strings.NewReplacer(":", "-", ".", "-")
)

// Store is the read side of the database the archiver snapshots.
type Store interface {
	ListAuctions(ctx context.Context) ([]types.Auction, error)
	ListJobLogs(ctx context.Context, limit int) ([]types.JobLog, error)
}

type Archiver struct {
	store    Store
	fs       afero.Fs
	dir      string
	logLimit int
	now      func() time.Time
}

type Option func(*Archiver)

// WithLogLimit overrides DefaultLogLimit.
func WithLogLimit(limit int) Option {
	return func(a *Archiver) {
		if limit > 0 {
			a.logLimit = limit
		}
	}
}

// WithClock replaces the source of snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Archiver) {
		a.now = now
	}
}

// New returns an Archiver storing snapshots under dir on fs.
// The directory is created on first use.
func New(store Store, fs afero.Fs, dir string, opts ...Option) *Archiver {
	a := &Archiver{
		store:    store,
		fs:       fs,
		dir:      dir,
		logLimit: DefaultLogLimit,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Filename derives the snapshot filename for the given instant.
func Filename(t time.Time) string {
	return filePrefix + unsafeChars.Replace(t.UTC().Format(timestampLayout)) + fileSuffix
}

// ValidFilename reports whether name is a snapshot filename. Anything else,
// including paths, is rejected.
func ValidFilename(name string) bool {
	return filenamePattern.MatchString(name)
}

// CreateSnapshot copies the whole auction table and the most recent job log
// entries into a new snapshot file.
func (a *Archiver) CreateSnapshot(ctx context.Context, backupType types.BackupType) (types.SnapshotDescriptor, error) {
	if err := a.fs.MkdirAll(a.dir, 0o755); err != nil {
		return types.SnapshotDescriptor{}, errors.Wrap(err, "error creating backup directory")
	}

	auctions, err := a.store.ListAuctions(ctx)
	if err != nil {
		return types.SnapshotDescriptor{}, errors.Wrap(err, "error reading auctions")
	}
	cronLogs, err := a.store.ListJobLogs(ctx, a.logLimit)
	if err != nil {
		return types.SnapshotDescriptor{}, errors.Wrap(err, "error reading job logs")
	}
	if auctions == nil {
		auctions = []types.Auction{}
	}
	if cronLogs == nil {
		cronLogs = []types.JobLog{}
	}

	now := a.now()
	snapshot := types.Snapshot{
		Timestamp:     now.UTC(),
		BackupType:    backupType,
		Auctions:      auctions,
		CronLogs:      cronLogs,
		TotalAuctions: len(auctions),
		TotalCronLogs: len(cronLogs),
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return types.SnapshotDescriptor{}, errors.Wrap(err, "error encoding snapshot")
	}

	name := Filename(now)
	if err := a.writeFile(name, data); err != nil {
		return types.SnapshotDescriptor{}, err
	}

	info, err := a.fs.Stat(filepath.Join(a.dir, name))
	if err != nil {
		return types.SnapshotDescriptor{}, errors.Wrap(err, "error reading snapshot metadata")
	}

	log.Info("Snapshot created", "file", name, "type", backupType, "auctions", len(auctions), "logs", len(cronLogs))
	return describe(info, snapshot), nil
}

// writeFile writes data under a temporary name and renames it into place so a
// half-written snapshot never matches the naming pattern.
func (a *Archiver) writeFile(name string, data []byte) error {
	final := filepath.Join(a.dir, name)
	tmp := filepath.Join(a.dir, "."+name+".tmp")

	if err := afero.WriteFile(a.fs, tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "error writing snapshot")
	}
	if err := a.fs.Rename(tmp, final); err != nil {
		_ = a.fs.Remove(tmp)
		return errors.Wrap(err, "error writing snapshot")
	}
	return nil
}

// ListSnapshots returns every snapshot in the directory, newest first.
// Files whose body cannot be decoded are still listed, with zero counts.
func (a *Archiver) ListSnapshots(ctx context.Context) ([]types.SnapshotDescriptor, error) {
	if err := a.fs.MkdirAll(a.dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "error creating backup directory")
	}

	entries, err := afero.ReadDir(a.fs, a.dir)
	if err != nil {
		return nil, errors.Wrap(err, "error listing backups")
	}

	descriptors := make([]types.SnapshotDescriptor, 0, len(entries))
	for _, info := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if info.IsDir() || !ValidFilename(info.Name()) {
			continue
		}

		var summary types.Snapshot
		if err := a.decode(info.Name(), &summary); err != nil {
			log.Warn("Unreadable backup file", "file", info.Name(), "error", err)
			summary = types.Snapshot{}
		}
		descriptors = append(descriptors, describe(info, summary))
	}

	sort.SliceStable(descriptors, func(i, j int) bool {
		if !descriptors[i].CreatedAt.Equal(descriptors[j].CreatedAt) {
			return descriptors[i].CreatedAt.After(descriptors[j].CreatedAt)
		}
		return descriptors[i].Filename > descriptors[j].Filename
	})
	return descriptors, nil
}

// ReadSnapshot returns the decoded content of a snapshot file.
func (a *Archiver) ReadSnapshot(name string) (*types.Snapshot, error) {
	if err := a.check(name); err != nil {
		return nil, err
	}

	var snapshot types.Snapshot
	if err := a.decode(name, &snapshot); err != nil {
		return nil, errors.Wrap(err, "error reading snapshot")
	}
	return &snapshot, nil
}

// OpenSnapshot opens a snapshot file for streaming. The caller closes the file.
func (a *Archiver) OpenSnapshot(name string) (afero.File, os.FileInfo, error) {
	if err := a.check(name); err != nil {
		return nil, nil, err
	}

	f, err := a.fs.Open(filepath.Join(a.dir, name))
	if err != nil {
		return nil, nil, errors.Wrap(err, "error opening snapshot")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, errors.Wrap(err, "error opening snapshot")
	}
	return f, info, nil
}

// check validates the name before any filesystem access, then confirms existence.
func (a *Archiver) check(name string) error {
	if !ValidFilename(name) {
		return errors.New(errors.ErrInvalidSnapshotName, "Invalid backup filename")
	}

	exists, err := afero.Exists(a.fs, filepath.Join(a.dir, name))
	if err != nil {
		return errors.Wrap(err, "error checking snapshot")
	}
	if !exists {
		return errors.New(errors.ErrSnapshotNotFound, "Backup file not found")
	}
	return nil
}

func (a *Archiver) decode(name string, v any) error {
	data, err := afero.ReadFile(a.fs, filepath.Join(a.dir, name))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func describe(info os.FileInfo, snapshot types.Snapshot) types.SnapshotDescriptor {
	backupType := snapshot.BackupType
	if backupType == "" {
		backupType = types.BackupAutomatic
	}
	return types.SnapshotDescriptor{
		Filename:      info.Name(),
		CreatedAt:     info.ModTime().UTC(),
		Size:          info.Size(),
		SizeKB:        fmt.Sprintf("%.2f", float64(info.Size())/1024),
		TotalAuctions: snapshot.TotalAuctions,
		TotalCronLogs: snapshot.TotalCronLogs,
		BackupType:    backupType,
	}
}
