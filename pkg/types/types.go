package types

import (
	"time"
)

type Auction struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	StartingPrice float64   `json:"starting_price"`
	BidsCount     int       `json:"bids_count"`
	EndTime       time.Time `json:"end_time"`
	CreatedAt     time.Time `json:"created_at"`
}

// Expired reports whether the auction ended strictly before now.
func (a Auction) Expired(now time.Time) bool {
	return a.EndTime.Before(now)
}

// Active reports whether the auction ends strictly after now. An auction
// ending exactly at now is neither active nor expired.
func (a Auction) Active(now time.Time) bool {
	return a.EndTime.After(now)
}

// NewAuction holds the caller-supplied fields of an auction insert.
type NewAuction struct {
	Title         string
	Description   string
	StartingPrice float64
	EndTime       time.Time
}

type JobStatus string

const (
	JobStatusSuccess JobStatus = "success"
	JobStatusError   JobStatus = "error"
)

const (
	JobCleanupExpired = "cleanup_expired"
	JobHourlyReport   = "hourly_report"
	JobDailyBackup    = "daily_backup"
	JobManualCleanup  = "manual_cleanup"
	JobManualBackup   = "manual_backup"
)

type JobLog struct {
	ID         int64     `json:"id"`
	JobName    string    `json:"job_name"`
	Status     JobStatus `json:"status"`
	Message    string    `json:"message"`
	ExecutedAt time.Time `json:"executed_at"`
}

type BackupType string

const (
	BackupAutomatic BackupType = "automatic"
	BackupManual    BackupType = "manual"
)

// Snapshot is the on-disk document of a backup file.
type Snapshot struct {
	Timestamp     time.Time  `json:"timestamp"`
	BackupType    BackupType `json:"backupType"`
	Auctions      []Auction  `json:"auctions"`
	CronLogs      []JobLog   `json:"cronLogs"`
	TotalAuctions int        `json:"totalAuctions"`
	TotalCronLogs int        `json:"totalCronLogs"`
}

// SnapshotDescriptor describes a backup file without its body.
type SnapshotDescriptor struct {
	Filename      string     `json:"filename"`
	CreatedAt     time.Time  `json:"createdAt"`
	Size          int64      `json:"size"`
	SizeKB        string     `json:"sizeKB"`
	TotalAuctions int        `json:"totalAuctions"`
	TotalCronLogs int        `json:"totalCronLogs"`
	BackupType    BackupType `json:"backupType"`
}

// JobInfo describes a registered job. NextRun is nil for on-demand jobs and
// before the scheduler has started.
type JobInfo struct {
	Name    string     `json:"name"`
	Spec    string     `json:"spec"`
	NextRun *time.Time `json:"next_run,omitempty"`
}
