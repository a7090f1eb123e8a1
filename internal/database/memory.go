package database

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Martin-Hayot/auctionhub/pkg/errors"
	"github.com/Martin-Hayot/auctionhub/pkg/types"
)

// Memory is a Service kept entirely in process memory. It backs local demos
// and the tests of packages built on top of the store.
type Memory struct {
	mu          sync.Mutex
	auctions    []types.Auction
	jobLogs     []types.JobLog
	nextAuction int64
	nextLog     int64
	now         func() time.Time
}

var _ Service = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

// SetClock replaces the source of created_at / executed_at timestamps.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) Health(ctx context.Context) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]string{
		"status":   "up",
		"message":  "It's healthy",
		"driver":   "memory",
		"auctions": strconv.Itoa(len(m.auctions)),
	}
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) CreateAuction(ctx context.Context, auction types.NewAuction) (types.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextAuction++
	created := types.Auction{
		ID:            m.nextAuction,
		Title:         auction.Title,
		Description:   auction.Description,
		StartingPrice: roundPrice(auction.StartingPrice),
		EndTime:       auction.EndTime,
		CreatedAt:     m.now(),
	}
	m.auctions = append(m.auctions, created)
	return created, nil
}

func (m *Memory) GetAuctionByID(ctx context.Context, id int64) (types.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, auction := range m.auctions {
		if auction.ID == id {
			return auction, nil
		}
	}
	return types.Auction{}, errors.New(errors.ErrAuctionNotFound, "auction not found")
}

func (m *Memory) ListAuctions(ctx context.Context) ([]types.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	auctions := append([]types.Auction{}, m.auctions...)
	sort.SliceStable(auctions, func(i, j int) bool {
		if !auctions[i].CreatedAt.Equal(auctions[j].CreatedAt) {
			return auctions[i].CreatedAt.After(auctions[j].CreatedAt)
		}
		return auctions[i].ID > auctions[j].ID
	})
	return auctions, nil
}

func (m *Memory) ListActiveAuctions(ctx context.Context, now time.Time) ([]types.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	auctions := make([]types.Auction, 0)
	for _, auction := range m.auctions {
		if auction.Active(now) {
			auctions = append(auctions, auction)
		}
	}
	sort.SliceStable(auctions, func(i, j int) bool {
		if !auctions[i].EndTime.Equal(auctions[j].EndTime) {
			return auctions[i].EndTime.Before(auctions[j].EndTime)
		}
		return auctions[i].ID < auctions[j].ID
	})
	return auctions, nil
}

func (m *Memory) CountActiveAuctions(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total int64
	for _, auction := range m.auctions {
		if auction.Active(now) {
			total++
		}
	}
	return total, nil
}

func (m *Memory) DeleteAuction(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, auction := range m.auctions {
		if auction.ID == id {
			m.auctions = append(m.auctions[:i], m.auctions[i+1:]...)
			return nil
		}
	}
	return errors.New(errors.ErrAuctionNotFound, "auction not found")
}

func (m *Memory) DeleteExpiredAuctions(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.auctions[:0]
	var deleted int64
	for _, auction := range m.auctions {
		if auction.Expired(now) {
			deleted++
			continue
		}
		kept = append(kept, auction)
	}
	m.auctions = kept
	return deleted, nil
}

func (m *Memory) ClearAuctions(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := int64(len(m.auctions))
	m.auctions = nil
	return deleted, nil
}

func (m *Memory) InsertJobLog(ctx context.Context, jobName string, status types.JobStatus, message string) (types.JobLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextLog++
	entry := types.JobLog{
		ID:         m.nextLog,
		JobName:    jobName,
		Status:     status,
		Message:    message,
		ExecutedAt: m.now(),
	}
	m.jobLogs = append(m.jobLogs, entry)
	return entry, nil
}

func (m *Memory) ListJobLogs(ctx context.Context, limit int) ([]types.JobLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit < 0 {
		limit = 0
	}
	entries := make([]types.JobLog, 0, min(limit, len(m.jobLogs)))
	for i := len(m.jobLogs) - 1; i >= 0 && len(entries) < limit; i-- {
		entries = append(entries, m.jobLogs[i])
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ExecutedAt.After(entries[j].ExecutedAt)
	})
	return entries, nil
}
