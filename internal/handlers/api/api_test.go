package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Martin-Hayot/auctionhub/internal/backup"
	"github.com/Martin-Hayot/auctionhub/internal/database"
	"github.com/Martin-Hayot/auctionhub/internal/jobs"
	"github.com/Martin-Hayot/auctionhub/pkg/types"
	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	Type string
	Data any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event
}

func (p *recordingPublisher) Publish(eventType string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event{Type: eventType, Data: data})
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type testServer struct {
	store   *database.Memory
	archive *backup.Archiver
	pub     *recordingPublisher
	handler *Handler
	router  *mux.Router
	now     time.Time
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	ts := &testServer{
		store: database.NewMemory(),
		pub:   &recordingPublisher{},
		now:   time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return ts.now }
	ts.store.SetClock(clock)
	ts.archive = backup.New(ts.store, afero.NewMemMapFs(), "backups", backup.WithClock(clock))

	sched := jobs.New(jobs.NewCron(time.UTC), ts.store)
	maint := jobs.NewMaintenance(sched, ts.store, ts.archive)
	maint.SetClock(clock)
	require.NoError(t, maint.Register(jobs.DefaultSpecs))

	h := NewHandler(ts.store, ts.archive, maint, sched, ts.pub, opts)
	h.now = clock
	ts.handler = h
	ts.router = h.SetupRoutes(nil)
	return ts
}

func (ts *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) seed(t *testing.T, title string, endIn time.Duration) types.Auction {
	t.Helper()
	a, err := ts.store.CreateAuction(context.Background(), types.NewAuction{
		Title:         title,
		StartingPrice: 100,
		EndTime:       ts.now.Add(endIn),
	})
	require.NoError(t, err)
	return a
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t, Options{})

	rr := ts.do(http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	body := decode[map[string]any](t, rr)
	assert.Equal(t, "ok", body["status"])
}

func TestListAuctions(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.seed(t, "Expired", -time.Hour)
	open := ts.seed(t, "Open", time.Hour)

	rr := ts.do(http.MethodGet, "/api/auctions", "")
	require.Equal(t, http.StatusOK, rr.Code)
	active := decode[[]types.Auction](t, rr)
	require.Len(t, active, 1)
	assert.Equal(t, open.ID, active[0].ID)

	rr = ts.do(http.MethodGet, "/api/auctions/all", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]types.Auction](t, rr), 2)
}

func TestCreateAuction(t *testing.T) {
	ts := newTestServer(t, Options{})

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"valid", `{"title":"Vintage Rolex","description":"1960s","starting_price":5000,"end_time":"2026-10-20T14:30:00Z"}`, http.StatusCreated},
		{"string price and local time", `{"title":"Lamp","starting_price":"12.5","end_time":"2026-10-20T14:30"}`, http.StatusCreated},
		{"missing title", `{"starting_price":10,"end_time":"2026-10-20T14:30:00Z"}`, http.StatusBadRequest},
		{"missing price", `{"title":"Chair","end_time":"2026-10-20T14:30:00Z"}`, http.StatusBadRequest},
		{"missing end time", `{"title":"Chair","starting_price":10}`, http.StatusBadRequest},
		{"negative price", `{"title":"Chair","starting_price":-1,"end_time":"2026-10-20T14:30:00Z"}`, http.StatusBadRequest},
		{"bad end time", `{"title":"Chair","starting_price":1,"end_time":"next week"}`, http.StatusBadRequest},
		{"title too long", `{"title":"` + strings.Repeat("x", 101) + `","starting_price":1,"end_time":"2026-10-20T14:30:00Z"}`, http.StatusBadRequest},
		{"malformed", `{"title":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(http.MethodPost, "/api/auctions", tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
		})
	}

	all, err := ts.store.ListAuctions(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, []string{"auction_created", "auction_created"}, ts.pub.kinds())
}

func TestCreateAuctionRejectsUnstorablePrices(t *testing.T) {
	ts := newTestServer(t, Options{})

	tests := []struct {
		name  string
		price string
	}{
		{"NaN string", `"NaN"`},
		{"Inf string", `"Inf"`},
		{"negative Infinity string", `"-Infinity"`},
		{"beyond NUMERIC(10,2)", `1e9`},
		{"rounds up to the limit", `99999999.999`},
		{"one cent below zero", `-0.01`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"title":"Chair","starting_price":` + tt.price + `,"end_time":"2026-10-20T14:30:00Z"}`
			rr := ts.do(http.MethodPost, "/api/auctions", body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}

	rr := ts.do(http.MethodPost, "/api/auctions", `{"title":"Chair","starting_price":"99999999.99","end_time":"2026-10-20T14:30:00Z"}`)
	assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	// every stored row still encodes, so snapshots keep working
	rr = ts.do(http.MethodGet, "/api/auctions/all", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]types.Auction](t, rr), 1)

	rr = ts.do(http.MethodPost, "/api/backups/create", "")
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestCreateAuctionReturnsStoredRow(t *testing.T) {
	ts := newTestServer(t, Options{})

	rr := ts.do(http.MethodPost, "/api/auctions", `{"title":"Vintage Rolex","starting_price":5000,"end_time":"2026-10-20T14:30:00Z"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	created := decode[types.Auction](t, rr)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Vintage Rolex", created.Title)
	assert.Equal(t, 5000.0, created.StartingPrice)
	assert.Equal(t, 0, created.BidsCount)
	assert.True(t, created.EndTime.Equal(time.Date(2026, 10, 20, 14, 30, 0, 0, time.UTC)))
}

func TestGetAuction(t *testing.T) {
	ts := newTestServer(t, Options{})
	a := ts.seed(t, "Bronze Statue", -time.Hour)

	rr := ts.do(http.MethodGet, "/api/auctions/"+strconv.FormatInt(a.ID, 10), "")
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[types.Auction](t, rr)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, "Bronze Statue", got.Title)

	rr = ts.do(http.MethodGet, "/api/auctions/999", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "auction not found", decode[map[string]string](t, rr)["error"])

	rr = ts.do(http.MethodGet, "/api/auctions/0", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// the "all" listing keeps its own route
	rr = ts.do(http.MethodGet, "/api/auctions/all", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]types.Auction](t, rr), 1)
}

func TestDeleteAuction(t *testing.T) {
	ts := newTestServer(t, Options{})
	a := ts.seed(t, "Chair", time.Hour)

	rr := ts.do(http.MethodDelete, "/api/auctions/abc", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(http.MethodDelete, "/api/auctions/999", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.do(http.MethodDelete, "/api/auctions/"+strconv.FormatInt(a.ID, 10), "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = ts.do(http.MethodDelete, "/api/auctions/"+strconv.FormatInt(a.ID, 10), "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, []string{"auction_deleted"}, ts.pub.kinds())
}

func TestCleanupEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.seed(t, "Old", -2*time.Hour)
	ts.seed(t, "Older", -3*time.Hour)
	ts.seed(t, "Open", time.Hour)

	rr := ts.do(http.MethodPost, "/api/cleanup", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode[map[string]any](t, rr)
	assert.Equal(t, "Cleaned up 2 expired auction(s)", body["message"])
	assert.Equal(t, 2.0, body["deleted"])

	logs, err := ts.store.ListJobLogs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, types.JobManualCleanup, logs[0].JobName)
	assert.Equal(t, types.JobStatusSuccess, logs[0].Status)
	assert.Equal(t, []string{"auctions_purged"}, ts.pub.kinds())

	rr = ts.do(http.MethodPost, "/api/cleanup", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Cleaned up 0 expired auction(s)", decode[map[string]any](t, rr)["message"])
}

func TestListJobLogs(t *testing.T) {
	ts := newTestServer(t, Options{})
	ctx := context.Background()
	for i := 0; i < 120; i++ {
		_, err := ts.store.InsertJobLog(ctx, types.JobHourlyReport, types.JobStatusSuccess, "Hourly Report: 0 active auction(s)")
		require.NoError(t, err)
	}

	rr := ts.do(http.MethodGet, "/api/cron-logs", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]types.JobLog](t, rr), defaultLogLimit)

	rr = ts.do(http.MethodGet, "/api/cron-logs?limit=5", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]types.JobLog](t, rr), 5)

	rr = ts.do(http.MethodGet, "/api/cron-logs?limit=500", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]types.JobLog](t, rr), maxLogLimit)

	rr = ts.do(http.MethodGet, "/api/cron-logs?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestJobsEndpoints(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.seed(t, "Open", time.Hour)

	rr := ts.do(http.MethodGet, "/api/jobs", "")
	require.Equal(t, http.StatusOK, rr.Code)
	infos := decode[[]types.JobInfo](t, rr)
	require.Len(t, infos, 3)
	assert.Equal(t, types.JobCleanupExpired, infos[0].Name)
	// cron is not started here, so no job has a next run yet
	assert.NotContains(t, rr.Body.String(), "next_run")

	rr = ts.do(http.MethodPost, "/api/jobs/hourly_report/run", "")
	require.Equal(t, http.StatusOK, rr.Code)
	entry := decode[types.JobLog](t, rr)
	assert.Equal(t, types.JobHourlyReport, entry.JobName)
	assert.Equal(t, "Hourly Report: 1 active auction(s)", entry.Message)

	rr = ts.do(http.MethodPost, "/api/jobs/nightly_reindex/run", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBackupEndpoints(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.seed(t, "Open", time.Hour)

	rr := ts.do(http.MethodGet, "/api/backups", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]types.SnapshotDescriptor](t, rr))

	rr = ts.do(http.MethodPost, "/api/backups/create", "")
	require.Equal(t, http.StatusOK, rr.Code)
	created := decode[map[string]any](t, rr)
	assert.Equal(t, "Backup created successfully", created["message"])
	filename, _ := created["filename"].(string)
	require.True(t, backup.ValidFilename(filename), filename)
	assert.Equal(t, "manual", created["backupType"])
	assert.Equal(t, []string{"backup_created"}, ts.pub.kinds())

	rr = ts.do(http.MethodGet, "/api/backups", "")
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[[]types.SnapshotDescriptor](t, rr)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].TotalAuctions)

	rr = ts.do(http.MethodGet, "/api/backups/"+filename, "")
	require.Equal(t, http.StatusOK, rr.Code)
	snapshot := decode[types.Snapshot](t, rr)
	assert.Equal(t, types.BackupManual, snapshot.BackupType)
	assert.Len(t, snapshot.Auctions, 1)
	// the manual_backup entry is written after the snapshot
	assert.Equal(t, 0, snapshot.TotalCronLogs)

	rr = ts.do(http.MethodGet, "/api/backups/"+filename+"?download=true", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `attachment; filename="`+filename+`"`, rr.Header().Get("Content-Disposition"))
	assert.Contains(t, rr.Body.String(), `"backupType": "manual"`)
}

func TestGetBackupRejectsBadNames(t *testing.T) {
	ts := newTestServer(t, Options{})

	rr := ts.do(http.MethodGet, "/api/backups/passwords.json", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(http.MethodGet, "/api/backups/..%2Fconfigs%2F.env", "")
	assert.NotEqual(t, http.StatusOK, rr.Code)

	rr = ts.do(http.MethodGet, "/api/backups/backup-2026-01-01T00-00-00-000Z.json", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.do(http.MethodGet, "/api/backups/backup-2026-01-01T00-00-00-000Z.json?download=true", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	ts := newTestServer(t, Options{LogRequests: true})
	ts.handler.logger = log.New(&buf)

	rr := ts.do(http.MethodGet, "/api/auctions", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, buf.String(), "HTTP request")
	assert.Contains(t, buf.String(), "path=/api/auctions")

	buf.Reset()
	ts = newTestServer(t, Options{})
	ts.handler.logger = log.New(&buf)
	ts.do(http.MethodGet, "/api/auctions", "")
	assert.Empty(t, buf.String())
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, Options{AllowCrossOrigin: true})

	rr := ts.do(http.MethodOptions, "/api/auctions", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = ts.do(http.MethodGet, "/api/auctions", "")
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	ts = newTestServer(t, Options{})
	rr = ts.do(http.MethodGet, "/api/auctions", "")
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitAppliesToWrites(t *testing.T) {
	ts := newTestServer(t, Options{RateLimit: 0.001, RateBurst: 2})

	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/cleanup", "").Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/cleanup", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, ts.do(http.MethodPost, "/api/cleanup", "").Code)

	// reads are never throttled
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/auctions", "").Code)
	}
}
