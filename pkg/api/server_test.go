package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiltsync/pkg/config"
	"quiltsync/pkg/errors"
	"quiltsync/pkg/logger"
	"quiltsync/pkg/models"
)

type fakeReader struct {
	records map[string]*models.Record
	listed  []models.Record
	runs    []models.SyncRun
	stats   *models.Stats
	failing bool

	lastSortBy    string
	lastSortOrder string
	lastQuery     string
}

func (f *fakeReader) Get(ctx context.Context, itemID string) (*models.Record, error) {
	if f.failing {
		return nil, errors.New(errors.ErrorTypeStore, "boom")
	}
	return f.records[itemID], nil
}

func (f *fakeReader) List(ctx context.Context, page, pageSize int, sortBy, sortOrder string) ([]models.Record, int, error) {
	if f.failing {
		return nil, 0, errors.New(errors.ErrorTypeStore, "boom")
	}
	f.lastSortBy = sortBy
	f.lastSortOrder = sortOrder
	return f.listed, len(f.listed), nil
}

func (f *fakeReader) Search(ctx context.Context, q string, page, pageSize int) ([]models.Record, int, error) {
	f.lastQuery = q
	return f.listed, len(f.listed), nil
}

func (f *fakeReader) Stats(ctx context.Context) (*models.Stats, error) {
	return f.stats, nil
}

func (f *fakeReader) LastRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	return f.runs, nil
}

func testServer(reader *fakeReader) *Server {
	cfg := config.ServerConfig{Host: "127.0.0.1", Port: 8000}
	return NewServer(reader, cfg, logger.NewTestLogger())
}

func doGet(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	require.NoError(t, json.NewDecoder(rr.Body).Decode(target))
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(&fakeReader{})

	rr := doGet(t, s, "/health")
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]string
	decodeBody(t, rr, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestInfoEndpoint(t *testing.T) {
	s := testServer(&fakeReader{})

	rr := doGet(t, s, "/")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Name      string   `json:"name"`
		Endpoints []string `json:"endpoints"`
	}
	decodeBody(t, rr, &body)
	assert.Equal(t, "quiltsync", body.Name)
	assert.NotEmpty(t, body.Endpoints)
}

func TestGetRecord(t *testing.T) {
	reader := &fakeReader{
		records: map[string]*models.Record{
			"afc2019048_0001": {
				ItemID:      "afc2019048_0001",
				Title:       "AIDS Quilt Block 1 Panel Maker Records",
				BlockNumber: "1",
			},
		},
	}
	s := testServer(reader)

	rr := doGet(t, s, "/records/afc2019048_0001")
	require.Equal(t, http.StatusOK, rr.Code)

	var rec models.Record
	decodeBody(t, rr, &rec)
	assert.Equal(t, "afc2019048_0001", rec.ItemID)
	assert.Equal(t, "1", rec.BlockNumber)
}

func TestGetRecordNotFound(t *testing.T) {
	s := testServer(&fakeReader{})

	rr := doGet(t, s, "/records/afc2019048_9999")
	require.Equal(t, http.StatusNotFound, rr.Code)

	var body map[string]string
	decodeBody(t, rr, &body)
	assert.NotEmpty(t, body["error"])
}

func TestListRecords(t *testing.T) {
	reader := &fakeReader{
		listed: []models.Record{
			{ItemID: "afc2019048_0001"},
			{ItemID: "afc2019048_0002"},
		},
	}
	s := testServer(reader)

	rr := doGet(t, s, "/records?page=1&page_size=10&sort_by=block_number&sort_order=desc")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Records  []models.Record `json:"records"`
		Total    int             `json:"total"`
		Page     int             `json:"page"`
		PageSize int             `json:"page_size"`
	}
	decodeBody(t, rr, &body)

	assert.Len(t, body.Records, 2)
	assert.Equal(t, 2, body.Total)
	assert.Equal(t, 1, body.Page)
	assert.Equal(t, 10, body.PageSize)
	assert.Equal(t, "block_number", reader.lastSortBy)
	assert.Equal(t, "desc", reader.lastSortOrder)
}

func TestListRecordsEmpty(t *testing.T) {
	s := testServer(&fakeReader{})

	rr := doGet(t, s, "/records")
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]json.RawMessage
	decodeBody(t, rr, &body)
	// An empty listing must encode as [], not null
	assert.Equal(t, "[]", string(body["records"]))
}

func TestSearchRequiresQuery(t *testing.T) {
	s := testServer(&fakeReader{})

	rr := doGet(t, s, "/records/search")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSearchForwardsQuery(t *testing.T) {
	reader := &fakeReader{
		listed: []models.Record{{ItemID: "afc2019048_0001"}},
	}
	s := testServer(reader)

	rr := doGet(t, s, "/records/search?q=roger")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "roger", reader.lastQuery)
}

func TestStatsEndpoint(t *testing.T) {
	now := time.Now().UTC()
	reader := &fakeReader{
		stats: &models.Stats{TotalRecords: 42, UniqueBlocks: 7},
		runs: []models.SyncRun{
			{ID: "run-1", Mode: "full", StartedAt: now, Status: "completed"},
		},
	}
	s := testServer(reader)

	rr := doGet(t, s, "/stats")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Stats      models.Stats     `json:"stats"`
		RecentRuns []models.SyncRun `json:"recent_runs"`
	}
	decodeBody(t, rr, &body)
	assert.Equal(t, 42, body.Stats.TotalRecords)
	assert.Equal(t, 7, body.Stats.UniqueBlocks)
	require.Len(t, body.RecentRuns, 1)
	assert.Equal(t, "full", body.RecentRuns[0].Mode)
}

func TestStoreErrorIs500(t *testing.T) {
	s := testServer(&fakeReader{failing: true})

	rr := doGet(t, s, "/records")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	rr = doGet(t, s, "/records/afc2019048_0001")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestPageParamNormalization(t *testing.T) {
	reader := &fakeReader{}
	s := testServer(reader)

	rr := doGet(t, s, "/records?page=-3&page_size=9999")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Page     int `json:"page"`
		PageSize int `json:"page_size"`
	}
	decodeBody(t, rr, &body)
	assert.Equal(t, 1, body.Page, "negative page normalizes to 1")
	assert.Equal(t, 500, body.PageSize, "oversized page_size clamps to 500")
}
