package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/maltedev/catalog-sync/internal/models"
	"github.com/maltedev/catalog-sync/internal/pipeline"
	"github.com/maltedev/catalog-sync/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	stats pipeline.Stats
}

func (f *fakeRunner) Stats() pipeline.Stats {
	return f.stats
}

type fakeHistory struct {
	pubs  []models.Publication
	err   error
	limit int
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]models.Publication, error) {
	f.limit = limit
	return f.pubs, f.err
}

func (f *fakeHistory) BySKU(_ context.Context, sku string) ([]models.Publication, error) {
	var out []models.Publication
	for _, p := range f.pubs {
		if p.SKU == sku {
			out = append(out, p)
		}
	}
	return out, f.err
}

func newTestServer(t *testing.T, history History) (*httptest.Server, *fakeRunner) {
	t.Helper()

	ledger := storage.NewFileLedger(filepath.Join(t.TempDir(), "memory.json"))
	require.NoError(t, ledger.MarkProcessed(context.Background(), "SKU-1"))
	require.NoError(t, ledger.MarkProcessed(context.Background(), "SKU-2"))

	runner := &fakeRunner{stats: pipeline.Stats{RunID: uuid.New(), Running: true, Pages: 3, Published: 2}}
	h := NewHandlers(runner, ledger, history, slog.New(slog.NewTextHandler(io.Discard, nil)))

	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return srv, runner
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var body HealthResponse
	status := getJSON(t, srv.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.Running)
}

func TestGetStats(t *testing.T) {
	srv, runner := newTestServer(t, nil)

	var body pipeline.Stats
	status := getJSON(t, srv.URL+"/api/v1/stats", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, runner.stats.RunID, body.RunID)
	assert.Equal(t, 3, body.Pages)
	assert.Equal(t, 2, body.Published)
}

func TestGetLedger(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var body LedgerResponse
	status := getJSON(t, srv.URL+"/api/v1/ledger", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, []string{"SKU-1", "SKU-2"}, body.Processed)

	var entry LedgerEntryResponse
	getJSON(t, srv.URL+"/api/v1/ledger/SKU-2", &entry)
	assert.Equal(t, LedgerEntryResponse{SKU: "SKU-2", Processed: true}, entry)

	getJSON(t, srv.URL+"/api/v1/ledger/SKU-9", &entry)
	assert.False(t, entry.Processed)
}

func TestGetLedgerEntry_WithHistory(t *testing.T) {
	t.Run("includes publications", func(t *testing.T) {
		history := &fakeHistory{pubs: []models.Publication{
			{SKU: "SKU-1", RemoteID: 42},
			{SKU: "SKU-2", RemoteID: 43},
		}}
		srv, _ := newTestServer(t, history)

		var entry LedgerEntryResponse
		status := getJSON(t, srv.URL+"/api/v1/ledger/SKU-2", &entry)
		assert.Equal(t, http.StatusOK, status)
		assert.True(t, entry.Processed)
		require.Len(t, entry.Publications, 1)
		assert.Equal(t, int64(43), entry.Publications[0].RemoteID)
	})

	t.Run("history error", func(t *testing.T) {
		srv, _ := newTestServer(t, &fakeHistory{err: errors.New("db down")})

		var body map[string]string
		status := getJSON(t, srv.URL+"/api/v1/ledger/SKU-1", &body)
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.NotEmpty(t, body["error"])
	})
}

func TestListPublications(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		srv, _ := newTestServer(t, nil)
		var body map[string]string
		status := getJSON(t, srv.URL+"/api/v1/publications", &body)
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.NotEmpty(t, body["error"])
	})

	t.Run("limits", func(t *testing.T) {
		history := &fakeHistory{pubs: []models.Publication{{SKU: "SKU-1", RemoteID: 42}}}
		srv, _ := newTestServer(t, history)

		var pubs []models.Publication
		status := getJSON(t, srv.URL+"/api/v1/publications", &pubs)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, defaultHistoryLimit, history.limit)
		require.Len(t, pubs, 1)
		assert.Equal(t, int64(42), pubs[0].RemoteID)

		getJSON(t, srv.URL+"/api/v1/publications?limit=10000", &pubs)
		assert.Equal(t, maxHistoryLimit, history.limit)

		var errBody map[string]string
		status = getJSON(t, srv.URL+"/api/v1/publications?limit=abc", &errBody)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("empty list", func(t *testing.T) {
		srv, _ := newTestServer(t, &fakeHistory{})
		resp, err := http.Get(srv.URL + "/api/v1/publications")
		require.NoError(t, err)
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		assert.JSONEq(t, `[]`, string(data))
	})

	t.Run("history failure", func(t *testing.T) {
		srv, _ := newTestServer(t, &fakeHistory{err: errors.New("db down")})
		var body map[string]string
		status := getJSON(t, srv.URL+"/api/v1/publications", &body)
		assert.Equal(t, http.StatusInternalServerError, status)
	})
}

func TestCORS(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/stats", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}
