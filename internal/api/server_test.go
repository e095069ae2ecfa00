package api

import (
	"encoding/base64"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsyncapp/shelfsync-server/internal/config"
	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
	"github.com/shelfsyncapp/shelfsync-server/internal/ingest"
	"github.com/shelfsyncapp/shelfsync-server/internal/logger"
	"github.com/shelfsyncapp/shelfsync-server/internal/search"
	"github.com/shelfsyncapp/shelfsync-server/internal/service"
	"github.com/shelfsyncapp/shelfsync-server/internal/sse"
	"github.com/shelfsyncapp/shelfsync-server/internal/store"
)

func newTestServer(t *testing.T) (*Server, humatest.TestAPI) {
	t.Helper()

	log := logger.New(logger.Config{Writer: io.Discard, Environment: "test"})

	st, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	idx, err := search.NewIndex(search.Options{DataPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	sseManager := sse.NewManager(log.Logger)

	services := &Services{
		Import: service.NewImportService(st, idx, ingest.NewQueue(time.Hour), sseManager, log, ingest.Options{}),
		Book:   service.NewBookService(st, idx, log),
	}

	cfg := &config.Config{
		Server: config.ServerConfig{Port: "0"},
		Import: config.ImportConfig{
			PreviewSampleSize: 20,
			MaxUploadBytes:    1 << 20,
		},
	}

	s := NewServer(cfg, st, services, sseManager, log)
	// Stop the limiter cleanup goroutine; Allow still works off the burst.
	s.importLimiter.Stop()

	return s, humatest.Wrap(t, s.api)
}

func uploadBody(filename, csv string, extra map[string]any) map[string]any {
	body := map[string]any{
		"filename": filename,
		"content":  base64.StdEncoding.EncodeToString([]byte(csv)),
	}
	for k, v := range extra {
		body[k] = v
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	_, api := newTestServer(t)

	resp := api.Get("/health")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"healthy"`)
}

func TestPreviewEndpoint(t *testing.T) {
	_, api := newTestServer(t)

	resp := api.Post("/api/v1/imports/preview", uploadBody("books.csv",
		"Title,ISBN\nDune,9780441172719\n", map[string]any{"sample_size": 5}))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"total_rows":1`)
	assert.Contains(t, resp.Body.String(), `"imported"`)
}

func TestPreviewRejectsEmptyContent(t *testing.T) {
	_, api := newTestServer(t)

	resp := api.Post("/api/v1/imports/preview", map[string]any{
		"filename": "books.csv",
		"content":  "",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCommitAndFetchBatch(t *testing.T) {
	s, api := newTestServer(t)

	resp := api.Post("/api/v1/imports", uploadBody("books.csv",
		"Title,ISBN\nDune,9780441172719\n", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	reports := s.services.Import.ListReports()
	require.Len(t, reports, 1)
	batchID := reports[0].BatchID

	got := api.Get("/api/v1/imports/" + batchID)
	assert.Equal(t, http.StatusOK, got.Code)
	assert.Contains(t, got.Body.String(), batchID)

	list := api.Get("/api/v1/imports")
	assert.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), batchID)
}

func TestGetUnknownBatchReturns404(t *testing.T) {
	_, api := newTestServer(t)

	resp := api.Get("/api/v1/imports/imp-missing")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Contains(t, resp.Body.String(), "NOT_FOUND")
}

func TestCommitWithInvalidOverride(t *testing.T) {
	_, api := newTestServer(t)

	resp := api.Post("/api/v1/imports", uploadBody("books.csv",
		"Title,ISBN\nDune,9780441172719\n",
		map[string]any{"overrides": map[string]string{"isbn": "No Such Column"}}))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "INVALID_MAPPING")
}

func TestBookEndpoints(t *testing.T) {
	s, api := newTestServer(t)

	require.NoError(t, s.store.PutBook(t.Context(), &domain.Book{
		ISBN: "9780441172719", Title: "Dune", Authors: []string{"Frank Herbert"},
	}))

	resp := api.Get("/api/v1/books/9780441172719")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "Dune")

	missing := api.Get("/api/v1/books/0000000000")
	assert.Equal(t, http.StatusNotFound, missing.Code)

	list := api.Get("/api/v1/books")
	assert.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), `"total":1`)
}

func TestResolveManualMatchesEndpoint(t *testing.T) {
	s, api := newTestServer(t)

	// Queue one row by committing a file with a missing ISBN.
	resp := api.Post("/api/v1/imports", uploadBody("books.csv",
		"Title,ISBN\nDune,\n", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	entries := s.services.Import.ListManualMatches()
	require.Len(t, entries, 1)

	list := api.Get("/api/v1/imports/matches")
	assert.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), entries[0].ID)

	resolve := api.Post("/api/v1/imports/matches/resolve", map[string]any{
		"decisions": []map[string]any{
			{"entry_id": entries[0].ID, "action": "import_as_new"},
		},
	})
	require.Equal(t, http.StatusOK, resolve.Code)
	assert.Contains(t, resolve.Body.String(), `"imported"`)

	// Second resolve conflicts.
	again := api.Post("/api/v1/imports/matches/resolve", map[string]any{
		"decisions": []map[string]any{
			{"entry_id": entries[0].ID, "action": "skip"},
		},
	})
	assert.Equal(t, http.StatusConflict, again.Code)
	assert.Contains(t, again.Body.String(), "ALREADY_RESOLVED")
}

func TestResolveValidatesAction(t *testing.T) {
	_, api := newTestServer(t)

	resp := api.Post("/api/v1/imports/matches/resolve", map[string]any{
		"decisions": []map[string]any{
			{"entry_id": "mme-x", "action": "explode"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
