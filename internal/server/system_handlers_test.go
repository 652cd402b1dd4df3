package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/relaycrm/pulse/internal/database"
	"github.com/relaycrm/pulse/internal/scheduler"
)

// openTestDB creates a file-backed database with one table in it.
func openTestDB(t *testing.T, dir, name string) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path: filepath.Join(dir, name+".db"),
		Name: name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Conn().Exec(`CREATE TABLE entries (id INTEGER PRIMARY KEY, label TEXT)`)
	require.NoError(t, err)

	return db
}

func TestSystemHandlers_HandleSystemStatus(t *testing.T) {
	dir := t.TempDir()

	handlers := &SystemHandlers{
		log:       zerolog.Nop(),
		dataDir:   dir,
		signalsDB: openTestDB(t, dir, "signals"),
		scoresDB:  openTestDB(t, dir, "scores"),
		configDB:  openTestDB(t, dir, "config"),
		historyDB: openTestDB(t, dir, "history"),
	}

	req := httptest.NewRequest(http.MethodGet, "/api/system/status", nil)
	rec := httptest.NewRecorder()

	handlers.HandleSystemStatus(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var response SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))

	assert.Equal(t, "healthy", response.Status)
	assert.NotEmpty(t, response.Version)
	require.Len(t, response.Databases, 4)
	for _, db := range response.Databases {
		assert.True(t, db.Healthy, "database %s should be healthy", db.Name)
		assert.Empty(t, db.Error)
	}
}

func TestSystemHandlers_HandleSystemStatus_MissingDatabase(t *testing.T) {
	dir := t.TempDir()

	// history deliberately left nil
	handlers := &SystemHandlers{
		log:       zerolog.Nop(),
		dataDir:   dir,
		signalsDB: openTestDB(t, dir, "signals"),
		scoresDB:  openTestDB(t, dir, "scores"),
		configDB:  openTestDB(t, dir, "config"),
	}

	req := httptest.NewRequest(http.MethodGet, "/api/system/status", nil)
	rec := httptest.NewRecorder()

	handlers.HandleSystemStatus(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))

	assert.Equal(t, "degraded", response.Status)
	require.Len(t, response.Databases, 4)
	assert.Equal(t, "history", response.Databases[3].Name)
	assert.False(t, response.Databases[3].Healthy)
	assert.Equal(t, "not initialized", response.Databases[3].Error)
}

func TestSystemHandlers_HandleDatabaseStats(t *testing.T) {
	dir := t.TempDir()

	handlers := &SystemHandlers{
		log:       zerolog.Nop(),
		dataDir:   dir,
		signalsDB: openTestDB(t, dir, "signals"),
		scoresDB:  openTestDB(t, dir, "scores"),
	}

	req := httptest.NewRequest(http.MethodGet, "/api/system/database/stats", nil)
	rec := httptest.NewRecorder()

	handlers.HandleDatabaseStats(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response DatabaseStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))

	// Only the two initialized databases are reported
	require.Len(t, response.Databases, 2)
	assert.Equal(t, "signals", response.Databases[0].Name)
	assert.Equal(t, "scores", response.Databases[1].Name)
	for _, db := range response.Databases {
		assert.Greater(t, db.SizeMB, 0.0)
		assert.Greater(t, db.PageCount, int64(0))
		assert.NotEmpty(t, db.Path)
	}
	assert.Greater(t, response.TotalSizeMB, 0.0)
	assert.NotEmpty(t, response.LastChecked)
}

func TestSystemHandlers_HandleJobsStatus(t *testing.T) {
	t.Run("no scheduler configured", func(t *testing.T) {
		handlers := &SystemHandlers{log: zerolog.Nop()}

		req := httptest.NewRequest(http.MethodGet, "/api/system/jobs", nil)
		rec := httptest.NewRecorder()

		handlers.HandleJobsStatus(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response JobsStatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		assert.Equal(t, 0, response.TotalJobs)
		assert.Empty(t, response.Jobs)
	})

	t.Run("lists registered jobs", func(t *testing.T) {
		sched := scheduler.New(zerolog.Nop())
		require.NoError(t, sched.AddJob("0 0 3 * * *", &noopJob{name: "recompute_scores"}))
		require.NoError(t, sched.AddJob("0 30 4 * * *", &noopJob{name: "backup_upload"}))

		handlers := &SystemHandlers{log: zerolog.Nop(), sched: sched}

		req := httptest.NewRequest(http.MethodGet, "/api/system/jobs", nil)
		rec := httptest.NewRecorder()

		handlers.HandleJobsStatus(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response JobsStatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		assert.Equal(t, 2, response.TotalJobs)
		require.Len(t, response.Jobs, 2)
		assert.Equal(t, "backup_upload", response.Jobs[0].Name)
		assert.Equal(t, "recompute_scores", response.Jobs[1].Name)
	})
}

func TestSystemHandlers_BackupEndpointsWithoutService(t *testing.T) {
	handlers := &SystemHandlers{log: zerolog.Nop()}

	req := httptest.NewRequest(http.MethodPost, "/api/system/backup", nil)
	rec := httptest.NewRecorder()
	handlers.HandleTriggerBackup(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/system/backups", nil)
	rec = httptest.NewRecorder()
	handlers.HandleListBackups(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// noopJob satisfies scheduler.Job for route-level tests.
type noopJob struct {
	name string
}

func (j *noopJob) Name() string { return j.name }

func (j *noopJob) Run() error { return nil }
