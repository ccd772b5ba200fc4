package db

import (
	"compress/gzip"
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cubenav/internal/testutil"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := NewDB(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

var t0 = time.Date(2017, time.April, 22, 10, 0, 0, 0, time.UTC)

func TestNewDB_MigratesToLatest(t *testing.T) {
	d := newTestDB(t)
	version, dirty, err := d.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(3), version)
	assert.False(t, dirty)

	require.NoError(t, d.MigrateUp(), "re-running is a no-op")
}

func TestMigrateDown(t *testing.T) {
	d := newTestDB(t)
	require.NoError(t, d.MigrateDown())
	version, _, err := d.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	_, err = d.Exec("SELECT last_turn FROM approaches")
	assert.Error(t, err, "last_turn column should be gone")
	require.NoError(t, d.MigrateDown())
	_, err = d.Exec("SELECT COUNT(*) FROM sightings")
	assert.Error(t, err, "sightings table should be gone")
	require.NoError(t, d.MigrateUp())
}

func TestNewDB_ReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	d, err := NewDB(path)
	require.NoError(t, err)
	id, err := d.StartRun("b c a", 2, "stepper-2017", t0)
	require.NoError(t, err)
	require.NoError(t, d.Close())

	d, err = NewDB(path)
	require.NoError(t, err)
	defer d.Close()
	runs, err := d.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, path, d.Path())
}

func TestRuns(t *testing.T) {
	d := newTestDB(t)
	first, err := d.StartRun("b c a", 0, "stepper-2017", t0)
	require.NoError(t, err)
	second, err := d.StartRun("test turn once", 1, "bench", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	require.NoError(t, d.FinishRun(first, "ok", t0.Add(3*time.Minute)))
	assert.Error(t, d.FinishRun("no-such-run", "ok", t0))

	runs, err := d.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].ID, "newest first")
	assert.Nil(t, runs[0].Finished)
	assert.Equal(t, "b c a", runs[1].Route)
	require.NotNil(t, runs[1].Finished)
	assert.True(t, runs[1].Finished.Equal(t0.Add(3*time.Minute)))
	assert.Equal(t, "ok", runs[1].Result)
}

func TestGetRun(t *testing.T) {
	d := newTestDB(t)
	id, err := d.StartRun("collect nearest", 2, "dc-2016", t0)
	require.NoError(t, err)

	r, err := d.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, "collect nearest", r.Route)
	assert.Equal(t, 2, r.Zone)
	assert.True(t, r.Started.Equal(t0))

	_, err = d.GetRun("no-such-run")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestExchanges_RoundTrip(t *testing.T) {
	d := newTestDB(t)
	run, err := d.StartRun("test move forward", 0, "bench", t0)
	require.NoError(t, err)

	value := 50
	reply := "k"
	require.NoError(t, d.RecordExchange(ExchangeRecord{RunID: run, Time: t0, Opcode: "f", Value: &value, Reply: &reply, DurationMs: 12.5}))
	require.NoError(t, d.RecordExchange(ExchangeRecord{RunID: run, Time: t0.Add(time.Second), Opcode: "c", Error: "timed out waiting for reply"}))

	got, err := d.Exchanges(run)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "f", got[0].Opcode)
	require.NotNil(t, got[0].Value)
	assert.Equal(t, 50, *got[0].Value)
	assert.Equal(t, "k", *got[0].Reply)
	assert.Equal(t, 12.5, got[0].DurationMs)
	assert.Nil(t, got[1].Value)
	assert.Nil(t, got[1].Reply)
	assert.Equal(t, "timed out waiting for reply", got[1].Error)
	assert.True(t, got[1].Time.Equal(t0.Add(time.Second)))
}

func TestExchanges_RequireRun(t *testing.T) {
	d := newTestDB(t)
	err := d.RecordExchange(ExchangeRecord{RunID: "missing", Time: t0, Opcode: "f"})
	assert.Error(t, err, "foreign key should reject unknown runs")
}

func TestCommandsAndApproaches(t *testing.T) {
	d := newTestDB(t)
	run, err := d.StartRun("collect nearest", 0, "bench", t0)
	require.NoError(t, err)

	require.NoError(t, d.RecordCommand(CommandRecord{RunID: run, Time: t0, Op: "forward", Magnitude: 3.2, Outcome: "ok"}))
	require.NoError(t, d.RecordCommand(CommandRecord{RunID: run, Time: t0, Op: "turn", Magnitude: -12, Outcome: "interrupted"}))
	cmds, err := d.Commands(run)
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, -12.0, cmds[1].Magnitude)
	assert.Equal(t, "interrupted", cmds[1].Outcome)

	require.NoError(t, d.RecordApproach(ApproachRecord{RunID: run, Time: t0, MarkerID: 33, MarkerType: "CUBE_A", State: "FACING", Distance: 4}))
	require.NoError(t, d.RecordApproach(ApproachRecord{RunID: run, Time: t0, MarkerID: 33, MarkerType: "CUBE_A", State: "ARRIVED", Result: "ok", LastTurn: "left"}))
	apps, err := d.Approaches(run)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, "FACING", apps[0].State)
	assert.Equal(t, "ok", apps[1].Result)
	assert.Equal(t, "", apps[0].LastTurn)
	assert.Equal(t, "left", apps[1].LastTurn)
}

func TestRecordSightings(t *testing.T) {
	d := newTestDB(t)
	run, err := d.StartRun("print all cubes in sight", 0, "bench", t0)
	require.NoError(t, err)

	require.NoError(t, d.RecordSightings(run, t0, nil))
	require.NoError(t, d.RecordSightings(run, t0, []Sighting{
		{MarkerID: 33, MarkerType: "CUBE_A", Distance: 1.5, Bearing: 0.1, Rotation: 0.3},
		{MarkerID: 3, MarkerType: "ARENA", Distance: 4, Bearing: -0.2},
	}))
	n, err := d.SightingCount(run)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAttachAdminRoutes_Backup(t *testing.T) {
	d := newTestDB(t)
	_, err := d.StartRun("b c a", 0, "bench", t0)
	require.NoError(t, err)

	mux := http.NewServeMux()
	require.NoError(t, d.AttachAdminRoutes(mux))

	rec := testutil.Serve(mux, testutil.LocalRequest(http.MethodGet, "/debug/backup", nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "SQLite format 3\x00", string(data[:16]))
}
