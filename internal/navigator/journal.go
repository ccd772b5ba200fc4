package navigator

import (
	"github.com/banshee-data/cubenav/internal/db"
	"github.com/banshee-data/cubenav/internal/marker"
	"github.com/banshee-data/cubenav/internal/monitoring"
	"github.com/banshee-data/cubenav/internal/timeutil"
)

// JournalRecorder writes approach transitions and sightings to the run
// journal.
type JournalRecorder struct {
	db    *db.DB
	runID string
	clock timeutil.Clock
}

func NewJournalRecorder(d *db.DB, runID string, clock timeutil.Clock) *JournalRecorder {
	return &JournalRecorder{db: d, runID: runID, clock: clock}
}

func (r *JournalRecorder) RecordState(t Transition) {
	rec := db.ApproachRecord{
		RunID:      r.runID,
		Time:       r.clock.Now(),
		MarkerID:   t.Target.ID,
		MarkerType: t.Target.Type.String(),
		State:      t.State.String(),
		Distance:   t.Distance,
		LastTurn:   t.LastTurn.String(),
	}
	if t.State.Terminal() {
		rec.Result = t.Result.String()
	}
	if err := r.db.RecordApproach(rec); err != nil {
		monitoring.Opsf("journal: failed to record approach state %s: %v", t.State, err)
	}
}

func (r *JournalRecorder) RecordSightings(obs []marker.Observation) {
	if len(obs) == 0 {
		return
	}
	sightings := make([]db.Sighting, len(obs))
	for i, o := range obs {
		sightings[i] = db.Sighting{
			MarkerID:   o.ID,
			MarkerType: o.Type.String(),
			Distance:   o.Distance,
			Bearing:    o.Bearing,
			Rotation:   o.Rotation,
		}
	}
	if err := r.db.RecordSightings(r.runID, r.clock.Now(), sightings); err != nil {
		monitoring.Opsf("journal: failed to record %d sightings: %v", len(obs), err)
	}
}
