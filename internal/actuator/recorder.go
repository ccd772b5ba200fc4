package actuator

import (
	"github.com/banshee-data/cubenav/internal/db"
	"github.com/banshee-data/cubenav/internal/monitoring"
	"github.com/banshee-data/cubenav/internal/timeutil"
)

// JournalRecorder writes finished commands to the run journal.
type JournalRecorder struct {
	db    *db.DB
	runID string
	clock timeutil.Clock
}

func NewJournalRecorder(d *db.DB, runID string, clock timeutil.Clock) *JournalRecorder {
	return &JournalRecorder{db: d, runID: runID, clock: clock}
}

// RecordCommand stores cmd. Turns are stored signed, negative to the left.
func (r *JournalRecorder) RecordCommand(cmd Command, outcome Outcome) {
	magnitude := cmd.Value
	if cmd.Op == OpTurnLeft {
		magnitude = -magnitude
	}
	err := r.db.RecordCommand(db.CommandRecord{
		RunID:     r.runID,
		Time:      r.clock.Now(),
		Op:        cmd.Op.String(),
		Magnitude: magnitude,
		Outcome:   outcome.String(),
	})
	if err != nil {
		monitoring.Opsf("journal: failed to record %s: %v", cmd, err)
	}
}
