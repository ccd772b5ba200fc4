package serialmux

import (
	"context"

	"github.com/banshee-data/cubenav/internal/db"
	"github.com/banshee-data/cubenav/internal/monitoring"
)

// Subscriber is the part of a mux JournalExchanges needs.
type Subscriber interface {
	Subscribe() (string, chan Exchange)
	Unsubscribe(string)
}

// ExchangeRecord converts an exchange into its journal row.
func ExchangeRecord(runID string, ex Exchange) db.ExchangeRecord {
	rec := db.ExchangeRecord{
		RunID:      runID,
		Time:       ex.Time,
		Opcode:     string(ex.Frame.Op),
		DurationMs: ex.Duration.Seconds() * 1000,
		Error:      ex.Err,
	}
	if ex.Frame.HasValue {
		v := int(ex.Frame.Value)
		rec.Value = &v
	}
	if ex.HasReply {
		r := string(ex.Reply)
		rec.Reply = &r
	}
	return rec
}

// JournalExchanges writes every exchange on mux to the journal until ctx is
// done or the mux closes the subscription. Journal write failures are logged
// and do not stop the drive.
func JournalExchanges(ctx context.Context, mux Subscriber, d *db.DB, runID string) error {
	id, ch := mux.Subscribe()
	defer mux.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ex, ok := <-ch:
			if !ok {
				return nil
			}
			if err := d.RecordExchange(ExchangeRecord(runID, ex)); err != nil {
				monitoring.Opsf("journal: failed to record exchange %s: %v", ex, err)
			}
		}
	}
}
