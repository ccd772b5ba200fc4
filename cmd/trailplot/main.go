// Command trailplot reconstructs a journalled run by dead reckoning and
// writes it out as a plot.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/cubenav/internal/db"
	"github.com/banshee-data/cubenav/internal/trail"
)

var (
	journalPath = flag.String("journal", "cubenav.db", "Journal database")
	runID       = flag.String("run", "", "Run to plot (default: the newest)")
	out         = flag.String("out", "trail.png", "Output file; the extension picks the format (png, svg, pdf)")
	list        = flag.Bool("list", false, "List the journalled runs and exit")
)

func main() {
	flag.Parse()

	d, err := db.NewDB(*journalPath)
	if err != nil {
		log.Fatalf("failed to open journal: %v", err)
	}
	defer d.Close()

	runs, err := d.Runs()
	if err != nil {
		log.Fatalf("failed to list runs: %v", err)
	}
	if *list {
		for _, r := range runs {
			fmt.Printf("%s  %s  zone %d  %-14s %-12s %s\n", r.ID, r.Started.Format(time.RFC3339), r.Zone, r.Profile, r.Route, r.Result)
		}
		return
	}

	var run db.Run
	switch {
	case *runID != "":
		if run, err = d.GetRun(*runID); err != nil {
			log.Fatalf("failed to find run: %v", err)
		}
	case len(runs) == 0:
		log.Fatalf("no runs in %s", *journalPath)
	default:
		run = runs[0]
	}

	cmds, err := d.Commands(run.ID)
	if err != nil {
		log.Fatalf("failed to read commands for run %s: %v", run.ID, err)
	}

	var start trail.Pose
	steps := trail.Reckon(start, cmds)
	title := fmt.Sprintf("%s zone %d (%s)", run.Route, run.Zone, run.Started.Format("2006-01-02 15:04"))
	if err := trail.Plot(title, start, steps, *out); err != nil {
		log.Fatalf("failed to plot run %s: %v", run.ID, err)
	}
	log.Printf("run %s: %s", run.ID, trail.Summarize(start, steps))
	log.Printf("wrote %s", *out)
}
