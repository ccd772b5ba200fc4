// Package api serves the run journal as JSON on the admin server: the runs,
// each run's approach transitions and its dead-reckoned trail.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/cubenav/internal/db"
	"github.com/banshee-data/cubenav/internal/geometry"
	"github.com/banshee-data/cubenav/internal/httputil"
	"github.com/banshee-data/cubenav/internal/monitoring"
	"github.com/banshee-data/cubenav/internal/trail"
)

type Server struct {
	db *db.DB
}

func NewServer(d *db.DB) *Server {
	return &Server{db: d}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// LoggingMiddleware logs method, path, status and duration to the diag stream.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Diagf("http: [%d] %s %s %.1fms",
			lrw.statusCode, r.Method, r.RequestURI,
			float64(time.Since(start).Nanoseconds())/1e6)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	s.AttachRoutes(mux)
	return mux
}

// AttachRoutes mounts the journal API on mux.
func (s *Server) AttachRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/approaches", s.listApproaches)
	mux.HandleFunc("/api/trail", s.showTrail)
}

// RunJSON is a journalled run.
type RunJSON struct {
	ID       string     `json:"id"`
	Route    string     `json:"route"`
	Zone     int        `json:"zone"`
	Profile  string     `json:"profile"`
	Started  time.Time  `json:"started"`
	Finished *time.Time `json:"finished,omitempty"`
	Result   string     `json:"result,omitempty"`
}

func runJSON(r db.Run) RunJSON {
	return RunJSON{
		ID:       r.ID,
		Route:    r.Route,
		Zone:     r.Zone,
		Profile:  r.Profile,
		Started:  r.Started.UTC(),
		Finished: r.Finished,
		Result:   r.Result,
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if !httputil.GetOnly(w, r) {
		return
	}
	runs, err := s.db.Runs()
	if err != nil {
		httputil.JournalFailure(w, "list runs", err)
		return
	}
	out := make([]RunJSON, 0, len(runs))
	for _, run := range runs {
		out = append(out, runJSON(run))
	}
	httputil.ReplyOK(w, out)
}

// selectRun resolves the run query parameter, defaulting to the newest run.
// It writes the error response itself and reports false on failure.
func (s *Server) selectRun(w http.ResponseWriter, r *http.Request) (db.Run, bool) {
	if id := r.URL.Query().Get("run"); id != "" {
		run, err := s.db.GetRun(id)
		if errors.Is(err, db.ErrRunNotFound) {
			httputil.Fail(w, http.StatusNotFound, "run %s not found", id)
			return db.Run{}, false
		}
		if err != nil {
			httputil.JournalFailure(w, "read run "+id, err)
			return db.Run{}, false
		}
		return run, true
	}
	runs, err := s.db.Runs()
	if err != nil {
		httputil.JournalFailure(w, "list runs", err)
		return db.Run{}, false
	}
	if len(runs) == 0 {
		httputil.Fail(w, http.StatusNotFound, "no runs journalled")
		return db.Run{}, false
	}
	return runs[0], true
}

// ApproachJSON is one approach state transition.
type ApproachJSON struct {
	Time       time.Time `json:"time"`
	MarkerID   int       `json:"marker_id"`
	MarkerType string    `json:"marker_type"`
	State      string    `json:"state"`
	Result     string    `json:"result"`
	Distance   float64   `json:"distance_m"`
	LastTurn   string    `json:"last_turn"`
}

func (s *Server) listApproaches(w http.ResponseWriter, r *http.Request) {
	if !httputil.GetOnly(w, r) {
		return
	}
	run, ok := s.selectRun(w, r)
	if !ok {
		return
	}
	recs, err := s.db.Approaches(run.ID)
	if err != nil {
		httputil.JournalFailure(w, "read approaches for run "+run.ID, err)
		return
	}
	out := make([]ApproachJSON, 0, len(recs))
	for _, a := range recs {
		out = append(out, ApproachJSON{
			Time:       a.Time.UTC(),
			MarkerID:   a.MarkerID,
			MarkerType: a.MarkerType,
			State:      a.State,
			Result:     a.Result,
			Distance:   a.Distance,
			LastTurn:   a.LastTurn,
		})
	}
	httputil.ReplyOK(w, out)
}

// PoseJSON is a trail pose with the heading in degrees.
type PoseJSON struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	HeadingDeg float64 `json:"heading_deg"`
}

func poseJSON(p trail.Pose) PoseJSON {
	return PoseJSON{X: p.X, Y: p.Y, HeadingDeg: geometry.Degrees(p.Heading)}
}

type StepJSON struct {
	PoseJSON
	Time    time.Time `json:"time"`
	Op      string    `json:"op"`
	Outcome string    `json:"outcome"`
}

type SummaryJSON struct {
	Commands    int      `json:"commands"`
	Interrupted int      `json:"interrupted"`
	Failed      int      `json:"failed"`
	Distance    float64  `json:"distance_m"`
	TurnedDeg   float64  `json:"turned_deg"`
	End         PoseJSON `json:"end"`
}

type TrailJSON struct {
	Run     RunJSON     `json:"run"`
	Start   PoseJSON    `json:"start"`
	Summary SummaryJSON `json:"summary"`
	Steps   []StepJSON  `json:"steps"`
}

// parseStart reads an optional start pose from x, y and heading (degrees).
func parseStart(r *http.Request) (trail.Pose, error) {
	var p trail.Pose
	q := r.URL.Query()
	for _, f := range []struct {
		name string
		dst  *float64
	}{{"x", &p.X}, {"y", &p.Y}, {"heading", &p.Heading}} {
		v := q.Get(f.name)
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return trail.Pose{}, errors.New("invalid " + f.name + ": " + v)
		}
		*f.dst = n
	}
	p.Heading = geometry.Radians(p.Heading)
	return p, nil
}

func (s *Server) showTrail(w http.ResponseWriter, r *http.Request) {
	if !httputil.GetOnly(w, r) {
		return
	}
	start, err := parseStart(r)
	if err != nil {
		httputil.Fail(w, http.StatusBadRequest, "%v", err)
		return
	}
	run, ok := s.selectRun(w, r)
	if !ok {
		return
	}
	cmds, err := s.db.Commands(run.ID)
	if err != nil {
		httputil.JournalFailure(w, "read commands for run "+run.ID, err)
		return
	}

	steps := trail.Reckon(start, cmds)
	sum := trail.Summarize(start, steps)
	out := TrailJSON{
		Run:   runJSON(run),
		Start: poseJSON(start),
		Summary: SummaryJSON{
			Commands:    sum.Commands,
			Interrupted: sum.Interrupted,
			Failed:      sum.Failed,
			Distance:    sum.Distance,
			TurnedDeg:   geometry.Degrees(sum.Turned),
			End:         poseJSON(sum.End),
		},
		Steps: make([]StepJSON, 0, len(steps)),
	}
	for _, st := range steps {
		out.Steps = append(out.Steps, StepJSON{
			PoseJSON: poseJSON(st.Pose),
			Time:     st.Time.UTC(),
			Op:       st.Op,
			Outcome:  st.Outcome,
		})
	}
	httputil.ReplyOK(w, out)
}
