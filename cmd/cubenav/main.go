package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/cubenav/internal/actuator"
	"github.com/banshee-data/cubenav/internal/api"
	"github.com/banshee-data/cubenav/internal/camera"
	"github.com/banshee-data/cubenav/internal/config"
	"github.com/banshee-data/cubenav/internal/db"
	"github.com/banshee-data/cubenav/internal/monitoring"
	"github.com/banshee-data/cubenav/internal/navigator"
	"github.com/banshee-data/cubenav/internal/search"
	"github.com/banshee-data/cubenav/internal/serialmux"
	"github.com/banshee-data/cubenav/internal/sim"
	"github.com/banshee-data/cubenav/internal/strategy"
	"github.com/banshee-data/cubenav/internal/timeutil"
	"github.com/banshee-data/cubenav/internal/version"
)

var (
	configPath  = flag.String("config", "", "Robot config (.json or .toml); defaults to "+config.DefaultConfigPath+" when it exists")
	devMode     = flag.Bool("dev", false, "Drive the simulator instead of the robot")
	port        = flag.String("port", "", "Serial port (overrides config, ignored in dev mode)")
	route       = flag.String("route", "", "Route to run (overrides config)")
	zone        = flag.Int("zone", -1, "Starting zone 0-3 (overrides config)")
	opposite    = flag.Bool("opposite", false, "Mirror every turn the route makes")
	journalPath = flag.String("journal", "", "Journal database (overrides config)")
	listen      = flag.String("listen", ":8080", "Admin listen address; empty disables the admin server")
	frames      = flag.String("frames", "", "JSON-lines camera frames to replay (required without -dev)")
	seed        = flag.Uint64("seed", 1, "Simulated camera seed")
	dropout     = flag.Float64("dropout", 0, "Probability the simulated camera misses a marker")
	logDiag     = flag.Bool("log-diag", false, "Write navigation diagnostics to stderr")
	logTrace    = flag.Bool("log-trace", false, "Write every serial exchange to stderr")
	listRoutes  = flag.Bool("list-routes", false, "Print the registered routes and exit")
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

func loadConfig() (*config.RobotConfig, error) {
	path := *configPath
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err != nil {
			return config.EmptyRobotConfig(), nil
		}
		path = config.DefaultConfigPath
	}
	return config.LoadRobotConfig(path)
}

// applyFlags copies explicit command-line overrides into cfg.
func applyFlags(cfg *config.RobotConfig) error {
	if *port != "" {
		cfg.SerialPort = port
	}
	if *route != "" {
		cfg.Route = route
	}
	if *zone >= 0 {
		cfg.Zone = zone
		cfg.ZoneFromDIP = new(bool)
	}
	if *journalPath != "" {
		cfg.JournalPath = journalPath
	}
	return cfg.Validate()
}

// openDrive returns the serial mux the link talks through. In dev mode the
// port is a simulator wired to world.
func openDrive(cfg *config.RobotConfig, world *sim.World) (serialmux.SerialMuxInterface, error) {
	if world != nil {
		factory := sim.PortFactory{Port: sim.NewPort(world, cfg.GetProtocol())}
		m, err := serialmux.NewSerialMuxFromFactory(factory, "sim", cfg.GetSerial())
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	m, err := serialmux.NewRealSerialMux(cfg.GetSerialPort(), cfg.GetSerial())
	if err != nil {
		return nil, err
	}
	return m, nil
}

func openCamera(world *sim.World) (camera.Camera, error) {
	if world != nil {
		opts := sim.DefaultCameraOptions()
		opts.Seed = *seed
		opts.Dropout = *dropout
		return sim.NewCamera(world, opts), nil
	}
	if *frames == "" {
		return nil, errors.New("no camera: pass -frames or -dev")
	}
	return camera.LoadReplayFile(*frames)
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	reg := strategy.NewRegistry()
	if err := strategy.RegisterDefaults(reg); err != nil {
		log.Fatalf("failed to register routes: %v", err)
	}
	if *listRoutes {
		fmt.Println(strings.Join(reg.Names(), "\n"))
		return
	}

	logs := monitoring.LogWriters{Ops: os.Stderr}
	if *logDiag {
		logs.Diag = os.Stderr
	}
	if *logTrace {
		logs.Trace = os.Stderr
	}
	monitoring.SetLogWriters(logs)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := applyFlags(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	cal, err := cfg.GetCalibration()
	if err != nil {
		log.Fatalf("invalid calibration: %v", err)
	}
	if _, err := reg.Lookup(cfg.GetRoute()); err != nil {
		log.Fatalf("failed to select route: %v", err)
	}

	var world *sim.World
	if *devMode {
		world = sim.NewWorld(cal)
		world.PlaceInZone(cfg.GetZone())
		for _, c := range sim.StandardLayout() {
			world.AddCube(c)
		}
		monitoring.Opsf("dev mode: simulated robot at %s", world.Pose())
	}

	drive, err := openDrive(cfg, world)
	if err != nil {
		log.Fatalf("failed to open drive: %v", err)
	}
	defer drive.Close()
	proto := cfg.GetProtocol()
	drive.AllowOpcodes(proto.Opcodes()...)

	cam, err := openCamera(world)
	if err != nil {
		log.Fatalf("failed to open camera: %v", err)
	}

	journal, err := db.NewDB(cfg.GetJournalPath())
	if err != nil {
		log.Fatalf("failed to open journal: %v", err)
	}
	defer journal.Close()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := timeutil.RealClock{}
	link := actuator.NewLink(drive, proto)
	searcher := search.NewSearcher(cam, link, clock, cfg.GetSearch())
	nav := navigator.New(link, searcher, cal, clock, cfg.GetNavigator())

	if cfg.GetZoneFromDIP() {
		z, err := nav.ReadZone(ctx)
		if err != nil {
			log.Fatalf("failed to read zone switch: %v", err)
		}
		monitoring.Opsf("zone %d from DIP switch", z)
	}

	runID, err := journal.StartRun(cfg.GetRoute(), nav.Config.Zone, cfg.GetProfile(), clock.Now())
	if err != nil {
		log.Fatalf("failed to start run: %v", err)
	}
	link.SetRecorder(actuator.NewJournalRecorder(journal, runID, clock))
	nav.Recorder = navigator.NewJournalRecorder(journal, runID, clock)
	monitoring.Opsf("run %s: route %q, zone %d, profile %s (%s)", runID, cfg.GetRoute(), nav.Config.Zone, cfg.GetProfile(), version.String())

	// journal every serial exchange until the run is over
	journalCtx, stopJournal := context.WithCancel(context.Background())
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := serialmux.JournalExchanges(journalCtx, drive, journal, runID); err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Opsf("exchange journal stopped: %v", err)
		}
	}()

	if *listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveAdmin(ctx, drive, journal)
		}()
	}

	robot := &strategy.Robot{Nav: nav, Clock: clock, Opposite: *opposite}
	result := "ok"
	if err := reg.Run(ctx, cfg.GetRoute(), robot); err != nil {
		result = err.Error()
		if errors.Is(err, context.Canceled) {
			result = "cancelled"
		}
	}
	if err := journal.FinishRun(runID, result, clock.Now()); err != nil {
		monitoring.Opsf("failed to finish run %s: %v", runID, err)
	}
	if world != nil {
		monitoring.Opsf("dev mode: simulated robot finished at %s", world.Pose())
	}

	stopJournal()
	// the admin server stays up after the route so the journal can be
	// inspected; interrupt to exit
	if *listen != "" && ctx.Err() == nil {
		monitoring.Opsf("route finished (%s); admin server still on %s", result, *listen)
		<-ctx.Done()
	}
	stop()
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// serveAdmin mounts the journal API with the serial and journal admin routes
// and serves them until ctx is cancelled.
func serveAdmin(ctx context.Context, drive serialmux.SerialMuxInterface, journal *db.DB) {
	mux := api.NewServer(journal).ServeMux()
	drive.AttachAdminRoutes(mux)
	if err := journal.AttachAdminRoutes(mux); err != nil {
		monitoring.Opsf("failed to attach journal admin routes: %v", err)
	}
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, version.String())
	})

	server := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(mux),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			monitoring.Opsf("admin server failed: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("HTTP server routine stopped")
}
