// Command roadagent runs the autonomous driving controller against a
// scenario, records telemetry, and serves a live monitor.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/roadagent/internal/api"
	"github.com/banshee-data/roadagent/internal/config"
	"github.com/banshee-data/roadagent/internal/db"
	"github.com/banshee-data/roadagent/internal/monitoring"
	"github.com/banshee-data/roadagent/internal/scenario"
	"github.com/banshee-data/roadagent/internal/sim"
	"github.com/banshee-data/roadagent/internal/ticklog"
	"github.com/banshee-data/roadagent/internal/timeutil"
	"github.com/banshee-data/roadagent/internal/units"
	"github.com/banshee-data/roadagent/internal/vehicle/canbus"
	"github.com/banshee-data/roadagent/internal/version"
)

const defaultDBFile = "roadagent.db"

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) || errors.Is(err, db.ErrMigrateUsage) {
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

func usage(out io.Writer) {
	fmt.Fprint(out, `Usage: roadagent <command> [flags]

Commands:
  run       simulate a scenario
  migrate   manage the telemetry database schema
  tune      change a running agent's tunables over HTTP
  version   print build information

Run 'roadagent <command> -h' for command flags.
`)
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		usage(stdout)
		return errUsage
	}
	switch args[0] {
	case "run":
		return runCommand(ctx, args[1:], stdout)
	case "migrate":
		fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
		fs.SetOutput(stdout)
		dbPath := fs.String("db", defaultDBFile, "Path to the sqlite telemetry database")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		return db.RunMigrateCommand(fs.Args(), *dbPath, stdout)
	case "tune":
		return tuneCommand(ctx, args[1:], stdout)
	case "version", "-version", "--version":
		fmt.Fprintln(stdout, version.String())
		return nil
	case "help", "-h", "--help":
		usage(stdout)
		return nil
	default:
		usage(stdout)
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

type runFlags struct {
	scenario    string
	config      string
	dbPath      string
	listen      string
	units       string
	tickLog     string
	logEvery    int
	sampleEvery int
	wsEvery     int
	canIface    string
	realtime    bool
	verbose     bool
	ticks       int
}

func parseRunFlags(args []string, out io.Writer) (runFlags, error) {
	var f runFlags
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&f.scenario, "scenario", "", "Scenario file (.yaml, .yml or .json); empty runs the built-in loop")
	fs.StringVar(&f.config, "config", "", "Tuning config JSON; empty uses driver defaults")
	fs.StringVar(&f.dbPath, "db", "", "Record the run to this sqlite database")
	fs.StringVar(&f.listen, "listen", "", "Serve the monitor API on this address, e.g. :8080")
	fs.StringVar(&f.units, "units", units.MPH, "Default speed units for the API ("+units.ValidUnitsString()+")")
	fs.StringVar(&f.tickLog, "ticklog", "", "Write frames to this zstd JSONL file")
	fs.IntVar(&f.logEvery, "log-every", 1, "Keep every Nth tick in the tick log")
	fs.IntVar(&f.sampleEvery, "sample-every", 5, "Record every Nth tick to the database")
	fs.IntVar(&f.wsEvery, "ws-every", 5, "Stream every Nth tick over the websocket")
	fs.StringVar(&f.canIface, "can-iface", "", "Mirror the first car's commands to this SocketCAN interface")
	fs.BoolVar(&f.realtime, "realtime", false, "Pace ticks with the wall clock")
	fs.BoolVar(&f.verbose, "verbose", false, "Log state transitions")
	fs.IntVar(&f.ticks, "ticks", -1, "Override the scenario tick budget; 0 runs until interrupted")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if fs.NArg() > 0 {
		return f, fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}
	if !units.IsValid(f.units) {
		return f, fmt.Errorf("invalid -units %q, want one of: %s", f.units, units.ValidUnitsString())
	}
	return f, nil
}

func loadInputs(f runFlags) (scenario.Scenario, *config.TuningConfig, error) {
	sc := scenario.Default()
	if f.scenario != "" {
		var err error
		if sc, err = scenario.Load(f.scenario); err != nil {
			return sc, nil, err
		}
	}
	if f.ticks >= 0 {
		sc.Ticks = f.ticks
	}
	cfg := config.EmptyTuningConfig()
	if f.config != "" {
		var err error
		if cfg, err = config.LoadTuningConfig(f.config); err != nil {
			return sc, nil, err
		}
	}
	return sc, cfg, nil
}

func runCommand(ctx context.Context, args []string, stdout io.Writer) error {
	f, err := parseRunFlags(args, stdout)
	if err != nil {
		return err
	}
	monitoring.SetVerbose(f.verbose)
	log.Printf("%s", version.String())

	sc, cfg, err := loadInputs(f)
	if err != nil {
		return err
	}

	opts := sim.DefaultOptions()
	opts.Params = cfg.DriverParams()
	opts.Personality = cfg.Personality()
	if cfg.TickInterval != nil {
		opts.Pace = cfg.GetTickInterval()
	}
	if f.canIface != "" {
		bus, err := canbus.DialSocket(ctx, f.canIface)
		if err != nil {
			return err
		}
		defer bus.Close()
		opts.CAN = bus
		log.Printf("mirroring commands to %s", f.canIface)
	}

	s, err := sim.New(sc, opts)
	if err != nil {
		return err
	}

	if f.tickLog != "" {
		tl, err := ticklog.Create(f.tickLog, f.logEvery)
		if err != nil {
			return err
		}
		defer func() {
			if err := tl.Close(); err != nil {
				log.Printf("failed to close tick log: %v", err)
			}
			log.Printf("wrote %d frames to %s", tl.Count(), f.tickLog)
		}()
		s.AddObserver(tl)
	}

	var (
		database *db.DB
		recorder *db.Recorder
	)
	if f.dbPath != "" {
		database, err = db.NewDB(f.dbPath)
		if err != nil {
			return err
		}
		defer database.Close()
		id, err := database.StartRun(ctx, s.Name(), s.DT(), version.Version)
		if err != nil {
			return err
		}
		recorder = database.NewRecorder(id, f.sampleEvery)
		s.AddObserver(recorder)
		log.Printf("recording run %s to %s", id, f.dbPath)
	}

	var wg sync.WaitGroup
	serveCtx, stopServing := context.WithCancel(ctx)
	defer func() {
		stopServing()
		wg.Wait()
	}()
	if f.listen != "" {
		srv, err := api.NewServer(s, database, api.NewHub(f.wsEvery), f.units)
		if err != nil {
			return err
		}
		s.AddObserver(srv.Hub())
		if err := serve(serveCtx, &wg, f.listen, srv); err != nil {
			return err
		}
	}

	runErr := s.Run(ctx, timeutil.RealClock{}, f.realtime)
	summary := s.Summary()
	if recorder != nil {
		// The run context may already be cancelled; the record must still close.
		if err := database.FinishRun(context.Background(), recorder.RunID(), summary); err != nil {
			log.Printf("failed to finish run: %v", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	if f.listen != "" && ctx.Err() == nil {
		log.Printf("run finished; monitor stays up until interrupted")
		<-ctx.Done()
	}
	return nil
}

// serve starts the monitor on addr and shuts it down when ctx ends.
func serve(ctx context.Context, wg *sync.WaitGroup, addr string, srv *api.Server) error {
	mux, err := srv.ServeMux()
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	server := &http.Server{Handler: api.LoggingMiddleware(mux), ReadHeaderTimeout: 10 * time.Second}

	wg.Add(1)
	go func() {
		defer wg.Done()
		go func() {
			if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("HTTP server error: %v", err)
			}
		}()
		log.Printf("monitor listening on http://%s", ln.Addr())

		<-ctx.Done()
		log.Println("shutting down HTTP server...")
		srv.Hub().Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()
	return nil
}
