package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/niclasankar/nmea-gps-emulator/config"
	"github.com/niclasankar/nmea-gps-emulator/control"
	"github.com/niclasankar/nmea-gps-emulator/gps"
	"github.com/niclasankar/nmea-gps-emulator/logging"
	"github.com/niclasankar/nmea-gps-emulator/metrics"
	"github.com/niclasankar/nmea-gps-emulator/poi"
	"github.com/niclasankar/nmea-gps-emulator/sink"
	"github.com/niclasankar/nmea-gps-emulator/web"
)

// Version information - populated at build time via ldflags
var (
	Version   = "dev"     // Will be set to git tag if available, otherwise "dev"
	Commit    = "unknown" // Will be set to git commit hash
	BuildDate = "unknown" // Will be set to build timestamp
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "nmea-emulator: %v\n", err)
		os.Exit(1)
	}
}

// options are the command line settings that are not part of the file
// configuration.
type options struct {
	configFile  string
	showVersion bool
	listSerial  bool
	console     bool
	duration    time.Duration
}

// parseFlags builds the configuration: defaults, then the -config file,
// then every flag that was set explicitly.
func parseFlags(args []string, stderr io.Writer) (config.Config, options, error) {
	var (
		opts   options
		cfg    = config.Default()
		filter string
		proto  string
		flags  struct {
			lat, lon, altitude, speed, heading float64
			satellites, baud, poiUID           int
			serial, tcpListen, stream, web     string
			poiFile, route, track              string
			logLevel, logFile, dataLog         string
			interval                           time.Duration
			stdout, routeLoop                  bool
		}
	)

	fs := flag.NewFlagSet("nmea-emulator", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.configFile, "config", "", "YAML configuration file")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version information and exit")
	fs.BoolVar(&opts.listSerial, "list-serial", false, "List available serial ports and exit")
	fs.BoolVar(&opts.console, "console", false, "Read course, speed and altitude changes from stdin")
	fs.DurationVar(&opts.duration, "duration", 0, "How long to run (e.g. 30s, 5m, 1h). Default is indefinite")

	fs.Float64Var(&flags.lat, "lat", cfg.Emulator.Latitude, "Initial latitude (decimal degrees)")
	fs.Float64Var(&flags.lon, "lon", cfg.Emulator.Longitude, "Initial longitude (decimal degrees)")
	fs.Float64Var(&flags.altitude, "altitude", cfg.Emulator.Altitude, "Initial altitude in meters")
	fs.Float64Var(&flags.speed, "speed", cfg.Emulator.Speed, "Initial speed in knots")
	fs.Float64Var(&flags.heading, "heading", cfg.Emulator.Heading, "Initial heading in degrees (0-359.9)")
	fs.IntVar(&flags.satellites, "satellites", cfg.Emulator.Satellites, "Satellites in view (4-24)")

	fs.StringVar(&flags.serial, "serial", "", "Serial port for NMEA output (e.g., /dev/ttyUSB0, COM1)")
	fs.IntVar(&flags.baud, "baud", cfg.Outputs.Serial.BaudRate, "Serial port baud rate")
	fs.StringVar(&flags.tcpListen, "tcp-listen", "", "Serve NMEA to TCP clients on this address (e.g., :10110)")
	fs.StringVar(&flags.stream, "stream", "", "Stream NMEA to this host:port")
	fs.StringVar(&proto, "stream-proto", cfg.Outputs.Stream.Protocol, "Stream protocol, tcp or udp")
	fs.StringVar(&flags.dataLog, "data-log", "", "Append NMEA output to this rotating log file")
	fs.BoolVar(&flags.stdout, "stdout", cfg.Outputs.Stdout.Enable, "Write NMEA output to stdout")
	fs.StringVar(&flags.web, "web", "", "Serve the web API on this address (e.g., :8080)")
	fs.DurationVar(&flags.interval, "interval", cfg.Outputs.Interval, "Time between sentence batches")
	fs.StringVar(&filter, "filter", "", "Comma separated sentence identifiers to send (e.g., GPGGA,GPRMC)")

	fs.StringVar(&flags.poiFile, "poi", "", "Point of interest file (JSON)")
	fs.IntVar(&flags.poiUID, "poi-uid", 0, "Start at the point with this uid")
	fs.StringVar(&flags.route, "route", "", "GPX file with waypoints to follow")
	fs.BoolVar(&flags.routeLoop, "route-loop", false, "Restart the route after the last waypoint")
	fs.StringVar(&flags.track, "track", "", "Record the emulated track to this GPX file")

	fs.StringVar(&flags.logLevel, "log-level", cfg.Logging.Level, "Log level: debug, info, warn or error")
	fs.StringVar(&flags.logFile, "log-file", "", "Write logs to this rotating file instead of stderr")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: nmea-emulator [options]\n")
		fmt.Fprintf(stderr, "\nNMEA 0183 GPS emulator\n")
		fmt.Fprintf(stderr, "Emulates a moving GPS receiver and sends its sentences to serial, TCP, UDP, file or stdout.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return cfg, opts, err
	}
	if fs.NArg() > 0 {
		return cfg, opts, fmt.Errorf("%w: unexpected argument %q", errUsage, fs.Arg(0))
	}

	if opts.configFile != "" {
		loaded, err := config.Load(opts.configFile)
		if err != nil {
			return cfg, opts, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "lat":
			cfg.Emulator.Latitude = flags.lat
		case "lon":
			cfg.Emulator.Longitude = flags.lon
		case "altitude":
			cfg.Emulator.Altitude = flags.altitude
		case "speed":
			cfg.Emulator.Speed = flags.speed
		case "heading":
			cfg.Emulator.Heading = flags.heading
		case "satellites":
			cfg.Emulator.Satellites = flags.satellites
		case "serial":
			cfg.Outputs.Serial.Enable = true
			cfg.Outputs.Serial.Port = flags.serial
		case "baud":
			cfg.Outputs.Serial.BaudRate = flags.baud
		case "tcp-listen":
			cfg.Outputs.TCPServer.Enable = true
			cfg.Outputs.TCPServer.Listen = flags.tcpListen
		case "stream":
			cfg.Outputs.Stream.Enable = true
			cfg.Outputs.Stream.Address = flags.stream
		case "stream-proto":
			cfg.Outputs.Stream.Protocol = proto
		case "data-log":
			cfg.Outputs.Log.Enable = true
			cfg.Outputs.Log.File = flags.dataLog
		case "stdout":
			cfg.Outputs.Stdout.Enable = flags.stdout
		case "web":
			cfg.Outputs.Web.Enable = true
			cfg.Outputs.Web.Listen = flags.web
		case "interval":
			cfg.Outputs.Interval = flags.interval
		case "filter":
			cfg.Outputs.Filter = splitList(filter)
		case "poi":
			cfg.POI.File = flags.poiFile
		case "poi-uid":
			cfg.POI.UID = flags.poiUID
		case "route":
			cfg.Route.File = flags.route
		case "route-loop":
			cfg.Route.Loop = flags.routeLoop
		case "track":
			cfg.Track.File = flags.track
		case "log-level":
			cfg.Logging.Level = flags.logLevel
		case "log-file":
			cfg.Logging.File = flags.logFile
		}
	})

	if opts.duration < 0 {
		return cfg, opts, fmt.Errorf("%w: duration must not be negative", errUsage)
	}
	if opts.showVersion || opts.listSerial {
		return cfg, opts, nil
	}
	if err := cfg.Validate(); err != nil {
		return cfg, opts, err
	}
	return cfg, opts, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	if opts.showVersion {
		if Version != "dev" {
			fmt.Fprintf(stdout, "v%s\n", Version)
		} else {
			fmt.Fprintf(stdout, "%s\n", Commit)
		}
		return nil
	}
	if opts.listSerial {
		ports, err := sink.ListSerialPorts()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Fprintln(stdout, "No serial ports found")
		}
		for _, port := range ports {
			fmt.Fprintln(stdout, port)
		}
		return nil
	}

	logger, err := logging.New(cfg.Logging, stderr)
	if err != nil {
		return err
	}
	defer logger.Close()

	if cfg.POI.File != "" {
		points, err := poi.Load(cfg.POI.File)
		if err != nil {
			return err
		}
		point, err := poi.Find(points, cfg.POI.UID)
		if err != nil {
			return err
		}
		point.Apply(&cfg.Emulator)
		logger.Info("starting at point of interest", "poi", point.String())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	engine, err := gps.New(cfg.Emulator, gps.WithLogger(logger.Logger), gps.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("failed to create navigation engine: %w", err)
	}
	defer engine.Close()

	if cfg.Track.File != "" {
		recorder, err := gps.NewTrackRecorder(cfg.Track.File, logger.Logger)
		if err != nil {
			return err
		}
		defer func() {
			// Drain queued fixes before the file is finalised
			engine.Close()
			recorder.Close()
		}()
		recorder.Attach(engine)
		logger.Info("recording track", "file", cfg.Track.File)
	}

	if cfg.Route.File != "" {
		points, err := gps.ReadGPXFile(cfg.Route.File)
		if err != nil {
			return err
		}
		follower, err := gps.NewRouteFollower(engine, points, cfg.Route.RouteOptions, logger.Logger)
		if err != nil {
			return err
		}
		follower.Attach()
		logger.Info("following route", "file", cfg.Route.File, "waypoints", len(points))
	}

	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	transmitters, err := openTransmitters(cfg.Outputs, stdout)
	if err != nil {
		return err
	}

	group := sink.NewGroup(engine)
	wc := cfg.Outputs.WorkerConfig()

	var srv *sink.TCPServer
	if cfg.Outputs.TCPServer.Enable {
		srv, err = group.ListenTCP(cfg.Outputs.TCPServer.Listen, cfg.Outputs.TCPServer.MaxClients, wc, logger.Logger, m)
		if err != nil {
			for _, tx := range transmitters {
				tx.Close()
			}
			return err
		}
	}

	// Without a direct sink the engine would only move while TCP clients
	// are connected.
	if len(transmitters) == 0 {
		transmitters = append(transmitters, sink.NewWriter("pacer", io.Discard))
	}

	// Sinks fail independently, so the group is not tied to a context.
	var g errgroup.Group
	for _, tx := range transmitters {
		w := group.NewWorker(tx, wc, logger.Logger, m)
		g.Go(func() error { return w.Run(ctx) })
	}

	if srv != nil {
		g.Go(func() error { return srv.Serve(ctx) })
	}

	if cfg.Outputs.Web.Enable {
		ws := web.NewServer(engine, logger.Logger, m)
		g.Go(func() error { return ws.Run(ctx, cfg.Outputs.Web.Listen) })
	}

	if opts.console {
		c := control.NewConsole(stdin, stderr, engine, logger.Logger)
		g.Go(func() error { return c.Run(ctx) })
	}

	logger.Info("NMEA emulator running",
		"version", Version,
		"outputs", len(transmitters),
		"interval", wc.Interval)

	return g.Wait()
}

// openTransmitters opens every enabled direct output. On failure the ones
// already opened are closed again.
func openTransmitters(o config.Outputs, stdout io.Writer) ([]sink.Transmitter, error) {
	var txs []sink.Transmitter
	fail := func(err error) ([]sink.Transmitter, error) {
		for _, tx := range txs {
			tx.Close()
		}
		return nil, err
	}

	if o.Serial.Enable {
		s, err := sink.OpenSerial(o.Serial.SerialConfig)
		if err != nil {
			return fail(err)
		}
		txs = append(txs, s)
	}
	if o.Stream.Enable {
		var (
			s   *sink.Stream
			err error
		)
		if strings.EqualFold(o.Stream.Protocol, "udp") {
			s, err = sink.NewUDPStream(o.Stream.Address)
		} else {
			s, err = sink.NewTCPStream(o.Stream.Address, o.Stream.Timeout)
		}
		if err != nil {
			return fail(err)
		}
		txs = append(txs, s)
	}
	if o.Log.Enable {
		txs = append(txs, sink.NewDataLog(o.Log.DataLogConfig))
	}
	if o.Stdout.Enable {
		// stdout must outlive the worker
		txs = append(txs, sink.NewWriter("stdout", struct{ io.Writer }{stdout}))
	}
	return txs, nil
}
