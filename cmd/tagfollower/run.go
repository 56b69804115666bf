package main

import (
	"fmt"
	"strings"

	"github.com/ayusman/tagfollower/internal/app"
	"github.com/ayusman/tagfollower/internal/capture"
	"github.com/ayusman/tagfollower/internal/config"
	"github.com/ayusman/tagfollower/internal/detector"
	"github.com/ayusman/tagfollower/internal/log"
	"github.com/ayusman/tagfollower/internal/policy"
	"github.com/ayusman/tagfollower/internal/publish"
	"github.com/ayusman/tagfollower/internal/render"
	"github.com/ayusman/tagfollower/internal/server"
	"github.com/ayusman/tagfollower/internal/store"
	"github.com/spf13/cobra"
)

// runOptions holds the flags of the run command. Flags that were set
// override the config file.
type runOptions struct {
	configPath string
	source     string
	dictionary string
	selection  string
	topic      string
	noWindow   bool
	serialPort string
	baudRate   int
	udpAddr    string
	bridge     []string
	httpAddr   string
	dbPath     string
	record     bool
	logLevel   string
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Follow the marker until interrupted",
	Long: `Reads frames from the camera, detects markers and publishes a velocity
command for every frame. Press 'q' in the window or Ctrl+C to stop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRunConfig(cmd, runOpts)
		if err != nil {
			return err
		}
		return runFollower(cmd, cfg)
	},
}

func init() {
	addRunFlags(runCmd, &runOpts)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "JSON config file")
	f.StringVarP(&opts.source, "source", "s", config.DefaultSource, "camera index or video file")
	f.StringVar(&opts.dictionary, "dictionary", detector.DefaultConfig().Dictionary, "marker dictionary")
	f.StringVar(&opts.selection, "select", policy.SelectLast.String(), "detection that drives the command: last or widest")
	f.StringVar(&opts.topic, "topic", config.DefaultTopic, "command topic name")
	f.BoolVar(&opts.noWindow, "no-window", false, "do not open the diagnostic window")
	f.StringVar(&opts.serialPort, "serial", "", "serial port of the motor controller")
	f.IntVar(&opts.baudRate, "baud", config.DefaultBaudRate, "serial baud rate")
	f.StringVar(&opts.udpAddr, "udp", "", "send commands as CSV datagrams to host:port")
	f.StringSliceVar(&opts.bridge, "bridge", nil, "bridge command receiving JSON commands on stdin")
	f.StringVar(&opts.httpAddr, "http", "", "serve the dashboard on this address, e.g. :8080")
	f.StringVar(&opts.dbPath, "db", "", "SQLite database for run telemetry")
	f.BoolVar(&opts.record, "record", false, "record telemetry in the default database")
	f.StringVar(&opts.logLevel, "log-level", config.DefaultLogLevel, "debug, info, warn or error")
}

// loadRunConfig builds the configuration from the optional file and the
// flags that were explicitly set.
func loadRunConfig(cmd *cobra.Command, opts runOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	f := cmd.Flags()
	if f.Changed("source") {
		cfg.Camera.Source = opts.source
	}
	if f.Changed("dictionary") {
		cfg.Marker.Dictionary = opts.dictionary
	}
	if f.Changed("select") {
		sel, err := policy.ParseSelection(opts.selection)
		if err != nil {
			return cfg, fmt.Errorf("%w: %w", config.ErrInvalid, err)
		}
		cfg.Policy.Selection = sel
	}
	if f.Changed("topic") {
		cfg.Publish.Topic = opts.topic
	}
	if opts.noWindow {
		cfg.Render.Window = false
	}
	if f.Changed("serial") {
		cfg.Publish.Serial.Port = opts.serialPort
	}
	if f.Changed("baud") {
		cfg.Publish.Serial.BaudRate = opts.baudRate
	}
	if f.Changed("udp") {
		cfg.Publish.UDPAddr = opts.udpAddr
	}
	if f.Changed("bridge") {
		cfg.Publish.Bridge.Command = opts.bridge
	}
	if f.Changed("http") {
		cfg.Server.Addr = opts.httpAddr
	}
	if f.Changed("db") {
		cfg.Store.Path = opts.dbPath
	} else if opts.record && cfg.Store.Path == "" {
		path, err := defaultDBPath()
		if err != nil {
			return cfg, err
		}
		cfg.Store.Path = path
	}
	if f.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}

	return cfg, cfg.Validate()
}

// runFollower wires the configured outputs around the control loop and
// runs it until it stops.
func runFollower(cmd *cobra.Command, cfg config.Config) error {
	log.Init(cfg.Log.Level)
	ctx := cmd.Context()

	// The detector is built first so a missing dictionary fails before the
	// camera or any output is opened
	det, err := detector.NewArucoDetector(detector.Config{Dictionary: cfg.Marker.Dictionary})
	if err != nil {
		return fmt.Errorf("%w (supported: %s)", err, strings.Join(detector.Dictionaries(), ", "))
	}
	defer det.Close()

	var st *store.Store
	if cfg.Store.Path != "" {
		st, err = store.New(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
		log.Info("recording telemetry", "db", cfg.Store.Path)
	}

	// From here on the publishers are owned by the app, which closes them
	pubs, err := openPublishers(cfg)
	if err != nil {
		pubs.Close()
		return err
	}

	var renderers render.Multi
	if cfg.Render.Window {
		renderers = append(renderers, render.NewWindow(cfg.Render.Title))
	}
	defer func() { renderers.Close() }()

	var hub *server.CommandHub
	var frames *render.FrameBuffer
	if cfg.Server.Addr != "" {
		hub = server.NewCommandHub()
		frames = render.NewFrameBuffer()
		pubs = append(pubs, hub)
		renderers = append(renderers, frames)
	}

	follower := app.New(app.Config{
		Store:       st,
		Topic:       cfg.Publish.Topic,
		TagSize:     cfg.Marker.SizeMeters,
		FocalLength: cfg.Marker.FocalLength,
		Policy:      cfg.Policy,
		StopOnExit:  cfg.Publish.StopOnExit,
		Source:      cfg.Camera.Source,
		Dictionary:  cfg.Marker.Dictionary,
	}, capture.NewCamera(cfg.Camera.Source, cfg.Camera.Width, cfg.Camera.Height), det, pubs, renderers)

	if cfg.Server.Addr != "" {
		srv := server.New(server.Config{
			StaticDir: findWebDir(),
			Store:     st,
			Status:    follower,
			Frames:    frames,
			Commands:  hub,
			StreamFPS: cfg.Server.StreamFPS,
		})
		go func() {
			log.Info("dashboard listening", "addr", cfg.Server.Addr)
			if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
				log.Error("server failed", "error", err)
			}
		}()
	}

	_, err = follower.Run(ctx)
	return err
}

// openPublishers opens every configured transport. On error the returned
// Multi holds the ones already opened so the caller can close them.
func openPublishers(cfg config.Config) (publish.Multi, error) {
	var pubs publish.Multi

	if port := cfg.Publish.Serial.Port; port != "" {
		p, err := publish.OpenSerial(port, cfg.Publish.Serial.BaudRate)
		if err != nil {
			return pubs, err
		}
		pubs = append(pubs, p)
		log.Info("publishing to serial", "port", port, "baud", cfg.Publish.Serial.BaudRate)
	}

	if addr := cfg.Publish.UDPAddr; addr != "" {
		p, err := publish.NewUDPPublisher(addr)
		if err != nil {
			return pubs, err
		}
		pubs = append(pubs, p)
		log.Info("publishing to udp", "addr", addr)
	}

	if command := cfg.Publish.Bridge.Command; len(command) > 0 {
		p, err := publish.NewBridgePublisher(command)
		if err != nil {
			return pubs, err
		}
		pubs = append(pubs, p)
		log.Info("publishing to bridge", "command", command[0])
	}

	if len(pubs) == 0 {
		log.Warn("no command transport configured; commands are only logged")
	}
	return pubs, nil
}
