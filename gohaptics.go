package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	c "sharkee.net/gohaptics/config"
	"sharkee.net/gohaptics/haptic"
	"sharkee.net/gohaptics/logging"
	pl "sharkee.net/gohaptics/platform"
	"sharkee.net/gohaptics/transport"
	u "sharkee.net/gohaptics/util"
)

const (
	// displayRefresh is how often the engine state is pushed to the
	// platform display.
	displayRefresh = 250 * time.Millisecond
	// configReloadDebounce coalesces the burst of file events an editor
	// emits into one reload.
	configReloadDebounce = 250 * time.Millisecond
	// shutdownGraceTime bounds how long the web server may take to
	// finish in-flight requests.
	shutdownGraceTime = 2 * time.Second
)

// App wires the platform, the engine and the ingress paths together
// and owns their lifecycle across reloads.
type App struct {
	ossignal   chan os.Signal
	cfile      string
	realHW     bool
	instanceID string
	started    time.Time

	conf     *c.Config
	platform pl.Platform
	ctl      *haptic.Controller
	ctlWg    sync.WaitGroup
	sources  []transport.Source
	announce *transport.Announce
	websrv   *http.Server
	watcher  *fsnotify.Watcher

	stopsignal chan struct{}
	shutdownWg sync.WaitGroup

	updateMu   sync.Mutex
	lastUpdate *u.Update
}

func NewApp(ossignal chan os.Signal) *App {
	return &App{
		ossignal:   ossignal,
		instanceID: uuid.NewString(),
		started:    time.Now(),
	}
}

func main() {
	cfile := flag.String("config", "config.yml", "Path to the config file")
	realhw := flag.Bool("real", false, "Set to true if the program runs on the real hardware")
	flag.Parse()

	// Logging must come up before anything logs, so the config is read
	// once ahead of initialise just for the logging bootstrap.
	conf, err := c.ReadConfig(*cfile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Can't read config file %s: %s\n", *cfile, err)
		os.Exit(2)
	}
	sink := conf.Logging.HW
	if !*realhw {
		// The simulation buffers log output until the TUI log pane can
		// take over.
		sink = conf.Logging.TUI
	}
	if err := logging.Init(!*realhw, sink.Level, sink.Format, sink.File); err != nil {
		fmt.Fprintf(os.Stderr, "Can't initialise logging: %s\n", err)
		os.Exit(2)
	}
	defer logging.Close()
	if *realhw {
		// On hardware there is no TUI pane to take over, log to stderr.
		logging.SetOutput(os.Stderr)
	}

	ossignal := make(chan os.Signal, 1)
	signal.Notify(ossignal, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	app := NewApp(ossignal)
	app.cfile = *cfile
	app.realHW = *realhw
	app.initialise()
	app.run()
}

// run blocks handling OS signals: SIGHUP tears the app down and brings
// it back up with the current config file, everything else shuts down.
func (a *App) run() {
	for sig := range a.ossignal {
		if sig == syscall.SIGHUP {
			slog.Info("Reloading configuration...")
			a.teardown()
			if !a.realHW {
				logging.BufferOutput()
			}
			a.initialise()
			continue
		}
		slog.Info("Shutting down...", "signal", sig)
		a.teardown()
		return
	}
}

func (a *App) initialise() {
	slog.Info("Starting gohaptics", "config", a.cfile, "real-hardware", a.realHW, "instance", a.instanceID)

	var err error
	a.conf, err = c.ReadConfig(a.cfile)
	if err != nil {
		slog.Error("Error reading config file", "error", err)
		os.Exit(1)
	}

	a.stopsignal = make(chan struct{})

	if a.realHW {
		a.platform = pl.NewHardwarePlatform(a.conf)
	} else {
		a.platform = pl.NewTUIPlatform(a.conf, a.ossignal)
	}
	if err := a.platform.Start(); err != nil {
		slog.Error("Error starting platform", "error", err)
		os.Exit(1)
	}
	<-a.platform.Ready()

	a.ctl = haptic.NewController(a.engineSettings(), a.platform.Actuator())
	a.ctlWg.Add(1)
	go a.ctl.Run(&a.ctlWg)

	a.startSources()
	a.startAnnounce()
	a.startWebServer()
	a.startConfigWatcher()

	a.shutdownWg.Add(2)
	go a.stateManager()
	go a.refreshDisplay()
}

// teardown unwinds initialise: ingress first so nothing new arrives,
// then the pump goroutines, then the engine (which parks the actuator
// in standby on the way out), and the platform last.
func (a *App) teardown() {
	for _, src := range a.sources {
		src.Stop()
	}
	a.sources = nil
	if a.announce != nil {
		a.announce.Stop()
		a.announce = nil
	}
	if a.websrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGraceTime)
		if err := a.websrv.Shutdown(ctx); err != nil {
			slog.Error("Error stopping web server", "error", err)
		}
		cancel()
		a.websrv = nil
	}
	if a.watcher != nil {
		a.watcher.Close()
		a.watcher = nil
	}

	close(a.stopsignal)
	a.shutdownWg.Wait()

	a.ctl.Stop()
	a.ctlWg.Wait()

	a.platform.Stop()
}

// engineSettings assembles the engine knobs from the validated config.
func (a *App) engineSettings() haptic.Settings {
	mapping := a.conf.Mapping
	s := haptic.Settings{
		Mapper:            haptic.NewMapper(mapping.Gamma, mapping.UseGamma, mapping.Invert),
		Zones:             haptic.NewZoneTable(a.conf.HapticZones(), mapping.TieBreakUpper),
		Threshold:         mapping.Threshold,
		RealtimeThreshold: a.conf.Drive.RealtimeThreshold,
		Tick:              a.conf.Drive.TickInterval,
		Timeout:           a.conf.Drive.RealtimeTimeout,
	}
	s.Profile, _ = haptic.ParseProfile(a.conf.Drive.Profile)
	if a.conf.NightCap.Enabled {
		dimmer := haptic.NewNightDimmer(a.conf.NightCap.Latitude, a.conf.NightCap.Longitude, a.conf.NightCap.Scale)
		s.Scale = dimmer.Scale
	}
	return s
}

// Submit fans an intensity reading out to the engine and the display.
// All ingress paths funnel through here, so the status API always sees
// the newest reading whatever its source.
func (a *App) Submit(upd *u.Update) {
	a.updateMu.Lock()
	a.lastUpdate = upd
	a.updateMu.Unlock()
	a.ctl.Submit(upd)
	a.platform.ShowUpdate(upd)
}

func (a *App) startSources() {
	tr := a.conf.Transport
	if tr.OSC.Enabled {
		a.sources = append(a.sources, transport.NewOSCSource(a, tr.OSC.Listen, tr.OSC.Address))
	}
	if tr.MQTT.Enabled {
		clientID := fmt.Sprintf("gohaptics-%s-%.8s", strings.ToLower(a.conf.Device.Name), a.instanceID)
		a.sources = append(a.sources, transport.NewMQTTSource(a, tr.MQTT.Broker, a.conf.MQTTTopic(), clientID))
	}
	if tr.Audio.Enabled {
		a.sources = append(a.sources, transport.NewAudioSource(a, tr.Audio))
	}
	for _, src := range a.sources {
		if err := src.Start(); err != nil {
			slog.Error("Error starting intensity source", "error", err)
			os.Exit(1)
		}
	}
}

func (a *App) startAnnounce() {
	tr := a.conf.Transport
	if !tr.Announce.Enabled || !tr.OSC.Enabled {
		return
	}
	port, err := listenPort(tr.OSC.Listen)
	if err != nil {
		slog.Error("Can't derive the announce port, not announcing", "listen", tr.OSC.Listen, "error", err)
		return
	}
	ann, err := transport.StartAnnounce(a.conf.Device.Name, port, a.instanceID)
	if err != nil {
		// The device works without discovery; keep going.
		slog.Error("Error announcing the device", "error", err)
		return
	}
	a.announce = ann
}

func listenPort(listen string) (int, error) {
	_, portstr, err := net.SplitHostPort(listen)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(portstr)
}

func (a *App) startWebServer() {
	if !a.conf.Web.Enabled {
		return
	}
	router := mux.NewRouter()
	router.HandleFunc("/api/config", c.ConfigHandler(a.cfile)).Methods("GET", "POST")
	router.HandleFunc("/api/status", a.statusHandler).Methods("GET")
	a.websrv = &http.Server{
		Addr:    a.conf.Web.Listen,
		Handler: handlers.LoggingHandler(logging.Writer(), router),
	}
	go func(srv *http.Server) {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Web server failed", "error", err)
		}
	}(a.websrv)
	slog.Info("Web API listening", "address", a.conf.Web.Listen)
}

type statusResponse struct {
	Device        string  `json:"device"`
	Instance      string  `json:"instance"`
	Uptime        string  `json:"uptime"`
	Mode          string  `json:"mode"`
	Running       bool    `json:"running"`
	LastCommand   string  `json:"last_command,omitempty"`
	LastChange    string  `json:"last_change,omitempty"`
	LastSource    string  `json:"last_source,omitempty"`
	LastIntensity float64 `json:"last_intensity"`
	LastReceived  string  `json:"last_received,omitempty"`
}

func (a *App) statusHandler(w http.ResponseWriter, r *http.Request) {
	st := a.ctl.State()
	a.updateMu.Lock()
	last := a.lastUpdate
	a.updateMu.Unlock()

	resp := statusResponse{
		Device:      a.conf.Device.Name,
		Instance:    a.instanceID,
		Uptime:      time.Since(a.started).Round(time.Second).String(),
		Mode:        st.Mode.String(),
		Running:     st.Running,
		LastCommand: st.LastCommand,
	}
	if !st.LastUpdate.IsZero() {
		resp.LastChange = st.LastUpdate.Format(time.RFC3339Nano)
	}
	if last != nil {
		resp.LastSource = last.Source
		resp.LastIntensity = last.Value
		resp.LastReceived = last.When.Format(time.RFC3339Nano)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode status to JSON", "error", err)
	}
}

func (a *App) startConfigWatcher() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("Error creating config watcher, hot reload disabled", "error", err)
		return
	}
	// Watch the directory, not the file: editors replace the file and
	// a watch on the old inode would go dead.
	cdir := filepath.Dir(a.cfile)
	if err := watcher.Add(cdir); err != nil {
		slog.Error("Error watching config directory, hot reload disabled", "directory", cdir, "error", err)
		watcher.Close()
		return
	}
	a.watcher = watcher
	a.shutdownWg.Add(1)
	go a.watchConfig(watcher)
}

func (a *App) watchConfig(watcher *fsnotify.Watcher) {
	defer a.shutdownWg.Done()
	target := filepath.Clean(a.cfile)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-a.stopsignal:
			slog.Info("Ending configWatcher go-routine...")
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(configReloadDebounce, func() {
				slog.Info("Config file changed on disk, reloading", "file", a.cfile)
				a.ossignal <- syscall.SIGHUP
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", "error", err)
		}
	}
}

// stateManager forwards locally generated intensity readings from the
// platform into the engine until shutdown.
func (a *App) stateManager() {
	defer a.shutdownWg.Done()
	for {
		select {
		case <-a.stopsignal:
			slog.Info("Ending stateManager go-routine...")
			return
		case upd := <-a.platform.Events():
			a.Submit(upd)
		}
	}
}

// refreshDisplay periodically pushes the engine state to the platform
// display.
func (a *App) refreshDisplay() {
	defer a.shutdownWg.Done()
	ticker := time.NewTicker(displayRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopsignal:
			slog.Info("Ending refreshDisplay go-routine...")
			return
		case <-ticker.C:
			a.platform.ShowState(a.ctl.State())
		}
	}
}
