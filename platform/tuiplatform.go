package platform

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"sharkee.net/gohaptics/config"
	"sharkee.net/gohaptics/haptic"
	"sharkee.net/gohaptics/logging"
	"sharkee.net/gohaptics/util"
)

// TUIPlatform simulates the device in the terminal: intensity is fed
// with key presses and the actuator pane shows what a real driver chip
// would be told to do.
type TUIPlatform struct {
	basePlatform
	tviewapp      *tview.Application
	intro         *tview.TextView
	actuatorView  *tview.TextView
	intensityView *tview.TextView
	logView       *tview.TextView
	viewer        *IntensityViewer
	sim           *simActuator
	ossignalChan  chan os.Signal
	logFlushOnce  sync.Once
	stateMu       sync.Mutex
	engine        haptic.State
}

func NewTUIPlatform(conf *config.Config, ossignalchan chan os.Signal) *TUIPlatform {
	inst := &TUIPlatform{
		ossignalChan: ossignalchan,
		viewer:       NewIntensityViewer(),
	}
	inst.basePlatform = newBasePlatform(conf)
	inst.sim = newSimActuator(inst.queueActuatorRedraw)
	return inst
}

func (s *TUIPlatform) Actuator() haptic.Actuator {
	return s.sim
}

func (s *TUIPlatform) Start() error {
	s.initSimulationTUI(s.ossignalChan)
	return nil
}

func (s *TUIPlatform) Stop() {
	s.setInShutdown()
	if s.tviewapp != nil {
		s.tviewapp.Stop()
	}
}

func (s *TUIPlatform) ShowUpdate(upd *util.Update) {
	s.viewer.Push(upd.Value)
	if s.shuttingDown() {
		return
	}
	s.tviewapp.QueueUpdateDraw(s.redrawIntensity)
}

func (s *TUIPlatform) ShowState(st haptic.State) {
	s.stateMu.Lock()
	s.engine = st
	s.stateMu.Unlock()
	s.queueActuatorRedraw()
}

// getIntroText generates the dynamic text for the top info pane.
func (s *TUIPlatform) getIntroText() string {
	line1 := fmt.Sprintf("Device [yellow]%s[-] | profile [yellow]%s[-] | actuator [yellow]simulated[-]",
		s.conf.Device.Name, s.conf.Drive.Profile)
	line2 := "Hit [blue]0[-]...[blue]9[-] to set intensity, [blue]f[-]/[blue]t[-]/[blue]s[-] for full/half/silence"
	line3 := "Hit [#ff0000]q[-] to exit, [#ff0000]r[-] to reload, [#ff0000]Up/Down[-] to scroll logs"

	return fmt.Sprintf("%s\n%s\n%s", line1, line2, line3)
}

func (s *TUIPlatform) initSimulationTUI(ossignal chan os.Signal) {
	s.tviewapp = tview.NewApplication()

	// --- Intro Pane ---
	s.intro = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	s.intro.SetText(s.getIntroText())
	s.intro.SetBorder(true).SetTitle(" GOHAPTICS Simulation ").SetTitleColor(tcell.ColorLightBlue)
	s.intro.SetBackgroundColor(tcell.NewRGBColor(20, 20, 20))

	// --- Actuator Pane ---
	s.actuatorView = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	s.actuatorView.SetBorder(true).SetTitle(" Actuator ").SetTitleColor(tcell.ColorLightBlue)
	s.actuatorView.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))

	// --- Intensity Pane ---
	s.intensityView = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	s.intensityView.SetBorder(true).SetTitle(" Intensity ").SetTitleColor(tcell.ColorLightBlue)
	s.intensityView.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))

	// --- Log Pane ---
	s.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetChangedFunc(func() {
			s.logView.ScrollToEnd()
			s.tviewapp.Draw()
		})
	s.logView.SetBorder(true).SetTitle(" Logs ").SetTitleColor(tcell.ColorLightBlue)
	s.logView.SetBackgroundColor(tcell.NewRGBColor(40, 40, 40))

	// --- Layout ---
	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.intro, 5, 0, false).
		AddItem(s.actuatorView, 5, 0, false).
		AddItem(s.intensityView, 5, 0, false).
		AddItem(s.logView, 0, 1, true) // Flexible height, gets focus

	// --- Flush logs after first draw ---
	s.tviewapp.SetAfterDrawFunc(func(screen tcell.Screen) {
		s.logFlushOnce.Do(func() {
			logWriter := tview.ANSIWriter(s.logView)
			if err := logging.SetOutput(logWriter); err != nil {
				slog.Error("Error redirecting logs to TUI", "error", err)
			}
			close(s.readyChan) // Signal that the TUI is ready
		})
	})

	// --- Input Handling ---
	s.tviewapp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			s.tviewapp.Stop()
			ossignal <- os.Interrupt
			return nil
		case tcell.KeyRune:
			r := event.Rune()
			if r >= '0' && r <= '9' {
				s.injectIntensity(float64(r-'0') / 10.0)
				return nil
			}
			switch string(r) {
			case "f", "F":
				s.injectIntensity(1.0)
				return nil
			case "t", "T":
				s.injectIntensity(0.5)
				return nil
			case "s", "S":
				s.injectIntensity(0.0)
				return nil
			case "q", "Q":
				ossignal <- os.Interrupt
				return nil
			case "r", "R":
				ossignal <- syscall.SIGHUP
				return nil
			}
		case tcell.KeyUp:
			row, col := s.logView.GetScrollOffset()
			s.logView.ScrollTo(row-1, col)
			return nil
		case tcell.KeyDown:
			row, col := s.logView.GetScrollOffset()
			s.logView.ScrollTo(row+1, col)
			return nil
		}
		return event
	})

	// --- Start TUI ---
	go func() {
		if err := s.tviewapp.SetRoot(layout, true).Run(); err != nil {
			slog.Error("Error running TUI", "error", err)
			s.ossignalChan <- os.Interrupt
		}
	}()
}

func (s *TUIPlatform) injectIntensity(value float64) {
	slog.Debug("Simulated intensity", "value", value)
	s.inject(util.NewUpdate("tui", value, time.Now()))
}

func (s *TUIPlatform) queueActuatorRedraw() {
	if s.tviewapp == nil || s.shuttingDown() {
		return
	}
	s.tviewapp.QueueUpdateDraw(s.redrawActuator)
}

// redrawIntensity redraws the intensity history pane.
// This function must be called on the main TUI thread via app.QueueUpdateDraw().
func (s *TUIPlatform) redrawIntensity() {
	_, _, width, _ := s.intensityView.GetInnerRect()
	if width <= 2 {
		width = 80
	}
	top, bottom, stats := s.viewer.Render(width - 2)
	s.intensityView.SetText(fmt.Sprintf(" [green]%s[-]\n [green]%s[-]\n%s", top, bottom, stats))
}

// redrawActuator redraws the actuator state pane.
// This function must be called on the main TUI thread via app.QueueUpdateDraw().
func (s *TUIPlatform) redrawActuator() {
	sim := s.sim.state()
	s.stateMu.Lock()
	engine := s.engine
	s.stateMu.Unlock()

	line1 := fmt.Sprintf(" %s  last command: [yellow]%s[-]", modeBadge(engine.Mode), engine.LastCommand)
	line2 := fmt.Sprintf(" gain %3d [green]%s[-]  amplitude %3d [green]%s[-]",
		sim.gain, gauge(sim.gain, 16), sim.amplitude, gauge(sim.amplitude, 16))
	playing := "idle"
	if sim.playing {
		playing = "[black:green] PLAYING [-:-]"
	}
	line3 := fmt.Sprintf(" waveform: [blue]%s[-]  %s", stepsString(sim.steps), playing)
	s.actuatorView.SetText(fmt.Sprintf("%s\n%s\n%s", line1, line2, line3))
}

func modeBadge(m haptic.Mode) string {
	label := strings.ToUpper(m.String())
	switch m {
	case haptic.Realtime:
		return fmt.Sprintf("[black:red] %s [-:-]", label)
	case haptic.LibraryPlayback:
		return fmt.Sprintf("[black:blue] %s [-:-]", label)
	default:
		return fmt.Sprintf("[white:gray] %s [-:-]", label)
	}
}

// gauge renders a level from the 0..255 drive range as a bar of width
// cells.
func gauge(level uint8, width int) string {
	filled := int(math.Round(float64(level) / 255.0 * float64(width)))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// stepsString renders a waveform for the actuator pane, pauses
// prefixed with a tilde.
func stepsString(steps []haptic.WaveformStep) string {
	if len(steps) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(steps))
	for _, st := range steps {
		if st == (haptic.WaveformStep{}) {
			break
		}
		if st.Pause {
			parts = append(parts, fmt.Sprintf("~%d", st.Effect))
		} else {
			parts = append(parts, fmt.Sprintf("%d", st.Effect))
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}
