//go:build cgo

package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
	"github.com/rs/zerolog"

	"github.com/petems/eva/internal/config"
)

type UI struct {
	cfg     *config.Config
	path    string // file the config was loaded from
	ctl     Controller
	version string
	log     zerolog.Logger

	mu      sync.Mutex
	ready   bool
	current Status

	// Menu items
	mStatus    *systray.MenuItem
	mClipboard *systray.MenuItem
}

// New creates the tray. path is the config file that menu changes are
// written back to.
func New(cfg *config.Config, path string, ctl Controller, version string, log zerolog.Logger) *UI {
	return &UI{
		cfg:     cfg,
		path:    path,
		ctl:     ctl,
		version: version,
		log:     log,
		current: StatusIdle,
	}
}

// SetController sets the app reference (for circular dependency resolution)
func (u *UI) SetController(ctl Controller) {
	u.ctl = ctl
}

// Status update methods for the app to call
func (u *UI) SetIdle() {
	u.updateStatus(StatusIdle)
}

func (u *UI) SetRecording() {
	u.updateStatus(StatusRecording)
}

func (u *UI) SetProcessing() {
	u.updateStatus(StatusProcessing)
}

func (u *UI) SetError() {
	u.updateStatus(StatusError)
}

// Run shows the tray and blocks until Quit is called. It must run on the
// main thread. started runs once the tray is ready; stopped runs on exit.
func (u *UI) Run(started, stopped func()) {
	systray.Run(func() {
		u.onReady()
		if started != nil {
			go started()
		}
	}, func() {
		if stopped != nil {
			stopped()
		}
	})
}

// Quit closes the tray and makes Run return.
func (u *UI) Quit() {
	systray.Quit()
}

func (u *UI) onReady() {
	systray.SetTooltip(fmt.Sprintf("eva %s - voice activity transcription", u.version))

	u.mStatus = systray.AddMenuItem(describe(StatusIdle), "Current status")
	u.mStatus.Disable()
	systray.AddSeparator()

	u.mClipboard = systray.AddMenuItemCheckbox("Copy to Clipboard", "Copy each transcript to the clipboard", u.cfg.Output.Clipboard)
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Exit eva")

	u.mu.Lock()
	u.ready = true
	status := u.current
	u.mu.Unlock()
	u.render(status)

	// Event loop
	go u.handleEvents(mQuit)
}

func (u *UI) handleEvents(mQuit *systray.MenuItem) {
	for {
		select {
		case <-u.mClipboard.ClickedCh:
			u.toggleClipboard()
		case <-mQuit.ClickedCh:
			u.log.Info().Msg("Quit requested from tray")
			systray.Quit()
			return
		}
	}
}

func (u *UI) toggleClipboard() {
	u.cfg.Output.Clipboard = !u.cfg.Output.Clipboard
	if u.cfg.Output.Clipboard {
		u.mClipboard.Check()
		u.log.Info().Msg("Enabled copying transcripts to clipboard")
	} else {
		u.mClipboard.Uncheck()
		u.log.Info().Msg("Disabled copying transcripts to clipboard")
	}
	enabled := u.cfg.Output.Clipboard
	if u.ctl != nil {
		u.ctl.SetClipboard(enabled)
	}
	if err := saveClipboard(u.path, enabled); err != nil {
		u.log.Warn().Err(err).Str("path", u.path).Msg("Failed to save config")
	}
}

// updateStatus records status and renders it once the tray is up.
func (u *UI) updateStatus(status Status) {
	u.mu.Lock()
	u.current = status
	ready := u.ready
	u.mu.Unlock()

	if ready {
		u.render(status)
	}
}

func (u *UI) render(status Status) {
	systray.SetTitle(fmt.Sprintf("🎤 %s", emojiForStatus(status)))
	u.mStatus.SetTitle(describe(status))
}
