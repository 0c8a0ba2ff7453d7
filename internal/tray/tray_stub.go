//go:build !cgo

package tray

import (
	"github.com/rs/zerolog"

	"github.com/petems/eva/internal/config"
)

// UI without cgo has no system tray. Status updates are logged at debug
// level and Run only invokes the callbacks.
type UI struct {
	log  zerolog.Logger
	quit chan struct{}
}

func New(_ *config.Config, _ string, _ Controller, _ string, log zerolog.Logger) *UI {
	return &UI{log: log, quit: make(chan struct{})}
}

func (u *UI) SetController(Controller) {}

func (u *UI) SetIdle()       { u.updateStatus(StatusIdle) }
func (u *UI) SetRecording()  { u.updateStatus(StatusRecording) }
func (u *UI) SetProcessing() { u.updateStatus(StatusProcessing) }
func (u *UI) SetError()      { u.updateStatus(StatusError) }

func (u *UI) Run(started, stopped func()) {
	u.log.Warn().Msg("System tray unavailable in this build")
	if started != nil {
		go started()
	}
	<-u.quit
	if stopped != nil {
		stopped()
	}
}

func (u *UI) Quit() {
	select {
	case <-u.quit:
	default:
		close(u.quit)
	}
}

func (u *UI) updateStatus(status Status) {
	u.log.Debug().Str("status", string(status)).Msg(describe(status))
}
