// Package vad delimits speech segments in a block stream using an energy
// threshold with trigger and release hysteresis, and drives a recognizer
// over each segment.
package vad

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/petems/eva/internal/config"
	"github.com/petems/eva/internal/meter"
)

// Recognizer receives the audio of each segment. Flush finalizes and resets
// recognition state and returns the text for everything fed since the
// previous Flush, or "" when nothing was recognised.
type Recognizer interface {
	Available() bool
	Feed(block []int16)
	Flush() (string, error)
}

// BlockSource yields audio blocks; io.EOF ends the stream.
type BlockSource interface {
	Read() ([]int16, error)
}

// Params configures the detector.
type Params struct {
	TriggerDBFS   float64 // blocks louder than this count as speech
	TriggerFrames int     // consecutive speech blocks before a segment opens
	ReleaseFrames int     // blocks of hold after the last trigger
}

// DefaultParams returns the stock detector settings.
func DefaultParams() Params {
	return Params{TriggerDBFS: -35, TriggerFrames: 10, ReleaseFrames: 20}
}

// ParamsFromConfig converts the vad config section.
func ParamsFromConfig(c config.VADConfig) Params {
	return Params{
		TriggerDBFS:   c.TriggerDBFS,
		TriggerFrames: c.TriggerFrames,
		ReleaseFrames: c.ReleaseFrames,
	}
}

// EventType identifies what a segmenter Event reports.
type EventType string

const (
	SpeechDetected      EventType = "speech_detected"
	SegmentClosed       EventType = "segment_closed"
	Transcript          EventType = "transcript"
	NoSpeech            EventType = "no_speech"
	TranscriptionFailed EventType = "transcription_failed"
)

// Event is emitted by the segmenter. Level is set for SpeechDetected, Text
// for Transcript and Err for TranscriptionFailed. Block is the 1-based index
// of the block that produced the event.
type Event struct {
	Type  EventType
	Level float64
	Text  string
	Err   error
	Block int
}

func (e Event) String() string {
	switch e.Type {
	case SpeechDetected:
		return fmt.Sprintf("speech detected (%.1f dBFS)", e.Level)
	case Transcript:
		return e.Text
	case NoSpeech:
		return "(no speech recognised)"
	case TranscriptionFailed:
		return fmt.Sprintf("transcription failed: %v", e.Err)
	}
	return string(e.Type)
}

// State is the detector state after the most recent block.
type State struct {
	Hot      int  // consecutive speech blocks towards the trigger
	Hold     int  // blocks left before the segment may close
	Active   bool // a segment is open
	HasAudio bool // the open segment has fed the recognizer
}

// Segmenter is the block-synchronous detector. It is not safe for
// concurrent use; one goroutine owns it.
type Segmenter struct {
	params     Params
	recognizer Recognizer
	transcribe bool
	state      State
	blocks     int
}

// New returns a segmenter. A nil or unavailable recognizer leaves the
// segmenter in detection-only mode.
func New(p Params, r Recognizer) *Segmenter {
	return &Segmenter{
		params:     p,
		recognizer: r,
		transcribe: r != nil && r.Available(),
	}
}

// Transcribing reports whether segments are fed to a recognizer.
func (s *Segmenter) Transcribing() bool {
	return s.transcribe
}

// State returns a snapshot of the detector state.
func (s *Segmenter) State() State {
	return s.state
}

// Process advances the detector by one block and returns the events it
// produced, in order.
func (s *Segmenter) Process(block []int16) []Event {
	s.blocks++
	var events []Event

	level := meter.DBFS(block)
	speech := level > s.params.TriggerDBFS

	if speech {
		s.state.Hot++
		if s.state.Hot >= s.params.TriggerFrames {
			s.state.Hold = s.params.ReleaseFrames
			s.state.Hot = 0
			events = append(events, Event{Type: SpeechDetected, Level: level, Block: s.blocks})
		}
	} else {
		s.state.Hot = 0
	}

	// Hold counts down on every block, including the one that set it.
	if s.state.Hold > 0 {
		s.state.Hold--
	}

	if (speech || s.state.Hold > 0) && s.transcribe {
		s.state.Active = true
		s.state.HasAudio = true
		s.recognizer.Feed(block)
	}

	if !speech && s.state.Hold == 0 && s.state.Active {
		events = s.close(events)
	}
	return events
}

// Drain closes a segment left open at end of stream so its audio is still
// transcribed. It returns nil when no segment is open.
func (s *Segmenter) Drain() []Event {
	if !s.state.Active {
		return nil
	}
	s.state.Hot = 0
	s.state.Hold = 0
	return s.close(nil)
}

func (s *Segmenter) close(events []Event) []Event {
	s.state.Active = false
	events = append(events, Event{Type: SegmentClosed, Block: s.blocks})
	if s.state.HasAudio {
		events = append(events, s.flush())
	}
	s.state.HasAudio = false
	return events
}

func (s *Segmenter) flush() Event {
	text, err := s.recognizer.Flush()
	switch {
	case err != nil:
		return Event{Type: TranscriptionFailed, Err: err, Block: s.blocks}
	case text == "":
		return Event{Type: NoSpeech, Block: s.blocks}
	default:
		return Event{Type: Transcript, Text: text, Block: s.blocks}
	}
}

// Run reads src until it ends and passes every event to emit. It returns
// nil on io.EOF or when ctx is cancelled, and the read error otherwise. An
// open segment is drained before Run returns nil.
func (s *Segmenter) Run(ctx context.Context, src BlockSource, emit func(Event)) error {
	for {
		if ctx.Err() != nil {
			break
		}
		block, err := src.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("vad: read block: %w", err)
		}
		if len(block) == 0 {
			continue
		}
		for _, ev := range s.Process(block) {
			emit(ev)
		}
	}

	for _, ev := range s.Drain() {
		emit(ev)
	}
	return nil
}
