package tray

import "github.com/petems/eva/internal/config"

// Status is what the tray indicator shows.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusRecording  Status = "recording"
	StatusProcessing Status = "processing"
	StatusError      Status = "error"
)

// Controller is the part of the app the tray menu drives.
type Controller interface {
	SetClipboard(enabled bool)
}

// emojiForStatus returns the appropriate status emoji
func emojiForStatus(status Status) string {
	switch status {
	case StatusRecording:
		return "🔴" // Red - speech segment open
	case StatusProcessing:
		return "🟡" // Yellow - processing transcription
	case StatusIdle:
		return "🟢" // Green - listening
	case StatusError:
		return "⚪️" // White - error
	default:
		return "🟢" // Green - default to ready
	}
}

// describe is the human-readable status shown in the menu.
func describe(status Status) string {
	switch status {
	case StatusRecording:
		return "Speech detected"
	case StatusProcessing:
		return "Transcribing..."
	case StatusError:
		return "Transcription failed"
	default:
		return "Listening"
	}
}

// saveClipboard writes the clipboard toggle to the config file at path,
// leaving the rest of the file as the user wrote it.
func saveClipboard(path string, enabled bool) error {
	return config.Update(path, func(c *config.Config) {
		c.Output.Clipboard = enabled
	})
}
