// Package inject hands finished transcripts to the desktop.
package inject

import (
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
)

// ErrClipboardUnsupported is returned when no clipboard utility is available
// (for example xclip, xsel or wl-copy on Linux).
var ErrClipboardUnsupported = errors.New("inject: clipboard unsupported")

// Injector delivers transcript text somewhere the user can use it.
type Injector interface {
	Inject(text string) error
}

// Options controls how transcripts are formatted before injection.
type Options struct {
	Capitalize  bool
	AppendSpace bool
}

type clipboardInjector struct {
	opts  Options
	write func(string) error
}

// NewClipboard returns an Injector that copies each transcript to the system
// clipboard.
func NewClipboard(opts Options) Injector {
	return &clipboardInjector{opts: opts, write: clipboard.WriteAll}
}

func (c *clipboardInjector) Inject(text string) error {
	text = Format(text, c.opts)
	if text == "" {
		return nil
	}
	if clipboard.Unsupported {
		return ErrClipboardUnsupported
	}
	if err := c.write(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	return nil
}

// Format trims text and applies opts.
func Format(text string, opts Options) string {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return text
	}

	// Auto-capitalize first letter
	if opts.Capitalize && text[0] >= 'a' && text[0] <= 'z' {
		text = string(text[0]-32) + text[1:]
	}

	if opts.AppendSpace {
		text += " "
	}

	return text
}
