package inject

import (
	"errors"
	"testing"

	"github.com/atotto/clipboard"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		text string
		opts Options
		want string
	}{
		{name: "trims", text: "  hello  ", want: "hello"},
		{name: "capitalizes", text: "hello world", opts: Options{Capitalize: true}, want: "Hello world"},
		{name: "already capital", text: "Hello", opts: Options{Capitalize: true}, want: "Hello"},
		{name: "non letter", text: "42 apples", opts: Options{Capitalize: true}, want: "42 apples"},
		{name: "append space", text: "done", opts: Options{AppendSpace: true}, want: "done "},
		{name: "empty stays empty", text: "   ", opts: Options{Capitalize: true, AppendSpace: true}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.text, tt.opts); got != tt.want {
				t.Errorf("Format(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestClipboardInjector(t *testing.T) {
	if clipboard.Unsupported {
		t.Skip("no clipboard utility available")
	}

	var got []string
	c := &clipboardInjector{
		opts: Options{Capitalize: true},
		write: func(s string) error {
			got = append(got, s)
			return nil
		},
	}

	if err := c.Inject("turn it up"); err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	if err := c.Inject("   "); err != nil {
		t.Fatalf("Inject of blank text failed: %v", err)
	}
	if len(got) != 1 || got[0] != "Turn it up" {
		t.Fatalf("expected one formatted write, got %q", got)
	}
}

func TestClipboardInjectorWriteError(t *testing.T) {
	if clipboard.Unsupported {
		t.Skip("no clipboard utility available")
	}

	boom := errors.New("boom")
	c := &clipboardInjector{write: func(string) error { return boom }}

	if err := c.Inject("text"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped write error, got %v", err)
	}
}
