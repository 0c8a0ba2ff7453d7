//go:build !cgo

package whisper

import "errors"

func newEngine(string, string, int) (engine, error) {
	return nil, errors.New("built without cgo")
}
